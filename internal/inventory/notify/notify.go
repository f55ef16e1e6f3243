// Package notify fans domain notifications out to the event bus and, for the
// events purchasing staff act on, to the WeCom group robot.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/medflow/hospital-erp/pkg/logger"
	"github.com/medflow/hospital-erp/pkg/messaging"
	"github.com/medflow/hospital-erp/pkg/wecom"
)

const defaultTimeout = 10 * time.Second

// Dispatcher delivers notifications in the background. Failures are logged
// and dropped.
type Dispatcher struct {
	events  messaging.EventPublisher
	robot   wecom.Sender
	timeout time.Duration
	logger  *logger.Logger
	wg      sync.WaitGroup
}

// New creates a dispatcher. Either sink may be nil.
func New(events messaging.EventPublisher, robot wecom.Sender, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		events:  events,
		robot:   robot,
		timeout: defaultTimeout,
		logger:  log.WithComponent("notify"),
	}
}

// Notify queues delivery of one notification and returns immediately.
// The caller's cancellation does not abort delivery.
func (d *Dispatcher) Notify(ctx context.Context, kind string, payload interface{}) {
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		d.deliver(ctx, kind, payload)
	}()
}

// Wait blocks until queued deliveries finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, kind string, payload interface{}) {
	if d.events != nil {
		if err := d.events.Publish(ctx, kind, payload); err != nil {
			d.logger.Error().Err(err).Str("event_type", kind).Msg("failed to publish event")
		}
	}

	if d.robot == nil {
		return
	}
	content, ok := Render(kind, payload)
	if !ok {
		return
	}
	if err := d.robot.SendMarkdown(ctx, content); err != nil {
		d.logger.Error().Err(err).Str("event_type", kind).Msg("failed to send wecom notice")
	}
}

// Render formats the robot message for kinds purchasing cares about.
// ok is false for everything else.
func Render(kind string, payload interface{}) (string, bool) {
	switch p := payload.(type) {
	case messaging.ProcurementEvent:
		var title string
		switch kind {
		case messaging.EventProcurementRequested:
			title = "New procurement request"
		case messaging.EventProcurementApproved:
			title = "Procurement request approved"
		case messaging.EventProcurementRejected:
			title = "Procurement request rejected"
		case messaging.EventProcurementCompleted:
			title = "Procurement received"
		default:
			return "", false
		}

		var b strings.Builder
		fmt.Fprintf(&b, "### %s\n", title)
		fmt.Fprintf(&b, "> Title: **%s**\n", p.Title)
		fmt.Fprintf(&b, "> Item: %s\n", p.ItemName)
		fmt.Fprintf(&b, "> Quantity: %d\n", p.Quantity)
		fmt.Fprintf(&b, "> Priority: <font color=\"%s\">%s</font>\n", priorityColor(p.Priority), p.Priority)
		fmt.Fprintf(&b, "> Deadline: %s\n", p.Deadline.Format("2006-01-02 15:04"))
		return b.String(), true

	case messaging.RequisitionEvent:
		if kind != messaging.EventRequisitionRestocking {
			return "", false
		}

		var b strings.Builder
		b.WriteString("### Requisition waiting for stock\n")
		fmt.Fprintf(&b, "> Department: %s\n", p.DepartmentID)
		fmt.Fprintf(&b, "> Item: **%s**\n", p.ItemName)
		fmt.Fprintf(&b, "> Requested: %d\n", p.Quantity)
		if p.Available != nil {
			fmt.Fprintf(&b, "> Available: %d\n", *p.Available)
		}
		return b.String(), true
	}
	return "", false
}

func priorityColor(priority string) string {
	switch priority {
	case "high", "urgent":
		return "warning"
	case "low":
		return "comment"
	default:
		return "info"
	}
}
