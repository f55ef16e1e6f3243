package consumers

import (
	"context"

	"github.com/medflow/hospital-erp/internal/inventory/repository"
	"github.com/medflow/hospital-erp/pkg/errors"
	"github.com/medflow/hospital-erp/pkg/logger"
	"github.com/medflow/hospital-erp/pkg/messaging"
)

// Decider applies an external approval decision
type Decider interface {
	Decide(ctx context.Context, approvalToken string, approved bool, decidedBy string) (*repository.ProcurementRequest, error)
}

// ApprovalEventConsumer applies decisions sent back by the approval integration
type ApprovalEventConsumer struct {
	consumer *messaging.Consumer
	decider  Decider
	logger   *logger.Logger
}

// NewApprovalEventConsumer creates a new approval event consumer
func NewApprovalEventConsumer(rmq *messaging.RabbitMQ, decider Decider, log *logger.Logger) (*ApprovalEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "inventory-service.approval-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeApprovalEvents, "approval.procurement.*"); err != nil {
		return nil, err
	}

	c := &ApprovalEventConsumer{
		consumer: consumer,
		decider:  decider,
		logger:   log,
	}
	consumer.RegisterHandler(messaging.EventApprovalDecided, c.handleApprovalDecided)

	return c, nil
}

// Start starts consuming messages
func (c *ApprovalEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// Wait blocks until the consumer has stopped after its context was cancelled,
// so no decision is still being applied, or until ctx is done.
func (c *ApprovalEventConsumer) Wait(ctx context.Context) error {
	select {
	case <-c.consumer.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleApprovalDecided acknowledges decisions that can never apply, such as
// unknown tokens or requests already decided, so redeliveries are harmless.
func (c *ApprovalEventConsumer) handleApprovalDecided(ctx context.Context, event *messaging.Event) error {
	var data messaging.ApprovalDecidedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("approval_token", data.ApprovalToken).
		Bool("approved", data.Approved).
		Str("decided_by", data.DecidedBy).
		Msg("received approval decision")

	_, err := c.decider.Decide(ctx, data.ApprovalToken, data.Approved, data.DecidedBy)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errors.ErrNotFound):
		c.logger.Warn().Str("approval_token", data.ApprovalToken).Msg("approval decision for unknown request")
		return nil
	case errors.Is(err, errors.ErrInvalidStateTransition):
		c.logger.Info().Str("approval_token", data.ApprovalToken).Msg("procurement request already decided")
		return nil
	default:
		return err
	}
}
