package consumers

import (
	"context"
	"errors"
	"testing"

	"github.com/medflow/hospital-erp/internal/inventory/repository"
	apperrors "github.com/medflow/hospital-erp/pkg/errors"
	"github.com/medflow/hospital-erp/pkg/logger"
	"github.com/medflow/hospital-erp/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDecider struct {
	calls    int
	token    string
	approved bool
	by       string
	err      error
}

func (f *fakeDecider) Decide(_ context.Context, token string, approved bool, by string) (*repository.ProcurementRequest, error) {
	f.calls++
	f.token, f.approved, f.by = token, approved, by
	return &repository.ProcurementRequest{ApprovalToken: token}, f.err
}

func decisionEvent(t *testing.T, data messaging.ApprovalDecidedEvent) *messaging.Event {
	t.Helper()
	event, err := messaging.NewEvent(messaging.EventApprovalDecided, "approval-gateway", "", data)
	require.NoError(t, err)
	return event
}

func TestHandleApprovalDecided(t *testing.T) {
	token := "6f1f6a4e-8f1c-4e55-9f3c-0b3e1a2d7c11"

	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"applied", nil, false},
		{"unknown token is acknowledged", apperrors.NotFound("procurement request"), false},
		{"already decided is acknowledged", apperrors.InvalidStateTransition("approve procurement", "approved"), false},
		{"database failure is retried", errors.New("connection reset"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decider := &fakeDecider{err: tt.err}
			c := &ApprovalEventConsumer{decider: decider, logger: logger.Nop()}

			err := c.handleApprovalDecided(context.Background(), decisionEvent(t, messaging.ApprovalDecidedEvent{
				ApprovalToken: token,
				Approved:      true,
				DecidedBy:     "wecom:zhang.wei",
			}))

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, 1, decider.calls)
			assert.Equal(t, token, decider.token)
			assert.True(t, decider.approved)
			assert.Equal(t, "wecom:zhang.wei", decider.by)
		})
	}
}

func TestHandleApprovalDecided_BadPayload(t *testing.T) {
	decider := &fakeDecider{}
	c := &ApprovalEventConsumer{decider: decider, logger: logger.Nop()}

	err := c.handleApprovalDecided(context.Background(), &messaging.Event{
		Type: messaging.EventApprovalDecided,
		Data: []byte(`"not an object"`),
	})

	assert.Error(t, err)
	assert.Zero(t, decider.calls)
}
