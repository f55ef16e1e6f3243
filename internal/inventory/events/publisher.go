package events

import (
	"context"
	"strings"

	"github.com/medflow/hospital-erp/pkg/logger"
	"github.com/medflow/hospital-erp/pkg/messaging"
)

// InventoryEventPublisher routes domain events to the inventory or the
// procurement exchange depending on the event type.
type InventoryEventPublisher struct {
	inventory   messaging.EventPublisher
	procurement messaging.EventPublisher
	logger      *logger.Logger
}

// NewInventoryEventPublisher declares both exchanges and creates the publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	inventory, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}
	procurement, err := messaging.NewPublisher(rmq, messaging.ExchangeProcurementEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}
	return newInventoryEventPublisher(inventory, procurement, log), nil
}

func newInventoryEventPublisher(inventory, procurement messaging.EventPublisher, log *logger.Logger) *InventoryEventPublisher {
	return &InventoryEventPublisher{
		inventory:   inventory,
		procurement: procurement,
		logger:      log,
	}
}

// Publish sends the event. Procurement events go to the procurement exchange
// so purchasing systems can subscribe without seeing stock traffic.
func (p *InventoryEventPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	if p == nil {
		return nil
	}
	if strings.HasPrefix(eventType, "procurement.") {
		return p.procurement.Publish(ctx, eventType, data)
	}
	return p.inventory.Publish(ctx, eventType, data)
}
