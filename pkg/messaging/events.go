package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Requisition events
	EventRequisitionSubmitted  = "inventory.requisition.submitted"
	EventRequisitionApproved   = "inventory.requisition.approved"
	EventRequisitionRejected   = "inventory.requisition.rejected"
	EventRequisitionRestocking = "inventory.requisition.restocking"
	EventRequisitionCompleted  = "inventory.requisition.completed"

	// Stock movement events
	EventStockTransferred = "inventory.stock.transferred"
	EventStockConsumed    = "inventory.stock.consumed"
	EventStockReceived    = "inventory.stock.received"

	// Procurement events
	EventProcurementRequested = "procurement.request.created"
	EventProcurementApproved  = "procurement.request.approved"
	EventProcurementRejected  = "procurement.request.rejected"
	EventProcurementCompleted = "procurement.request.completed"

	// Published by the external approval integration
	EventApprovalDecided = "approval.procurement.decided"
)

// Exchange names
const (
	ExchangeInventoryEvents   = "inventory.events"
	ExchangeProcurementEvents = "procurement.events"
	ExchangeApprovalEvents    = "approval.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Requisition Events

// RequisitionEvent is published on every requisition state change
type RequisitionEvent struct {
	RequisitionID string `json:"requisition_id"`
	ItemName      string `json:"item_name"`
	DepartmentID  string `json:"department_id"`
	Quantity      int    `json:"quantity"`
	Status        string `json:"status"`
	PerformedBy   string `json:"performed_by"`
	Available     *int   `json:"available,omitempty"`
}

// Stock Events

// StockMovedEvent is published when stock leaves or enters a location
type StockMovedEvent struct {
	TransactionID  string `json:"transaction_id"`
	ItemName       string `json:"item_name"`
	FromDepartment string `json:"from_department"`
	ToDepartment   string `json:"to_department,omitempty"`
	Quantity       int    `json:"quantity"`
	PerformedBy    string `json:"performed_by"`
}

// Procurement Events

// ProcurementEvent is published on procurement request changes
type ProcurementEvent struct {
	ProcurementID string    `json:"procurement_id"`
	Title         string    `json:"title"`
	ItemName      string    `json:"item_name"`
	Quantity      int       `json:"quantity"`
	Priority      string    `json:"priority"`
	Status        string    `json:"status"`
	Deadline      time.Time `json:"deadline"`
	ApprovalToken string    `json:"approval_token"`
	RequisitionID *string   `json:"requisition_id,omitempty"`
}

// ApprovalDecidedEvent is the decision sent back by the approval integration
type ApprovalDecidedEvent struct {
	ApprovalToken string `json:"approval_token"`
	Approved      bool   `json:"approved"`
	DecidedBy     string `json:"decided_by"`
	Comment       string `json:"comment,omitempty"`
}
