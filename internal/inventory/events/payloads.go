package events

import (
	"github.com/medflow/hospital-erp/internal/inventory/repository"
	"github.com/medflow/hospital-erp/pkg/messaging"
)

// Requisition builds the payload for a requisition state change.
func Requisition(req *repository.Requisition, performedBy string, available *int) messaging.RequisitionEvent {
	return messaging.RequisitionEvent{
		RequisitionID: req.ID,
		ItemName:      req.ItemName,
		DepartmentID:  req.DepartmentID,
		Quantity:      req.Quantity,
		Status:        string(req.Status),
		PerformedBy:   performedBy,
		Available:     available,
	}
}

// StockMoved builds the payload for a recorded stock transaction.
func StockMoved(tx *repository.StockTransaction) messaging.StockMovedEvent {
	to := ""
	if tx.CounterpartDepartmentID != nil {
		to = *tx.CounterpartDepartmentID
	}
	return messaging.StockMovedEvent{
		TransactionID:  tx.ID,
		ItemName:       tx.ItemName,
		FromDepartment: tx.DepartmentID,
		ToDepartment:   to,
		Quantity:       tx.Quantity,
		PerformedBy:    tx.PerformedBy,
	}
}

// Procurement builds the payload for a procurement request change.
func Procurement(p *repository.ProcurementRequest) messaging.ProcurementEvent {
	return messaging.ProcurementEvent{
		ProcurementID: p.ID,
		Title:         p.Title,
		ItemName:      p.ItemName,
		Quantity:      p.Quantity,
		Priority:      string(p.Priority),
		Status:        string(p.Status),
		Deadline:      p.Deadline,
		ApprovalToken: p.ApprovalToken,
		RequisitionID: p.RequisitionID,
	}
}
