package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/medflow/hospital-erp/pkg/httputil"
	"github.com/medflow/hospital-erp/pkg/permissions"
)

// Handlers groups every inventory handler for mounting
type Handlers struct {
	Items        *ItemHandler
	Requisitions *RequisitionHandler
	Transfers    *TransferHandler
	Restock      *RestockHandler
	Procurement  *ProcurementHandler
	Transactions *TransactionHandler
}

// Mount registers the inventory API on r. Identity must already be resolved.
func (h *Handlers) Mount(r chi.Router) {
	perm := httputil.RequirePermission

	r.Route("/requisitions", func(r chi.Router) {
		r.With(perm(permissions.RequisitionCreate)).Post("/", h.Requisitions.Submit)
		r.With(perm(permissions.RequisitionRead)).Get("/", h.Requisitions.List)
		r.With(perm(permissions.RequisitionRead)).Get("/{id}", h.Requisitions.Get)
		r.With(perm(permissions.RequisitionApprove)).Post("/{id}/approve", h.Requisitions.Approve)
		r.With(perm(permissions.RequisitionApprove)).Post("/{id}/reject", h.Requisitions.Reject)
		r.With(perm(permissions.RequisitionApprove)).Post("/{id}/restock", h.Requisitions.Restock)
		r.With(perm(permissions.RequisitionCheckout)).Post("/{id}/checkout", h.Requisitions.Checkout)
	})

	r.With(perm(permissions.InventoryTransfer)).Post("/transfers", h.Transfers.Transfer)
	r.With(perm(permissions.ProcurementManage)).Post("/restocking/scan", h.Restock.Scan)

	r.Route("/items", func(r chi.Router) {
		r.With(perm(permissions.InventoryRead)).Get("/", h.Items.List)
		r.With(perm(permissions.InventoryWrite)).Post("/", h.Items.Create)
		r.With(perm(permissions.InventoryRead)).Get("/{id}", h.Items.Get)
		r.With(perm(permissions.InventoryRead)).Get("/{id}/stock", h.Items.Stock)
		r.With(perm(permissions.InventoryRead)).Get("/{id}/batches", h.Items.ListBatches)
		r.With(perm(permissions.InventoryWrite)).Post("/{id}/batches", h.Items.AddBatch)
	})
	r.With(perm(permissions.InventoryUsage)).Post("/usage", h.Items.RecordUsage)

	r.Route("/transactions", func(r chi.Router) {
		r.With(perm(permissions.InventoryRead)).Get("/", h.Transactions.List)
		r.With(perm(permissions.TransactionsManage)).Delete("/{id}", h.Transactions.Delete)
	})

	r.Route("/procurement", func(r chi.Router) {
		r.With(perm(permissions.ProcurementRead)).Get("/", h.Procurement.List)
		r.With(perm(permissions.ProcurementManage)).Post("/", h.Procurement.Create)
		r.With(perm(permissions.ProcurementRead)).Get("/{id}", h.Procurement.Get)
		r.With(perm(permissions.ProcurementManage)).Post("/{id}/approve", h.Procurement.Approve)
		r.With(perm(permissions.ProcurementManage)).Post("/{id}/reject", h.Procurement.Reject)
		r.With(perm(permissions.ProcurementManage)).Post("/{id}/complete", h.Procurement.Complete)
	})
}
