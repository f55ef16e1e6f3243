package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/hospital-erp/internal/inventory/repository"
	"github.com/medflow/hospital-erp/internal/inventory/service"
	"github.com/medflow/hospital-erp/pkg/httputil"
	"github.com/medflow/hospital-erp/pkg/identity"
	"github.com/medflow/hospital-erp/pkg/logger"
)

// TransactionHandler handles the stock movement ledger
type TransactionHandler struct {
	service *service.TransactionService
	logger  *logger.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(svc *service.TransactionService, log *logger.Logger) *TransactionHandler {
	return &TransactionHandler{
		service: svc,
		logger:  log,
	}
}

// List lists transactions
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)
	q := r.URL.Query()

	f := repository.TransactionFilter{
		ItemID:        q.Get("item_id"),
		Type:          repository.TransactionType(q.Get("type")),
		RequisitionID: q.Get("requisition_id"),
		Limit:         perPage,
		Offset:        (page - 1) * perPage,
	}
	if q.Has("department") {
		dept := q.Get("department")
		f.DepartmentID = &dept
	}

	list, total, err := h.service.List(r.Context(), f)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, list, httputil.PageMeta(page, perPage, int64(total)))
}

// Delete soft deletes a transaction
func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SoftDelete(r.Context(), chi.URLParam(r, "id"), identity.FromContext(r.Context())); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
