package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/hospital-erp/internal/inventory/repository"
	"github.com/medflow/hospital-erp/internal/inventory/service"
	"github.com/medflow/hospital-erp/pkg/errors"
	"github.com/medflow/hospital-erp/pkg/httputil"
	"github.com/medflow/hospital-erp/pkg/identity"
	"github.com/medflow/hospital-erp/pkg/logger"
)

// RequisitionHandler handles requisition endpoints
type RequisitionHandler struct {
	service *service.RequisitionService
	logger  *logger.Logger
}

// NewRequisitionHandler creates a new requisition handler
func NewRequisitionHandler(svc *service.RequisitionService, log *logger.Logger) *RequisitionHandler {
	return &RequisitionHandler{
		service: svc,
		logger:  log,
	}
}

// SubmitRequisitionRequest is the body of POST /requisitions
type SubmitRequisitionRequest struct {
	ItemName     string  `json:"item_name" validate:"required,max=255"`
	DepartmentID string  `json:"department_id" validate:"max=100"`
	Quantity     int     `json:"quantity"`
	Note         *string `json:"note,omitempty"`
}

// RestockResponse is returned by POST /requisitions/{id}/restock
type RestockResponse struct {
	Requisition *repository.Requisition        `json:"requisition"`
	Procurement *repository.ProcurementRequest `json:"procurement,omitempty"`
}

// Submit submits a requisition
func (h *RequisitionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequisitionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	requisition, err := h.service.Submit(r.Context(), identity.FromContext(r.Context()), service.SubmitInput{
		ItemName:     req.ItemName,
		DepartmentID: req.DepartmentID,
		Quantity:     req.Quantity,
		Note:         req.Note,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, requisition)
}

// List lists requisitions. Callers without a global role only see their department.
func (h *RequisitionHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)
	q := r.URL.Query()

	f := repository.RequisitionFilter{
		DepartmentID: q.Get("department"),
		Status:       repository.RequisitionStatus(q.Get("status")),
		Limit:        perPage,
		Offset:       (page - 1) * perPage,
	}

	id := identity.FromContext(r.Context())
	if id != nil && !id.IsGlobalRole {
		if f.DepartmentID != "" && f.DepartmentID != id.DepartmentID {
			httputil.Error(w, errors.Forbidden("cannot list another department's requisitions"))
			return
		}
		f.DepartmentID = id.DepartmentID
	}

	list, total, err := h.service.List(r.Context(), f)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, list, httputil.PageMeta(page, perPage, int64(total)))
}

// Get gets a requisition
func (h *RequisitionHandler) Get(w http.ResponseWriter, r *http.Request) {
	requisition, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if !identity.FromContext(r.Context()).CanAccessDepartment(requisition.DepartmentID) {
		httputil.Error(w, errors.NotFound("requisition"))
		return
	}

	httputil.JSON(w, http.StatusOK, requisition)
}

// Approve approves a requisition. A stock shortage answers 409 with the
// available quantity; the requisition has moved to restocking by then.
func (h *RequisitionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	requisition, err := h.service.Approve(r.Context(), chi.URLParam(r, "id"), identity.FromContext(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, requisition)
}

// Reject rejects a requisition
func (h *RequisitionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	requisition, err := h.service.Reject(r.Context(), chi.URLParam(r, "id"), identity.FromContext(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, requisition)
}

// Restock forces a requisition into restocking
func (h *RequisitionHandler) Restock(w http.ResponseWriter, r *http.Request) {
	requisition, procurement, err := h.service.TriggerRestocking(r.Context(), chi.URLParam(r, "id"), identity.FromContext(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, RestockResponse{Requisition: requisition, Procurement: procurement})
}

// Checkout completes an approved requisition
func (h *RequisitionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	requisition, err := h.service.Checkout(r.Context(), chi.URLParam(r, "id"), identity.FromContext(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, requisition)
}
