package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/hospital-erp/internal/inventory/repository"
	"github.com/medflow/hospital-erp/internal/inventory/service"
	"github.com/medflow/hospital-erp/pkg/httputil"
	"github.com/medflow/hospital-erp/pkg/identity"
	"github.com/medflow/hospital-erp/pkg/logger"
)

// ProcurementHandler handles procurement request endpoints
type ProcurementHandler struct {
	service *service.ProcurementService
	logger  *logger.Logger
}

// NewProcurementHandler creates a new procurement handler
func NewProcurementHandler(svc *service.ProcurementService, log *logger.Logger) *ProcurementHandler {
	return &ProcurementHandler{
		service: svc,
		logger:  log,
	}
}

// CreateProcurementRequest is the body of POST /procurement
type CreateProcurementRequest struct {
	Title    string     `json:"title" validate:"max=255"`
	ItemName string     `json:"item_name" validate:"required,max=255"`
	Quantity int        `json:"quantity"`
	Priority string     `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Deadline *time.Time `json:"deadline,omitempty"`
	Note     *string    `json:"note,omitempty"`
}

// CompleteProcurementRequest describes the delivered goods
type CompleteProcurementRequest struct {
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
	Supplier   *string    `json:"supplier,omitempty"`
}

// Create raises a procurement request. An identical pending request answers
// 200 with created=false instead of a duplicate.
func (h *ProcurementHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProcurementRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	p, created, err := h.service.Create(r.Context(), identity.FromContext(r.Context()), service.CreateProcurementInput{
		Title:    req.Title,
		ItemName: req.ItemName,
		Quantity: req.Quantity,
		Priority: repository.Priority(req.Priority),
		Deadline: req.Deadline,
		Note:     req.Note,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if !created {
		httputil.JSON(w, http.StatusOK, map[string]bool{"created": false})
		return
	}

	httputil.Created(w, p)
}

// List lists procurement requests
func (h *ProcurementHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)
	q := r.URL.Query()

	list, total, err := h.service.List(r.Context(), repository.ProcurementFilter{
		Status:   repository.ProcurementStatus(q.Get("status")),
		ItemName: q.Get("item_name"),
		Limit:    perPage,
		Offset:   (page - 1) * perPage,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, list, httputil.PageMeta(page, perPage, int64(total)))
}

// Get gets a procurement request
func (h *ProcurementHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, p)
}

// Approve approves a pending request
func (h *ProcurementHandler) Approve(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Approve(r.Context(), chi.URLParam(r, "id"), identity.FromContext(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, p)
}

// Reject rejects a pending request
func (h *ProcurementHandler) Reject(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Reject(r.Context(), chi.URLParam(r, "id"), identity.FromContext(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, p)
}

// Complete receives the goods of an approved request
func (h *ProcurementHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteProcurementRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
	}

	p, err := h.service.Complete(r.Context(), chi.URLParam(r, "id"), identity.FromContext(r.Context()), service.ReceiveInput{
		ExpiryDate: req.ExpiryDate,
		Supplier:   req.Supplier,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, p)
}
