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

// ItemHandler handles item, batch and usage endpoints
type ItemHandler struct {
	ledger *service.LedgerService
	logger *logger.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(ledger *service.LedgerService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{
		ledger: ledger,
		logger: log,
	}
}

// CreateItemRequest creates an item or returns the existing one
type CreateItemRequest struct {
	Name             string  `json:"name" validate:"required,max=255"`
	DepartmentID     string  `json:"department_id" validate:"max=100"`
	Category         *string `json:"category,omitempty"`
	Unit             string  `json:"unit" validate:"max=50"`
	MinStock         int     `json:"min_stock" validate:"min=0"`
	RestockThreshold int     `json:"restock_threshold" validate:"min=0"`
}

// AddBatchRequest receives stock into an item
type AddBatchRequest struct {
	Quantity   int        `json:"quantity"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
	Supplier   *string    `json:"supplier,omitempty"`
}

// UsageRequest records department consumption
type UsageRequest struct {
	ItemName     string  `json:"item_name" validate:"required"`
	DepartmentID string  `json:"department_id" validate:"required"`
	Quantity     int     `json:"quantity"`
	Note         *string `json:"note,omitempty"`
}

// List lists items. ?department= selects one location, an empty value the warehouse.
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.ItemFilter{
		Category: q.Get("category"),
		Name:     q.Get("name"),
	}
	if q.Has("department") {
		dept := q.Get("department")
		f.DepartmentID = &dept
	}

	items, err := h.ledger.ListItems(r.Context(), f)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, items)
}

// Get gets an item with its batches
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.ledger.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Create creates or merges an item
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.ledger.CreateOrMergeItem(r.Context(), service.NewItem{
		Name:             req.Name,
		DepartmentID:     req.DepartmentID,
		Category:         req.Category,
		Unit:             req.Unit,
		MinStock:         req.MinStock,
		RestockThreshold: req.RestockThreshold,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, item)
}

// Stock returns the item's total quantity
func (h *ItemHandler) Stock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	total, err := h.ledger.TotalStock(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"item_id":     id,
		"total_stock": total,
	})
}

// ListBatches lists the item's batches in allocation order
func (h *ItemHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.ledger.ListBatches(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// AddBatch receives a new batch
func (h *ItemHandler) AddBatch(w http.ResponseWriter, r *http.Request) {
	var req AddBatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.ledger.AddBatch(r.Context(), chi.URLParam(r, "id"), req.Quantity, req.ExpiryDate, req.Supplier)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, batch)
}

// RecordUsage consumes department stock
func (h *ItemHandler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	var req UsageRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	tx, err := h.ledger.RecordUsage(r.Context(), identity.FromContext(r.Context()), service.UsageInput{
		ItemName:     req.ItemName,
		DepartmentID: req.DepartmentID,
		Quantity:     req.Quantity,
		Note:         req.Note,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, tx)
}
