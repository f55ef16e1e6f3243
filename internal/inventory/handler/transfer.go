package handler

import (
	"net/http"

	"github.com/medflow/hospital-erp/internal/inventory/service"
	"github.com/medflow/hospital-erp/pkg/httputil"
	"github.com/medflow/hospital-erp/pkg/identity"
	"github.com/medflow/hospital-erp/pkg/logger"
)

// TransferHandler handles stock transfers
type TransferHandler struct {
	service *service.TransferService
	logger  *logger.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(svc *service.TransferService, log *logger.Logger) *TransferHandler {
	return &TransferHandler{
		service: svc,
		logger:  log,
	}
}

// TransferRequest is the body of POST /transfers. An empty department is the warehouse.
type TransferRequest struct {
	ItemName       string  `json:"item_name" validate:"required,max=255"`
	Quantity       int     `json:"quantity"`
	FromDepartment string  `json:"from_department" validate:"max=100"`
	ToDepartment   string  `json:"to_department" validate:"max=100,nefield=FromDepartment"`
	Note           *string `json:"note,omitempty"`
}

// Transfer moves stock between locations
func (h *TransferHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Transfer(r.Context(), identity.FromContext(r.Context()), service.TransferInput{
		ItemName:       req.ItemName,
		Quantity:       req.Quantity,
		FromDepartment: req.FromDepartment,
		ToDepartment:   req.ToDepartment,
		Note:           req.Note,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}
