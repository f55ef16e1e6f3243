package handler

import (
	"context"
	"net/http"

	"github.com/medflow/hospital-erp/internal/inventory/service"
	"github.com/medflow/hospital-erp/pkg/errors"
	"github.com/medflow/hospital-erp/pkg/httputil"
	"github.com/medflow/hospital-erp/pkg/lock"
	"github.com/medflow/hospital-erp/pkg/logger"
)

// ScanRunner runs one restock scan
type ScanRunner interface {
	RunOnce(ctx context.Context) (*service.ScanResult, error)
}

// RestockHandler exposes the restock scan for manual runs
type RestockHandler struct {
	runner ScanRunner
	logger *logger.Logger
}

// NewRestockHandler creates a new restock handler
func NewRestockHandler(runner ScanRunner, log *logger.Logger) *RestockHandler {
	return &RestockHandler{
		runner: runner,
		logger: log,
	}
}

// Scan runs a restock scan now
func (h *RestockHandler) Scan(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.RunOnce(r.Context())
	if errors.Is(err, lock.ErrNotAcquired) {
		httputil.Error(w, errors.Conflict("a restock scan is already running"))
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("manual restock scan failed")
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
