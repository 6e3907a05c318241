package handler

import (
	"net/http"

	"github.com/bcnelson/activation-key-server/internal/domain"
	"github.com/bcnelson/activation-key-server/internal/service"
)

// HealthHandler reports liveness and store reachability.
type HealthHandler struct {
	reports *service.ReportService
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(reports *service.ReportService) *HealthHandler {
	return &HealthHandler{reports: reports}
}

// Health returns 200 when the store answers a ping and 503 otherwise.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status, err := h.reports.Health(r.Context())
	if err != nil {
		respondJSON(w, r, http.StatusServiceUnavailable, &domain.Response{
			Success: false,
			Message: "Store unavailable",
			Data:    status,
		})
		return
	}
	respondJSON(w, r, http.StatusOK, &domain.Response{
		Success: true,
		Message: "Activation key server is running",
		Data:    status,
	})
}
