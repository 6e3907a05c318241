package handler

import (
	"log/slog"
	"net/http"

	"github.com/bcnelson/activation-key-server/internal/domain"
	"github.com/bcnelson/activation-key-server/internal/service"
)

// AdminHandler handles admin account endpoints.
type AdminHandler struct {
	admins *service.AdminService
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admins *service.AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admins: admins, logger: logger}
}

// Create creates an admin account.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAdminRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	resp, err := h.admins.CreateAdmin(r.Context(), &req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, &domain.Response{Success: true, Data: resp})
}

// List lists admin accounts.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	admins, err := h.admins.ListAdmins(r.Context())
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondData(w, r, admins)
}
