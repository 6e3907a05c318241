package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/bcnelson/activation-key-server/internal/domain"
	"github.com/bcnelson/activation-key-server/internal/service"
	"github.com/bcnelson/activation-key-server/internal/validation"
)

// AuthHandler handles password login.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// Login exchanges a username and password for the admin's API key.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	resp, err := h.auth.VerifyPassword(r.Context(), req.Username, req.Password)
	if errors.Is(err, domain.ErrUnauthorized) {
		respondError(w, r, http.StatusUnauthorized, domain.MsgInvalidCredentials)
		return
	}
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondData(w, r, resp)
}
