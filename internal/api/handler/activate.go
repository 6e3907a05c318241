package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/bcnelson/activation-key-server/internal/domain"
	"github.com/bcnelson/activation-key-server/internal/service"
)

// ActivationHandler handles the public activation endpoint.
type ActivationHandler struct {
	keys   *service.KeyService
	logger *slog.Logger
}

// NewActivationHandler creates a new ActivationHandler.
func NewActivationHandler(keys *service.KeyService, logger *slog.Logger) *ActivationHandler {
	return &ActivationHandler{keys: keys, logger: logger}
}

// Activate redeems a key. Every lifecycle refusal is a 400 so clients can
// treat any non-200 as "not activated".
func (h *ActivationHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req domain.ActivateRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if req.Key == "" {
		respondError(w, r, http.StatusBadRequest, domain.MsgKeyRequired)
		return
	}

	view, err := h.keys.Activate(r.Context(), req.Key, service.ActivationInput{
		HWID:      req.HWID,
		MachineID: req.MachineID,
		Email:     req.Email,
	})
	switch {
	case errors.Is(err, domain.ErrKeyNotFound):
		respondError(w, r, http.StatusBadRequest, domain.MsgKeyNotFound)
	case errors.Is(err, domain.ErrKeyBanned):
		respondError(w, r, http.StatusBadRequest, domain.MsgKeyBanned)
	case errors.Is(err, domain.ErrAlreadyActivated):
		respondError(w, r, http.StatusBadRequest, domain.MsgKeyAlreadyActivated)
	case err != nil:
		handleError(w, r, h.logger, err)
	default:
		respondJSON(w, r, http.StatusOK, &domain.Response{
			Success: true,
			Message: domain.MsgKeyActivated,
			Data:    view,
		})
	}
}
