package handler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/bcnelson/activation-key-server/internal/domain"
	"github.com/bcnelson/activation-key-server/internal/service"
	"github.com/go-chi/chi/v5"
)

// KeyDefaults fills fields omitted from a generate request.
type KeyDefaults struct {
	Prefix  string
	KeyType string
}

// KeyHandler handles activation key endpoints.
type KeyHandler struct {
	keys     *service.KeyService
	reports  *service.ReportService
	defaults KeyDefaults
	logger   *slog.Logger
}

// NewKeyHandler creates a new KeyHandler.
func NewKeyHandler(keys *service.KeyService, reports *service.ReportService, defaults KeyDefaults, logger *slog.Logger) *KeyHandler {
	return &KeyHandler{keys: keys, reports: reports, defaults: defaults, logger: logger}
}

// List returns one page of keys.
func (h *KeyHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	perPage, err := queryInt(r, "per_page", service.DefaultPerPage)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	respondData(w, r, h.reports.ListKeys(r.Context(), keyFilterFromQuery(r), page, perPage))
}

// Generate creates a batch of keys.
func (h *KeyHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateKeysRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	count, ok := parseCount(req.Count)
	if !ok {
		respondError(w, r, http.StatusBadRequest, domain.MsgCountNotInteger)
		return
	}
	if req.Prefix == "" {
		req.Prefix = h.defaults.Prefix
	}
	if req.KeyType == "" {
		req.KeyType = h.defaults.KeyType
	}

	result, err := h.keys.CreateBatch(r.Context(), service.BatchRequest{
		Count:        count,
		KeyType:      req.KeyType,
		Prefix:       req.Prefix,
		CustomerName: req.CustomerName,
		ProductName:  req.ProductName,
		Notes:        req.Notes,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	values := make([]string, len(result.Keys))
	for i, k := range result.Keys {
		values[i] = k.Value
	}
	respondJSON(w, r, http.StatusOK, &domain.Response{
		Success: true,
		Message: fmt.Sprintf("Generated %d keys successfully", len(values)),
		Data: &domain.GenerateKeysResponse{
			Count:        len(values),
			Requested:    result.Requested,
			Keys:         values,
			KeyType:      result.KeyType,
			CustomerName: req.CustomerName,
			ProductName:  req.ProductName,
		},
	})
}

// parseCount accepts a JSON number or numeric string. A missing count is 1.
func parseCount(v any) (int, bool) {
	switch c := v.(type) {
	case nil:
		return 1, true
	case float64:
		if c != math.Trunc(c) || math.Abs(c) > math.MaxInt32 {
			return 0, false
		}
		return int(c), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(c))
		return n, err == nil
	default:
		return 0, false
	}
}

// Get returns the status view of one key.
func (h *KeyHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.keys.Status(r.Context(), chi.URLParam(r, "value"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondData(w, r, view)
}

// Ban bans a key.
func (h *KeyHandler) Ban(w http.ResponseWriter, r *http.Request) {
	h.setBan(w, r, h.keys.Ban, domain.MsgKeyBannedOK)
}

// Unban lifts a ban.
func (h *KeyHandler) Unban(w http.ResponseWriter, r *http.Request) {
	h.setBan(w, r, h.keys.Unban, domain.MsgKeyUnbannedOK)
}

func (h *KeyHandler) setBan(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, value string) (bool, error), okMessage string) {
	matched, err := apply(r.Context(), chi.URLParam(r, "value"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if !matched {
		respondError(w, r, http.StatusNotFound, domain.MsgKeyNotFound)
		return
	}
	respondMessage(w, r, okMessage)
}
