package handler

import (
	"log/slog"
	"net/http"

	"github.com/bcnelson/activation-key-server/internal/domain"
	"github.com/bcnelson/activation-key-server/internal/service"
	"github.com/go-chi/chi/v5"
)

// KeyTypeHandler handles key type catalog endpoints.
type KeyTypeHandler struct {
	catalog *service.CatalogService
	reports *service.ReportService
	logger  *slog.Logger
}

// NewKeyTypeHandler creates a new KeyTypeHandler.
func NewKeyTypeHandler(catalog *service.CatalogService, reports *service.ReportService, logger *slog.Logger) *KeyTypeHandler {
	return &KeyTypeHandler{catalog: catalog, reports: reports, logger: logger}
}

// List returns the catalog.
func (h *KeyTypeHandler) List(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, h.reports.KeyTypes(r.Context()))
}

// Get returns one key type with its ETag.
func (h *KeyTypeHandler) Get(w http.ResponseWriter, r *http.Request) {
	kt, err := h.catalog.GetKeyType(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	setETagHeader(w, keyTypeETag(kt))
	respondData(w, r, kt)
}

// Create adds a key type.
func (h *KeyTypeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateKeyTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	kt, err := h.catalog.CreateKeyType(r.Context(), &req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, &domain.Response{Success: true, Data: kt})
}

// Update changes a key type. An If-Match header must carry the ETag from a
// previous read when present.
func (h *KeyTypeHandler) Update(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req domain.UpdateKeyTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	if r.Header.Get("If-Match") != "" {
		current, err := h.catalog.GetKeyType(r.Context(), name)
		if err != nil {
			handleError(w, r, h.logger, err)
			return
		}
		if etag := keyTypeETag(current); !checkIfMatch(r, etag) {
			respondPreconditionFailed(w, r, etag)
			return
		}
	}

	kt, err := h.catalog.UpdateKeyType(r.Context(), name, &req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	setETagHeader(w, keyTypeETag(kt))
	respondData(w, r, kt)
}
