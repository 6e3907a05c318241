package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bcnelson/activation-key-server/internal/domain"
	"github.com/bcnelson/activation-key-server/internal/validation"
	"github.com/go-chi/render"
)

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, resp *domain.Response) {
	render.Status(r, status)
	render.JSON(w, r, resp)
}

// respondData writes a successful envelope carrying data.
func respondData(w http.ResponseWriter, r *http.Request, data any) {
	respondJSON(w, r, http.StatusOK, &domain.Response{Success: true, Data: data})
}

// respondMessage writes a successful envelope carrying only a message.
func respondMessage(w http.ResponseWriter, r *http.Request, message string) {
	respondJSON(w, r, http.StatusOK, &domain.Response{Success: true, Message: message})
}

// respondError writes a failed envelope.
func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondJSON(w, r, status, &domain.Response{Success: false, Message: message})
}

// respondValidationErrors writes a 400 whose message is the first failure and
// whose data lists every failing field.
func respondValidationErrors(w http.ResponseWriter, r *http.Request, errs validation.ValidationErrors) {
	respondJSON(w, r, http.StatusBadRequest, &domain.Response{
		Success: false,
		Message: sentence(errs[0].Message),
		Data:    map[string]any{"errors": errs},
	})
}

// handleError converts domain errors to HTTP errors.
func handleError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verrs validation.ValidationErrors
	var verr *validation.ValidationError
	switch {
	case errors.As(err, &verrs) && verrs.HasErrors():
		respondValidationErrors(w, r, verrs)
	case errors.As(err, &verr):
		respondValidationErrors(w, r, validation.ValidationErrors{verr})
	case errors.Is(err, domain.ErrKeyNotFound):
		respondError(w, r, http.StatusNotFound, domain.MsgKeyNotFound)
	case errors.Is(err, domain.ErrKeyTypeNotFound):
		respondError(w, r, http.StatusNotFound, "Key type not found")
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		respondError(w, r, http.StatusConflict, sentence(err.Error()))
	case errors.Is(err, domain.ErrKeyBanned):
		respondError(w, r, http.StatusConflict, domain.MsgKeyBanned)
	case errors.Is(err, domain.ErrAlreadyActivated):
		respondError(w, r, http.StatusConflict, domain.MsgKeyAlreadyActivated)
	case errors.Is(err, domain.ErrInvalidInput):
		respondError(w, r, http.StatusBadRequest, domain.MsgInvalidBody)
	case errors.Is(err, domain.ErrUnauthorized):
		respondError(w, r, http.StatusUnauthorized, domain.MsgUnauthorized)
	case errors.Is(err, domain.ErrForbidden):
		respondError(w, r, http.StatusForbidden, domain.MsgSuperadminRequired)
	default:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		respondError(w, r, http.StatusInternalServerError, domain.MsgInternalError)
	}
}

// decodeJSON decodes JSON from the request body. An empty body leaves v
// unchanged.
func decodeJSON(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil && !errors.Is(err, io.EOF) {
		return domain.ErrInvalidInput
	}
	return nil
}

// sentence upper-cases the first letter of s.
func sentence(s string) string {
	first, size := utf8.DecodeRuneInString(s)
	if first == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(first)) + s[size:]
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validation.NewValidationError(name, raw, name+" must be a valid integer")
	}
	return n, nil
}

// keyFilterFromQuery builds a listing filter from query parameters. Flags
// match only the literal "true"; any other value filters for false.
func keyFilterFromQuery(r *http.Request) domain.KeyFilter {
	q := r.URL.Query()
	var f domain.KeyFilter
	str := func(name string) *string {
		if !q.Has(name) {
			return nil
		}
		v := q.Get(name)
		return &v
	}
	flag := func(name string) *bool {
		if !q.Has(name) {
			return nil
		}
		v := q.Get(name) == "true"
		return &v
	}
	f.KeyType = str("key_type")
	f.IsActive = flag("is_active")
	f.IsBanned = flag("is_banned")
	f.CustomerName = str("customer_name")
	f.ProductName = str("product_name")
	f.Email = str("email")
	return f
}
