package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bcnelson/activation-key-server/internal/domain"
	"github.com/go-chi/chi/v5"
)

type staticResolver struct {
	admins map[string]*domain.AdminUser
}

func (s staticResolver) Resolve(ctx context.Context, apiKey string) (*domain.AdminUser, error) {
	admin, ok := s.admins[apiKey]
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return admin, nil
}

func (s staticResolver) ResolveSuperadmin(ctx context.Context, apiKey string) (*domain.AdminUser, error) {
	admin, err := s.Resolve(ctx, apiKey)
	if err != nil || !admin.IsSuperadmin {
		return nil, domain.ErrForbidden
	}
	return admin, nil
}

func newLoggedRouter(buf *bytes.Buffer, seen **domain.AdminUser) http.Handler {
	auth := staticResolver{admins: map[string]*domain.AdminUser{
		"op-key": {Username: "operator"},
	}}
	logger := slog.New(slog.NewJSONHandler(buf, nil))

	r := chi.NewRouter()
	r.Use(Logging(logger))
	r.Get("/public", func(w http.ResponseWriter, r *http.Request) {
		*seen = GetAdminFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	r.With(RequireAdmin(auth)).Get("/private", func(w http.ResponseWriter, r *http.Request) {
		*seen = GetAdminFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func lastLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	if err := json.Unmarshal(lines[len(lines)-1], &entry); err != nil {
		t.Fatalf("Failed to decode log line %q: %v", lines[len(lines)-1], err)
	}
	return entry
}

func TestLogging_AdminAttribute(t *testing.T) {
	var buf bytes.Buffer
	var seen *domain.AdminUser
	router := newLoggedRouter(&buf, &seen)

	req := httptest.NewRequest("GET", "/private", nil)
	req.Header.Set(APIKeyHeader, "op-key")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if seen == nil || seen.Username != "operator" {
		t.Errorf("Expected handler to see operator, got %+v", seen)
	}
	entry := lastLogLine(t, &buf)
	if entry["admin"] != "operator" {
		t.Errorf("Expected admin=operator in log, got %v", entry["admin"])
	}
	if entry["path"] != "/private" || entry["status"] != float64(http.StatusOK) {
		t.Errorf("Unexpected log entry: %v", entry)
	}
}

func TestLogging_PublicRouteHasNoAdmin(t *testing.T) {
	var buf bytes.Buffer
	var seen *domain.AdminUser
	router := newLoggedRouter(&buf, &seen)

	req := httptest.NewRequest("GET", "/public", nil)
	req.Header.Set(APIKeyHeader, "op-key")
	router.ServeHTTP(httptest.NewRecorder(), req)

	if seen != nil {
		t.Errorf("Expected no admin on public route, got %+v", seen)
	}
	if _, ok := lastLogLine(t, &buf)["admin"]; ok {
		t.Error("Expected no admin attribute on public route")
	}
}

func TestLogging_RejectedRequest(t *testing.T) {
	var buf bytes.Buffer
	var seen *domain.AdminUser
	router := newLoggedRouter(&buf, &seen)

	req := httptest.NewRequest("GET", "/private", nil)
	req.Header.Set(APIKeyHeader, "wrong")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}
	entry := lastLogLine(t, &buf)
	if _, ok := entry["admin"]; ok {
		t.Error("Expected no admin attribute on rejected request")
	}
	if entry["status"] != float64(http.StatusUnauthorized) {
		t.Errorf("Expected status 401 in log, got %v", entry["status"])
	}
}

func TestGetAdminFromContext_WithoutLogging(t *testing.T) {
	if admin := GetAdminFromContext(context.Background()); admin != nil {
		t.Errorf("Expected nil admin, got %+v", admin)
	}
	ctx := withAdmin(context.Background(), &domain.AdminUser{Username: "root"})
	if admin := GetAdminFromContext(ctx); admin == nil || admin.Username != "root" {
		t.Errorf("Expected root, got %+v", admin)
	}
}
