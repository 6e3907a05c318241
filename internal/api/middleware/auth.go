package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bcnelson/activation-key-server/internal/domain"
	"github.com/go-chi/render"
)

type contextKey string

// AdminContextKey holds an *adminSlot. Logging installs an empty slot before
// the guards run so the resolved admin is visible once the request finishes.
const AdminContextKey contextKey = "admin"

type adminSlot struct {
	admin *domain.AdminUser
}

// APIKeyHeader carries the admin API key.
const APIKeyHeader = "X-API-KEY"

// Resolver maps an API key to an admin account.
type Resolver interface {
	Resolve(ctx context.Context, apiKey string) (*domain.AdminUser, error)
	ResolveSuperadmin(ctx context.Context, apiKey string) (*domain.AdminUser, error)
}

// RequireAdmin rejects requests without a valid admin API key with 401.
func RequireAdmin(auth Resolver) func(http.Handler) http.Handler {
	return guard(auth.Resolve)
}

// RequireSuperadmin rejects requests that do not carry a superadmin API key
// with 403, including requests with no key at all.
func RequireSuperadmin(auth Resolver) func(http.Handler) http.Handler {
	return guard(auth.ResolveSuperadmin)
}

func guard(resolve func(context.Context, string) (*domain.AdminUser, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin, err := resolve(r.Context(), apiKeyFromRequest(r))
			switch {
			case errors.Is(err, domain.ErrUnauthorized):
				deny(w, r, http.StatusUnauthorized, domain.MsgUnauthorized)
				return
			case errors.Is(err, domain.ErrForbidden):
				deny(w, r, http.StatusForbidden, domain.MsgSuperadminRequired)
				return
			case err != nil:
				deny(w, r, http.StatusInternalServerError, domain.MsgInternalError)
				return
			}

			next.ServeHTTP(w, r.WithContext(withAdmin(r.Context(), admin)))
		})
	}
}

// apiKeyFromRequest reads the X-API-KEY header, falling back to a bearer token.
func apiKeyFromRequest(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

func deny(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, &domain.Response{Success: false, Message: message})
}

// withAdmin records admin in the slot installed by Logging, or in a new slot
// when there is none.
func withAdmin(ctx context.Context, admin *domain.AdminUser) context.Context {
	if slot, ok := ctx.Value(AdminContextKey).(*adminSlot); ok {
		slot.admin = admin
		return ctx
	}
	return context.WithValue(ctx, AdminContextKey, &adminSlot{admin: admin})
}

// GetAdminFromContext retrieves the authenticated admin from the request
// context. It returns nil on public routes.
func GetAdminFromContext(ctx context.Context) *domain.AdminUser {
	slot, _ := ctx.Value(AdminContextKey).(*adminSlot)
	if slot == nil {
		return nil
	}
	return slot.admin
}
