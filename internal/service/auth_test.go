package service

import (
	"context"
	"testing"

	"github.com/bcnelson/activation-key-server/internal/domain"
	"github.com/bcnelson/activation-key-server/internal/logging"
	"github.com/bcnelson/activation-key-server/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuthService(t *testing.T) (*AuthService, *AdminService, *memory.Store) {
	t.Helper()
	store := seededStore(t)
	auth, err := NewAuthService(store, newMetrics(), logging.Discard(), bcrypt.MinCost)
	require.NoError(t, err)
	admins := NewAdminService(store, logging.Discard(), bcrypt.MinCost)
	return auth, admins, store
}

func TestResolve(t *testing.T) {
	auth, _, _ := newAuthService(t)
	ctx := context.Background()

	admin, err := auth.Resolve(ctx, testAPIKey)
	require.NoError(t, err)
	assert.Equal(t, domain.BootstrapAdminUsername, admin.Username)
	assert.True(t, admin.IsSuperadmin)

	_, err = auth.Resolve(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = auth.Resolve(ctx, "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestResolveSuperadmin(t *testing.T) {
	auth, admins, _ := newAuthService(t)
	ctx := context.Background()

	created, err := admins.CreateAdmin(ctx, &domain.CreateAdminRequest{
		Username: "operator",
		Password: "password123",
	})
	require.NoError(t, err)

	admin, err := auth.Resolve(ctx, created.APIKey)
	require.NoError(t, err)
	assert.False(t, admin.IsSuperadmin)

	_, err = auth.ResolveSuperadmin(ctx, created.APIKey)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// A missing or unknown key is forbidden, not unauthorized, on superadmin routes.
	_, err = auth.ResolveSuperadmin(ctx, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = auth.ResolveSuperadmin(ctx, "wrong")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	admin, err = auth.ResolveSuperadmin(ctx, testAPIKey)
	require.NoError(t, err)
	assert.Equal(t, domain.BootstrapAdminUsername, admin.Username)
}

func TestVerifyPassword(t *testing.T) {
	auth, _, store := newAuthService(t)
	ctx := context.Background()

	resp, err := auth.VerifyPassword(ctx, "admin", "admin")
	require.NoError(t, err)
	assert.Equal(t, testAPIKey, resp.APIKey)
	assert.True(t, resp.IsSuperadmin)

	admin, err := store.GetAdminByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.NotNil(t, admin.LastLogin)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "admin", "nope"},
		{"unknown user", "ghost", "admin"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.VerifyPassword(ctx, tt.username, tt.password)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}
