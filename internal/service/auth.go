package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bcnelson/activation-key-server/internal/domain"
	"github.com/bcnelson/activation-key-server/internal/metrics"
	"github.com/bcnelson/activation-key-server/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

// Auth failure reasons recorded in metrics.
const (
	ReasonMissingKey  = "missing_key"
	ReasonUnknownKey  = "unknown_key"
	ReasonNotSuper    = "not_superadmin"
	ReasonBadPassword = "bad_password"
)

// AuthService resolves admin credentials. It is the single gate in front of
// every management operation.
type AuthService struct {
	store   storage.Storage
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     Clock

	// dummyDigest is compared against when the username is unknown so that
	// failed logins take the same time either way.
	dummyDigest []byte
}

// NewAuthService creates a new AuthService. cost is the bcrypt work factor.
func NewAuthService(store storage.Storage, m *metrics.Metrics, logger *slog.Logger, cost int) (*AuthService, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		return nil, err
	}
	return &AuthService{
		store:       store,
		metrics:     m,
		logger:      logger.With("component", "auth"),
		now:         systemClock,
		dummyDigest: dummy,
	}, nil
}

// Resolve returns the admin that owns apiKey. It fails with ErrUnauthorized
// when the key is empty or unknown.
func (s *AuthService) Resolve(ctx context.Context, apiKey string) (*domain.AdminUser, error) {
	if apiKey == "" {
		s.metrics.AuthFailures.WithLabelValues(ReasonMissingKey).Inc()
		return nil, domain.ErrUnauthorized
	}
	admin, err := s.store.GetAdminByAPIKey(ctx, apiKey)
	if errors.Is(err, domain.ErrAdminNotFound) {
		s.metrics.AuthFailures.WithLabelValues(ReasonUnknownKey).Inc()
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, storeErr("resolving api key", err)
	}
	return admin, nil
}

// ResolveSuperadmin is Resolve plus a superadmin check. Any failure,
// including a missing or unknown key, is reported as ErrForbidden.
func (s *AuthService) ResolveSuperadmin(ctx context.Context, apiKey string) (*domain.AdminUser, error) {
	admin, err := s.Resolve(ctx, apiKey)
	if errors.Is(err, domain.ErrUnauthorized) {
		return nil, domain.ErrForbidden
	}
	if err != nil {
		return nil, err
	}
	if !admin.IsSuperadmin {
		s.metrics.AuthFailures.WithLabelValues(ReasonNotSuper).Inc()
		return nil, domain.ErrForbidden
	}
	return admin, nil
}

// VerifyPassword checks a username and password and returns the admin's API
// key. The last login time is updated on success.
func (s *AuthService) VerifyPassword(ctx context.Context, username, password string) (*domain.LoginResponse, error) {
	admin, err := s.store.GetAdminByUsername(ctx, username)
	if err != nil && !errors.Is(err, domain.ErrAdminNotFound) {
		return nil, storeErr("finding admin", err)
	}
	if admin == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyDigest, []byte(password))
		s.metrics.AuthFailures.WithLabelValues(ReasonBadPassword).Inc()
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordDigest), []byte(password)); err != nil {
		s.metrics.AuthFailures.WithLabelValues(ReasonBadPassword).Inc()
		return nil, domain.ErrUnauthorized
	}
	if admin.APIKey == nil || *admin.APIKey == "" {
		return nil, domain.ErrUnauthorized
	}

	if err := s.store.UpdateAdminLastLogin(ctx, admin.ID, s.now()); err != nil {
		s.logger.WarnContext(ctx, "failed to record last login", "username", username, "error", err)
	}
	s.logger.InfoContext(ctx, "admin logged in", "username", username)

	return &domain.LoginResponse{
		APIKey:       *admin.APIKey,
		Username:     admin.Username,
		IsSuperadmin: admin.IsSuperadmin,
	}, nil
}
