package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bcnelson/activation-key-server/internal/domain"
	"github.com/bcnelson/activation-key-server/internal/storage"
	"github.com/bcnelson/activation-key-server/internal/validation"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AdminService manages admin accounts and first-run initialization.
type AdminService struct {
	store  storage.Storage
	logger *slog.Logger
	cost   int
	now    Clock
}

// NewAdminService creates a new AdminService. cost is the bcrypt work factor.
func NewAdminService(store storage.Storage, logger *slog.Logger, cost int) *AdminService {
	return &AdminService{
		store:  store,
		logger: logger.With("component", "admins"),
		cost:   cost,
		now:    systemClock,
	}
}

// CreateAdmin adds an admin account with a freshly issued API key. The key
// is returned once and never shown again by the API.
func (s *AdminService) CreateAdmin(ctx context.Context, req *domain.CreateAdminRequest) (*domain.CreateAdminResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	admin, err := s.newAdmin(req.Username, req.Password, uuid.New().String(), req.IsSuperadmin)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateAdmin(ctx, admin); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, fmt.Errorf("admin %q: %w", req.Username, domain.ErrAlreadyExists)
		}
		return nil, storeErr("creating admin", err)
	}

	s.logger.InfoContext(ctx, "admin created", "username", admin.Username, "superadmin", admin.IsSuperadmin)
	return &domain.CreateAdminResponse{
		ID:           admin.ID,
		Username:     admin.Username,
		APIKey:       *admin.APIKey,
		IsSuperadmin: admin.IsSuperadmin,
		CreatedAt:    admin.CreatedAt,
	}, nil
}

// ListAdmins returns all admin accounts without credentials.
func (s *AdminService) ListAdmins(ctx context.Context) ([]*domain.AdminUser, error) {
	admins, err := s.store.ListAdmins(ctx)
	if err != nil {
		return nil, storeErr("listing admins", err)
	}
	return admins, nil
}

func (s *AdminService) newAdmin(username, password, apiKey string, superadmin bool) (*domain.AdminUser, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	return &domain.AdminUser{
		ID:             uuid.New().String(),
		Username:       username,
		PasswordDigest: string(digest),
		APIKey:         &apiKey,
		IsSuperadmin:   superadmin,
		CreatedAt:      s.now(),
	}, nil
}

// BootstrapConfig controls first-run initialization.
type BootstrapConfig struct {
	// APIKey is assigned to the bootstrap admin. A random key is issued
	// and logged when empty.
	APIKey   string
	Password string
}

// Bootstrap seeds the key type catalog and, when no admin exists yet,
// creates the superadmin account. It is safe to run on every startup:
// existing key types and admins are left untouched.
func (s *AdminService) Bootstrap(ctx context.Context, cfg BootstrapConfig) error {
	for _, kt := range domain.DefaultKeyTypes() {
		err := s.store.CreateKeyType(ctx, kt)
		if err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
			return storeErr("seeding key type "+kt.Name, err)
		}
	}

	n, err := s.store.CountAdmins(ctx)
	if err != nil {
		return storeErr("counting admins", err)
	}
	if n > 0 {
		return nil
	}

	apiKey := cfg.APIKey
	generated := apiKey == ""
	if generated {
		apiKey = uuid.New().String()
	}
	admin, err := s.newAdmin(domain.BootstrapAdminUsername, cfg.Password, apiKey, true)
	if err != nil {
		return err
	}
	if err := s.store.CreateAdmin(ctx, admin); err != nil {
		return storeErr("creating bootstrap admin", err)
	}

	if generated {
		s.logger.WarnContext(ctx, "bootstrap admin created with generated api key",
			"username", admin.Username, "api_key", apiKey)
	} else {
		s.logger.InfoContext(ctx, "bootstrap admin created", "username", admin.Username)
	}
	return nil
}
