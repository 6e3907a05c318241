package storage

import (
	"context"
	"time"

	"github.com/bcnelson/activation-key-server/internal/domain"
)

// Storage defines the interface for the storage layer.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Activation Keys
	InsertKeys(ctx context.Context, keys []*domain.ActivationKey) ([]*domain.ActivationKey, error)
	FindKeyByValue(ctx context.Context, value string) (*domain.ActivationKey, error)
	UpdateKeyBan(ctx context.Context, value string, banned bool) (bool, error)
	UpdateKeyActivation(ctx context.Context, value string, act *domain.Activation) error
	ListKeys(ctx context.Context, filter domain.KeyFilter, limit, offset int) ([]*domain.ActivationKey, error)
	CountKeys(ctx context.Context, filter domain.KeyFilter) (int, error)

	// Key Types
	CreateKeyType(ctx context.Context, kt *domain.KeyType) error
	GetKeyType(ctx context.Context, name string) (*domain.KeyType, error)
	ListKeyTypes(ctx context.Context) ([]*domain.KeyType, error)
	UpdateKeyType(ctx context.Context, kt *domain.KeyType) error

	// Admin Users
	CreateAdmin(ctx context.Context, admin *domain.AdminUser) error
	GetAdminByUsername(ctx context.Context, username string) (*domain.AdminUser, error)
	GetAdminByAPIKey(ctx context.Context, apiKey string) (*domain.AdminUser, error)
	ListAdmins(ctx context.Context) ([]*domain.AdminUser, error)
	CountAdmins(ctx context.Context) (int, error)
	UpdateAdminLastLogin(ctx context.Context, id string, at time.Time) error

	// Reports
	CustomerRollup(ctx context.Context) ([]*domain.CustomerSummary, error)
	ProductRollup(ctx context.Context) ([]*domain.ProductSummary, error)
	Stats(ctx context.Context, now time.Time) (*domain.Stats, error)
}
