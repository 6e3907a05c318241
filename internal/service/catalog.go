package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bcnelson/activation-key-server/internal/domain"
	"github.com/bcnelson/activation-key-server/internal/storage"
	"github.com/bcnelson/activation-key-server/internal/validation"
)

// CatalogService manages the key type catalog.
type CatalogService struct {
	store  storage.Storage
	logger *slog.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(store storage.Storage, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		store:  store,
		logger: logger.With("component", "catalog"),
	}
}

// GetKeyType returns one catalog entry.
func (s *CatalogService) GetKeyType(ctx context.Context, name string) (*domain.KeyType, error) {
	kt, err := s.store.GetKeyType(ctx, name)
	if err != nil {
		return nil, storeErr("finding key type", err)
	}
	return kt, nil
}

// CreateKeyType adds a key type. New types are available unless the request
// says otherwise.
func (s *CatalogService) CreateKeyType(ctx context.Context, req *domain.CreateKeyTypeRequest) (*domain.KeyType, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	kt := &domain.KeyType{
		Name:         req.Name,
		DurationDays: req.DurationDays,
		Description:  req.Description,
		Price:        req.Price,
		IsAvailable:  true,
	}
	if req.IsAvailable != nil {
		kt.IsAvailable = *req.IsAvailable
	}
	if err := s.store.CreateKeyType(ctx, kt); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, fmt.Errorf("key type %q: %w", req.Name, domain.ErrAlreadyExists)
		}
		return nil, storeErr("creating key type", err)
	}
	s.logger.InfoContext(ctx, "key type created", "name", kt.Name, "duration_days", kt.DurationDays)
	return kt, nil
}

// UpdateKeyType changes a key type. Keys already issued keep the expiry they
// were given; only later generations and activations see the new duration.
func (s *CatalogService) UpdateKeyType(ctx context.Context, name string, req *domain.UpdateKeyTypeRequest) (*domain.KeyType, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if req.ClearPrice && req.Price != nil {
		var errs validation.ValidationErrors
		errs.Add("price", fmt.Sprint(*req.Price), "price cannot be set and cleared in one request")
		return nil, errs
	}
	kt, err := s.store.GetKeyType(ctx, name)
	if err != nil {
		return nil, storeErr("finding key type", err)
	}
	if req.DurationDays != nil {
		kt.DurationDays = *req.DurationDays
	}
	if req.Description != nil {
		kt.Description = *req.Description
	}
	if req.Price != nil {
		kt.Price = req.Price
	}
	if req.ClearPrice {
		kt.Price = nil
	}
	if req.IsAvailable != nil {
		kt.IsAvailable = *req.IsAvailable
	}
	if err := s.store.UpdateKeyType(ctx, kt); err != nil {
		return nil, storeErr("updating key type", err)
	}
	s.logger.InfoContext(ctx, "key type updated", "name", kt.Name)
	return kt, nil
}
