package service

import (
	"context"
	"log/slog"

	"github.com/bcnelson/activation-key-server/internal/domain"
	"github.com/bcnelson/activation-key-server/internal/storage"
)

// Listing limits.
const (
	DefaultPerPage = 25
	MaxPerPage     = 10000
	exportPageSize = 1000
)

// ReportService answers the read-only admin queries. Store failures on these
// paths are logged and degrade to empty results instead of failing the call.
type ReportService struct {
	store  storage.Storage
	logger *slog.Logger
	now    Clock
}

// NewReportService creates a new ReportService.
func NewReportService(store storage.Storage, logger *slog.Logger) *ReportService {
	return &ReportService{
		store:  store,
		logger: logger.With("component", "reports"),
		now:    systemClock,
	}
}

// WithClock replaces the service clock. Used by tests.
func (s *ReportService) WithClock(now Clock) *ReportService {
	s.now = now
	return s
}

// ListKeys returns one page of keys matching filter, newest first. Page
// numbers start at 1; perPage is clamped to [1, MaxPerPage].
func (s *ReportService) ListKeys(ctx context.Context, filter domain.KeyFilter, page, perPage int) *domain.KeyPage {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	result := &domain.KeyPage{
		Keys:    []*domain.ActivationKey{},
		Page:    page,
		PerPage: perPage,
	}

	total, err := s.store.CountKeys(ctx, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to count keys", "error", err)
		return result
	}
	keys, err := s.store.ListKeys(ctx, filter, perPage, (page-1)*perPage)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list keys", "error", err)
		return result
	}

	result.Keys = keys
	result.Total = total
	result.TotalPages = (total + perPage - 1) / perPage
	return result
}

// ExportKeys returns every key matching filter, newest first.
func (s *ReportService) ExportKeys(ctx context.Context, filter domain.KeyFilter) []*domain.ActivationKey {
	all := []*domain.ActivationKey{}
	for offset := 0; ; offset += exportPageSize {
		keys, err := s.store.ListKeys(ctx, filter, exportPageSize, offset)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to export keys", "offset", offset, "error", err)
			return all
		}
		all = append(all, keys...)
		if len(keys) < exportPageSize {
			return all
		}
	}
}

// KeyTypes returns the whole catalog, shortest duration first.
func (s *ReportService) KeyTypes(ctx context.Context) []*domain.KeyType {
	types, err := s.store.ListKeyTypes(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list key types", "error", err)
		return []*domain.KeyType{}
	}
	return types
}

// Customers groups keys by customer name. Keys without one are grouped
// under "Unknown".
func (s *ReportService) Customers(ctx context.Context) []*domain.CustomerSummary {
	customers, err := s.store.CustomerRollup(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to build customer rollup", "error", err)
		return []*domain.CustomerSummary{}
	}
	return customers
}

// Products groups keys by product name with the distinct key types issued
// for each.
func (s *ReportService) Products(ctx context.Context) []*domain.ProductSummary {
	products, err := s.store.ProductRollup(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to build product rollup", "error", err)
		return []*domain.ProductSummary{}
	}
	return products
}

// Stats summarizes all keys as of now.
func (s *ReportService) Stats(ctx context.Context) *domain.Stats {
	stats, err := s.store.Stats(ctx, s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to compute stats", "error", err)
		return &domain.Stats{KeyTypes: map[string]int{}}
	}
	return stats
}

// Health pings the store.
func (s *ReportService) Health(ctx context.Context) (*domain.HealthStatus, error) {
	status := &domain.HealthStatus{Store: "ok", Timestamp: s.now()}
	if err := s.store.Ping(ctx); err != nil {
		s.logger.ErrorContext(ctx, "store ping failed", "error", err)
		status.Store = "unavailable"
		return status, storeErr("pinging store", err)
	}
	return status, nil
}
