package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bcnelson/activation-key-server/internal/domain"
	"github.com/bcnelson/activation-key-server/internal/keygen"
	"github.com/bcnelson/activation-key-server/internal/metrics"
	"github.com/bcnelson/activation-key-server/internal/storage"
	"github.com/bcnelson/activation-key-server/internal/validation"
	"github.com/google/uuid"
)

// BatchRequest describes a bulk key generation.
type BatchRequest struct {
	Count        int
	KeyType      string
	Prefix       string
	CustomerName *string
	ProductName  *string
	Notes        *string
}

// BatchResult reports what a bulk generation inserted. Keys may be fewer
// than Requested when generated values collided with existing keys.
type BatchResult struct {
	Keys       []*domain.ActivationKey
	Requested  int
	KeyType    string
	ExpiryDate *time.Time
}

// ActivationInput carries the client details recorded on activation.
type ActivationInput struct {
	HWID      *string
	MachineID *string
	Email     *string
}

// KeyService enforces the activation key state machine:
// created -> activated, and banned <-> unbanned from either state.
type KeyService struct {
	store    storage.Storage
	gen      keygen.Generator
	metrics  *metrics.Metrics
	logger   *slog.Logger
	maxBatch int
	now      Clock
}

// NewKeyService creates a new KeyService.
func NewKeyService(store storage.Storage, gen keygen.Generator, m *metrics.Metrics, logger *slog.Logger, maxBatch int) *KeyService {
	return &KeyService{
		store:    store,
		gen:      gen,
		metrics:  m,
		logger:   logger.With("component", "keys"),
		maxBatch: maxBatch,
		now:      systemClock,
	}
}

// WithClock replaces the service clock. Used by tests.
func (s *KeyService) WithClock(now Clock) *KeyService {
	s.now = now
	return s
}

// expiryFor computes the expiry of a key of the named type whose validity
// starts at start. A key type missing from the catalog yields a nil expiry.
func (s *KeyService) expiryFor(ctx context.Context, keyType string, start time.Time) (*time.Time, error) {
	kt, err := s.store.GetKeyType(ctx, keyType)
	if errors.Is(err, domain.ErrKeyTypeNotFound) {
		s.logger.WarnContext(ctx, "key type not in catalog, expiry left empty", "key_type", keyType)
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("looking up key type", err)
	}
	expiry := kt.ExpiryFrom(start)
	return &expiry, nil
}

// CreateBatch generates and inserts req.Count keys sharing one expiry date.
// Generated values that already exist are skipped, not reported as errors.
func (s *KeyService) CreateBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	var errs validation.ValidationErrors
	if err := validation.ValidateBatchSize(req.Count, s.maxBatch); err != nil {
		errs.Add("count", "", err.Error())
	}
	if err := validation.ValidateKeyPrefix(req.Prefix); err != nil {
		errs.Add("prefix", req.Prefix, err.Error())
	}
	if err := validation.ValidateKeyTypeReference(req.KeyType); err != nil {
		errs.Add("key_type", req.KeyType, err.Error())
	}
	if errs.HasErrors() {
		return nil, errs
	}

	now := s.now()
	expiry, err := s.expiryFor(ctx, req.KeyType, now)
	if err != nil {
		return nil, err
	}

	candidates := make([]*domain.ActivationKey, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		value, err := s.gen.Generate(req.Prefix)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, &domain.ActivationKey{
			ID:           uuid.New().String(),
			Value:        value,
			KeyType:      req.KeyType,
			CreatedAt:    now,
			IsActive:     true,
			ExpiryDate:   expiry,
			CustomerName: req.CustomerName,
			ProductName:  req.ProductName,
			Notes:        req.Notes,
		})
	}

	inserted, err := s.store.InsertKeys(ctx, candidates)
	if err != nil {
		return nil, storeErr("inserting keys", err)
	}

	skipped := len(candidates) - len(inserted)
	s.metrics.KeysGenerated.WithLabelValues(req.KeyType).Add(float64(len(inserted)))
	s.metrics.KeysSkipped.Add(float64(skipped))
	s.logger.InfoContext(ctx, "keys generated",
		"key_type", req.KeyType,
		"requested", req.Count,
		"inserted", len(inserted),
		"skipped", skipped,
	)

	return &BatchResult{
		Keys:       inserted,
		Requested:  req.Count,
		KeyType:    req.KeyType,
		ExpiryDate: expiry,
	}, nil
}

// Activate redeems a key. It fails with ErrKeyNotFound, ErrKeyBanned or
// ErrAlreadyActivated; a key can be activated only once. On success the
// expiry date is recomputed from the key type so validity starts now.
func (s *KeyService) Activate(ctx context.Context, value string, in ActivationInput) (*domain.KeyView, error) {
	view, err := s.activate(ctx, value, in)
	s.metrics.Activations.WithLabelValues(activationOutcome(err)).Inc()
	return view, err
}

func (s *KeyService) activate(ctx context.Context, value string, in ActivationInput) (*domain.KeyView, error) {
	key, err := s.store.FindKeyByValue(ctx, value)
	if err != nil {
		return nil, storeErr("finding key", err)
	}
	if key.IsBanned {
		return nil, domain.ErrKeyBanned
	}
	if key.Activated() {
		return nil, domain.ErrAlreadyActivated
	}

	now := s.now()
	expiry, err := s.expiryFor(ctx, key.KeyType, now)
	if err != nil {
		return nil, err
	}

	act := &domain.Activation{
		Date:       now,
		ExpiryDate: expiry,
		HWID:       in.HWID,
		MachineID:  in.MachineID,
		Email:      in.Email,
	}
	// The store re-checks banned/activated atomically; a concurrent winner
	// surfaces here as ErrAlreadyActivated.
	if err := s.store.UpdateKeyActivation(ctx, value, act); err != nil {
		return nil, storeErr("activating key", err)
	}

	key.IsActive = true
	key.ActivationDate = &now
	key.ExpiryDate = expiry
	key.HWID, key.MachineID, key.Email = in.HWID, in.MachineID, in.Email

	s.logger.InfoContext(ctx, "key activated", "key", value, "key_type", key.KeyType)
	return domain.NewKeyView(key, now), nil
}

func activationOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrKeyNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, domain.ErrKeyBanned):
		return metrics.OutcomeBanned
	case errors.Is(err, domain.ErrAlreadyActivated):
		return metrics.OutcomeAlreadyActivated
	default:
		return metrics.OutcomeError
	}
}

// Ban marks a key banned and inactive. It reports whether a key matched.
func (s *KeyService) Ban(ctx context.Context, value string) (bool, error) {
	return s.setBan(ctx, value, true)
}

// Unban clears the ban and marks the key active again, whatever its active
// flag was before the ban. Validity is still derived from expiry on read.
func (s *KeyService) Unban(ctx context.Context, value string) (bool, error) {
	return s.setBan(ctx, value, false)
}

func (s *KeyService) setBan(ctx context.Context, value string, banned bool) (bool, error) {
	action := "unban"
	if banned {
		action = "ban"
	}
	matched, err := s.store.UpdateKeyBan(ctx, value, banned)
	if err != nil {
		return false, storeErr(action+" key", err)
	}
	if matched {
		s.metrics.BanChanges.WithLabelValues(action).Inc()
		s.logger.InfoContext(ctx, "key ban changed", "key", value, "action", action)
	}
	return matched, nil
}

// Status returns the key's current view, including the derived is_valid flag.
func (s *KeyService) Status(ctx context.Context, value string) (*domain.KeyView, error) {
	key, err := s.store.FindKeyByValue(ctx, value)
	if err != nil {
		return nil, storeErr("finding key", err)
	}
	return domain.NewKeyView(key, s.now()), nil
}
