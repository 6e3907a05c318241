package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bcnelson/activation-key-server/internal/domain"
	"github.com/bcnelson/activation-key-server/internal/storage"
)

// Store is an in-memory implementation of the storage interface for testing.
type Store struct {
	mu sync.RWMutex

	keys     map[string]*domain.ActivationKey // key: key_value
	keyTypes map[string]*domain.KeyType       // key: name
	admins   map[string]*domain.AdminUser     // key: id

	// pingErr is returned by Ping when set.
	pingErr error
}

var _ storage.Storage = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		keys:     make(map[string]*domain.ActivationKey),
		keyTypes: make(map[string]*domain.KeyType),
		admins:   make(map[string]*domain.AdminUser),
	}
}

func (s *Store) Close() error { return nil }

// SetPingError makes Ping fail with err until cleared with nil.
func (s *Store) SetPingError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pingErr
}

// Rows are copied on the way in and out so callers never share state with the store.
func copyKey(k *domain.ActivationKey) *domain.ActivationKey {
	c := *k
	return &c
}

// ============================================
// Activation Keys
// ============================================

func (s *Store) InsertKeys(ctx context.Context, keys []*domain.ActivationKey) ([]*domain.ActivationKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := make([]*domain.ActivationKey, 0, len(keys))
	for _, key := range keys {
		if _, exists := s.keys[key.Value]; exists {
			continue
		}
		s.keys[key.Value] = copyKey(key)
		inserted = append(inserted, key)
	}
	return inserted, nil
}

func (s *Store) FindKeyByValue(ctx context.Context, value string) (*domain.ActivationKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, exists := s.keys[value]
	if !exists {
		return nil, domain.ErrKeyNotFound
	}
	return copyKey(key), nil
}

func (s *Store) UpdateKeyBan(ctx context.Context, value string, banned bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, exists := s.keys[value]
	if !exists {
		return false, nil
	}
	key.IsBanned = banned
	key.IsActive = !banned
	return true, nil
}

func (s *Store) UpdateKeyActivation(ctx context.Context, value string, act *domain.Activation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, exists := s.keys[value]
	switch {
	case !exists:
		return domain.ErrKeyNotFound
	case key.IsBanned:
		return domain.ErrKeyBanned
	case key.Activated():
		return domain.ErrAlreadyActivated
	}
	date := act.Date
	key.IsActive = true
	key.ActivationDate = &date
	key.ExpiryDate = act.ExpiryDate
	key.HWID = act.HWID
	key.MachineID = act.MachineID
	key.Email = act.Email
	return nil
}

func containsFold(field *string, sub string) bool {
	return field != nil && strings.Contains(strings.ToLower(*field), strings.ToLower(sub))
}

func matches(k *domain.ActivationKey, f domain.KeyFilter) bool {
	if f.KeyType != nil && k.KeyType != *f.KeyType {
		return false
	}
	if f.IsActive != nil && k.IsActive != *f.IsActive {
		return false
	}
	if f.IsBanned != nil && k.IsBanned != *f.IsBanned {
		return false
	}
	if f.CustomerName != nil && !containsFold(k.CustomerName, *f.CustomerName) {
		return false
	}
	if f.ProductName != nil && !containsFold(k.ProductName, *f.ProductName) {
		return false
	}
	if f.Email != nil && !containsFold(k.Email, *f.Email) {
		return false
	}
	return true
}

func (s *Store) filtered(f domain.KeyFilter) []*domain.ActivationKey {
	keys := make([]*domain.ActivationKey, 0, len(s.keys))
	for _, key := range s.keys {
		if matches(key, f) {
			keys = append(keys, copyKey(key))
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].CreatedAt.Equal(keys[j].CreatedAt) {
			return keys[i].CreatedAt.After(keys[j].CreatedAt)
		}
		return keys[i].Value < keys[j].Value
	})
	return keys
}

func (s *Store) ListKeys(ctx context.Context, filter domain.KeyFilter, limit, offset int) ([]*domain.ActivationKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.filtered(filter)
	if offset >= len(keys) {
		return []*domain.ActivationKey{}, nil
	}
	end := offset + limit
	if end > len(keys) {
		end = len(keys)
	}
	return keys[offset:end], nil
}

func (s *Store) CountKeys(ctx context.Context, filter domain.KeyFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, key := range s.keys {
		if matches(key, filter) {
			n++
		}
	}
	return n, nil
}

// ============================================
// Key Types
// ============================================

func (s *Store) CreateKeyType(ctx context.Context, kt *domain.KeyType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.keyTypes[kt.Name]; exists {
		return domain.ErrAlreadyExists
	}
	c := *kt
	s.keyTypes[kt.Name] = &c
	return nil
}

func (s *Store) GetKeyType(ctx context.Context, name string) (*domain.KeyType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kt, exists := s.keyTypes[name]
	if !exists {
		return nil, domain.ErrKeyTypeNotFound
	}
	c := *kt
	return &c, nil
}

func (s *Store) ListKeyTypes(ctx context.Context) ([]*domain.KeyType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types := make([]*domain.KeyType, 0, len(s.keyTypes))
	for _, kt := range s.keyTypes {
		c := *kt
		types = append(types, &c)
	}
	sort.Slice(types, func(i, j int) bool {
		if types[i].DurationDays != types[j].DurationDays {
			return types[i].DurationDays < types[j].DurationDays
		}
		return types[i].Name < types[j].Name
	})
	return types, nil
}

func (s *Store) UpdateKeyType(ctx context.Context, kt *domain.KeyType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.keyTypes[kt.Name]; !exists {
		return domain.ErrKeyTypeNotFound
	}
	c := *kt
	s.keyTypes[kt.Name] = &c
	return nil
}

// ============================================
// Admin Users
// ============================================

func (s *Store) CreateAdmin(ctx context.Context, admin *domain.AdminUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.admins[admin.ID]; exists {
		return domain.ErrAlreadyExists
	}
	for _, existing := range s.admins {
		if existing.Username == admin.Username {
			return domain.ErrAlreadyExists
		}
		if admin.APIKey != nil && existing.APIKey != nil && *existing.APIKey == *admin.APIKey {
			return domain.ErrAlreadyExists
		}
	}
	c := *admin
	s.admins[admin.ID] = &c
	return nil
}

func (s *Store) GetAdminByUsername(ctx context.Context, username string) (*domain.AdminUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, admin := range s.admins {
		if admin.Username == username {
			c := *admin
			return &c, nil
		}
	}
	return nil, domain.ErrAdminNotFound
}

func (s *Store) GetAdminByAPIKey(ctx context.Context, apiKey string) (*domain.AdminUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, admin := range s.admins {
		if admin.APIKey != nil && *admin.APIKey == apiKey {
			c := *admin
			return &c, nil
		}
	}
	return nil, domain.ErrAdminNotFound
}

func (s *Store) ListAdmins(ctx context.Context) ([]*domain.AdminUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	admins := make([]*domain.AdminUser, 0, len(s.admins))
	for _, admin := range s.admins {
		c := *admin
		admins = append(admins, &c)
	}
	sort.Slice(admins, func(i, j int) bool {
		return admins[i].Username < admins[j].Username
	})
	return admins, nil
}

func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.admins), nil
}

func (s *Store) UpdateAdminLastLogin(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	admin, exists := s.admins[id]
	if !exists {
		return domain.ErrAdminNotFound
	}
	admin.LastLogin = &at
	return nil
}

// ============================================
// Reports
// ============================================

func bucket(name *string) string {
	if name == nil {
		return domain.UnknownBucket
	}
	return *name
}

func (s *Store) CustomerRollup(ctx context.Context) ([]*domain.CustomerSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byName := make(map[string]*domain.CustomerSummary)
	for _, key := range s.keys {
		name := bucket(key.CustomerName)
		c, ok := byName[name]
		if !ok {
			c = &domain.CustomerSummary{Name: name}
			byName[name] = c
		}
		c.TotalKeys++
		if key.IsActive && !key.IsBanned {
			c.ActiveKeys++
		}
		if key.Activated() {
			c.ActivatedKeys++
		}
	}
	customers := make([]*domain.CustomerSummary, 0, len(byName))
	for _, c := range byName {
		customers = append(customers, c)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].Name < customers[j].Name })
	return customers, nil
}

func (s *Store) ProductRollup(ctx context.Context) ([]*domain.ProductSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byName := make(map[string]*domain.ProductSummary)
	types := make(map[string]map[string]bool)
	for _, key := range s.keys {
		name := bucket(key.ProductName)
		p, ok := byName[name]
		if !ok {
			p = &domain.ProductSummary{Name: name}
			byName[name] = p
			types[name] = make(map[string]bool)
		}
		p.TotalKeys++
		if key.IsActive && !key.IsBanned {
			p.ActiveKeys++
		}
		if key.Activated() {
			p.ActivatedKeys++
		}
		types[name][key.KeyType] = true
	}
	products := make([]*domain.ProductSummary, 0, len(byName))
	for name, p := range byName {
		p.KeyTypes = make([]string, 0, len(types[name]))
		for kt := range types[name] {
			p.KeyTypes = append(p.KeyTypes, kt)
		}
		sort.Strings(p.KeyTypes)
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (s *Store) Stats(ctx context.Context, now time.Time) (*domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &domain.Stats{KeyTypes: make(map[string]int)}
	for _, key := range s.keys {
		stats.TotalKeys++
		if key.IsActive && !key.IsBanned {
			stats.ActiveKeys++
		}
		if key.IsBanned {
			stats.BannedKeys++
		}
		if key.Activated() {
			stats.ActivatedKeys++
		}
		if key.ExpiryDate != nil && key.ExpiryDate.Before(now) && !key.IsBanned {
			stats.ExpiredKeys++
		}
		stats.KeyTypes[key.KeyType]++
	}
	return stats, nil
}
