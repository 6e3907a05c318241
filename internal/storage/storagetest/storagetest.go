// Package storagetest is a conformance suite run against every
// storage.Storage implementation.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bcnelson/activation-key-server/internal/domain"
	"github.com/bcnelson/activation-key-server/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. The suite does not close it.
type Factory func(t *testing.T) storage.Storage

var base = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("InsertKeys", func(t *testing.T) { testInsertKeys(t, newStore(t)) })
	t.Run("Activation", func(t *testing.T) { testActivation(t, newStore(t)) })
	t.Run("ConcurrentActivation", func(t *testing.T) { testConcurrentActivation(t, newStore(t)) })
	t.Run("Ban", func(t *testing.T) { testBan(t, newStore(t)) })
	t.Run("ListKeys", func(t *testing.T) { testListKeys(t, newStore(t)) })
	t.Run("KeyTypes", func(t *testing.T) { testKeyTypes(t, newStore(t)) })
	t.Run("Admins", func(t *testing.T) { testAdmins(t, newStore(t)) })
	t.Run("Rollups", func(t *testing.T) { testRollups(t, newStore(t)) })
	t.Run("Stats", func(t *testing.T) { testStats(t, newStore(t)) })
}

func str(s string) *string { return &s }

func newKey(value, keyType string, created time.Time) *domain.ActivationKey {
	expiry := created.AddDate(0, 0, 30)
	return &domain.ActivationKey{
		ID:         uuid.New().String(),
		Value:      value,
		KeyType:    keyType,
		CreatedAt:  created,
		IsActive:   true,
		ExpiryDate: &expiry,
	}
}

func mustInsert(t *testing.T, s storage.Storage, keys ...*domain.ActivationKey) {
	t.Helper()
	inserted, err := s.InsertKeys(context.Background(), keys)
	require.NoError(t, err)
	require.Len(t, inserted, len(keys))
}

func testInsertKeys(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	k := newKey("TST-AAAA-AAAA-AAAA", "month", base)
	k.CustomerName = str("Acme")
	k.Notes = str("first")
	mustInsert(t, s, k)

	got, err := s.FindKeyByValue(ctx, k.Value)
	require.NoError(t, err)
	assert.Equal(t, "month", got.KeyType)
	assert.True(t, got.CreatedAt.Equal(base))
	require.NotNil(t, got.ExpiryDate)
	assert.True(t, got.ExpiryDate.Equal(*k.ExpiryDate))
	assert.Nil(t, got.ActivationDate)
	assert.True(t, got.IsActive)
	assert.False(t, got.IsBanned)
	assert.Equal(t, "Acme", *got.CustomerName)
	assert.Equal(t, "first", *got.Notes)
	assert.Nil(t, got.ProductName)

	// Existing and in-batch duplicates are skipped.
	inserted, err := s.InsertKeys(ctx, []*domain.ActivationKey{
		newKey("TST-AAAA-AAAA-AAAA", "month", base),
		newKey("TST-BBBB-BBBB-BBBB", "month", base),
		newKey("TST-BBBB-BBBB-BBBB", "month", base),
	})
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	assert.Equal(t, "TST-BBBB-BBBB-BBBB", inserted[0].Value)

	n, err := s.CountKeys(ctx, domain.KeyFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.FindKeyByValue(ctx, "TST-NOPE-NOPE-NOPE")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func testActivation(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	mustInsert(t, s, newKey("TST-AAAA-AAAA-AAAA", "month", base), newKey("TST-BBBB-BBBB-BBBB", "month", base))

	at := base.Add(48 * time.Hour)
	expiry := at.AddDate(0, 0, 30)
	act := &domain.Activation{
		Date:       at,
		ExpiryDate: &expiry,
		HWID:       str("hw"),
		MachineID:  str("machine"),
		Email:      str("user@example.com"),
	}
	require.NoError(t, s.UpdateKeyActivation(ctx, "TST-AAAA-AAAA-AAAA", act))

	got, err := s.FindKeyByValue(ctx, "TST-AAAA-AAAA-AAAA")
	require.NoError(t, err)
	require.NotNil(t, got.ActivationDate)
	assert.True(t, got.ActivationDate.Equal(at))
	assert.True(t, got.ExpiryDate.Equal(expiry))
	assert.Equal(t, "hw", *got.HWID)
	assert.Equal(t, "machine", *got.MachineID)
	assert.Equal(t, "user@example.com", *got.Email)

	assert.ErrorIs(t, s.UpdateKeyActivation(ctx, "TST-AAAA-AAAA-AAAA", act), domain.ErrAlreadyActivated)
	assert.ErrorIs(t, s.UpdateKeyActivation(ctx, "TST-NOPE-NOPE-NOPE", act), domain.ErrKeyNotFound)

	_, err = s.UpdateKeyBan(ctx, "TST-BBBB-BBBB-BBBB", true)
	require.NoError(t, err)
	assert.ErrorIs(t, s.UpdateKeyActivation(ctx, "TST-BBBB-BBBB-BBBB", act), domain.ErrKeyBanned)
}

func testConcurrentActivation(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	mustInsert(t, s, newKey("TST-RACE-RACE-RACE", "month", base))

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.UpdateKeyActivation(ctx, "TST-RACE-RACE-RACE", &domain.Activation{
				Date: base.Add(time.Hour),
				HWID: str(fmt.Sprintf("hw-%d", i)),
			})
			if errors.Is(err, domain.ErrAlreadyActivated) {
				return
			}
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			winners = append(winners, fmt.Sprintf("hw-%d", i))
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	got, err := s.FindKeyByValue(ctx, "TST-RACE-RACE-RACE")
	require.NoError(t, err)
	assert.Equal(t, winners[0], *got.HWID)
}

func testBan(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	mustInsert(t, s, newKey("TST-AAAA-AAAA-AAAA", "month", base))

	ok, err := s.UpdateKeyBan(ctx, "TST-AAAA-AAAA-AAAA", true)
	require.NoError(t, err)
	assert.True(t, ok)
	got, err := s.FindKeyByValue(ctx, "TST-AAAA-AAAA-AAAA")
	require.NoError(t, err)
	assert.True(t, got.IsBanned)
	assert.False(t, got.IsActive)

	ok, err = s.UpdateKeyBan(ctx, "TST-AAAA-AAAA-AAAA", false)
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = s.FindKeyByValue(ctx, "TST-AAAA-AAAA-AAAA")
	require.NoError(t, err)
	assert.False(t, got.IsBanned)
	assert.True(t, got.IsActive)

	ok, err = s.UpdateKeyBan(ctx, "TST-NOPE-NOPE-NOPE", true)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testListKeys(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	var keys []*domain.ActivationKey
	for i := 0; i < 7; i++ {
		k := newKey(fmt.Sprintf("TST-%04d-AAAA-AAAA", i), "month", base.Add(time.Duration(i)*time.Minute))
		if i%2 == 0 {
			k.KeyType = "1year"
			k.CustomerName = str("Acme Corp")
		} else {
			k.ProductName = str("Widget Pro")
			k.Email = str(fmt.Sprintf("User%d@Example.com", i))
		}
		keys = append(keys, k)
	}
	mustInsert(t, s, keys...)
	_, err := s.UpdateKeyBan(ctx, "TST-0003-AAAA-AAAA", true)
	require.NoError(t, err)

	page, err := s.ListKeys(ctx, domain.KeyFilter{}, 3, 0)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "TST-0006-AAAA-AAAA", page[0].Value, "newest first")
	assert.Equal(t, "TST-0004-AAAA-AAAA", page[2].Value)

	page, err = s.ListKeys(ctx, domain.KeyFilter{}, 3, 6)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "TST-0000-AAAA-AAAA", page[0].Value)

	page, err = s.ListKeys(ctx, domain.KeyFilter{}, 3, 10)
	require.NoError(t, err)
	assert.Empty(t, page)

	yes, no := true, false
	tests := []struct {
		name   string
		filter domain.KeyFilter
		want   int
	}{
		{"all", domain.KeyFilter{}, 7},
		{"key type", domain.KeyFilter{KeyType: str("1year")}, 4},
		{"banned", domain.KeyFilter{IsBanned: &yes}, 1},
		{"active", domain.KeyFilter{IsActive: &yes}, 6},
		{"inactive", domain.KeyFilter{IsActive: &no}, 1},
		{"customer substring any case", domain.KeyFilter{CustomerName: str("acme")}, 4},
		{"product substring", domain.KeyFilter{ProductName: str("Pro")}, 3},
		{"email substring any case", domain.KeyFilter{Email: str("example.COM")}, 3},
		{"conjunction", domain.KeyFilter{ProductName: str("widget"), IsBanned: &no}, 2},
		{"empty conjunction", domain.KeyFilter{KeyType: str("1year"), ProductName: str("widget")}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := s.CountKeys(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)

			list, err := s.ListKeys(ctx, tt.filter, 100, 0)
			require.NoError(t, err)
			assert.Len(t, list, tt.want)
		})
	}
}

func testKeyTypes(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	for _, kt := range domain.DefaultKeyTypes() {
		require.NoError(t, s.CreateKeyType(ctx, kt))
	}
	assert.ErrorIs(t, s.CreateKeyType(ctx, domain.DefaultKeyTypes()[0]), domain.ErrAlreadyExists)

	types, err := s.ListKeyTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 5)
	assert.Equal(t, "7day", types[0].Name)
	assert.Equal(t, "lifetime", types[4].Name)

	month, err := s.GetKeyType(ctx, "month")
	require.NoError(t, err)
	assert.Equal(t, 30, month.DurationDays)
	require.NotNil(t, month.Price)
	assert.InDelta(t, 29.99, *month.Price, 0.0001)

	month.DurationDays = 31
	month.Price = nil
	month.IsAvailable = false
	require.NoError(t, s.UpdateKeyType(ctx, month))
	month, err = s.GetKeyType(ctx, "month")
	require.NoError(t, err)
	assert.Equal(t, 31, month.DurationDays)
	assert.Nil(t, month.Price)
	assert.False(t, month.IsAvailable)

	_, err = s.GetKeyType(ctx, "decade")
	assert.ErrorIs(t, err, domain.ErrKeyTypeNotFound)
	assert.ErrorIs(t, s.UpdateKeyType(ctx, &domain.KeyType{Name: "decade", DurationDays: 1}), domain.ErrKeyTypeNotFound)
}

func testAdmins(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	n, err := s.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	admin := &domain.AdminUser{
		ID:             uuid.New().String(),
		Username:       "root",
		PasswordDigest: "digest",
		APIKey:         str("key-1"),
		IsSuperadmin:   true,
		CreatedAt:      base,
	}
	require.NoError(t, s.CreateAdmin(ctx, admin))

	dup := *admin
	dup.ID = uuid.New().String()
	dup.APIKey = str("key-2")
	assert.ErrorIs(t, s.CreateAdmin(ctx, &dup), domain.ErrAlreadyExists)

	got, err := s.GetAdminByAPIKey(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "root", got.Username)
	assert.True(t, got.IsSuperadmin)
	assert.Nil(t, got.LastLogin)

	_, err = s.GetAdminByAPIKey(ctx, "key-9")
	assert.ErrorIs(t, err, domain.ErrAdminNotFound)
	_, err = s.GetAdminByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrAdminNotFound)

	login := base.Add(time.Hour)
	require.NoError(t, s.UpdateAdminLastLogin(ctx, admin.ID, login))
	got, err = s.GetAdminByUsername(ctx, "root")
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.True(t, got.LastLogin.Equal(login))
	assert.ErrorIs(t, s.UpdateAdminLastLogin(ctx, "missing", login), domain.ErrAdminNotFound)

	require.NoError(t, s.CreateAdmin(ctx, &domain.AdminUser{
		ID:             uuid.New().String(),
		Username:       "alice",
		PasswordDigest: "digest",
		APIKey:         str("key-3"),
		CreatedAt:      base,
	}))
	admins, err := s.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 2)
	assert.Equal(t, "alice", admins[0].Username)
	assert.Equal(t, "root", admins[1].Username)
}

func testRollups(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	a1 := newKey("TST-A001-AAAA-AAAA", "month", base)
	a1.CustomerName, a1.ProductName = str("Acme"), str("Widget")
	a2 := newKey("TST-A002-AAAA-AAAA", "1year", base)
	a2.CustomerName, a2.ProductName = str("Acme"), str("Widget")
	g1 := newKey("TST-G001-AAAA-AAAA", "month", base)
	g1.CustomerName, g1.ProductName = str("Globex"), str("Gadget")
	u1 := newKey("TST-U001-AAAA-AAAA", "7day", base)
	mustInsert(t, s, a1, a2, g1, u1)

	require.NoError(t, s.UpdateKeyActivation(ctx, a1.Value, &domain.Activation{Date: base.Add(time.Hour)}))
	_, err := s.UpdateKeyBan(ctx, a2.Value, true)
	require.NoError(t, err)

	customers, err := s.CustomerRollup(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 3)
	assert.Equal(t, domain.CustomerSummary{Name: "Acme", TotalKeys: 2, ActiveKeys: 1, ActivatedKeys: 1}, *customers[0])
	assert.Equal(t, domain.CustomerSummary{Name: "Globex", TotalKeys: 1, ActiveKeys: 1}, *customers[1])
	assert.Equal(t, domain.CustomerSummary{Name: domain.UnknownBucket, TotalKeys: 1, ActiveKeys: 1}, *customers[2])

	products, err := s.ProductRollup(ctx)
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "Gadget", products[0].Name)
	assert.Equal(t, []string{"month"}, products[0].KeyTypes)
	assert.Equal(t, domain.UnknownBucket, products[1].Name)
	assert.Equal(t, []string{"7day"}, products[1].KeyTypes)
	assert.Equal(t, "Widget", products[2].Name)
	assert.Equal(t, 2, products[2].TotalKeys)
	assert.Equal(t, 1, products[2].ActiveKeys)
	assert.Equal(t, 1, products[2].ActivatedKeys)
	assert.Equal(t, []string{"1year", "month"}, products[2].KeyTypes)
}

func testStats(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	stats, err := s.Stats(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalKeys)
	assert.Empty(t, stats.KeyTypes)

	short := newKey("TST-S001-AAAA-AAAA", "7day", base)
	shortExpiry := base.AddDate(0, 0, 7)
	short.ExpiryDate = &shortExpiry
	bannedShort := newKey("TST-S002-AAAA-AAAA", "7day", base)
	bannedShort.ExpiryDate = &shortExpiry
	noExpiry := newKey("TST-N001-AAAA-AAAA", "custom", base)
	noExpiry.ExpiryDate = nil
	mustInsert(t, s, short, bannedShort, noExpiry,
		newKey("TST-M001-AAAA-AAAA", "month", base),
		newKey("TST-M002-AAAA-AAAA", "month", base))

	_, err = s.UpdateKeyBan(ctx, bannedShort.Value, true)
	require.NoError(t, err)
	require.NoError(t, s.UpdateKeyActivation(ctx, "TST-M001-AAAA-AAAA", &domain.Activation{Date: base}))

	stats, err = s.Stats(ctx, base.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalKeys)
	assert.Equal(t, 4, stats.ActiveKeys)
	assert.Equal(t, 1, stats.BannedKeys)
	assert.Equal(t, 1, stats.ActivatedKeys)
	assert.Equal(t, 1, stats.ExpiredKeys, "banned keys are not counted as expired")
	assert.Equal(t, map[string]int{"7day": 2, "month": 2, "custom": 1}, stats.KeyTypes)
}
