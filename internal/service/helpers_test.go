package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bcnelson/activation-key-server/internal/logging"
	"github.com/bcnelson/activation-key-server/internal/metrics"
	"github.com/bcnelson/activation-key-server/internal/storage/memory"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testAPIKey = "test-bootstrap-key"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// scriptedGen returns values in order, then repeats the last one.
type scriptedGen struct {
	mu     sync.Mutex
	values []string
	i      int
}

func (g *scriptedGen) Generate(prefix string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v := g.values[min(g.i, len(g.values)-1)]
	g.i++
	return v, nil
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	admins := NewAdminService(store, logging.Discard(), bcrypt.MinCost)
	require.NoError(t, admins.Bootstrap(context.Background(), BootstrapConfig{
		APIKey:   testAPIKey,
		Password: "admin",
	}))
	return store
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func daysAfter(t time.Time, days int) *time.Time {
	e := t.AddDate(0, 0, days)
	return &e
}

func newMetrics() *metrics.Metrics { return metrics.New() }
