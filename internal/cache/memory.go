package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/websecurity/internal/model"
	"github.com/jwalitptl/websecurity/pkg/metrics"
)

// MemoryCache keeps records in process. Stored and returned values are copies
// so callers can mutate what they get back.
type MemoryCache struct {
	store   *gocache.Cache
	metrics *metrics.Metrics
}

func NewMemoryCache(ttl, cleanupInterval time.Duration, m *metrics.Metrics) *MemoryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 2 * ttl
	}
	return &MemoryCache{
		store:   gocache.New(ttl, cleanupInterval),
		metrics: m,
	}
}

func (c *MemoryCache) Get(_ context.Context, userID uuid.UUID) (*model.PasswordExpiry, bool) {
	v, ok := c.store.Get(userID.String())
	if !ok {
		observe(c.metrics, "get", resultMiss)
		return nil, false
	}
	observe(c.metrics, "get", resultHit)
	return clone(v.(*model.PasswordExpiry)), true
}

func (c *MemoryCache) Set(_ context.Context, expiry *model.PasswordExpiry) {
	if expiry == nil {
		return
	}
	c.store.SetDefault(expiry.UserID.String(), clone(expiry))
	observe(c.metrics, "set", resultOK)
}

func (c *MemoryCache) Delete(_ context.Context, userID uuid.UUID) {
	c.store.Delete(userID.String())
	observe(c.metrics, "delete", resultOK)
}

// Len returns the number of cached records, including expired ones not yet evicted.
func (c *MemoryCache) Len() int {
	return c.store.ItemCount()
}
