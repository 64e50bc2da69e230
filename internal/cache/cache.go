package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/websecurity/internal/config"
	"github.com/jwalitptl/websecurity/internal/model"
	"github.com/jwalitptl/websecurity/pkg/logger"
	"github.com/jwalitptl/websecurity/pkg/metrics"
)

// ExpiryCache is a read-through cache of password expiry records keyed by
// user id. Implementations never fail a caller: backend errors are misses.
type ExpiryCache interface {
	Get(ctx context.Context, userID uuid.UUID) (*model.PasswordExpiry, bool)
	Set(ctx context.Context, expiry *model.PasswordExpiry)
	Delete(ctx context.Context, userID uuid.UUID)
}

// Operation results
const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultOK    = "ok"
	resultError = "error"
)

// New builds the backend selected by cfg.Cache.Backend.
func New(cfg *config.Config, m *metrics.Metrics, log *logger.Logger) (ExpiryCache, error) {
	switch strings.ToLower(cfg.Cache.Backend) {
	case config.CacheBackendNone, "":
		return Noop{}, nil
	case config.CacheBackendMemory:
		return NewMemoryCache(cfg.Cache.TTL, cfg.Cache.CleanupInterval, m), nil
	case config.CacheBackendRedis:
		client, err := NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedisCache(client, cfg.Cache.TTL, cfg.Cache.KeyPrefix, m, log), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}

func clone(e *model.PasswordExpiry) *model.PasswordExpiry {
	if e == nil {
		return nil
	}
	c := *e
	if e.ExpiresAt != nil {
		t := *e.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

func observe(m *metrics.Metrics, operation, result string) {
	if m != nil {
		m.CacheOperations.WithLabelValues(operation, result).Inc()
	}
}
