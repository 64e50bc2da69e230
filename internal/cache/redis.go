package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/websecurity/internal/config"
	"github.com/jwalitptl/websecurity/internal/model"
	"github.com/jwalitptl/websecurity/pkg/circuitbreaker"
	"github.com/jwalitptl/websecurity/pkg/logger"
	"github.com/jwalitptl/websecurity/pkg/metrics"
)

// NewRedisClient connects to the configured Redis and verifies it with PING.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pooling
	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.RetryBackoff
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// RedisCache shares records between processes as JSON values with a TTL.
// Calls go through a circuit breaker so an unavailable Redis costs one
// failed round trip per breaker timeout, not one per lookup.
type RedisCache struct {
	client  redis.UniversalClient
	cb      *circuitbreaker.CircuitBreaker
	ttl     time.Duration
	prefix  string
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration, prefix string, m *metrics.Metrics, log *logger.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("expiry_cache")

	return &RedisCache{
		client: client,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "redis-expiry-cache",
			MaxFailures: 5,
			MaxRequests: 1,
			Interval:    10 * time.Second,
			Timeout:     5 * time.Second,
			OnStateChange: func(name, from, to string) {
				log.ZL.Warn().Str("breaker", name).Str("from", from).Str("to", to).Msg("Cache circuit breaker state changed")
			},
		}),
		ttl:     ttl,
		prefix:  prefix,
		metrics: m,
		logger:  log,
	}
}

func (c *RedisCache) key(userID uuid.UUID) string {
	return c.prefix + userID.String()
}

func (c *RedisCache) Get(ctx context.Context, userID uuid.UUID) (*model.PasswordExpiry, bool) {
	var payload []byte
	err := c.cb.Execute(func() error {
		b, err := c.client.Get(ctx, c.key(userID)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		payload = b
		return err
	})
	if err != nil {
		observe(c.metrics, "get", resultError)
		c.logger.Warn(err, "Failed to read password expiry from cache", "user_id", userID.String())
		return nil, false
	}
	if payload == nil {
		observe(c.metrics, "get", resultMiss)
		return nil, false
	}

	var expiry model.PasswordExpiry
	if err := json.Unmarshal(payload, &expiry); err != nil {
		observe(c.metrics, "get", resultError)
		c.logger.Warn(err, "Discarding undecodable cache entry", "user_id", userID.String())
		c.Delete(ctx, userID)
		return nil, false
	}

	observe(c.metrics, "get", resultHit)
	return &expiry, true
}

func (c *RedisCache) Set(ctx context.Context, expiry *model.PasswordExpiry) {
	if expiry == nil {
		return
	}
	payload, err := json.Marshal(expiry)
	if err != nil {
		observe(c.metrics, "set", resultError)
		c.logger.Error(err, "Failed to encode password expiry for cache")
		return
	}

	err = c.cb.Execute(func() error {
		return c.client.Set(ctx, c.key(expiry.UserID), payload, c.ttl).Err()
	})
	if err != nil {
		observe(c.metrics, "set", resultError)
		c.logger.Warn(err, "Failed to write password expiry to cache", "user_id", expiry.UserID.String())
		return
	}
	observe(c.metrics, "set", resultOK)
}

func (c *RedisCache) Delete(ctx context.Context, userID uuid.UUID) {
	err := c.cb.Execute(func() error {
		return c.client.Del(ctx, c.key(userID)).Err()
	})
	if err != nil {
		observe(c.metrics, "delete", resultError)
		c.logger.Warn(err, "Failed to evict password expiry from cache", "user_id", userID.String())
		return
	}
	observe(c.metrics, "delete", resultOK)
}

// Close releases the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
