package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/websecurity/internal/config"
	"github.com/jwalitptl/websecurity/pkg/logger"
	"github.com/jwalitptl/websecurity/pkg/metrics"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client, err := NewRedisClient(config.RedisConfig{URL: "redis://" + srv.Addr() + "/0"})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return srv, client
}

func TestRedisCacheRoundTrip(t *testing.T) {
	srv, client := newTestRedis(t)
	m := metrics.New("test")
	c := NewRedisCache(client, time.Minute, "pe:", m, logger.Nop())
	ctx := context.Background()

	e := scheduledExpiry(uuid.New())
	c.Set(ctx, e)
	assert.True(t, srv.Exists("pe:"+e.UserID.String()))
	assert.Equal(t, time.Minute, srv.TTL("pe:"+e.UserID.String()))

	got, ok := c.Get(ctx, e.UserID)
	require.True(t, ok)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, e.State, got.State)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.ExpiresAt.Equal(*e.ExpiresAt))

	c.Delete(ctx, e.UserID)
	_, ok = c.Get(ctx, e.UserID)
	assert.False(t, ok)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheOperations.WithLabelValues("get", "hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheOperations.WithLabelValues("get", "miss")))
}

func TestRedisCacheExpiresEntries(t *testing.T) {
	srv, client := newTestRedis(t)
	c := NewRedisCache(client, time.Minute, "pe:", nil, nil)
	ctx := context.Background()

	e := scheduledExpiry(uuid.New())
	c.Set(ctx, e)
	srv.FastForward(2 * time.Minute)

	_, ok := c.Get(ctx, e.UserID)
	assert.False(t, ok)
}

func TestRedisCacheDropsGarbage(t *testing.T) {
	srv, client := newTestRedis(t)
	c := NewRedisCache(client, time.Minute, "pe:", nil, nil)
	userID := uuid.New()
	require.NoError(t, srv.Set("pe:"+userID.String(), "{not json"))

	_, ok := c.Get(context.Background(), userID)
	assert.False(t, ok)
	assert.False(t, srv.Exists("pe:"+userID.String()))
}

func TestRedisCacheDegradesToMiss(t *testing.T) {
	srv, client := newTestRedis(t)
	m := metrics.New("test")
	c := NewRedisCache(client, time.Minute, "pe:", m, nil)
	ctx := context.Background()
	userID := uuid.New()

	srv.Close()

	for i := 0; i < 7; i++ {
		_, ok := c.Get(ctx, userID)
		assert.False(t, ok)
	}
	assert.Equal(t, "open", c.cb.State())
	assert.Equal(t, float64(7), testutil.ToFloat64(m.CacheOperations.WithLabelValues("get", "error")))
}

func TestNewRedisClientErrors(t *testing.T) {
	_, err := NewRedisClient(config.RedisConfig{URL: "not-a-url"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse Redis URL")

	_, err = NewRedisClient(config.RedisConfig{URL: "redis://127.0.0.1:1/0", MaxRetries: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}
