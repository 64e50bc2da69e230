package app

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/websecurity/internal/config"
	"github.com/jwalitptl/websecurity/pkg/logger"
)

func TestRetentionConfig(t *testing.T) {
	got := RetentionConfig(config.RetentionConfig{
		Days:             30,
		Interval:         time.Hour,
		BatchSize:        500,
		BatchesPerSecond: 2,
	})
	assert.Equal(t, 30, got.RetentionDays)
	assert.Equal(t, time.Hour, got.Interval)
	assert.Equal(t, 500, got.BatchSize)
	assert.Equal(t, 2.0, got.BatchesPerSecond)
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(config.LogConfig{Level: "warn", JSON: true}, buf)

	log.Info("dropped")
	assert.Empty(t, buf.String())

	log.Warn(nil, "kept")
	assert.Contains(t, buf.String(), `"message":"kept"`)
}

func TestNewFailsWithoutDatabase(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Host:    "127.0.0.1",
			Port:    1,
			User:    "postgres",
			Name:    "websecurity",
			SSLMode: "disable",
		},
		Cache:   config.CacheConfig{Backend: config.CacheBackendNone},
		Metrics: config.MetricsConfig{Namespace: "test"},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := New(ctx, cfg, logger.Nop(), prometheus.NewRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping database")
}
