package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, CacheBackendNone, cfg.Cache.Backend)
	assert.Equal(t, 0, cfg.PasswordPolicy.MaxAgeDays)
	assert.Equal(t, 90, cfg.Retention.Days)
	assert.Equal(t, 1000, cfg.Retention.BatchSize)
	assert.Equal(t, ":8081", cfg.Metrics.Addr)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.internal
  name: security
  conn_max_lifetime: 1h
cache:
  backend: redis
  ttl: 30s
password_policy:
  max_age_days: 90
retention:
  days: 30
  batch_size: 250
log:
  level: debug
  json: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "security", cfg.Database.Name)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 90, cfg.PasswordPolicy.MaxAgeDays)
	assert.Equal(t, 30, cfg.Retention.Days)
	assert.Equal(t, 250, cfg.Retention.BatchSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, "database:\n  host: from-file\n")
	t.Setenv("DB_HOST", "from-env")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("SECURITY_CACHE_BACKEND", "none")
	t.Setenv("SECURITY_RETENTION_BATCH_SIZE", "42")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, CacheBackendNone, cfg.Cache.Backend)
	assert.Equal(t, 42, cfg.Retention.BatchSize)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad backend", func(c *Config) { c.Cache.Backend = "memcached" }, "invalid cache backend"},
		{"negative max age", func(c *Config) { c.PasswordPolicy.MaxAgeDays = -1 }, "max_age_days"},
		{"zero retention", func(c *Config) { c.Retention.Days = 0 }, "retention.days"},
		{"zero batch", func(c *Config) { c.Retention.BatchSize = 0 }, "retention.batch_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Cache:     CacheConfig{Backend: CacheBackendMemory},
				Retention: RetentionConfig{Days: 1, BatchSize: 1},
			}
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
