package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Session.ExpireTime)
	assert.True(t, cfg.CSRF.Enabled)
	assert.Equal(t, "X-CSRF-Token", cfg.CSRF.HeaderName)
}

func TestLoadConfigFrom_YAMLKeepsUnsetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("database:\n  driver: sqlite\n  database: warbler.db\nsession:\n  expireTime: 2h\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg := LoadConfigFrom(path)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "warbler.db", cfg.Database.Database)
	assert.Equal(t, 2*time.Hour, cfg.Session.ExpireTime)
	assert.Equal(t, "warbler", cfg.Session.Issuer)
	assert.Equal(t, 6379, cfg.Redis.Port)
}

func TestLoadConfigFrom_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("CSRF_ENABLED", "false")
	t.Setenv("REDIS_DB", "0")
	t.Setenv("REDIS_CACHE_TTL", "30s")

	cfg := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "s3cret", cfg.Session.Secret)
	assert.False(t, cfg.CSRF.Enabled)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
}
