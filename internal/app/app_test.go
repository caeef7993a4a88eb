package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/receipt-gateway/internal/config"
	"github.com/nimasrn/receipt-gateway/internal/idempotency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("APP_ENV=test\n"), 0o600))

	assert.Equal(t, path, EnvPath([]string{"api", "--env=" + path}))
	assert.Equal(t, "", EnvPath([]string{"api", "--env=" + filepath.Join(dir, "missing.env")}))
	assert.Equal(t, "", EnvPath([]string{"api"}))
}

func TestNewCache(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		cache, err := newCache(&config.Config{CacheBackend: "memory", CacheMaxEntries: 10})
		require.NoError(t, err)
		assert.IsType(t, &idempotency.MemoryCache{}, cache)
	})

	t.Run("redis", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		t.Cleanup(mr.Close)

		cache, err := newCache(&config.Config{CacheBackend: "redis", RedisAddr: mr.Addr(), AppName: "test"})
		require.NoError(t, err)
		assert.IsType(t, &idempotency.RedisCache{}, cache)
	})
}

func TestPostgresConfigs(t *testing.T) {
	c := &config.Config{
		PostgresReadHost:  "replica",
		PostgresWriteHost: "primary",
		PostgresSSLMode:   "require",
	}
	assert.Equal(t, "replica", ReadConfig(c).Host)
	assert.Equal(t, "primary", WriteConfig(c).Host)
	assert.Equal(t, "require", WriteConfig(c).SSLMode)
}
