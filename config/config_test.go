package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":3002", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 5*time.Minute, cfg.AuthMaxSkew)
	assert.False(t, cfg.EnableFaucet)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BOUNTY_HTTP_ADDR", ":9000")
	t.Setenv("BOUNTY_STORE_DRIVER", "sqlite")
	t.Setenv("BOUNTY_SQLITE_PATH", "/tmp/x.db")
	t.Setenv("BOUNTY_AUTH_MAX_SKEW", "30s")
	t.Setenv("BOUNTY_ENABLE_FAUCET", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, "/tmp/x.db", cfg.SQLitePath)
	assert.Equal(t, 30*time.Second, cfg.AuthMaxSkew)
	assert.True(t, cfg.EnableFaucet)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bountyd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store_driver: postgres\npg_dsn: postgres://localhost/bounty\nlog_level: debug\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, "postgres://localhost/bounty", cfg.PGDSN)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	t.Setenv("BOUNTY_STORE_DRIVER", "postgres")
	_, err := Load("")
	assert.ErrorContains(t, err, "BOUNTY_PG_DSN")

	t.Setenv("BOUNTY_STORE_DRIVER", "etcd")
	_, err = Load("")
	assert.ErrorContains(t, err, "unknown store driver")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
