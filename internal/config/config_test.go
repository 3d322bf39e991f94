package config

import (
	"context"
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

func TestDefaults(t *testing.T) {
	cfg := GetDefaultConfig()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "sqlite", cfg.Catalog.Type)
	require.Len(t, cfg.Transports, 1)
	assert.Equal(t, "file", cfg.Transports[0].Type)
	require.NotNil(t, cfg.Transports[0].Sync)
	assert.True(t, *cfg.Transports[0].Sync)
	assert.Equal(t, DefaultPollInterval, cfg.Engine.PollInterval)
	assert.Equal(t, 1, cfg.Engine.Writers)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
catalog:
  type: badger
  path: /tmp/cat
transports:
  - type: file
    dir: /tmp/data
    sync: false
  - type: redis
    redis:
      key_prefix: run1/
engine:
  poll_interval: 250ms
  writers: 4
  operators: shuffle,zstd
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "badger", cfg.Catalog.Type)
	require.Len(t, cfg.Transports, 2)
	assert.False(t, *cfg.Transports[0].Sync)
	assert.Equal(t, "localhost:6379", cfg.Transports[1].Redis.Address)
	assert.Equal(t, "run1/", cfg.Transports[1].Redis.KeyPrefix)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.PollInterval)
	assert.Equal(t, 4, cfg.Engine.Writers)
	assert.Equal(t, "shuffle,zstd", cfg.Engine.Operators)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "catalog:\n  type: memory\n")
	t.Setenv("STEPIO_ENGINE_WRITERS", "3")
	t.Setenv("STEPIO_LOGGING_LEVEL", "WARN")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Engine.Writers)
	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.Equal(t, "memory", cfg.Catalog.Type)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Catalog.Type)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown catalog", "catalog:\n  type: etcd\n  path: x\n"},
		{"badger without path", "catalog:\n  type: badger\n"},
		{"file without dir", "transports:\n  - type: file\n"},
		{"unknown transport", "transports:\n  - type: ftp\n"},
		{"bad level", "logging:\n  level: chatty\n"},
		{"bad writers", "engine:\n  writers: -2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Catalog = CatalogConfig{Type: "memory"}
	cfg.Engine.Writers = 2

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", loaded.Catalog.Type)
	assert.Equal(t, 2, loaded.Engine.Writers)
	assert.Equal(t, cfg.Transports[0].Dir, loaded.Transports[0].Dir)
}

func TestCreateCatalogAndTransports(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, typ := range []string{"memory", "badger", "sqlite"} {
		t.Run(typ, func(t *testing.T) {
			c, err := CreateCatalog(CatalogConfig{Type: typ, Path: filepath.Join(dir, typ, "cat")})
			require.NoError(t, err)
			require.NoError(t, c.Close())
		})
	}

	_, err := CreateCatalog(CatalogConfig{Type: "etcd"})
	assert.Error(t, err)

	ts, err := CreateTransports(ctx, []TransportConfig{
		{Type: "file", Dir: filepath.Join(dir, "data")},
		{Type: "memory", Store: "cfg-test"},
	})
	require.NoError(t, err)
	require.Len(t, ts, 2)
	assert.Equal(t, "memory:cfg-test", ts[1].Name())
	for _, tr := range ts {
		require.NoError(t, tr.Close(ctx))
	}

	_, err = CreateTransports(ctx, []TransportConfig{{Type: "ftp"}})
	assert.Error(t, err)
}
