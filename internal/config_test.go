package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tinyrdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "tinyrdb", cfg.AppName)
	assert.Equal(t, "./data", cfg.Storage.Workdir)
	assert.Equal(t, 4, cfg.Storage.BTreeOrder)
	assert.Equal(t, "127.0.0.1:5433", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeConfig(t, `
app_name: shop
storage:
  workdir: /from/file
  btree_order: 5
server:
  addr: ":7000"
log:
  format: json
`)
	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "shop", cfg.AppName)
	assert.Equal(t, "/from/file", cfg.Storage.Workdir)
	assert.Equal(t, 5, cfg.Storage.BTreeOrder)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)

	t.Setenv("TINYRDB_STORAGE_WORKDIR", "/from/env")
	t.Setenv("TINYRDB_STORAGE_BTREE_ORDER", "6")
	cfg, err = LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Storage.Workdir)
	assert.Equal(t, 6, cfg.Storage.BTreeOrder)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--data-dir=/from/flag", "--debug"}))
	cfg, err = LoadConfig(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.Storage.Workdir)
	assert.Equal(t, 6, cfg.Storage.BTreeOrder, "unset flags keep the env value")
	assert.True(t, cfg.Server.Debug)
	assert.True(t, cfg.NewLogger().Enabled(t.Context(), slog.LevelDebug))
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)

	path := writeConfig(t, `
storage:
  btree_order: 2
log:
  level: loud
  format: xml
`)
	_, err = LoadConfig(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "btree_order")
	assert.Contains(t, err.Error(), "log.level")
	assert.Contains(t, err.Error(), "log.format")
}
