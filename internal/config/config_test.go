package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/mjtree/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mjtree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Store.Kind)
	assert.Equal(t, ".mjtree/templates", cfg.Store.Dir)
	assert.Equal(t, "https://api.mjml.io/v1", cfg.Render.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.Render.Timeout)
	assert.Equal(t, 3, cfg.Render.Retries)
	assert.False(t, cfg.Render.Enabled())
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, slog.LevelWarn, cfg.Log.SlogLevel())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
store:
  kind: redis
  redis:
    addr: cache:6380
    db: 2
render:
  app_id: app
  secret_key: shh
  timeout: 5s
  minify: true
server:
  port: 9000
`)

	cfg, err := config.Load(config.New(), path)
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
	assert.Equal(t, "redis", cfg.Store.Kind)
	assert.Equal(t, "cache:6380", cfg.Store.Redis.Addr)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, "mjtree:template:", cfg.Store.Redis.Prefix, "unset keys keep defaults")
	assert.True(t, cfg.Render.Enabled())
	assert.Equal(t, 5*time.Second, cfg.Render.Timeout)
	assert.True(t, cfg.Render.Minify)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "store:\n  kind: memory\nserver:\n  port: 9000\n")
	t.Setenv("MJTREE_SERVER_PORT", "9100")
	t.Setenv("MJTREE_RENDER_SECRET_KEY", "from-env")

	cfg, err := config.Load(config.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Kind)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Render.SecretKey)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(config.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"Store Kind", "store:\n  kind: s3\n", "Kind"},
		{"Log Level", "log:\n  level: loud\n", "Level"},
		{"Port", "server:\n  port: 70000\n", "Port"},
		{"Redis DB", "store:\n  redis:\n    db: 99\n", "DB"},
		{"Endpoint", "render:\n  endpoint: not a url\n", "Endpoint"},
		{"File Without Dir", "store:\n  kind: file\n  dir: \"\"\n", "required_for_file"},
		{"Redis Without Addr", "store:\n  kind: redis\n  redis:\n    addr: \"\"\n", "required_for_redis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(config.New(), writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
