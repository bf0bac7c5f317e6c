package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/mjtree/internal/config"
	"github.com/aretw0/mjtree/internal/logging"
	"github.com/aretw0/mjtree/pkg/adapters/file"
	"github.com/aretw0/mjtree/pkg/adapters/memory"
	"github.com/aretw0/mjtree/pkg/adapters/mjmlapi"
	"github.com/aretw0/mjtree/pkg/adapters/redis"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := logging.NewNop()

	tests := []struct {
		name   string
		cfg    config.StoreConfig
		want   any
		closer bool
	}{
		{name: "memory", cfg: config.StoreConfig{Kind: "memory"}, want: &memory.Store{}},
		{name: "file", cfg: config.StoreConfig{Kind: "file", Dir: t.TempDir()}, want: &file.Store{}},
		{name: "default is file", cfg: config.StoreConfig{Dir: t.TempDir()}, want: &file.Store{}},
		{
			name:   "redis",
			cfg:    config.StoreConfig{Kind: "redis", Redis: config.RedisConfig{Addr: mr.Addr(), Prefix: "test:"}},
			want:   &redis.Store{},
			closer: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, closer, err := NewStore(tt.cfg, logger)
			require.NoError(t, err)
			assert.IsType(t, tt.want, store)
			if tt.closer {
				require.NotNil(t, closer)
				t.Cleanup(func() { _ = closer() })
			} else {
				assert.Nil(t, closer)
			}
		})
	}
}

func TestNewStore_RedisPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	store, closer, err := NewStore(config.StoreConfig{
		Kind:  "redis",
		Redis: config.RedisConfig{Addr: mr.Addr(), Prefix: "emails:"},
	}, logging.NewNop())
	require.NoError(t, err)
	defer closer()

	_, err = store.Save(context.Background(), &domain.Template{Name: "Welcome", Markup: "<mj-section />"})
	require.NoError(t, err)

	keys := mr.Keys()
	require.NotEmpty(t, keys)
	for _, k := range keys {
		assert.True(t, strings.HasPrefix(k, "emails:"), k)
	}
}

func TestNewStore_UnknownKind(t *testing.T) {
	_, _, err := NewStore(config.StoreConfig{Kind: "s3"}, logging.NewNop())
	assert.ErrorContains(t, err, `unknown store kind "s3"`)
}

func TestNewStore_Middlewares(t *testing.T) {
	ctx := context.Background()
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))

	t.Run("read only", func(t *testing.T) {
		store, _, err := NewStore(config.StoreConfig{Kind: "memory", ReadOnly: true}, logging.NewNop())
		require.NoError(t, err)
		_, err = store.Save(ctx, &domain.Template{Name: "A", Markup: "<mj-section />"})
		assert.ErrorIs(t, err, domain.ErrReadOnly)
	})

	t.Run("encrypted file store", func(t *testing.T) {
		dir := t.TempDir()
		store, _, err := NewStore(config.StoreConfig{Kind: "file", Dir: dir, EncryptionKey: key}, logging.NewNop())
		require.NoError(t, err)

		_, err = store.Save(ctx, &domain.Template{Name: "Secret", Markup: "<mj-text>launch day</mj-text>"})
		require.NoError(t, err)

		raw, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, raw, 1)
		data, err := os.ReadFile(filepath.Join(dir, raw[0].Name()))
		require.NoError(t, err)
		assert.NotContains(t, string(data), "launch day")

		got, err := store.Get(ctx, "Secret")
		require.NoError(t, err)
		assert.Equal(t, "<mj-text>launch day</mj-text>", got.Markup)

		_, ok := store.(ports.Watchable)
		assert.True(t, ok)
	})

	t.Run("bad key", func(t *testing.T) {
		_, _, err := NewStore(config.StoreConfig{Kind: "memory", EncryptionKey: "c2hvcnQ="}, logging.NewNop())
		assert.ErrorContains(t, err, "store.encryption_key")
	})
}

func TestNewRenderer(t *testing.T) {
	t.Run("disabled without credentials", func(t *testing.T) {
		r, err := NewRenderer(config.RenderConfig{AppID: "app"}, logging.NewNop())
		require.NoError(t, err)
		assert.Nil(t, r)
	})

	t.Run("client with credentials", func(t *testing.T) {
		r, err := NewRenderer(config.RenderConfig{
			Endpoint:  "http://localhost:1/v1",
			AppID:     "app",
			SecretKey: "secret",
			Timeout:   time.Second,
			Retries:   1,
		}, logging.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &mjmlapi.Client{}, r)
	})
}

func TestRenderOptions(t *testing.T) {
	assert.Empty(t, RenderOptions(config.RenderConfig{}))
	assert.Len(t, RenderOptions(config.RenderConfig{Minify: true}), 1)
	assert.Len(t, RenderOptions(config.RenderConfig{Minify: true, Sanitize: true}), 2)
}

func TestNewRuntime(t *testing.T) {
	cfg := &config.Config{
		Log:   config.LogConfig{Level: "debug"},
		Store: config.StoreConfig{Kind: "memory"},
	}
	rt, err := NewRuntime(cfg, logging.NewNop())
	require.NoError(t, err)
	defer rt.Close()

	ctx := context.Background()
	out, err := rt.Engine.Format(ctx, "<mj-section><mj-column></mj-column></mj-section>")
	require.NoError(t, err)
	assert.Equal(t, "<mj-section>\n  <mj-column />\n</mj-section>", out)

	_, err = rt.Engine.Render(ctx, "<mjml></mjml>")
	assert.Error(t, err, "render must fail without credentials")

	var _ ports.TemplateStore = rt.Engine.Store()
	assert.IsType(t, &memory.Store{}, rt.Engine.Store())
}

func TestNewRuntime_BadStore(t *testing.T) {
	_, err := NewRuntime(&config.Config{Store: config.StoreConfig{Kind: "nope"}}, logging.NewNop())
	assert.Error(t, err)
}

func TestReadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.mjml")
	require.NoError(t, os.WriteFile(path, []byte("<mj-text>file</mj-text>"), 0o644))

	got, err := ReadInput(path, strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "<mj-text>file</mj-text>", got)

	got, err = ReadInput("-", strings.NewReader("<mj-text>piped</mj-text>"))
	require.NoError(t, err)
	assert.Equal(t, "<mj-text>piped</mj-text>", got)

	got, err = ReadInput("", strings.NewReader("<mj-spacer />"))
	require.NoError(t, err)
	assert.Equal(t, "<mj-spacer />", got)

	_, err = ReadInput(filepath.Join(t.TempDir(), "missing.mjml"), nil)
	assert.ErrorContains(t, err, "failed to read")
}

func TestRunWatch(t *testing.T) {
	dir := t.TempDir()
	rt, err := NewRuntime(&config.Config{Store: config.StoreConfig{Kind: "file", Dir: dir}}, logging.NewNop())
	require.NoError(t, err)
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out safeBuffer
	done := make(chan error, 1)
	go func() { done <- RunWatch(ctx, rt.Engine, &out, logging.NewNop()) }()

	// Give the watcher time to register before writing.
	time.Sleep(200 * time.Millisecond)
	_, err = rt.Engine.SaveTemplate(ctx, &domain.Template{Name: "Launch", Markup: "<mj-section />"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Launch")
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestRunWatch_Unsupported(t *testing.T) {
	rt, err := NewRuntime(&config.Config{Store: config.StoreConfig{Kind: "memory"}}, logging.NewNop())
	require.NoError(t, err)

	err = RunWatch(context.Background(), rt.Engine, &bytes.Buffer{}, logging.NewNop())
	assert.ErrorContains(t, err, "use a file store")
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
