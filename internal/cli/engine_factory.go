package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/mjtree"
	"github.com/aretw0/mjtree/internal/config"
	"github.com/aretw0/mjtree/pkg/adapters/file"
	"github.com/aretw0/mjtree/pkg/adapters/memory"
	"github.com/aretw0/mjtree/pkg/adapters/mjmlapi"
	"github.com/aretw0/mjtree/pkg/adapters/redis"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/observability"
	"github.com/aretw0/mjtree/pkg/persistence/middleware"
	"github.com/aretw0/mjtree/pkg/ports"
	"github.com/aretw0/mjtree/pkg/render"
)

// Runtime is an engine wired from configuration, plus what must be released
// when the command ends.
type Runtime struct {
	Engine  *mjtree.Engine
	Metrics *observability.Metrics
	Logger  *slog.Logger

	closers []func() error
}

// Close releases the store connection, if any.
func (rt *Runtime) Close() error {
	var first error
	for _, c := range rt.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewRuntime builds an engine from cfg. Metrics are always collected so that
// serve can expose them; logging hooks are added at debug level.
func NewRuntime(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{
		Metrics: observability.NewMetrics(),
		Logger:  logger,
	}

	store, closer, err := NewStore(cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		rt.closers = append(rt.closers, closer)
	}

	hooks := rt.Metrics.Hooks()
	if cfg.Log.SlogLevel() <= slog.LevelDebug {
		hooks = domain.Combine(observability.LoggingHooks(logger), hooks)
	}

	opts := []mjtree.Option{
		mjtree.WithLogger(logger),
		mjtree.WithTemplateStore(store),
		mjtree.WithHooks(hooks),
		mjtree.WithRenderOptions(RenderOptions(cfg.Render)...),
	}

	renderer, err := NewRenderer(cfg.Render, logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	if renderer != nil {
		opts = append(opts, mjtree.WithRenderer(renderer))
	}

	rt.Engine = mjtree.New(opts...)
	return rt, nil
}

// NewStore opens the template store selected by cfg.Kind and wraps it with
// the configured middlewares. The returned closer is nil for stores that hold
// no connection.
func NewStore(cfg config.StoreConfig, logger *slog.Logger) (ports.TemplateStore, func() error, error) {
	var (
		store  ports.TemplateStore
		closer func() error
	)
	switch cfg.Kind {
	case "memory":
		store = memory.NewStore()
	case "file", "":
		store = file.New(cfg.Dir, file.WithLogger(logger))
	case "redis":
		opts := []redis.Option{}
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Redis.Prefix))
		}
		s := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
		store, closer = s, s.Close
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}

	mws, err := storeMiddlewares(cfg)
	if err != nil {
		if closer != nil {
			_ = closer()
		}
		return nil, nil, err
	}
	return middleware.Chain(store, mws...), closer, nil
}

func storeMiddlewares(cfg config.StoreConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if cfg.ReadOnly {
		mws = append(mws, middleware.NewReadOnlyMiddleware())
	}
	if cfg.EncryptionKey != "" {
		active, err := middleware.ParseKey(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("store.encryption_key: %w", err)
		}
		enc := middleware.EncryptionConfig{ActiveKey: active}
		for i, k := range cfg.FallbackKeys {
			key, err := middleware.ParseKey(k)
			if err != nil {
				return nil, fmt.Errorf("store.fallback_keys[%d]: %w", i, err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, key)
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(enc))
	}
	return mws, nil
}

// NewRenderer returns the remote rendering client, or nil when no
// credentials are configured.
func NewRenderer(cfg config.RenderConfig, logger *slog.Logger) (ports.Renderer, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	opts := []mjmlapi.Option{
		mjmlapi.WithRetries(cfg.Retries, 500*time.Millisecond, 5*time.Second),
		mjmlapi.WithLogger(logger),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, mjmlapi.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mjmlapi.WithTimeout(cfg.Timeout))
	}
	c, err := mjmlapi.New(cfg.AppID, cfg.SecretKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	return c, nil
}

// RenderOptions maps the post-processing switches to dispatcher options.
func RenderOptions(cfg config.RenderConfig) []render.Option {
	var opts []render.Option
	if cfg.Sanitize {
		opts = append(opts, render.WithSanitize())
	}
	if cfg.Minify {
		opts = append(opts, render.WithMinify())
	}
	return opts
}
