package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aretw0/mjtree/internal/logging"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/ports"
)

// ErrEmptyMarkup is returned when there is nothing to render.
var ErrEmptyMarkup = errors.New("markup is empty")

// Dispatcher issues render requests and correlates their responses.
// Every request gets a token from a monotonically increasing counter;
// a response whose token is no longer the latest is stale.
type Dispatcher struct {
	renderer ports.Renderer
	post     []PostProcessor
	hooks    domain.LifecycleHooks
	logger   *slog.Logger

	last atomic.Uint64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPostProcessors appends HTML post-processors, applied in order.
func WithPostProcessors(p ...PostProcessor) Option {
	return func(d *Dispatcher) {
		d.post = append(d.post, p...)
	}
}

// WithMinify appends the HTML minifier.
func WithMinify() Option {
	return WithPostProcessors(Minifier())
}

// WithSanitize appends the email-safe HTML sanitizer.
func WithSanitize() Option {
	return WithPostProcessors(Sanitizer())
}

// WithHooks sets the lifecycle hooks; only OnRender is used.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(d *Dispatcher) {
		d.hooks = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a dispatcher over r.
func NewDispatcher(r ports.Renderer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		renderer: r,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Future is the pending outcome of one render request.
type Future struct {
	Token uint64

	d      *Dispatcher
	done   chan struct{}
	result *domain.RenderResult
	err    error
}

// Done is closed when the request has completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the request completes or ctx is done.
func (f *Future) Wait(ctx context.Context) (*domain.RenderResult, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stale reports whether a newer request has been submitted since this one.
func (f *Future) Stale() bool {
	return !f.d.IsLatest(f.Token)
}

// Submit starts a render in the background and returns immediately.
// Cancelling ctx aborts the underlying request.
func (d *Dispatcher) Submit(ctx context.Context, markup string) *Future {
	f := &Future{
		Token: d.last.Add(1),
		d:     d,
		done:  make(chan struct{}),
	}
	go func() {
		defer close(f.done)
		f.result, f.err = d.do(ctx, f.Token, markup)
	}()
	return f
}

// Render is the synchronous form of Submit.
func (d *Dispatcher) Render(ctx context.Context, markup string) (*domain.RenderResult, error) {
	return d.do(ctx, d.last.Add(1), markup)
}

// IsLatest reports whether token belongs to the most recent request.
func (d *Dispatcher) IsLatest(token uint64) bool {
	return token == d.last.Load()
}

func (d *Dispatcher) do(ctx context.Context, token uint64, markup string) (*domain.RenderResult, error) {
	start := time.Now()

	res, err := d.render(ctx, markup)

	stale := !d.IsLatest(token)
	if d.hooks.OnRender != nil {
		evt := &domain.RenderEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventRender},
			Token:     token,
			Duration:  time.Since(start),
			Stale:     stale,
			Err:       err,
		}
		if res != nil {
			evt.Errors = len(res.Errors)
		}
		d.hooks.OnRender(ctx, evt)
	}

	if err != nil {
		d.logger.Warn("render failed", "token", token, "error", err)
		return nil, err
	}
	d.logger.Debug("render completed", "token", token, "stale", stale, "errors", len(res.Errors))
	return res, nil
}

func (d *Dispatcher) render(ctx context.Context, markup string) (*domain.RenderResult, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, ErrEmptyMarkup
	}
	if d.renderer == nil {
		return nil, errors.New("no renderer configured")
	}

	res, err := d.renderer.Render(ctx, markup)
	if err != nil {
		return nil, fmt.Errorf("failed to render: %w", err)
	}
	if res.HTML == "" {
		return res, nil
	}

	out := *res
	for _, p := range d.post {
		if out.HTML, err = p(out.HTML); err != nil {
			return nil, fmt.Errorf("failed to post-process html: %w", err)
		}
	}
	return &out, nil
}
