package mjtree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/mjtree/internal/logging"
	"github.com/aretw0/mjtree/pkg/adapters/memory"
	"github.com/aretw0/mjtree/pkg/catalog"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/editor"
	"github.com/aretw0/mjtree/pkg/markup"
	"github.com/aretw0/mjtree/pkg/ports"
	"github.com/aretw0/mjtree/pkg/render"
	"github.com/aretw0/mjtree/pkg/templates"
	"github.com/aretw0/mjtree/pkg/tree"
	"github.com/aretw0/mjtree/pkg/validate"
)

var (
	// ErrNoRenderer is returned by Render when no renderer was configured.
	ErrNoRenderer = errors.New("no renderer configured")
	// ErrWatchUnsupported is returned by WatchTemplates for stores that cannot be watched.
	ErrWatchUnsupported = errors.New("template store does not support watching")
)

// Engine is the high-level entry point for the library.
// It composes the catalog, tree model, serializer, parser and validator, and
// optionally a renderer and a template store.
type Engine struct {
	catalog    *catalog.Catalog
	ids        domain.IDGenerator
	model      *tree.Model
	serializer *markup.Serializer
	parser     *markup.Parser
	validator  *validate.Validator
	body       *validate.Validator
	dispatcher *render.Dispatcher
	store      ports.TemplateStore
	templates  *templates.Validator

	renderer   ports.Renderer
	renderOpts []render.Option
	markupOpts []markup.Option
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithCatalog replaces the built-in catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

// WithIDGenerator sets the id source for created and parsed nodes.
func WithIDGenerator(g domain.IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRenderer enables Render through r.
func WithRenderer(r ports.Renderer) Option {
	return func(e *Engine) {
		e.renderer = r
	}
}

// WithRenderOptions configures the render dispatcher, e.g. render.WithMinify().
func WithRenderOptions(opts ...render.Option) Option {
	return func(e *Engine) {
		e.renderOpts = append(e.renderOpts, opts...)
	}
}

// WithMarkupOptions passes extra options to the serializer and parser.
func WithMarkupOptions(opts ...markup.Option) Option {
	return func(e *Engine) {
		e.markupOpts = append(e.markupOpts, opts...)
	}
}

// WithTemplateStore sets where templates are kept. Defaults to an in-memory store.
func WithTemplateStore(s ports.TemplateStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// New initializes an Engine.
func New(opts ...Option) *Engine {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.catalog == nil {
		eng.catalog = catalog.Default()
	}
	if eng.ids == nil {
		eng.ids = domain.NewSequence("comp")
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}

	mopts := append([]markup.Option{
		markup.WithCatalog(eng.catalog),
		markup.WithIDGenerator(eng.ids),
		markup.WithLogger(eng.logger),
	}, eng.markupOpts...)

	eng.model = tree.New(eng.catalog, tree.WithIDGenerator(eng.ids), tree.WithLogger(eng.logger))
	eng.serializer = markup.NewSerializer(mopts...)
	eng.parser = markup.NewParser(mopts...)
	eng.validator = validate.New(eng.catalog)
	eng.body = validate.New(eng.catalog, validate.WithRootParent(validate.BodyTag))
	eng.templates = templates.NewValidator()

	ropts := append([]render.Option{
		render.WithHooks(eng.hooks),
		render.WithLogger(eng.logger),
	}, eng.renderOpts...)
	eng.dispatcher = render.NewDispatcher(eng.renderer, ropts...)

	return eng
}

// Catalog returns the node catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Model returns the tree model used for creation and mutation.
func (e *Engine) Model() *tree.Model {
	return e.model
}

// Store returns the template store.
func (e *Engine) Store() ports.TemplateStore {
	return e.store
}

// NewDocument starts an editing session sharing the engine's catalog, ids and hooks.
func (e *Engine) NewDocument(opts ...editor.Option) *editor.Document {
	base := []editor.Option{
		editor.WithIDGenerator(e.ids),
		editor.WithLogger(e.logger),
		editor.WithHooks(e.hooks),
	}
	return editor.New(e.catalog, append(base, opts...)...)
}

// ParseDocument parses a single-rooted document into its tree.
func (e *Engine) ParseDocument(ctx context.Context, text string) (*domain.Node, error) {
	start := time.Now()
	root, err := e.parser.ToTree(text)
	nodes := 0
	if root != nil {
		nodes = domain.Forest{root}.Count()
	}
	e.parsed(ctx, text, nodes, start, err)
	return root, err
}

// ParseBody parses a document and returns its editable body forest.
func (e *Engine) ParseBody(ctx context.Context, text string) (domain.Forest, error) {
	start := time.Now()
	f, err := e.parser.ParseDocumentBody(text)
	e.parsed(ctx, text, f.Count(), start, err)
	return f, err
}

// ParseFragment parses zero or more sibling elements.
func (e *Engine) ParseFragment(ctx context.Context, text string) (domain.Forest, error) {
	start := time.Now()
	f, err := e.parser.ParseFragment(text)
	e.parsed(ctx, text, f.Count(), start, err)
	return f, err
}

// Serialize writes the forest as markup, starting at indentation level 0.
func (e *Engine) Serialize(ctx context.Context, f domain.Forest) string {
	out := e.serializer.ToMarkup(f, 0)
	e.serialized(ctx, f, out)
	return out
}

// WrapAsDocument serializes f as a complete document.
func (e *Engine) WrapAsDocument(ctx context.Context, f domain.Forest) string {
	out := e.serializer.WrapAsDocument(f)
	e.serialized(ctx, f, out)
	return out
}

// Format parses text and writes it back in canonical layout.
func (e *Engine) Format(ctx context.Context, text string) (string, error) {
	f, err := e.ParseFragment(ctx, text)
	if err != nil {
		return "", err
	}
	return e.Serialize(ctx, f), nil
}

// Validate checks containment rules with no parent assumed for top-level nodes.
func (e *Engine) Validate(ctx context.Context, f domain.Forest) validate.Result {
	return e.validated(ctx, f, e.validator.ValidateTree(f))
}

// ValidateBody checks f as the content of a document body.
func (e *Engine) ValidateBody(ctx context.Context, f domain.Forest) validate.Result {
	return e.validated(ctx, f, e.body.ValidateTree(f))
}

// ValidateAttributes reports attribute values that do not match their schema kind.
func (e *Engine) ValidateAttributes(f domain.Forest) []validate.AttributeIssue {
	return e.validator.ValidateAttributes(f)
}

// CanDrop reports whether childTag may be placed under parentTag.
// An empty parentTag is the document body.
func (e *Engine) CanDrop(parentTag, childTag string) bool {
	return e.validator.CanDrop(parentTag, childTag)
}

// Render converts markup to HTML through the configured renderer.
func (e *Engine) Render(ctx context.Context, text string) (*domain.RenderResult, error) {
	if e.renderer == nil {
		return nil, ErrNoRenderer
	}
	return e.dispatcher.Render(ctx, text)
}

// Dispatcher exposes the request-correlated render dispatcher for live previews.
func (e *Engine) Dispatcher() *render.Dispatcher {
	return e.dispatcher
}

// ListTemplates returns stored templates, most recently edited first.
func (e *Engine) ListTemplates(ctx context.Context) ([]*domain.Template, error) {
	return e.store.List(ctx)
}

// GetTemplate loads a template by name.
func (e *Engine) GetTemplate(ctx context.Context, name string) (*domain.Template, error) {
	return e.store.Get(ctx, name)
}

// SaveTemplate validates and stores t. The markup must parse; when t carries
// no tree, the parsed body is stored alongside it.
func (e *Engine) SaveTemplate(ctx context.Context, t *domain.Template) (*domain.Template, error) {
	if err := e.templates.Validate(t); err != nil {
		return nil, err
	}
	body, err := e.ParseBody(ctx, t.Markup)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", t.Name, err)
	}
	if len(t.Tree) == 0 {
		t = t.Clone()
		t.Tree = body
	}
	return e.store.Save(ctx, t)
}

// DeleteTemplate removes a template. Missing templates are not an error.
func (e *Engine) DeleteTemplate(ctx context.Context, name string) error {
	return e.store.Delete(ctx, name)
}

// SeedTemplates installs the premade templates the store does not have yet.
func (e *Engine) SeedTemplates(ctx context.Context) ([]string, error) {
	return templates.Seed(ctx, e.store, templates.WithLogger(e.logger), templates.WithParser(e.parser))
}

// WatchTemplates streams store changes when the store supports it.
func (e *Engine) WatchTemplates(ctx context.Context) (<-chan ports.TemplateEvent, error) {
	if w, ok := e.store.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, ErrWatchUnsupported
}

func (e *Engine) parsed(ctx context.Context, text string, nodes int, start time.Time, err error) {
	if e.hooks.OnParse == nil {
		return
	}
	e.hooks.OnParse(ctx, &domain.ParseEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventParse},
		Bytes:     len(text),
		Nodes:     nodes,
		Duration:  time.Since(start),
		Err:       err,
	})
}

func (e *Engine) serialized(ctx context.Context, f domain.Forest, out string) {
	if e.hooks.OnSerialize == nil {
		return
	}
	e.hooks.OnSerialize(ctx, &domain.SerializeEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventSerialize},
		Nodes:     f.Count(),
		Bytes:     len(out),
	})
}

func (e *Engine) validated(ctx context.Context, f domain.Forest, res validate.Result) validate.Result {
	if e.hooks.OnValidate != nil {
		e.hooks.OnValidate(ctx, &domain.ValidationEvent{
			EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventValidate},
			Nodes:      f.Count(),
			Violations: len(res.Errors),
		})
	}
	return res
}
