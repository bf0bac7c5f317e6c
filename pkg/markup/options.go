package markup

import (
	"log/slog"

	"github.com/aretw0/mjtree/internal/logging"
	"github.com/aretw0/mjtree/pkg/catalog"
	"github.com/aretw0/mjtree/pkg/domain"
)

// DefaultIndent is the per-level indentation unit of serialized markup.
const DefaultIndent = "  "

type options struct {
	catalog       *catalog.Catalog
	ids           domain.IDGenerator
	logger        *slog.Logger
	indent        string
	keepOpaqueTag bool
}

// Option configures a Parser or a Serializer.
type Option func(*options)

// WithCatalog sets the catalog used to resolve tags and opaque types.
// Defaults to catalog.Default().
func WithCatalog(c *catalog.Catalog) Option {
	return func(o *options) {
		o.catalog = c
	}
}

// WithIDGenerator sets the id source for parsed nodes. Share the generator of the
// tree.Model editing the result so ids stay unique across the forest.
func WithIDGenerator(g domain.IDGenerator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithIndent overrides the per-level indentation unit.
func WithIndent(unit string) Option {
	return func(o *options) {
		o.indent = unit
	}
}

// WithKeepStructuralOpaque keeps the inner markup of opaque elements even when it
// starts with an mj- tag. By default such payloads are dropped and logged.
func WithKeepStructuralOpaque() Option {
	return func(o *options) {
		o.keepOpaqueTag = true
	}
}

func newOptions(opts []Option) options {
	o := options{indent: DefaultIndent}
	for _, opt := range opts {
		opt(&o)
	}
	if o.catalog == nil {
		o.catalog = catalog.Default()
	}
	if o.ids == nil {
		o.ids = domain.NewSequence("comp")
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	return o
}
