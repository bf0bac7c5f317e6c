package ports

import (
	"context"

	"github.com/aretw0/mjtree/pkg/domain"
)

// TemplateStore defines the interface for persisting named templates.
// Markup is the canonical payload; the cached tree is optional.
type TemplateStore interface {
	// List returns every template, most recently edited first.
	List(ctx context.Context) ([]*domain.Template, error)

	// Get retrieves a template by name.
	// Returns domain.ErrTemplateNotFound if the template does not exist.
	Get(ctx context.Context, name string) (*domain.Template, error)

	// Save upserts a template keyed by name, stamping its timestamps.
	// The creation time of an existing template is kept. Returns the stored copy.
	Save(ctx context.Context, tpl *domain.Template) (*domain.Template, error)

	// Delete removes a template. Deleting a missing template is not an error.
	Delete(ctx context.Context, name string) error
}

// TemplateOp is the kind of change reported by a Watchable store.
type TemplateOp string

const (
	TemplateSaved   TemplateOp = "saved"
	TemplateDeleted TemplateOp = "deleted"
)

// TemplateEvent reports a change to a stored template. Diff is set when both
// versions of the tree were known to the writer.
type TemplateEvent struct {
	Name string             `json:"name"`
	Op   TemplateOp         `json:"op"`
	Diff *domain.ForestDiff `json:"diff,omitempty"`
}

// Watchable is implemented by stores that can report changes made outside the
// process, e.g. files edited by hand.
type Watchable interface {
	// Watch streams events until ctx is done, then closes the channel.
	Watch(ctx context.Context) (<-chan TemplateEvent, error)
}
