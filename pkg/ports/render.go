package ports

import (
	"context"

	"github.com/aretw0/mjtree/pkg/domain"
)

// Renderer converts markup into final HTML.
// Markup errors reported by the service are part of the result; a non-nil error
// means the call itself failed.
type Renderer interface {
	Render(ctx context.Context, markup string) (*domain.RenderResult, error)
}
