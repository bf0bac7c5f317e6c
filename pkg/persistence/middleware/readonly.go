package middleware

import (
	"context"

	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/ports"
)

type readOnlyMiddleware struct {
	next ports.TemplateStore
}

// NewReadOnlyMiddleware creates a middleware that serves reads and rejects
// Save and Delete with domain.ErrReadOnly.
func NewReadOnlyMiddleware() Middleware {
	return func(next ports.TemplateStore) ports.TemplateStore {
		return keepWatch(&readOnlyMiddleware{next: next}, next)
	}
}

func (m *readOnlyMiddleware) List(ctx context.Context) ([]*domain.Template, error) {
	return m.next.List(ctx)
}

func (m *readOnlyMiddleware) Get(ctx context.Context, name string) (*domain.Template, error) {
	return m.next.Get(ctx, name)
}

func (m *readOnlyMiddleware) Save(ctx context.Context, tpl *domain.Template) (*domain.Template, error) {
	return nil, domain.ErrReadOnly
}

func (m *readOnlyMiddleware) Delete(ctx context.Context, name string) error {
	return domain.ErrReadOnly
}
