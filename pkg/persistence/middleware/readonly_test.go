package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/mjtree/pkg/adapters/memory"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadOnlyMiddleware(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	_, err := underlying.Save(ctx, &domain.Template{Name: "Welcome", Markup: "<mj-section />"})
	require.NoError(t, err)

	store := middleware.NewReadOnlyMiddleware()(underlying)

	got, err := store.Get(ctx, "Welcome")
	require.NoError(t, err)
	assert.Equal(t, "<mj-section />", got.Markup)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = store.Save(ctx, &domain.Template{Name: "Other", Markup: "<mj-section />"})
	assert.ErrorIs(t, err, domain.ErrReadOnly)
	assert.ErrorIs(t, store.Delete(ctx, "Welcome"), domain.ErrReadOnly)

	_, err = underlying.Get(ctx, "Welcome")
	assert.NoError(t, err, "nothing was deleted")
}

func TestChain(t *testing.T) {
	key := make([]byte, 32)
	store := middleware.Chain(memory.NewStore(),
		middleware.NewReadOnlyMiddleware(),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}),
	)

	_, err := store.Save(context.Background(), &domain.Template{Name: "X", Markup: "<mj-section />"})
	assert.ErrorIs(t, err, domain.ErrReadOnly, "read-only is outermost")
}
