package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/mjtree/pkg/adapters/memory"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunTemplateStoreContract(t, store)
}

func TestMemoryStore_Clock(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore(memory.WithClock(func() time.Time { return at }))
	ctx := context.Background()

	_, err := store.Save(ctx, &domain.Template{Name: "b", Markup: "<mjml />"})
	require.NoError(t, err)
	_, err = store.Save(ctx, &domain.Template{Name: "a", Markup: "<mjml />"})
	require.NoError(t, err)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name, "ties are ordered by name")
	assert.Equal(t, at, list[0].CreatedAt)
	assert.Equal(t, at, list[1].LastEditedAt)
}
