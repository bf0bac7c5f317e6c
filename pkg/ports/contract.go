package ports

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTemplateStoreContract runs a suite of tests to verify that a TemplateStore
// implementation adheres to the defined interface contract.
func RunTemplateStoreContract(t *testing.T, store TemplateStore) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405.000000")

	sample := func(name string) *domain.Template {
		return &domain.Template{
			Name:   name,
			Markup: "<mjml><mj-body /></mjml>",
		}
	}

	t.Run("Save and Get", func(t *testing.T) {
		name := prefix + " welcome"
		tpl := sample(name)
		tpl.Mode = domain.ModeVisual
		tpl.Tree = domain.Forest{{
			ID:         "comp-1",
			Type:       "mj-section",
			Attributes: domain.NewAttributes("padding", "0", "background-color", "#fff"),
			Children:   []*domain.Node{},
		}}
		defer func() { _ = store.Delete(ctx, name) }()

		saved, err := store.Save(ctx, tpl)
		require.NoError(t, err, "Save should not return error")
		assert.False(t, saved.CreatedAt.IsZero(), "CreatedAt is stamped")
		assert.False(t, saved.LastEditedAt.IsZero(), "LastEditedAt is stamped")

		got, err := store.Get(ctx, name)
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, name, got.Name)
		assert.Equal(t, tpl.Markup, got.Markup)
		assert.Equal(t, domain.ModeVisual, got.Mode)
		require.Len(t, got.Tree, 1)
		assert.True(t, domain.StructurallyEqual(tpl.Tree, got.Tree))
		assert.Equal(t, []string{"padding", "background-color"}, got.Tree[0].Attributes.Keys())
		assert.True(t, saved.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("Default Mode", func(t *testing.T) {
		name := prefix + " mode"
		defer func() { _ = store.Delete(ctx, name) }()

		_, err := store.Save(ctx, sample(name))
		require.NoError(t, err)
		got, err := store.Get(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, domain.ModeCode, got.Mode)
		assert.Empty(t, got.Tree)
	})

	t.Run("Upsert Keeps CreatedAt", func(t *testing.T) {
		name := prefix + " upsert"
		defer func() { _ = store.Delete(ctx, name) }()

		first, err := store.Save(ctx, sample(name))
		require.NoError(t, err)

		time.Sleep(10 * time.Millisecond)
		next := sample(name)
		next.Markup = "<mjml><mj-body><mj-section /></mj-body></mjml>"
		second, err := store.Save(ctx, next)
		require.NoError(t, err)

		got, err := store.Get(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, next.Markup, got.Markup)
		assert.True(t, got.CreatedAt.Equal(first.CreatedAt), "CreatedAt survives updates")
		assert.True(t, got.LastEditedAt.After(first.LastEditedAt), "LastEditedAt moves forward")
		assert.True(t, second.LastEditedAt.Equal(got.LastEditedAt))
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, prefix+" missing")
		assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
	})

	t.Run("Empty Name", func(t *testing.T) {
		_, err := store.Save(ctx, sample(""))
		assert.Error(t, err)
	})

	t.Run("Delete", func(t *testing.T) {
		name := prefix + " delete"
		_, err := store.Save(ctx, sample(name))
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, name), "Delete should not return error")

		_, err = store.Get(ctx, name)
		assert.ErrorIs(t, err, domain.ErrTemplateNotFound, "Get after Delete should return ErrTemplateNotFound")

		assert.NoError(t, store.Delete(ctx, name), "Deleting twice is not an error")
	})

	t.Run("List Most Recent First", func(t *testing.T) {
		older, newer := prefix+" list-1", prefix+" list-2"
		defer func() {
			_ = store.Delete(ctx, older)
			_ = store.Delete(ctx, newer)
		}()

		_, err := store.Save(ctx, sample(older))
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
		_, err = store.Save(ctx, sample(newer))
		require.NoError(t, err)

		list, err := store.List(ctx)
		require.NoError(t, err)

		var names []string
		for _, tpl := range list {
			names = append(names, tpl.Name)
		}
		require.Contains(t, names, older)
		require.Contains(t, names, newer)
		assert.Less(t, indexOf(names, newer), indexOf(names, older))
	})

	t.Run("Returned Copies Are Isolated", func(t *testing.T) {
		name := prefix + " isolated"
		defer func() { _ = store.Delete(ctx, name) }()

		tpl := sample(name)
		_, err := store.Save(ctx, tpl)
		require.NoError(t, err)
		tpl.Markup = "changed after save"

		got, err := store.Get(ctx, name)
		require.NoError(t, err)
		got.Markup = "changed after get"

		again, err := store.Get(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, "<mjml><mj-body /></mjml>", again.Markup)
	})

	t.Run("Concurrent Saves", func(t *testing.T) {
		var wg sync.WaitGroup
		names := make([]string, 8)
		for i := range names {
			names[i] = fmt.Sprintf("%s concurrent-%d", prefix, i)
		}
		defer func() {
			for _, n := range names {
				_ = store.Delete(ctx, n)
			}
		}()

		for _, n := range names {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				_, err := store.Save(ctx, sample(name))
				assert.NoError(t, err)
			}(n)
		}
		wg.Wait()

		for _, n := range names {
			_, err := store.Get(ctx, n)
			assert.NoError(t, err, n)
		}
	})
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
