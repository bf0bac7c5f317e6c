package editor_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/editor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDoc(t *testing.T, opts ...editor.Option) *editor.Document {
	t.Helper()
	opts = append([]editor.Option{editor.WithIDGenerator(domain.NewSequence("n"))}, opts...)
	return editor.New(nil, opts...)
}

// scaffold drops section > column and returns their ids.
func scaffold(t *testing.T, d *editor.Document) (section, column string) {
	t.Helper()
	s, err := d.Drop("mj-section", "", domain.End)
	require.NoError(t, err)
	c, err := d.Drop("mj-column", s.ID, domain.End)
	require.NoError(t, err)
	return s.ID, c.ID
}

func TestDocument_Drop(t *testing.T) {
	d := newDoc(t)
	section, column := scaffold(t, d)

	btn, err := d.Drop("mj-button", column, domain.End)
	require.NoError(t, err)
	assert.Equal(t, "Click Here", btn.Content, "catalog defaults apply")

	sel, ok := d.Selected()
	require.True(t, ok)
	assert.Equal(t, btn.ID, sel.ID, "dropped node becomes the selection")

	f := d.Forest()
	require.Len(t, f, 1)
	assert.Equal(t, section, f[0].ID)
	assert.Equal(t, column, f[0].Children[0].ID)
	assert.Equal(t, btn.ID, f[0].Children[0].Children[0].ID)
}

func TestDocument_DropRejected(t *testing.T) {
	tests := []struct {
		name   string
		tag    string
		parent func(section, column string) string
	}{
		{"Column At Root", "mj-column", func(_, _ string) string { return "" }},
		{"Text In Section", "mj-text", func(s, _ string) string { return s }},
		{"Section In Column", "mj-section", func(_, c string) string { return c }},
		{"Unknown Type", "mj-marquee", func(_, c string) string { return c }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDoc(t)
			section, column := scaffold(t, d)
			before := d.Forest()

			_, err := d.Drop(tt.tag, tt.parent(section, column), domain.End)
			assert.ErrorIs(t, err, editor.ErrDropRejected)
			assert.True(t, domain.StructurallyEqual(before, d.Forest()), "forest unchanged")
		})
	}
}

func TestDocument_DropMissingParent(t *testing.T) {
	d := newDoc(t)
	_, err := d.Drop("mj-section", "ghost", domain.End)
	assert.ErrorIs(t, err, domain.ErrParentNotFound)
}

func TestDocument_DropIntoSelection(t *testing.T) {
	d := newDoc(t)
	_, err := d.DropIntoSelection("mj-text")
	assert.ErrorIs(t, err, editor.ErrNoSelection)

	_, column := scaffold(t, d)
	txt, err := d.DropIntoSelection("mj-text")
	require.NoError(t, err)

	col, _ := d.Node(column)
	require.Len(t, col.Children, 1)
	assert.Equal(t, txt.ID, col.Children[0].ID)
}

func TestDocument_Move(t *testing.T) {
	d := newDoc(t)
	_, colA := scaffold(t, d)
	_, colB := scaffold(t, d)

	txt, err := d.Drop("mj-text", colA, domain.End)
	require.NoError(t, err)

	require.NoError(t, d.Move(txt.ID, colB, domain.Start))
	a, _ := d.Node(colA)
	b, _ := d.Node(colB)
	assert.Empty(t, a.Children)
	require.Len(t, b.Children, 1)
	assert.Equal(t, txt.ID, b.Children[0].ID, "id survives the move")

	err = d.Move(txt.ID, "", domain.End)
	assert.ErrorIs(t, err, editor.ErrDropRejected, "text cannot live in the body")

	err = d.Move("ghost", colA, domain.End)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = d.Move(txt.ID, "ghost", domain.End)
	assert.ErrorIs(t, err, domain.ErrParentNotFound)
}

func TestDocument_MoveIntoOwnSubtree(t *testing.T) {
	d := newDoc(t)
	wrapper, err := d.Drop("mj-wrapper", "", domain.End)
	require.NoError(t, err)
	inner, err := d.Drop("mj-section", wrapper.ID, domain.End)
	require.NoError(t, err)
	before := d.Forest()

	// mj-wrapper only lives in the body, so the containment check refuses first.
	err = d.Move(wrapper.ID, inner.ID, domain.End)
	assert.ErrorIs(t, err, editor.ErrDropRejected)
	assert.True(t, domain.StructurallyEqual(before, d.Forest()))
}

func TestDocument_Delete(t *testing.T) {
	d := newDoc(t)
	section, column := scaffold(t, d)
	_, err := d.Drop("mj-text", column, domain.End)
	require.NoError(t, err)

	require.NoError(t, d.Delete(section))
	assert.Empty(t, d.Forest())
	_, ok := d.Selected()
	assert.False(t, ok, "selection inside the removed subtree is cleared")

	assert.ErrorIs(t, d.Delete(section), domain.ErrNotFound)
}

func TestDocument_DeleteKeepsUnrelatedSelection(t *testing.T) {
	d := newDoc(t)
	_, colA := scaffold(t, d)
	_, colB := scaffold(t, d)
	txt, err := d.Drop("mj-text", colA, domain.End)
	require.NoError(t, err)

	require.NoError(t, d.Delete(colB))
	sel, ok := d.Selected()
	require.True(t, ok)
	assert.Equal(t, txt.ID, sel.ID)
}

func TestDocument_Duplicate(t *testing.T) {
	d := newDoc(t)
	section, column := scaffold(t, d)
	_, err := d.Drop("mj-text", column, domain.End)
	require.NoError(t, err)

	dup, err := d.Duplicate(section)
	require.NoError(t, err)
	assert.NotEqual(t, section, dup.ID)

	f := d.Forest()
	require.Len(t, f, 2)
	assert.Equal(t, dup.ID, f[1].ID, "copy goes right after the original")
	assert.Equal(t, domain.Forest{f[0]}.Count(), domain.Forest{f[1]}.Count())
	assert.NotEqual(t, f[0].Children[0].ID, f[1].Children[0].ID, "every copied node gets a fresh id")

	_, err = d.Duplicate("ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocument_Edit(t *testing.T) {
	d := newDoc(t)
	_, column := scaffold(t, d)
	txt, err := d.Drop("mj-text", column, domain.End)
	require.NoError(t, err)

	require.NoError(t, d.SetAttribute(txt.ID, "color", "#e56a54"))
	require.NoError(t, d.SetContent(txt.ID, "Welcome"))

	n, ok := d.Node(txt.ID)
	require.True(t, ok)
	color, _ := n.Attributes.Get("color")
	assert.Equal(t, "#e56a54", color)
	assert.Equal(t, "Welcome", n.Content)

	assert.ErrorIs(t, d.SetAttribute("ghost", "color", "red"), domain.ErrNotFound)
	assert.ErrorIs(t, d.SetContent("ghost", "x"), domain.ErrNotFound)
}

func TestDocument_Selection(t *testing.T) {
	d := newDoc(t)
	section, _ := scaffold(t, d)

	require.NoError(t, d.Select(section))
	sel, ok := d.Selected()
	require.True(t, ok)
	assert.Equal(t, section, sel.ID)

	assert.ErrorIs(t, d.Select("ghost"), domain.ErrNotFound)
	require.NoError(t, d.Select(""))
	_, ok = d.Selected()
	assert.False(t, ok)
}

func TestDocument_Mode(t *testing.T) {
	d := newDoc(t)
	assert.Equal(t, domain.ModeVisual, d.Mode())

	require.NoError(t, d.SetMode(domain.ModeSplit))
	assert.Equal(t, domain.ModeSplit, d.Mode())
	assert.Error(t, d.SetMode("preview"))
	assert.Error(t, d.SetMode(""))

	assert.Equal(t, domain.ModeCode, editor.New(nil, editor.WithMode(domain.ModeCode)).Mode())
}

func TestDocument_MarkupRoundTrip(t *testing.T) {
	d := newDoc(t)
	_, column := scaffold(t, d)
	txt, err := d.Drop("mj-text", column, domain.End)
	require.NoError(t, err)
	require.NoError(t, d.SetContent(txt.ID, "Hello"))

	out := d.Markup()
	assert.True(t, strings.HasPrefix(out, "<mjml>\n  <mj-body"))
	assert.Contains(t, out, ">Hello</mj-text>")

	other := newDoc(t)
	require.NoError(t, other.LoadMarkup(out))
	assert.True(t, domain.StructurallyEqual(d.Forest(), other.Forest()))
	assert.Equal(t, out, other.Markup())
}

func TestDocument_LoadMarkupError(t *testing.T) {
	d := newDoc(t)
	scaffold(t, d)
	before := d.Forest()

	err := d.LoadMarkup("<mjml><mj-body>")
	var pe *domain.ParseError
	require.ErrorAs(t, err, &pe)
	assert.True(t, domain.StructurallyEqual(before, d.Forest()), "document unchanged on parse error")
}

func TestDocument_LoadedIDsDoNotCollide(t *testing.T) {
	d := newDoc(t)
	require.NoError(t, d.LoadMarkup("<mjml><mj-body><mj-section><mj-column /></mj-section></mj-body></mjml>"))

	f := d.Forest()
	col, err := d.Drop("mj-text", f[0].Children[0].ID, domain.End)
	require.NoError(t, err)

	seen := map[string]bool{}
	d.Forest().Walk(func(n, _ *domain.Node, _ int) bool {
		assert.False(t, seen[n.ID], "duplicate id %s", n.ID)
		seen[n.ID] = true
		return true
	})
	assert.True(t, seen[col.ID])
}

func TestDocument_LoadForestKeepsDrawingFreshIDs(t *testing.T) {
	d := newDoc(t)
	d.LoadForest(domain.Forest{
		{ID: "n-1", Type: "mj-section", Attributes: domain.Attributes{}, Children: []*domain.Node{
			{ID: "n-2", Type: "mj-column", Attributes: domain.Attributes{}, Children: []*domain.Node{}},
		}},
	})

	col, err := d.Drop("mj-column", "n-1", domain.End)
	require.NoError(t, err)
	assert.NotContains(t, []string{"n-1", "n-2"}, col.ID)

	dup, err := d.Duplicate("n-1")
	require.NoError(t, err)
	seen := map[string]bool{}
	d.Forest().Walk(func(n, _ *domain.Node, _ int) bool {
		assert.False(t, seen[n.ID], "duplicate id %s", n.ID)
		seen[n.ID] = true
		return true
	})
	assert.True(t, seen[dup.ID])
	assert.Equal(t, 6, d.Forest().Count())
}

func TestDocument_ValidateAndClear(t *testing.T) {
	d := newDoc(t)
	// A loaded document may break the rules; Validate reports it.
	require.NoError(t, d.LoadMarkup("<mjml><mj-body><mj-column><mj-text>x</mj-text></mj-column></mj-body></mjml>"))

	res := d.Validate()
	assert.False(t, res.Valid)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, "mj-column", res.Errors[0].Tag)

	d.Clear()
	assert.Empty(t, d.Forest())
	assert.True(t, d.Validate().Valid)
}

func TestDocument_OnChange(t *testing.T) {
	d := newDoc(t)
	var changes []editor.Change
	d.OnChange(func(c editor.Change) {
		changes = append(changes, c)
		_ = d.Forest() // listeners may read the document
	})

	section, _ := scaffold(t, d)
	_, err := d.Drop("mj-text", section, domain.End) // rejected, no change
	require.Error(t, err)
	require.NoError(t, d.Delete(section))
	d.Clear()

	var ops []string
	for _, c := range changes {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []string{domain.OpInsert, domain.OpInsert, domain.OpRemove, editor.OpClear}, ops)
}

func TestDocument_Hooks(t *testing.T) {
	var mu sync.Mutex
	var muts []domain.MutationEvent
	var validations int
	d := newDoc(t, editor.WithHooks(domain.LifecycleHooks{
		OnMutation: func(_ context.Context, e *domain.MutationEvent) {
			mu.Lock()
			defer mu.Unlock()
			muts = append(muts, *e)
		},
		OnValidate: func(_ context.Context, e *domain.ValidationEvent) {
			validations++
		},
	}))

	_, err := d.Drop("mj-column", "", domain.End)
	require.Error(t, err)
	_, err = d.Drop("mj-section", "", domain.End)
	require.NoError(t, err)
	d.Validate()

	require.Len(t, muts, 2)
	assert.False(t, muts[0].OK)
	assert.Equal(t, "mj-column", muts[0].NodeType)
	assert.True(t, muts[1].OK)
	assert.Equal(t, domain.RootID, muts[1].ParentID)
	assert.Equal(t, 1, validations)
}

func TestDocument_Concurrent(t *testing.T) {
	d := newDoc(t)
	_, column := scaffold(t, d)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Drop("mj-text", column, domain.End)
			assert.NoError(t, err)
			_ = d.Markup()
		}()
	}
	wg.Wait()

	col, _ := d.Node(column)
	assert.Len(t, col.Children, 16)
}
