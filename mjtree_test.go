package mjtree_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/aretw0/mjtree"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const welcome = `<mjml>
  <mj-body>
    <mj-section>
      <mj-column>
        <mj-text>Hi</mj-text>
      </mj-column>
    </mj-section>
  </mj-body>
</mjml>`

type stubRenderer struct {
	mu    sync.Mutex
	calls []string
}

func (s *stubRenderer) Render(_ context.Context, markup string) (*domain.RenderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, markup)
	if strings.Contains(markup, "broken") {
		return &domain.RenderResult{Errors: []string{"line 1: broken tag"}}, nil
	}
	return &domain.RenderResult{HTML: "<html><body><p>Hi</p></body></html>"}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) hooks() domain.LifecycleHooks {
	add := func(s string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, s)
	}
	return domain.LifecycleHooks{
		OnParse:     func(context.Context, *domain.ParseEvent) { add("parse") },
		OnSerialize: func(context.Context, *domain.SerializeEvent) { add("serialize") },
		OnValidate:  func(context.Context, *domain.ValidationEvent) { add("validate") },
		OnRender:    func(context.Context, *domain.RenderEvent) { add("render") },
		OnMutation:  func(context.Context, *domain.MutationEvent) { add("mutation") },
	}
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestEngine_ParseSerializeRoundTrip(t *testing.T) {
	eng := mjtree.New()
	ctx := context.Background()

	root, err := eng.ParseDocument(ctx, welcome)
	require.NoError(t, err)
	assert.Equal(t, "mjml", root.Type)

	out := eng.Serialize(ctx, domain.Forest{root})
	assert.Equal(t, welcome, out)

	body, err := eng.ParseBody(ctx, welcome)
	require.NoError(t, err)
	require.Len(t, body, 1)
	assert.Equal(t, "mj-section", body[0].Type)
	wrapped := eng.WrapAsDocument(ctx, body)
	assert.Contains(t, wrapped, `<mj-body width="600px" background-color="#ffffff">`, "synthesized body carries defaults")
	assert.Contains(t, wrapped, "<mj-text>Hi</mj-text>")
}

func TestEngine_ParseErrors(t *testing.T) {
	eng := mjtree.New()
	ctx := context.Background()

	_, err := eng.ParseDocument(ctx, "<mjml><mj-body>")
	assert.Error(t, err)

	_, err = eng.Format(ctx, "<mj-section><mj-column></mj-section>")
	assert.Error(t, err)
}

func TestEngine_Validate(t *testing.T) {
	eng := mjtree.New()
	ctx := context.Background()

	f, err := eng.ParseFragment(ctx, "<mj-column><mj-text>Loose</mj-text></mj-column>")
	require.NoError(t, err)

	assert.True(t, eng.Validate(ctx, f).Valid, "top-level nodes have no assumed parent")

	res := eng.ValidateBody(ctx, f)
	require.False(t, res.Valid)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "mj-column", res.Errors[0].Tag)
	assert.Equal(t, domain.NestingDisallowedChild, res.Errors[0].Kind)
	assert.Equal(t, domain.NestingDisallowedParent, res.Errors[1].Kind)

	assert.True(t, eng.CanDrop("", "mj-section"))
	assert.False(t, eng.CanDrop("", "mj-column"))
	assert.False(t, eng.CanDrop("mj-text", "mj-image"))
}

func TestEngine_Hooks(t *testing.T) {
	rec := &recorder{}
	eng := mjtree.New(mjtree.WithHooks(rec.hooks()), mjtree.WithRenderer(&stubRenderer{}))
	ctx := context.Background()

	f, err := eng.ParseBody(ctx, welcome)
	require.NoError(t, err)
	_ = eng.WrapAsDocument(ctx, f)
	_ = eng.ValidateBody(ctx, f)
	_, err = eng.Render(ctx, welcome)
	require.NoError(t, err)

	doc := eng.NewDocument()
	_, err = doc.Drop("mj-section", "", domain.End)
	require.NoError(t, err)

	assert.Equal(t, []string{"parse", "serialize", "validate", "render", "mutation"}, rec.list())
}

func TestEngine_Render(t *testing.T) {
	ctx := context.Background()

	t.Run("No Renderer", func(t *testing.T) {
		_, err := mjtree.New().Render(ctx, welcome)
		assert.ErrorIs(t, err, mjtree.ErrNoRenderer)
	})

	t.Run("Success", func(t *testing.T) {
		stub := &stubRenderer{}
		eng := mjtree.New(mjtree.WithRenderer(stub))

		res, err := eng.Render(ctx, welcome)
		require.NoError(t, err)
		assert.True(t, res.OK())
		assert.Contains(t, res.HTML, "<p>Hi</p>")
		assert.Equal(t, []string{welcome}, stub.calls)
	})

	t.Run("Markup Errors Are Results", func(t *testing.T) {
		eng := mjtree.New(mjtree.WithRenderer(&stubRenderer{}))

		res, err := eng.Render(ctx, "<mjml>broken</mjml>")
		require.NoError(t, err)
		assert.False(t, res.OK())
		assert.Equal(t, []string{"line 1: broken tag"}, res.Errors)
	})
}

func TestEngine_SaveTemplate(t *testing.T) {
	eng := mjtree.New()
	ctx := context.Background()

	saved, err := eng.SaveTemplate(ctx, &domain.Template{Name: "Welcome", Markup: welcome})
	require.NoError(t, err)
	require.Len(t, saved.Tree, 1, "tree is filled from the body")
	assert.Equal(t, "mj-section", saved.Tree[0].Type)

	got, err := eng.GetTemplate(ctx, "Welcome")
	require.NoError(t, err)
	assert.Equal(t, welcome, got.Markup)

	list, err := eng.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, eng.DeleteTemplate(ctx, "Welcome"))
	_, err = eng.GetTemplate(ctx, "Welcome")
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
}

func TestEngine_SaveTemplate_Rejects(t *testing.T) {
	eng := mjtree.New()
	ctx := context.Background()

	tests := []struct {
		name string
		tpl  *domain.Template
		is   error
	}{
		{"Missing Name", &domain.Template{Markup: welcome}, templates.ErrInvalidTemplate},
		{"Padded Name", &domain.Template{Name: " x ", Markup: welcome}, templates.ErrInvalidTemplate},
		{"Not Markup", &domain.Template{Name: "x", Markup: "hello"}, templates.ErrInvalidTemplate},
		{"Unparseable", &domain.Template{Name: "x", Markup: "<mjml><mj-body>"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.SaveTemplate(ctx, tt.tpl)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}

	list, err := eng.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEngine_SeedTemplates(t *testing.T) {
	eng := mjtree.New()
	ctx := context.Background()

	seeded, err := eng.SeedTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, seeded, len(templates.All()))

	again, err := eng.SeedTemplates(ctx)
	require.NoError(t, err)
	assert.Empty(t, again, "existing templates are left alone")

	got, err := eng.GetTemplate(ctx, "Product Promo")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeVisual, got.Mode)
	assert.NotEmpty(t, got.Tree)
}

func TestEngine_WatchTemplates_Unsupported(t *testing.T) {
	_, err := mjtree.New().WatchTemplates(context.Background())
	assert.True(t, errors.Is(err, mjtree.ErrWatchUnsupported))
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, mjtree.Version)
	assert.NotContains(t, mjtree.Version, "\n")
}
