package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aretw0/mjtree"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const welcome = `<mjml><mj-body><mj-section><mj-column><mj-text>Hi</mj-text></mj-column></mj-section></mj-body></mjml>`

type toolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent"`
	IsError           bool            `json:"isError"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

var nextID int

func send(t *testing.T, s *Server, method string, params any) rpcResponse {
	t.Helper()
	nextID++
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      nextID,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	raw, err := json.Marshal(s.MCPServer().HandleMessage(context.Background(), msg))
	require.NoError(t, err)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

func call(t *testing.T, s *Server, tool string, args map[string]any) toolResult {
	t.Helper()
	resp := send(t, s, "tools/call", map[string]any{"name": tool, "arguments": args})
	require.Nil(t, resp.Error, "rpc error")

	var res toolResult
	require.NoError(t, json.Unmarshal(resp.Result, &res))
	return res
}

func structured[T any](t *testing.T, res toolResult) T {
	t.Helper()
	require.False(t, res.IsError, "tool error: %+v", res.Content)
	var out T
	require.NoError(t, json.Unmarshal(res.StructuredContent, &out))
	return out
}

type fakeRenderer struct{}

func (fakeRenderer) Render(_ context.Context, markup string) (*domain.RenderResult, error) {
	return &domain.RenderResult{HTML: fmt.Sprintf("<!-- %d bytes -->", len(markup))}, nil
}

func TestTools_Listed(t *testing.T) {
	s := NewServer(mjtree.New())

	resp := send(t, s, "tools/list", map[string]any{})
	require.Nil(t, resp.Error)

	var list struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &list))

	var names []string
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	for _, want := range []string{
		"list_components", "get_component", "can_drop", "parse_markup", "serialize_tree",
		"format_markup", "validate_markup", "render_markup", "list_templates",
		"get_template", "save_template", "delete_template", "seed_templates",
	} {
		assert.Contains(t, names, want)
	}
}

func TestCatalogTools(t *testing.T) {
	s := NewServer(mjtree.New())

	list := structured[ComponentList](t, call(t, s, "list_components", map[string]any{"query": "divider"}))
	require.NotEmpty(t, list.Components)
	assert.Equal(t, "mj-divider", list.Components[0].Tag)

	button := structured[map[string]any](t, call(t, s, "get_component", map[string]any{"tag": "mj-button"}))
	assert.Equal(t, "mj-button", button["tag"])

	res := call(t, s, "get_component", map[string]any{"tag": "mj-nope"})
	assert.True(t, res.IsError)

	drop := structured[DropResult](t, call(t, s, "can_drop", map[string]any{"child": "mj-section"}))
	assert.True(t, drop.Allowed)
	drop = structured[DropResult](t, call(t, s, "can_drop", map[string]any{"parent": "mj-section", "child": "mj-text"}))
	assert.False(t, drop.Allowed)
}

func TestMarkupTools(t *testing.T) {
	s := NewServer(mjtree.New())

	parsed := structured[TreeResult](t, call(t, s, "parse_markup", map[string]any{"markup": welcome}))
	require.Len(t, parsed.Tree, 1)
	assert.Equal(t, 3, parsed.Nodes)

	tree, err := json.Marshal(parsed.Tree)
	require.NoError(t, err)
	out := structured[MarkupResult](t, call(t, s, "serialize_tree", map[string]any{"tree": string(tree)}))
	assert.Equal(t, "<mj-section>\n  <mj-column>\n    <mj-text>Hi</mj-text>\n  </mj-column>\n</mj-section>", out.Markup)

	formatted := structured[MarkupResult](t, call(t, s, "format_markup", map[string]any{"markup": "<mj-spacer height=\"20px\"></mj-spacer>"}))
	assert.Equal(t, `<mj-spacer height="20px" />`, formatted.Markup)

	res := call(t, s, "parse_markup", map[string]any{"markup": "<mjml><mj-body>"})
	assert.True(t, res.IsError)

	res = call(t, s, "serialize_tree", map[string]any{"tree": "{not json"})
	assert.True(t, res.IsError)
}

func TestValidateTool(t *testing.T) {
	s := NewServer(mjtree.New())

	bad := `<mjml><mj-body><mj-section><mj-text>x</mj-text></mj-section></mj-body></mjml>`
	v := structured[ValidationResult](t, call(t, s, "validate_markup", map[string]any{"markup": bad}))
	assert.False(t, v.Valid)
	require.Len(t, v.Errors, 2)
	assert.Equal(t, domain.NestingDisallowedChild, v.Errors[0].Kind)
	assert.Equal(t, domain.NestingDisallowedParent, v.Errors[1].Kind)

	v = structured[ValidationResult](t, call(t, s, "validate_markup", map[string]any{
		"markup":   "<mj-column><mj-text>x</mj-text></mj-column>",
		"fragment": true,
	}))
	assert.True(t, v.Valid)
}

func TestRenderTool(t *testing.T) {
	res := call(t, NewServer(mjtree.New()), "render_markup", map[string]any{"markup": welcome})
	assert.True(t, res.IsError, "no renderer configured")

	s := NewServer(mjtree.New(mjtree.WithRenderer(fakeRenderer{})))
	out := structured[domain.RenderResult](t, call(t, s, "render_markup", map[string]any{"markup": welcome}))
	assert.Contains(t, out.HTML, "bytes")
	assert.Empty(t, out.Errors)
}

func TestTemplateTools(t *testing.T) {
	s := NewServer(mjtree.New())

	saved := structured[TemplateSummary](t, call(t, s, "save_template", map[string]any{
		"name": "Welcome", "markup": welcome, "mode": "visual",
	}))
	assert.Equal(t, "Welcome", saved.Name)
	assert.Equal(t, domain.ModeVisual, saved.Mode)

	got := structured[domain.Template](t, call(t, s, "get_template", map[string]any{"name": "Welcome"}))
	assert.Equal(t, welcome, got.Markup)
	assert.Len(t, got.Tree, 1)

	res := call(t, s, "save_template", map[string]any{"name": "Bad", "markup": "no markup"})
	assert.True(t, res.IsError)

	seeded := structured[SeedResult](t, call(t, s, "seed_templates", map[string]any{}))
	assert.Len(t, seeded.Seeded, 4)

	list := structured[TemplateList](t, call(t, s, "list_templates", map[string]any{}))
	assert.Len(t, list.Templates, 5)

	res = call(t, s, "delete_template", map[string]any{"name": "Welcome"})
	require.False(t, res.IsError)
	assert.Equal(t, "deleted Welcome", res.Content[0].Text)

	res = call(t, s, "get_template", map[string]any{"name": "Welcome"})
	assert.True(t, res.IsError)
}

func TestResources(t *testing.T) {
	eng := mjtree.New()
	s := NewServer(eng)
	_, err := eng.SaveTemplate(context.Background(), &domain.Template{Name: "Spring Sale", Markup: welcome})
	require.NoError(t, err)

	read := func(uri string) rpcResponse {
		return send(t, s, "resources/read", map[string]any{"uri": uri})
	}

	resp := read("mjtree://catalog")
	require.Nil(t, resp.Error)
	var catalogRes struct {
		Contents []struct {
			URI  string `json:"uri"`
			Text string `json:"text"`
		} `json:"contents"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &catalogRes))
	require.Len(t, catalogRes.Contents, 1)
	assert.Contains(t, catalogRes.Contents[0].Text, `"tag":"mj-body"`)

	resp = read("mjtree://templates/Spring%20Sale")
	require.Nil(t, resp.Error)
	var tplRes struct {
		Contents []struct {
			Text string `json:"text"`
		} `json:"contents"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &tplRes))
	require.Len(t, tplRes.Contents, 1)
	assert.Equal(t, welcome, tplRes.Contents[0].Text)
}
