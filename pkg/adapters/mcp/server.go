package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/mjtree"
	"github.com/aretw0/mjtree/internal/logging"
	"github.com/aretw0/mjtree/pkg/catalog"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/validate"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
)

const (
	catalogURI       = "mjtree://catalog"
	templateURIScope = "mjtree://templates/"
)

// Engine defines what the MCP server needs from the library.
type Engine interface {
	Catalog() *catalog.Catalog
	ParseBody(ctx context.Context, text string) (domain.Forest, error)
	ParseFragment(ctx context.Context, text string) (domain.Forest, error)
	Serialize(ctx context.Context, f domain.Forest) string
	WrapAsDocument(ctx context.Context, f domain.Forest) string
	Format(ctx context.Context, text string) (string, error)
	Validate(ctx context.Context, f domain.Forest) validate.Result
	ValidateBody(ctx context.Context, f domain.Forest) validate.Result
	ValidateAttributes(f domain.Forest) []validate.AttributeIssue
	CanDrop(parentTag, childTag string) bool
	Render(ctx context.Context, text string) (*domain.RenderResult, error)
	ListTemplates(ctx context.Context) ([]*domain.Template, error)
	GetTemplate(ctx context.Context, name string) (*domain.Template, error)
	SaveTemplate(ctx context.Context, t *domain.Template) (*domain.Template, error)
	DeleteTemplate(ctx context.Context, name string) error
	SeedTemplates(ctx context.Context) ([]string, error)
}

var _ Engine = (*mjtree.Engine)(nil)

// ComponentList is the output of list_components.
type ComponentList struct {
	Components []catalog.NodeType `json:"components" jsonschema_description:"Matching component types in catalog order"`
}

// TreeResult is the output of parse_markup.
type TreeResult struct {
	Tree  domain.Forest `json:"tree" jsonschema_description:"Parsed component forest"`
	Nodes int           `json:"nodes" jsonschema_description:"Total number of nodes"`
}

// MarkupResult is the output of tools that produce markup.
type MarkupResult struct {
	Markup string `json:"markup" jsonschema_description:"Canonical MJML markup"`
}

// ValidationResult is the output of validate_markup.
type ValidationResult struct {
	Valid      bool                      `json:"valid" jsonschema_description:"True when no containment rule is violated"`
	Errors     []domain.NestingError     `json:"errors" jsonschema_description:"Containment violations"`
	Attributes []validate.AttributeIssue `json:"attributes" jsonschema_description:"Attribute values that do not match their kind"`
}

// DropResult is the output of can_drop.
type DropResult struct {
	Allowed bool `json:"allowed"`
}

// TemplateList is the output of list_templates.
type TemplateList struct {
	Templates []TemplateSummary `json:"templates"`
}

// TemplateSummary describes a stored template without its body.
type TemplateSummary struct {
	Name         string      `json:"name"`
	Mode         domain.Mode `json:"mode"`
	LastEditedAt time.Time   `json:"last_edited_at"`
}

// SeedResult is the output of seed_templates.
type SeedResult struct {
	Seeded []string `json:"seeded"`
}

type markupArgs struct {
	Markup   string `mapstructure:"markup"`
	Scope    string `mapstructure:"scope"`
	Fragment bool   `mapstructure:"fragment"`
}

type treeArgs struct {
	Tree     string `mapstructure:"tree"`
	Document bool   `mapstructure:"document"`
}

type templateArgs struct {
	Name   string `mapstructure:"name"`
	Markup string `mapstructure:"markup"`
	Mode   string `mapstructure:"mode"`
}

type catalogArgs struct {
	Tag      string `mapstructure:"tag"`
	Category string `mapstructure:"category"`
	Query    string `mapstructure:"query"`
	Parent   string `mapstructure:"parent"`
	Child    string `mapstructure:"child"`
}

// Server wraps the Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		logger: logging.NewNop(),
		mcpServer: server.NewMCPServer("mjtree-mcp", mjtree.Version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
			server.WithRecovery(),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on addr using SSE and stops when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+host))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_components",
		mcp.WithDescription("List MJML component types. Filter by category or a search term."),
		mcp.WithString("category", mcp.Description("Category, e.g. structural, content, interactive")),
		mcp.WithString("query", mcp.Description("Case-insensitive search over tag, name and description")),
		mcp.WithOutputSchema[ComponentList](),
	), mcp.NewStructuredToolHandler(s.handleListComponents))

	s.mcpServer.AddTool(mcp.NewTool("get_component",
		mcp.WithDescription("Describe one component type: defaults, attribute schema and containment rules."),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Component tag, e.g. mj-button")),
		mcp.WithOutputSchema[catalog.NodeType](),
	), mcp.NewStructuredToolHandler(s.handleGetComponent))

	s.mcpServer.AddTool(mcp.NewTool("can_drop",
		mcp.WithDescription("Check whether a component may be placed inside another. Omit parent for the document body."),
		mcp.WithString("parent", mcp.Description("Parent tag (empty for the body)")),
		mcp.WithString("child", mcp.Required(), mcp.Description("Tag to place")),
		mcp.WithOutputSchema[DropResult](),
	), mcp.NewStructuredToolHandler(s.handleCanDrop))

	s.mcpServer.AddTool(mcp.NewTool("parse_markup",
		mcp.WithDescription("Parse MJML markup into a component tree."),
		mcp.WithString("markup", mcp.Required(), mcp.Description("MJML markup")),
		mcp.WithString("scope", mcp.Description("body (default) returns the body content; fragment parses sibling elements")),
		mcp.WithOutputSchema[TreeResult](),
	), mcp.NewStructuredToolHandler(s.handleParse))

	s.mcpServer.AddTool(mcp.NewTool("serialize_tree",
		mcp.WithDescription("Serialize a component tree to canonical MJML."),
		mcp.WithString("tree", mcp.Required(), mcp.Description("JSON array of nodes as returned by parse_markup")),
		mcp.WithBoolean("document", mcp.Description("Wrap the tree in <mjml><mj-body>")),
		mcp.WithOutputSchema[MarkupResult](),
	), mcp.NewStructuredToolHandler(s.handleSerialize))

	s.mcpServer.AddTool(mcp.NewTool("format_markup",
		mcp.WithDescription("Rewrite MJML markup in canonical layout."),
		mcp.WithString("markup", mcp.Required(), mcp.Description("MJML markup")),
		mcp.WithOutputSchema[MarkupResult](),
	), mcp.NewStructuredToolHandler(s.handleFormat))

	s.mcpServer.AddTool(mcp.NewTool("validate_markup",
		mcp.WithDescription("Check MJML markup against the containment rules and attribute kinds."),
		mcp.WithString("markup", mcp.Required(), mcp.Description("MJML markup")),
		mcp.WithBoolean("fragment", mcp.Description("Treat the markup as loose elements with no assumed parent")),
		mcp.WithOutputSchema[ValidationResult](),
	), mcp.NewStructuredToolHandler(s.handleValidate))

	s.mcpServer.AddTool(mcp.NewTool("render_markup",
		mcp.WithDescription("Render MJML to HTML through the configured rendering service."),
		mcp.WithString("markup", mcp.Required(), mcp.Description("MJML markup")),
		mcp.WithOutputSchema[domain.RenderResult](),
	), mcp.NewStructuredToolHandler(s.handleRender))

	s.mcpServer.AddTool(mcp.NewTool("list_templates",
		mcp.WithDescription("List stored templates, most recently edited first."),
		mcp.WithOutputSchema[TemplateList](),
	), mcp.NewStructuredToolHandler(s.handleListTemplates))

	s.mcpServer.AddTool(mcp.NewTool("get_template",
		mcp.WithDescription("Load a stored template."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Template name")),
		mcp.WithOutputSchema[domain.Template](),
	), mcp.NewStructuredToolHandler(s.handleGetTemplate))

	s.mcpServer.AddTool(mcp.NewTool("save_template",
		mcp.WithDescription("Create or replace a template. The markup must parse."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Template name")),
		mcp.WithString("markup", mcp.Required(), mcp.Description("MJML markup")),
		mcp.WithString("mode", mcp.Description("Editor mode: visual, code or split")),
		mcp.WithOutputSchema[TemplateSummary](),
	), mcp.NewStructuredToolHandler(s.handleSaveTemplate))

	s.mcpServer.AddTool(mcp.NewTool("delete_template",
		mcp.WithDescription("Delete a template. Missing templates are ignored."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Template name")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := request.RequireString("name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := s.engine.DeleteTemplate(ctx, name); err != nil {
			return mcp.NewToolResultErrorFromErr("delete failed", err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("deleted %s", name)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("seed_templates",
		mcp.WithDescription("Install the premade templates that are not stored yet."),
		mcp.WithOutputSchema[SeedResult](),
	), mcp.NewStructuredToolHandler(s.handleSeed))
}

// decodeArgs copies tool arguments into a typed struct.
func decodeArgs[T any](args map[string]any) (T, error) {
	var out T
	if err := mapstructure.Decode(args, &out); err != nil {
		return out, fmt.Errorf("invalid arguments: %w", err)
	}
	return out, nil
}

func (s *Server) handleListComponents(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ComponentList, error) {
	a, err := decodeArgs[catalogArgs](args)
	if err != nil {
		return ComponentList{}, err
	}
	cat := s.engine.Catalog()

	var out []catalog.NodeType
	switch {
	case a.Query != "":
		out = cat.Search(a.Query)
	case a.Category != "":
		out = cat.ListByCategory(a.Category)
	default:
		out = cat.Search("")
	}
	if out == nil {
		out = []catalog.NodeType{}
	}
	return ComponentList{Components: out}, nil
}

func (s *Server) handleGetComponent(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (catalog.NodeType, error) {
	a, err := decodeArgs[catalogArgs](args)
	if err != nil {
		return catalog.NodeType{}, err
	}
	t, ok := s.engine.Catalog().Lookup(a.Tag)
	if !ok {
		return catalog.NodeType{}, fmt.Errorf("%w: %s", domain.ErrUnknownNodeType, a.Tag)
	}
	return t, nil
}

func (s *Server) handleCanDrop(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (DropResult, error) {
	a, err := decodeArgs[catalogArgs](args)
	if err != nil {
		return DropResult{}, err
	}
	return DropResult{Allowed: s.engine.CanDrop(a.Parent, a.Child)}, nil
}

func (s *Server) handleParse(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (TreeResult, error) {
	a, err := decodeArgs[markupArgs](args)
	if err != nil {
		return TreeResult{}, err
	}

	var tree domain.Forest
	switch a.Scope {
	case "", "body":
		tree, err = s.engine.ParseBody(ctx, a.Markup)
	case "fragment":
		tree, err = s.engine.ParseFragment(ctx, a.Markup)
	default:
		return TreeResult{}, fmt.Errorf("unknown scope %q", a.Scope)
	}
	if err != nil {
		return TreeResult{}, err
	}
	if tree == nil {
		tree = domain.Forest{}
	}
	return TreeResult{Tree: tree, Nodes: tree.Count()}, nil
}

func (s *Server) handleSerialize(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (MarkupResult, error) {
	a, err := decodeArgs[treeArgs](args)
	if err != nil {
		return MarkupResult{}, err
	}
	var tree domain.Forest
	if err := json.Unmarshal([]byte(a.Tree), &tree); err != nil {
		return MarkupResult{}, fmt.Errorf("tree is not a JSON array of nodes: %w", err)
	}
	if a.Document {
		return MarkupResult{Markup: s.engine.WrapAsDocument(ctx, tree)}, nil
	}
	return MarkupResult{Markup: s.engine.Serialize(ctx, tree)}, nil
}

func (s *Server) handleFormat(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (MarkupResult, error) {
	a, err := decodeArgs[markupArgs](args)
	if err != nil {
		return MarkupResult{}, err
	}
	out, err := s.engine.Format(ctx, a.Markup)
	if err != nil {
		return MarkupResult{}, err
	}
	return MarkupResult{Markup: out}, nil
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ValidationResult, error) {
	a, err := decodeArgs[markupArgs](args)
	if err != nil {
		return ValidationResult{}, err
	}

	var res validate.Result
	var tree domain.Forest
	if a.Fragment {
		if tree, err = s.engine.ParseFragment(ctx, a.Markup); err != nil {
			return ValidationResult{}, err
		}
		res = s.engine.Validate(ctx, tree)
	} else {
		if tree, err = s.engine.ParseBody(ctx, a.Markup); err != nil {
			return ValidationResult{}, err
		}
		res = s.engine.ValidateBody(ctx, tree)
	}
	return ValidationResult{
		Valid:      res.Valid,
		Errors:     res.Errors,
		Attributes: s.engine.ValidateAttributes(tree),
	}, nil
}

func (s *Server) handleRender(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.RenderResult, error) {
	a, err := decodeArgs[markupArgs](args)
	if err != nil {
		return domain.RenderResult{}, err
	}
	res, err := s.engine.Render(ctx, a.Markup)
	if err != nil {
		s.logger.Error("MCP Render failed", "error", err)
		return domain.RenderResult{}, err
	}
	if res.Errors == nil {
		res.Errors = []string{}
	}
	return *res, nil
}

func (s *Server) handleListTemplates(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (TemplateList, error) {
	list, err := s.engine.ListTemplates(ctx)
	if err != nil {
		return TemplateList{}, err
	}
	out := TemplateList{Templates: make([]TemplateSummary, 0, len(list))}
	for _, t := range list {
		out.Templates = append(out.Templates, summarize(t))
	}
	return out, nil
}

func (s *Server) handleGetTemplate(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.Template, error) {
	a, err := decodeArgs[templateArgs](args)
	if err != nil {
		return domain.Template{}, err
	}
	t, err := s.engine.GetTemplate(ctx, a.Name)
	if err != nil {
		return domain.Template{}, err
	}
	return *t, nil
}

func (s *Server) handleSaveTemplate(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (TemplateSummary, error) {
	a, err := decodeArgs[templateArgs](args)
	if err != nil {
		return TemplateSummary{}, err
	}
	saved, err := s.engine.SaveTemplate(ctx, &domain.Template{
		Name:   a.Name,
		Markup: a.Markup,
		Mode:   domain.Mode(a.Mode),
	})
	if err != nil {
		return TemplateSummary{}, err
	}
	return summarize(saved), nil
}

func (s *Server) handleSeed(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (SeedResult, error) {
	seeded, err := s.engine.SeedTemplates(ctx)
	if seeded == nil {
		seeded = []string{}
	}
	return SeedResult{Seeded: seeded}, err
}

func summarize(t *domain.Template) TemplateSummary {
	mode := t.Mode
	if mode == "" {
		mode = domain.ModeCode
	}
	return TemplateSummary{Name: t.Name, Mode: mode, LastEditedAt: t.LastEditedAt}
}

func (s *Server) registerResources() {
	// EXPOSE: mjtree://catalog
	s.mcpServer.AddResource(mcp.NewResource(catalogURI, "Component Catalog",
		mcp.WithResourceDescription("Every MJML component type with defaults and containment rules"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(s.engine.Catalog().Search(""))
		if err != nil {
			return nil, fmt.Errorf("failed to encode catalog: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: catalogURI, MIMEType: "application/json", Text: string(b)},
		}, nil
	})

	// EXPOSE: mjtree://templates/{name}
	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(templateURIScope+"{name}", "Stored Template",
		mcp.WithTemplateDescription("MJML markup of a stored template"),
		mcp.WithTemplateMIMEType("text/mjml"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		name, err := url.PathUnescape(strings.TrimPrefix(request.Params.URI, templateURIScope))
		if err != nil {
			return nil, fmt.Errorf("invalid template uri: %w", err)
		}
		t, err := s.engine.GetTemplate(ctx, name)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: request.Params.URI, MIMEType: "text/mjml", Text: t.Markup},
		}, nil
	})
}
