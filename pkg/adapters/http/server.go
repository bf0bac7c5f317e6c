package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/mjtree"
	"github.com/aretw0/mjtree/internal/logging"
	"github.com/aretw0/mjtree/pkg/catalog"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/observability"
	"github.com/aretw0/mjtree/pkg/ports"
	"github.com/aretw0/mjtree/pkg/render"
	"github.com/aretw0/mjtree/pkg/templates"
	"github.com/aretw0/mjtree/pkg/validate"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// Engine is the subset of *mjtree.Engine served over HTTP.
type Engine interface {
	Catalog() *catalog.Catalog
	ParseDocument(ctx context.Context, text string) (*domain.Node, error)
	ParseBody(ctx context.Context, text string) (domain.Forest, error)
	ParseFragment(ctx context.Context, text string) (domain.Forest, error)
	Serialize(ctx context.Context, f domain.Forest) string
	WrapAsDocument(ctx context.Context, f domain.Forest) string
	Format(ctx context.Context, text string) (string, error)
	Validate(ctx context.Context, f domain.Forest) validate.Result
	ValidateBody(ctx context.Context, f domain.Forest) validate.Result
	ValidateAttributes(f domain.Forest) []validate.AttributeIssue
	Render(ctx context.Context, text string) (*domain.RenderResult, error)
	ListTemplates(ctx context.Context) ([]*domain.Template, error)
	GetTemplate(ctx context.Context, name string) (*domain.Template, error)
	SaveTemplate(ctx context.Context, t *domain.Template) (*domain.Template, error)
	DeleteTemplate(ctx context.Context, name string) error
	SeedTemplates(ctx context.Context) ([]string, error)
	WatchTemplates(ctx context.Context) (<-chan ports.TemplateEvent, error)
}

var _ Engine = (*mjtree.Engine)(nil)

// Server holds the handlers of the HTTP API.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	metrics *observability.Metrics
	logger  *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithMetrics records request metrics and serves them on /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the logger for request failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)

	r.Get("/catalog", s.ListCatalog)
	r.Get("/catalog/{tag}", s.GetNodeType)

	r.Post("/parse", s.Parse)
	r.Post("/serialize", s.Serialize)
	r.Post("/format", s.Format)
	r.Post("/validate", s.Validate)
	r.Post("/render", s.Render)

	r.Route("/templates", func(r chi.Router) {
		r.Get("/", s.ListTemplates)
		r.Post("/seed", s.SeedTemplates)
		r.Get("/{name}", s.GetTemplate)
		r.Put("/{name}", s.PutTemplate)
		r.Delete("/{name}", s.DeleteTemplate)
	})

	r.Get("/events", s.SubscribeEvents)

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ParseRequest is the body of POST /parse.
type ParseRequest struct {
	Markup string `json:"markup"`
	// Scope is "body" (default), "document" or "fragment".
	Scope string `json:"scope,omitempty"`
}

// TreeResponse carries a parsed forest.
type TreeResponse struct {
	Tree  domain.Forest `json:"tree"`
	Nodes int           `json:"nodes"`
}

// SerializeRequest is the body of POST /serialize.
type SerializeRequest struct {
	Tree     domain.Forest `json:"tree"`
	Document bool          `json:"document,omitempty"`
}

// MarkupResponse carries serialized markup.
type MarkupResponse struct {
	Markup string `json:"markup"`
}

// ValidateRequest is the body of POST /validate. Either Markup or Tree is set.
// Unless Fragment is true, top-level nodes are checked as body content.
type ValidateRequest struct {
	Markup   string        `json:"markup,omitempty"`
	Tree     domain.Forest `json:"tree,omitempty"`
	Fragment bool          `json:"fragment,omitempty"`
}

// ValidateResponse merges containment and attribute findings.
type ValidateResponse struct {
	validate.Result
	Attributes []validate.AttributeIssue `json:"attributes"`
}

// RenderRequest is the body of POST /render.
type RenderRequest struct {
	Markup string `json:"markup"`
}

// TemplateRequest is the body of PUT /templates/{name}.
type TemplateRequest struct {
	Markup string        `json:"markup"`
	Mode   domain.Mode   `json:"mode,omitempty"`
	Tree   domain.Forest `json:"tree,omitempty"`
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"app":        "mjtree-http",
		"version":    mjtree.Version,
		"node_types": s.Engine.Catalog().Len(),
	})
}

// ListCatalog handles GET /catalog, filtered by ?category= or ?q=.
func (s *Server) ListCatalog(w http.ResponseWriter, r *http.Request) {
	cat := s.Engine.Catalog()
	var out []catalog.NodeType
	switch {
	case r.URL.Query().Get("q") != "":
		out = cat.Search(r.URL.Query().Get("q"))
	case r.URL.Query().Get("category") != "":
		out = cat.ListByCategory(r.URL.Query().Get("category"))
	default:
		for _, tag := range cat.Tags() {
			t, _ := cat.Lookup(tag)
			out = append(out, t)
		}
	}
	if out == nil {
		out = []catalog.NodeType{}
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GetNodeType handles GET /catalog/{tag}.
func (s *Server) GetNodeType(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	t, ok := s.Engine.Catalog().Lookup(tag)
	if !ok {
		http.Error(w, fmt.Sprintf("%v: %s", domain.ErrUnknownNodeType, tag), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

// Parse handles POST /parse.
func (s *Server) Parse(w http.ResponseWriter, r *http.Request) {
	var body ParseRequest
	if !s.decode(w, r, &body) {
		return
	}

	var (
		tree domain.Forest
		err  error
	)
	switch body.Scope {
	case "", "body":
		tree, err = s.Engine.ParseBody(r.Context(), body.Markup)
	case "fragment":
		tree, err = s.Engine.ParseFragment(r.Context(), body.Markup)
	case "document":
		var root *domain.Node
		root, err = s.Engine.ParseDocument(r.Context(), body.Markup)
		if root != nil {
			tree = domain.Forest{root}
		}
	default:
		http.Error(w, fmt.Sprintf("unknown scope %q", body.Scope), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.fail(w, "Parse", err)
		return
	}
	if tree == nil {
		tree = domain.Forest{}
	}
	s.writeJSON(w, http.StatusOK, TreeResponse{Tree: tree, Nodes: tree.Count()})
}

// Serialize handles POST /serialize.
func (s *Server) Serialize(w http.ResponseWriter, r *http.Request) {
	var body SerializeRequest
	if !s.decode(w, r, &body) {
		return
	}
	var out string
	if body.Document {
		out = s.Engine.WrapAsDocument(r.Context(), body.Tree)
	} else {
		out = s.Engine.Serialize(r.Context(), body.Tree)
	}
	s.writeJSON(w, http.StatusOK, MarkupResponse{Markup: out})
}

// Format handles POST /format.
func (s *Server) Format(w http.ResponseWriter, r *http.Request) {
	var body RenderRequest
	if !s.decode(w, r, &body) {
		return
	}
	out, err := s.Engine.Format(r.Context(), body.Markup)
	if err != nil {
		s.fail(w, "Format", err)
		return
	}
	s.writeJSON(w, http.StatusOK, MarkupResponse{Markup: out})
}

// Validate handles POST /validate.
func (s *Server) Validate(w http.ResponseWriter, r *http.Request) {
	var body ValidateRequest
	if !s.decode(w, r, &body) {
		return
	}

	tree := body.Tree
	if body.Markup != "" {
		var err error
		if body.Fragment {
			tree, err = s.Engine.ParseFragment(r.Context(), body.Markup)
		} else {
			tree, err = s.Engine.ParseBody(r.Context(), body.Markup)
		}
		if err != nil {
			s.fail(w, "Validate", err)
			return
		}
	}

	var res validate.Result
	if body.Fragment {
		res = s.Engine.Validate(r.Context(), tree)
	} else {
		res = s.Engine.ValidateBody(r.Context(), tree)
	}
	attrs := s.Engine.ValidateAttributes(tree)
	if attrs == nil {
		attrs = []validate.AttributeIssue{}
	}
	s.writeJSON(w, http.StatusOK, ValidateResponse{Result: res, Attributes: attrs})
}

// Render handles POST /render. Markup problems reported by the service come
// back with status 200 in the errors field.
func (s *Server) Render(w http.ResponseWriter, r *http.Request) {
	var body RenderRequest
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.Engine.Render(r.Context(), body.Markup)
	if err != nil {
		s.fail(w, "Render", err)
		return
	}
	if res.Errors == nil {
		res.Errors = []string{}
	}
	s.writeJSON(w, http.StatusOK, res)
}

// ListTemplates handles GET /templates.
func (s *Server) ListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.Engine.ListTemplates(r.Context())
	if err != nil {
		s.fail(w, "ListTemplates", err)
		return
	}
	if list == nil {
		list = []*domain.Template{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

// GetTemplate handles GET /templates/{name}.
func (s *Server) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.Engine.GetTemplate(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, "GetTemplate", err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

// PutTemplate handles PUT /templates/{name}.
func (s *Server) PutTemplate(w http.ResponseWriter, r *http.Request) {
	var body TemplateRequest
	if !s.decode(w, r, &body) {
		return
	}
	name := chi.URLParam(r, "name")
	previous, err := s.Engine.GetTemplate(r.Context(), name)
	if err != nil && !errors.Is(err, domain.ErrTemplateNotFound) {
		s.fail(w, "PutTemplate", err)
		return
	}
	saved, err := s.Engine.SaveTemplate(r.Context(), &domain.Template{
		Name:   name,
		Markup: body.Markup,
		Mode:   body.Mode,
		Tree:   body.Tree,
	})
	if err != nil {
		s.fail(w, "PutTemplate", err)
		return
	}

	ev := ports.TemplateEvent{Name: saved.Name, Op: ports.TemplateSaved}
	if previous != nil {
		// Node ids survive only when the client sent its tree back.
		ev.Diff = domain.Diff(previous.Tree, saved.Tree)
	}
	s.publish(ev)
	s.writeJSON(w, http.StatusOK, saved)
}

// DeleteTemplate handles DELETE /templates/{name}.
func (s *Server) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.Engine.DeleteTemplate(r.Context(), name); err != nil {
		s.fail(w, "DeleteTemplate", err)
		return
	}
	s.publish(ports.TemplateEvent{Name: name, Op: ports.TemplateDeleted})
	w.WriteHeader(http.StatusNoContent)
}

// SeedTemplates handles POST /templates/seed.
func (s *Server) SeedTemplates(w http.ResponseWriter, r *http.Request) {
	seeded, err := s.Engine.SeedTemplates(r.Context())
	for _, name := range seeded {
		s.publish(ports.TemplateEvent{Name: name, Op: ports.TemplateSaved})
	}
	if err != nil {
		s.fail(w, "SeedTemplates", err)
		return
	}
	if seeded == nil {
		seeded = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"seeded": seeded})
}

// StreamManager fans template events out to SSE clients.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan string]struct{}
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan string]struct{}),
		logger:      logging.NewNop(),
	}
}

func (sm *StreamManager) Subscribe() (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	sm.subscribers[ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

func (sm *StreamManager) Broadcast(msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers {
		select {
		case ch <- msg:
		default:
			// Slow client.
			sm.logger.Warn("SSE: Client buffer full, dropping message")
		}
	}
}

func (s *Server) publish(ev ports.TemplateEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	s.Streams.Broadcast(string(b))
}

// SubscribeEvents handles the GET /events request (SSE). Clients receive
// template changes made through this server and, for watchable stores,
// changes made outside it.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	local, cancel := s.Streams.Subscribe()
	defer cancel()

	var external <-chan ports.TemplateEvent
	events, err := s.Engine.WatchTemplates(r.Context())
	switch {
	case err == nil:
		external = events
	case errors.Is(err, mjtree.ErrWatchUnsupported):
	default:
		http.Error(w, fmt.Sprintf("Watch error: %v", err), http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Watch failed", "error", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-local:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: template\ndata: %s\n\n", msg)
			flusher.Flush()
		case ev, ok := <-external:
			if !ok {
				external = nil
				continue
			}
			b, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: template\ndata: %s\n\n", b)
			flusher.Flush()
		}
	}
}

// -- Helpers --

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Invalid request body", "path", r.URL.Path, "error", err)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "error", err)
	}
}

// fail maps engine errors to status codes.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	var parseErr *domain.ParseError
	code := http.StatusInternalServerError
	switch {
	case errors.As(err, &parseErr),
		errors.Is(err, templates.ErrInvalidTemplate):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, render.ErrEmptyMarkup):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrTemplateNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrReadOnly):
		code = http.StatusForbidden
	case errors.Is(err, mjtree.ErrNoRenderer):
		code = http.StatusNotImplemented
	case op == "Render":
		code = http.StatusBadGateway
	}

	if code >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "error", err)
	} else {
		s.logger.Debug(op+" rejected", "error", err)
	}
	http.Error(w, err.Error(), code)
}
