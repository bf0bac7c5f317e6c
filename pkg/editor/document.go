package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/mjtree/internal/logging"
	"github.com/aretw0/mjtree/pkg/catalog"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/markup"
	"github.com/aretw0/mjtree/pkg/tree"
	"github.com/aretw0/mjtree/pkg/validate"
)

var (
	// ErrDropRejected is returned when the containment rules forbid a placement.
	ErrDropRejected = errors.New("placement not allowed")
	// ErrNoSelection is returned by selection-relative actions with nothing selected.
	ErrNoSelection = errors.New("nothing selected")
)

// Change ops beyond the tree mutations in domain.
const (
	OpLoad  = "load"
	OpClear = "clear"
)

// Change describes one committed mutation.
type Change struct {
	Op     string
	NodeID string
}

// Document is an editing session: a forest, a selection and a view mode.
// Every action validates before mutating, so a rejected action leaves the
// document unchanged. A Document is safe for concurrent use.
type Document struct {
	mu       sync.Mutex
	forest   domain.Forest
	selected string
	mode     domain.Mode

	catalog    *catalog.Catalog
	model      *tree.Model
	validator  *validate.Validator
	serializer *markup.Serializer
	parser     *markup.Parser
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	listeners  []func(Change)
}

// Option configures a Document.
type Option func(*config)

type config struct {
	ids    domain.IDGenerator
	logger *slog.Logger
	hooks  domain.LifecycleHooks
	mode   domain.Mode
}

// WithIDGenerator sets the id source shared by creation and parsing.
func WithIDGenerator(g domain.IDGenerator) Option {
	return func(c *config) {
		c.ids = g
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHooks sets lifecycle hooks; OnMutation fires for every action attempt.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(c *config) {
		c.hooks = h
	}
}

// WithMode sets the initial view mode.
func WithMode(m domain.Mode) Option {
	return func(c *config) {
		c.mode = m
	}
}

// New creates an empty document over cat. A nil catalog selects catalog.Default().
func New(cat *catalog.Catalog, opts ...Option) *Document {
	if cat == nil {
		cat = catalog.Default()
	}
	cfg := config{
		ids:    domain.NewSequence("comp"),
		logger: logging.NewNop(),
		mode:   domain.ModeVisual,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	mopts := []markup.Option{
		markup.WithCatalog(cat),
		markup.WithIDGenerator(cfg.ids),
		markup.WithLogger(cfg.logger),
	}
	return &Document{
		forest:     domain.Forest{},
		mode:       cfg.mode,
		catalog:    cat,
		model:      tree.New(cat, tree.WithIDGenerator(cfg.ids), tree.WithLogger(cfg.logger)),
		validator:  validate.New(cat, validate.WithRootParent(validate.BodyTag)),
		serializer: markup.NewSerializer(mopts...),
		parser:     markup.NewParser(mopts...),
		hooks:      cfg.hooks,
		logger:     cfg.logger,
	}
}

// Catalog returns the catalog the document is checked against.
func (d *Document) Catalog() *catalog.Catalog {
	return d.catalog
}

// OnChange registers fn to run after every committed mutation.
// Callbacks run outside the document lock and may read the document.
func (d *Document) OnChange(fn func(Change)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Forest returns a copy of the current forest.
func (d *Document) Forest() domain.Forest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.forest.Clone()
}

// Node returns a copy of the node with id.
func (d *Document) Node(id string) (*domain.Node, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.model.FindByID(d.forest, id)
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// Drop creates a node of type tag and inserts it under parentID at pos.
// An empty parentID or domain.RootID targets the forest root, which stands
// for the document body. The new node becomes the selection.
func (d *Document) Drop(tag, parentID string, pos domain.Position) (*domain.Node, error) {
	d.mu.Lock()
	parentID = normalizeParent(parentID)

	parentTag, err := d.parentTag(parentID)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}
	if !d.validator.CanDrop(parentTag, tag) {
		d.mu.Unlock()
		d.mutation(domain.OpInsert, "", tag, parentID, false)
		return nil, fmt.Errorf("%w: %s inside %s", ErrDropRejected, tag, displayTag(parentTag))
	}

	node, err := d.model.Create(tag, domain.Attributes{}, nil, "")
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}
	d.model.Reissue(d.forest, node)
	if !d.model.Insert(&d.forest, parentID, node, pos) {
		d.mu.Unlock()
		d.mutation(domain.OpInsert, node.ID, tag, parentID, false)
		return nil, fmt.Errorf("%w: %s", domain.ErrParentNotFound, parentID)
	}
	d.selected = node.ID
	out := node.Clone()
	d.mu.Unlock()

	d.mutation(domain.OpInsert, out.ID, tag, parentID, true)
	d.notify(Change{Op: domain.OpInsert, NodeID: out.ID})
	return out, nil
}

// Move relocates the node with id under newParentID at pos, subject to the same
// containment checks as Drop.
func (d *Document) Move(id, newParentID string, pos domain.Position) error {
	d.mu.Lock()
	newParentID = normalizeParent(newParentID)

	node, ok := d.model.FindByID(d.forest, id)
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	parentTag, err := d.parentTag(newParentID)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	tag := node.Type
	if !d.validator.CanDrop(parentTag, tag) {
		d.mu.Unlock()
		d.mutation(domain.OpMove, id, tag, newParentID, false)
		return fmt.Errorf("%w: %s inside %s", ErrDropRejected, tag, displayTag(parentTag))
	}
	if !d.model.Move(&d.forest, id, newParentID, pos) {
		d.mu.Unlock()
		d.mutation(domain.OpMove, id, tag, newParentID, false)
		return fmt.Errorf("%w: cannot move %s into its own subtree", ErrDropRejected, id)
	}
	d.mu.Unlock()

	d.mutation(domain.OpMove, id, tag, newParentID, true)
	d.notify(Change{Op: domain.OpMove, NodeID: id})
	return nil
}

// Delete removes the node with id and its subtree. A selection inside the
// removed subtree is cleared.
func (d *Document) Delete(id string) error {
	d.mu.Lock()
	node, ok := d.model.FindByID(d.forest, id)
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	tag := node.Type
	if d.selected != "" {
		if _, inside := d.model.FindByID(domain.Forest{node}, d.selected); inside {
			d.selected = ""
		}
	}
	d.model.Remove(&d.forest, id)
	d.mu.Unlock()

	d.mutation(domain.OpRemove, id, tag, "", true)
	d.notify(Change{Op: domain.OpRemove, NodeID: id})
	return nil
}

// Duplicate inserts a deep copy with fresh ids right after the node with id
// and selects it.
func (d *Document) Duplicate(id string) (*domain.Node, error) {
	d.mu.Lock()
	node, ok := d.model.FindByID(d.forest, id)
	if !ok {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	parentID, index, _ := d.model.Locate(d.forest, id)
	dup := d.model.Duplicate(node)
	d.model.Reissue(d.forest, dup)
	d.model.Insert(&d.forest, parentID, dup, domain.At(index+1))
	d.selected = dup.ID
	out := dup.Clone()
	d.mu.Unlock()

	d.mutation(domain.OpInsert, out.ID, out.Type, parentID, true)
	d.notify(Change{Op: domain.OpInsert, NodeID: out.ID})
	return out, nil
}

// SetAttribute sets one attribute on the node with id.
func (d *Document) SetAttribute(id, key, value string) error {
	d.mu.Lock()
	ok := d.model.UpdateAttributes(d.forest, id, domain.NewAttributes(key, value))
	d.mu.Unlock()

	d.mutation(domain.OpAttrs, id, "", "", ok)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	d.notify(Change{Op: domain.OpAttrs, NodeID: id})
	return nil
}

// SetContent replaces the text content of the node with id.
func (d *Document) SetContent(id, text string) error {
	d.mu.Lock()
	ok := d.model.UpdateContent(d.forest, id, text)
	d.mu.Unlock()

	d.mutation(domain.OpContent, id, "", "", ok)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	d.notify(Change{Op: domain.OpContent, NodeID: id})
	return nil
}

// Clear empties the document and the selection.
func (d *Document) Clear() {
	d.mu.Lock()
	d.forest = domain.Forest{}
	d.selected = ""
	d.mu.Unlock()

	d.notify(Change{Op: OpClear})
}

// Select makes the node with id the selection. An empty id clears it.
func (d *Document) Select(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id == "" {
		d.selected = ""
		return nil
	}
	if _, ok := d.model.FindByID(d.forest, id); !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	d.selected = id
	return nil
}

// Selected returns a copy of the selected node.
func (d *Document) Selected() (*domain.Node, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selected == "" {
		return nil, false
	}
	n, ok := d.model.FindByID(d.forest, d.selected)
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// DropIntoSelection drops a new node at the end of the selected node.
func (d *Document) DropIntoSelection(tag string) (*domain.Node, error) {
	d.mu.Lock()
	sel := d.selected
	d.mu.Unlock()
	if sel == "" {
		return nil, ErrNoSelection
	}
	return d.Drop(tag, sel, domain.End)
}

// Mode returns the view mode.
func (d *Document) Mode() domain.Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// SetMode switches the view mode.
func (d *Document) SetMode(m domain.Mode) error {
	if _, err := domain.ParseMode(string(m)); err != nil || m == "" {
		return fmt.Errorf("invalid mode %q", m)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = m
	return nil
}

// Validate checks the forest as the content of a document body.
func (d *Document) Validate() validate.Result {
	d.mu.Lock()
	f := d.forest
	res := d.validator.ValidateTree(f)
	nodes := f.Count()
	d.mu.Unlock()

	if d.hooks.OnValidate != nil {
		d.hooks.OnValidate(context.Background(), &domain.ValidationEvent{
			EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventValidate},
			Nodes:      nodes,
			Violations: len(res.Errors),
		})
	}
	return res
}

// Markup serializes the document as a complete, wrapped document.
func (d *Document) Markup() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.serializer.WrapAsDocument(d.forest)
}

// LoadMarkup replaces the forest with the body of text. On a parse error the
// document is unchanged.
func (d *Document) LoadMarkup(text string) error {
	f, err := d.parser.ParseDocumentBody(text)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.forest = f
	d.selected = ""
	d.mu.Unlock()

	d.logger.Debug("document loaded", "nodes", f.Count())
	d.notify(Change{Op: OpLoad})
	return nil
}

// LoadForest replaces the forest with a copy of f.
func (d *Document) LoadForest(f domain.Forest) {
	d.mu.Lock()
	d.forest = f.Clone()
	if d.forest == nil {
		d.forest = domain.Forest{}
	}
	d.selected = ""
	d.mu.Unlock()

	d.notify(Change{Op: OpLoad})
}

// parentTag resolves the type of parentID; the root resolves to "".
// Callers hold d.mu.
func (d *Document) parentTag(parentID string) (string, error) {
	if parentID == domain.RootID {
		return "", nil
	}
	parent, ok := d.model.FindByID(d.forest, parentID)
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrParentNotFound, parentID)
	}
	return parent.Type, nil
}

func (d *Document) notify(c Change) {
	d.mu.Lock()
	listeners := append([]func(Change){}, d.listeners...)
	d.mu.Unlock()
	for _, fn := range listeners {
		fn(c)
	}
}

func (d *Document) mutation(op, id, tag, parentID string, ok bool) {
	if d.hooks.OnMutation == nil {
		return
	}
	d.hooks.OnMutation(context.Background(), &domain.MutationEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventMutation},
		Op:        op,
		NodeID:    id,
		NodeType:  tag,
		ParentID:  parentID,
		OK:        ok,
	})
}

func normalizeParent(id string) string {
	if id == "" {
		return domain.RootID
	}
	return id
}

func displayTag(tag string) string {
	if tag == "" {
		return "document body"
	}
	return tag
}
