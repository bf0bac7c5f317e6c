package tree

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/aretw0/mjtree/internal/logging"
	"github.com/aretw0/mjtree/pkg/catalog"
	"github.com/aretw0/mjtree/pkg/domain"
)

// Model creates nodes from a catalog and mutates forests while keeping ownership
// exclusive and ids unique. It holds no forest itself, so one Model can serve many
// documents. Mutations are not synchronized: callers serialize access per forest.
type Model struct {
	catalog *catalog.Catalog
	ids     domain.IDGenerator
	logger  *slog.Logger
}

// Option defines a functional option for configuring the Model.
type Option func(*Model)

// WithIDGenerator injects the id source. Defaults to a "comp-N" sequence owned by
// the Model.
func WithIDGenerator(g domain.IDGenerator) Option {
	return func(m *Model) {
		m.ids = g
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

// New creates a Model over cat. A nil catalog selects catalog.Default().
func New(cat *catalog.Catalog, opts ...Option) *Model {
	m := &Model{catalog: cat}
	for _, opt := range opts {
		opt(m)
	}
	if m.catalog == nil {
		m.catalog = catalog.Default()
	}
	if m.ids == nil {
		m.ids = domain.NewSequence("comp")
	}
	if m.logger == nil {
		m.logger = logging.NewNop()
	}
	return m
}

// Catalog returns the catalog the Model creates nodes from.
func (m *Model) Catalog() *catalog.Catalog {
	return m.catalog
}

// NewID draws a fresh id from the Model's generator.
func (m *Model) NewID() string {
	return m.ids.NewID()
}

// Create builds a node of type tag with a fresh id.
// Catalog defaults are merged under overrides, and the type's default content is
// used when content is empty. Children are adopted as given.
// Returns an error wrapping domain.ErrUnknownNodeType when tag is not registered.
func (m *Model) Create(tag string, overrides domain.Attributes, children []*domain.Node, content string) (*domain.Node, error) {
	nt, ok := m.catalog.Lookup(tag)
	if !ok {
		return nil, fmt.Errorf("create %q: %w", tag, domain.ErrUnknownNodeType)
	}

	attrs := nt.DefaultAttributes // Lookup already returned a private copy
	attrs.Merge(overrides)

	if content == "" {
		content = nt.DefaultContent
	}
	if children == nil {
		children = []*domain.Node{}
	}

	return &domain.Node{
		ID:         m.ids.NewID(),
		Type:       tag,
		Attributes: attrs,
		Children:   children,
		Content:    content,
	}, nil
}

// Duplicate deep-copies n giving every node of the copy a fresh id.
func (m *Model) Duplicate(n *domain.Node) *domain.Node {
	cp := n.Clone()
	domain.Forest{cp}.Walk(func(node *domain.Node, _ *domain.Node, _ int) bool {
		node.ID = m.ids.NewID()
		return true
	})
	return cp
}

// Reissue gives every node of the node's subtree whose id is already present in f
// a fresh id. Generators only promise not to repeat themselves, so forests loaded
// from elsewhere may already hold ids they will hand out.
func (m *Model) Reissue(f domain.Forest, node *domain.Node) {
	taken := make(map[string]bool)
	f.Walk(func(n *domain.Node, _ *domain.Node, _ int) bool {
		taken[n.ID] = true
		return true
	})
	domain.Forest{node}.Walk(func(n *domain.Node, _ *domain.Node, _ int) bool {
		for taken[n.ID] {
			n.ID = m.ids.NewID()
		}
		taken[n.ID] = true
		return true
	})
}

// FindByID searches depth-first, root to leaf, and returns the first match.
func (m *Model) FindByID(f domain.Forest, id string) (*domain.Node, bool) {
	return find(f, id)
}

// Locate returns the id of the node's owner (domain.RootID for top-level nodes)
// and its index among the owner's children.
func (m *Model) Locate(f domain.Forest, id string) (parentID string, index int, ok bool) {
	return locate(f, domain.RootID, id)
}

// Walk visits every node depth-first in document order until fn returns false.
func (m *Model) Walk(f domain.Forest, fn func(n, parent *domain.Node, depth int) bool) {
	f.Walk(fn)
}

// UpdateAttributes merges patch into the node's attributes. Patch values win.
// Returns false when id does not exist.
func (m *Model) UpdateAttributes(f domain.Forest, id string, patch domain.Attributes) bool {
	n, ok := find(f, id)
	if !ok {
		m.logger.Debug("update attributes: node not found", "node_id", id)
		return false
	}
	n.Attributes.Merge(patch)
	return true
}

// UpdateContent replaces the node's content verbatim.
// Returns false when id does not exist.
func (m *Model) UpdateContent(f domain.Forest, id string, text string) bool {
	n, ok := find(f, id)
	if !ok {
		m.logger.Debug("update content: node not found", "node_id", id)
		return false
	}
	n.Content = text
	return true
}

// Insert places node under parentID at pos. domain.RootID addresses the top level.
// Returns false when the parent does not exist, or when the node would introduce
// an id that is already present in the forest.
func (m *Model) Insert(f *domain.Forest, parentID string, node *domain.Node, pos domain.Position) bool {
	if node == nil {
		return false
	}
	if clash, ok := firstClash(*f, node); ok {
		m.logger.Warn("insert rejected: duplicate id", "node_id", clash)
		return false
	}
	if !insert(f, parentID, node, pos) {
		m.logger.Debug("insert: parent not found", "parent_id", parentID)
		return false
	}
	return true
}

// Remove detaches the node and its whole subtree.
// The top level is searched first, then each node's immediate children, then
// deeper levels. Returns false when id does not exist.
func (m *Model) Remove(f *domain.Forest, id string) bool {
	rest, ok := remove(*f, id)
	if !ok {
		m.logger.Debug("remove: node not found", "node_id", id)
		return false
	}
	*f = rest
	return true
}

// Move reparents a node, preserving its id and subtree.
//
// When the node stays under the same parent and pos is an index past its current
// index, the index is decremented by one to compensate for the shift caused by
// removing the node first. So At(i) means "before the sibling currently at i".
//
// The destination is resolved before the node is detached: a missing destination,
// or one inside the moved subtree, makes Move return false with the forest
// unchanged. Returns false as well when id does not exist.
func (m *Model) Move(f *domain.Forest, id, newParentID string, pos domain.Position) bool {
	node, ok := find(*f, id)
	if !ok {
		m.logger.Debug("move: node not found", "node_id", id)
		return false
	}
	currentParent, currentIndex, _ := locate(*f, domain.RootID, id)

	if newParentID != domain.RootID {
		if _, ok := find(*f, newParentID); !ok {
			m.logger.Warn("move rejected: destination not found", "node_id", id, "parent_id", newParentID)
			return false
		}
		if _, inside := find(domain.Forest{node}, newParentID); inside {
			m.logger.Warn("move rejected: destination inside moved subtree", "node_id", id, "parent_id", newParentID)
			return false
		}
	}

	target := pos
	if i, isIndex := pos.Index(); isIndex && currentParent == newParentID && currentIndex < i {
		target = domain.At(i - 1)
	}

	moved := node.Clone()
	rest, _ := remove(*f, id)
	*f = rest
	insert(f, newParentID, moved, target)
	return true
}

// --- helpers ---

func find(nodes []*domain.Node, id string) (*domain.Node, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
		if found, ok := find(n.Children, id); ok {
			return found, true
		}
	}
	return nil, false
}

func locate(nodes []*domain.Node, ownerID, id string) (string, int, bool) {
	for i, n := range nodes {
		if n.ID == id {
			return ownerID, i, true
		}
		if p, idx, ok := locate(n.Children, n.ID, id); ok {
			return p, idx, true
		}
	}
	return "", -1, false
}

func insert(f *domain.Forest, parentID string, node *domain.Node, pos domain.Position) bool {
	if parentID == domain.RootID {
		*f = slices.Insert(*f, pos.Resolve(len(*f)), node)
		return true
	}
	parent, ok := find(*f, parentID)
	if !ok {
		return false
	}
	parent.Children = slices.Insert(parent.Children, pos.Resolve(len(parent.Children)), node)
	return true
}

func remove(nodes []*domain.Node, id string) ([]*domain.Node, bool) {
	// 1. Current level
	if i := slices.IndexFunc(nodes, func(n *domain.Node) bool { return n.ID == id }); i >= 0 {
		return slices.Delete(nodes, i, i+1), true
	}

	// 2. Immediate children
	for _, n := range nodes {
		if i := slices.IndexFunc(n.Children, func(c *domain.Node) bool { return c.ID == id }); i >= 0 {
			n.Children = slices.Delete(n.Children, i, i+1)
			return nodes, true
		}
	}

	// 3. Deeper levels
	for _, n := range nodes {
		if rest, ok := remove(n.Children, id); ok {
			n.Children = rest
			return nodes, true
		}
	}
	return nodes, false
}

func firstClash(f domain.Forest, node *domain.Node) (string, bool) {
	existing := make(map[string]bool)
	f.Walk(func(n *domain.Node, _ *domain.Node, _ int) bool {
		existing[n.ID] = true
		return true
	})
	var clash string
	domain.Forest{node}.Walk(func(n *domain.Node, _ *domain.Node, _ int) bool {
		if existing[n.ID] {
			clash = n.ID
			return false
		}
		existing[n.ID] = true
		return true
	})
	return clash, clash != ""
}
