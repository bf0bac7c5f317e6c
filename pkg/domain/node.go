package domain

import "strings"

// RootID is the parent id that addresses the top level of a Forest.
const RootID = "root"

// Node represents one element of the component tree.
type Node struct {
	ID   string `json:"id"`
	Type string `json:"type"` // catalog tag, e.g. "mj-section"

	Attributes Attributes `json:"attributes"`

	// Children are exclusively owned by this node.
	Children []*Node `json:"children"`

	// Content holds plain text or, for opaque types, raw inner markup.
	Content string `json:"content,omitempty"`
}

// HasChildren reports whether the node owns at least one child.
func (n *Node) HasChildren() bool {
	return len(n.Children) > 0
}

// HasContent reports whether the node carries non-blank content.
func (n *Node) HasContent() bool {
	return strings.TrimSpace(n.Content) != ""
}

// Clone deep-copies the subtree rooted at n. Ids are preserved.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		ID:         n.ID,
		Type:       n.Type,
		Attributes: n.Attributes.Clone(),
		Content:    n.Content,
	}
	if n.Children != nil {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// Forest is the ordered top-level sequence of Nodes of a document.
type Forest []*Node

// Clone deep-copies every tree of the forest.
func (f Forest) Clone() Forest {
	if f == nil {
		return nil
	}
	out := make(Forest, len(f))
	for i, n := range f {
		out[i] = n.Clone()
	}
	return out
}

// Walk visits every node depth-first in document order.
// Returning false from fn stops the walk.
func (f Forest) Walk(fn func(n *Node, parent *Node, depth int) bool) {
	var visit func(nodes []*Node, parent *Node, depth int) bool
	visit = func(nodes []*Node, parent *Node, depth int) bool {
		for _, n := range nodes {
			if !fn(n, parent, depth) {
				return false
			}
			if !visit(n.Children, n, depth+1) {
				return false
			}
		}
		return true
	}
	visit(f, nil, 0)
}

// Count returns the number of nodes in the forest.
func (f Forest) Count() int {
	total := 0
	f.Walk(func(*Node, *Node, int) bool {
		total++
		return true
	})
	return total
}

// StructurallyEqual compares two forests by shape, types, attributes and content.
// Ids are ignored, so a parsed copy of a serialized forest compares equal to the
// forest it came from.
func StructurallyEqual(a, b Forest) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !nodesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func nodesEqual(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type != b.Type || a.Content != b.Content || !a.Attributes.Equal(b.Attributes) {
		return false
	}
	return StructurallyEqual(a.Children, b.Children)
}
