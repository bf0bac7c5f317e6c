package dsl

import (
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/tree"
)

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	tag      string
	attrs    domain.Attributes
	content  string
	children []*NodeBuilder
	parent   *NodeBuilder
}

// El starts a detached node, to be attached with Append.
func El(tag string) *NodeBuilder {
	return &NodeBuilder{tag: tag}
}

// Attr sets one attribute. Catalog defaults are kept unless overridden.
func (n *NodeBuilder) Attr(key, value string) *NodeBuilder {
	n.attrs.Set(key, value)
	return n
}

// Attrs sets attributes from alternating key/value pairs.
func (n *NodeBuilder) Attrs(kv ...string) *NodeBuilder {
	n.attrs.Merge(domain.NewAttributes(kv...))
	return n
}

// Content sets the text, or raw inner markup for opaque types.
func (n *NodeBuilder) Content(text string) *NodeBuilder {
	n.content = text
	return n
}

// Add appends a child and returns the child's builder.
func (n *NodeBuilder) Add(tag string) *NodeBuilder {
	child := El(tag)
	child.parent = n
	n.children = append(n.children, child)
	return child
}

// Append attaches prebuilt children and returns n.
func (n *NodeBuilder) Append(children ...*NodeBuilder) *NodeBuilder {
	for _, c := range children {
		c.parent = n
	}
	n.children = append(n.children, children...)
	return n
}

// Up returns the parent builder, or n itself at the top level.
func (n *NodeBuilder) Up() *NodeBuilder {
	if n.parent == nil {
		return n
	}
	return n.parent
}

func (n *NodeBuilder) build(m *tree.Model, errs *[]error) *domain.Node {
	children := make([]*domain.Node, 0, len(n.children))
	node, err := m.Create(n.tag, n.attrs, children, n.content)
	if err != nil {
		*errs = append(*errs, err)
		return nil
	}
	for _, c := range n.children {
		if child := c.build(m, errs); child != nil {
			node.Children = append(node.Children, child)
		}
	}
	return node
}
