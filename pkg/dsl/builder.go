package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/tree"
)

// Builder manages the forest construction.
type Builder struct {
	model *tree.Model
	roots []*NodeBuilder
}

// New creates a new forest builder. A nil model selects tree.New(nil).
func New(model *tree.Model) *Builder {
	if model == nil {
		model = tree.New(nil)
	}
	return &Builder{model: model}
}

// Add appends a top-level node and returns its builder.
func (b *Builder) Add(tag string) *NodeBuilder {
	nb := El(tag)
	b.roots = append(b.roots, nb)
	return nb
}

// Append adds prebuilt nodes at the top level.
func (b *Builder) Append(nodes ...*NodeBuilder) *Builder {
	b.roots = append(b.roots, nodes...)
	return b
}

// Build creates every node through the model, in document order.
// Unknown tags are collected and returned together.
func (b *Builder) Build() (domain.Forest, error) {
	var errs []error
	forest := make(domain.Forest, 0, len(b.roots))
	for _, nb := range b.roots {
		if n := nb.build(b.model, &errs); n != nil {
			forest = append(forest, n)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to build forest: %w", errors.Join(errs...))
	}
	return forest, nil
}

// MustBuild is like Build but panics on error. Meant for static documents.
func (b *Builder) MustBuild() domain.Forest {
	f, err := b.Build()
	if err != nil {
		panic(err)
	}
	return f
}
