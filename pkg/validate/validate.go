package validate

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/mjtree/pkg/catalog"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/schema"
)

// BodyTag is the type the forest root drop zone stands for.
const BodyTag = "mj-body"

// Result is the outcome of a whole-tree validation.
type Result struct {
	Valid  bool                  `json:"valid"`
	Errors []domain.NestingError `json:"errors"`
}

// AttributeIssue is an attribute value that does not match its schema kind.
type AttributeIssue struct {
	NodeID string `json:"node_id"`
	Tag    string `json:"tag"`
	Key    string `json:"key"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// Validator checks forests against the containment rules of a catalog.
type Validator struct {
	catalog    *catalog.Catalog
	rootParent string
}

// Option configures a Validator.
type Option func(*Validator)

// WithRootParent checks top-level nodes as children of tag, e.g. BodyTag when
// the forest is the content of a document body. By default top-level nodes have
// no parent and only their own type is checked.
func WithRootParent(tag string) Option {
	return func(v *Validator) {
		v.rootParent = tag
	}
}

// New creates a Validator over cat. A nil catalog selects catalog.Default().
func New(cat *catalog.Catalog, opts ...Option) *Validator {
	v := &Validator{catalog: cat}
	for _, opt := range opts {
		opt(v)
	}
	if v.catalog == nil {
		v.catalog = catalog.Default()
	}
	return v
}

// CanNest reports whether childTag accepts parentTag as its parent: the child is
// known and its allowed parents are unrestricted or include parentTag.
func (v *Validator) CanNest(parentTag, childTag string) bool {
	child, ok := v.catalog.Lookup(childTag)
	if !ok {
		return false
	}
	return len(child.AllowedParents) == 0 || slices.Contains(child.AllowedParents, parentTag)
}

// CanContainChildren reports whether parentTag accepts childTag among its
// children. Unknown and leaf parents accept nothing.
func (v *Validator) CanContainChildren(parentTag, childTag string) bool {
	parent, ok := v.catalog.Lookup(parentTag)
	if !ok || parent.IsLeaf() {
		return false
	}
	return slices.Contains(parent.AllowedChildren, childTag)
}

// CanDrop gates a prospective insertion: both sides must agree. An empty
// parentTag or domain.RootID is the forest root and counts as BodyTag.
func (v *Validator) CanDrop(parentTag, childTag string) bool {
	if parentTag == "" || parentTag == domain.RootID {
		parentTag = BodyTag
	}
	return v.CanNest(parentTag, childTag) && v.CanContainChildren(parentTag, childTag)
}

// ValidateTree walks the forest top-down and collects every containment
// violation. Each violated direction of a parent/child pair is reported once,
// against the child. A leaf parent with children is reported once, against the
// parent. Validation never fails; the result is advisory.
func (v *Validator) ValidateTree(f domain.Forest) Result {
	res := Result{Errors: []domain.NestingError{}}
	root, hasRoot := v.catalog.Lookup(v.rootParent)
	for _, n := range f {
		if n == nil {
			continue
		}
		if hasRoot {
			v.checkChild(&res, root, n)
		}
		v.validateNode(&res, n, v.rootParent)
	}
	res.Valid = len(res.Errors) == 0
	return res
}

func (v *Validator) validateNode(res *Result, n *domain.Node, parentTag string) {
	if n == nil {
		return
	}
	nt, ok := v.catalog.Lookup(n.Type)
	if !ok {
		res.add(n, parentTag, domain.NestingUnknownType,
			fmt.Sprintf("Unknown component type: %s", n.Type))
		return
	}

	if parentTag != "" && len(nt.AllowedParents) > 0 && !slices.Contains(nt.AllowedParents, parentTag) {
		res.add(n, parentTag, domain.NestingDisallowedParent,
			fmt.Sprintf("%s cannot be a child of %s. Allowed parents: %s",
				n.Type, parentTag, strings.Join(nt.AllowedParents, ", ")))
	}

	if !n.HasChildren() {
		return
	}

	leaf := nt.IsLeaf()
	if leaf {
		res.add(n, parentTag, domain.NestingLeafWithChildren,
			fmt.Sprintf("%s cannot have children", n.Type))
	}

	for _, child := range n.Children {
		if child == nil {
			continue
		}
		if !leaf {
			v.checkChild(res, nt, child)
		}
		v.validateNode(res, child, n.Type)
	}
}

// checkChild reports child when parent does not list it among its children.
// Unknown children are left to validateNode.
func (v *Validator) checkChild(res *Result, parent catalog.NodeType, child *domain.Node) {
	if !v.catalog.Has(child.Type) || slices.Contains(parent.AllowedChildren, child.Type) {
		return
	}
	res.add(child, parent.Tag, domain.NestingDisallowedChild,
		fmt.Sprintf("%s is not allowed as a child of %s. Allowed children: %s",
			child.Type, parent.Tag, strings.Join(parent.AllowedChildren, ", ")))
}

func (r *Result) add(n *domain.Node, parentTag string, kind domain.NestingKind, msg string) {
	r.Errors = append(r.Errors, domain.NestingError{
		NodeID:    n.ID,
		Tag:       n.Type,
		ParentTag: parentTag,
		Kind:      kind,
		Message:   msg,
	})
}

// ValidateAttributes checks every attribute value in the forest against the
// schema kind declared by its node type. Attributes outside the schema are free
// text. Issues are advisory and ordered by document position, then key.
func (v *Validator) ValidateAttributes(f domain.Forest) []AttributeIssue {
	issues := []AttributeIssue{}
	f.Walk(func(n, _ *domain.Node, _ int) bool {
		nt, ok := v.catalog.Lookup(n.Type)
		if !ok {
			return true
		}
		err := schema.Validate(nt.Schema(), n.Attributes.Map())
		var agg *schema.AggregateError
		if !errors.As(err, &agg) {
			return true
		}
		for _, e := range agg.Errors {
			var ve *schema.ValidationError
			if errors.As(e, &ve) {
				issues = append(issues, AttributeIssue{
					NodeID: n.ID,
					Tag:    n.Type,
					Key:    ve.Key,
					Value:  ve.Value,
					Reason: ve.Reason,
				})
			}
		}
		return true
	})
	return issues
}
