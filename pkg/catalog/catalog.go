package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/schema"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultData []byte

// AttributeSpec describes one editable attribute of a node type.
type AttributeSpec struct {
	Name       string      `json:"name"`
	Label      string      `json:"label"`
	Kind       schema.Kind `json:"kind"`
	EnumValues []string    `json:"enum_values,omitempty"`
	Default    string      `json:"default"`
}

// Type returns the schema validator for the attribute kind.
func (s AttributeSpec) Type() schema.Type {
	t, err := schema.ParseType(string(s.Kind), s.EnumValues...)
	if err != nil {
		return schema.Text()
	}
	return t
}

// NodeType is the static description of a tag: display metadata, defaults and
// containment rules.
type NodeType struct {
	Tag               string            `json:"tag"`
	DisplayName       string            `json:"display_name"`
	Category          string            `json:"category"`
	Icon              string            `json:"icon,omitempty"`
	Description       string            `json:"description,omitempty"`
	DefaultAttributes domain.Attributes `json:"default_attributes"`
	DefaultContent    string            `json:"default_content,omitempty"`

	// Opaque types keep their inner markup verbatim as content.
	Opaque bool `json:"opaque,omitempty"`

	// AllowedParents is empty when the type may go anywhere.
	AllowedParents []string `json:"allowed_parents"`
	// AllowedChildren is empty for leaf types.
	AllowedChildren []string `json:"allowed_children"`

	AttributeSchema []AttributeSpec `json:"attribute_schema"`
}

// IsLeaf reports whether the type accepts no children.
func (t NodeType) IsLeaf() bool {
	return len(t.AllowedChildren) == 0
}

// Schema builds the attribute validation schema of the type.
func (t NodeType) Schema() schema.Schema {
	s := make(schema.Schema, len(t.AttributeSchema))
	for _, spec := range t.AttributeSchema {
		s[spec.Name] = spec.Type()
	}
	return s
}

func (t NodeType) clone() NodeType {
	out := t
	out.DefaultAttributes = t.DefaultAttributes.Clone()
	out.AllowedParents = slices.Clone(t.AllowedParents)
	out.AllowedChildren = slices.Clone(t.AllowedChildren)
	out.AttributeSchema = make([]AttributeSpec, len(t.AttributeSchema))
	for i, spec := range t.AttributeSchema {
		spec.EnumValues = slices.Clone(spec.EnumValues)
		out.AttributeSchema[i] = spec
	}
	return out
}

// Catalog is an immutable registry of node types keyed by tag.
// Safe for concurrent use.
type Catalog struct {
	types      map[string]*NodeType
	order      []string
	categories []string
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in catalog. It is decoded once per process.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(defaultData)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded data is invalid: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Load reads a catalog document from r.
func Load(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Lookup returns the node type registered under tag.
func (c *Catalog) Lookup(tag string) (NodeType, bool) {
	t, ok := c.types[tag]
	if !ok {
		return NodeType{}, false
	}
	return t.clone(), true
}

// Has reports whether tag is registered.
func (c *Catalog) Has(tag string) bool {
	_, ok := c.types[tag]
	return ok
}

// IsOpaque reports whether tag keeps its inner markup verbatim.
func (c *Catalog) IsOpaque(tag string) bool {
	t, ok := c.types[tag]
	return ok && t.Opaque
}

// Tags returns every registered tag in declaration order.
func (c *Catalog) Tags() []string {
	return slices.Clone(c.order)
}

// ListByCategory returns the types of a category in declaration order.
func (c *Catalog) ListByCategory(category string) []NodeType {
	var out []NodeType
	for _, tag := range c.order {
		if t := c.types[tag]; t.Category == category {
			out = append(out, t.clone())
		}
	}
	return out
}

// ListCategories returns the distinct categories in order of first appearance.
func (c *Catalog) ListCategories() []string {
	return slices.Clone(c.categories)
}

// Search returns the types whose tag, display name or description contains term,
// compared case-insensitively. An empty term matches everything.
func (c *Catalog) Search(term string) []NodeType {
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(term))

	var out []NodeType
	for _, tag := range c.order {
		t := c.types[tag]
		if needle == "" ||
			strings.Contains(fold.String(t.Tag), needle) ||
			strings.Contains(fold.String(t.DisplayName), needle) ||
			strings.Contains(fold.String(t.Description), needle) {
			out = append(out, t.clone())
		}
	}
	return out
}

// Len returns the number of registered types.
func (c *Catalog) Len() int {
	return len(c.order)
}

// --- Decoding ---

type document struct {
	Version int       `yaml:"version"`
	Types   []typeDoc `yaml:"types"`
}

type typeDoc struct {
	Tag         string    `yaml:"tag"`
	Name        string    `yaml:"name"`
	Category    string    `yaml:"category"`
	Icon        string    `yaml:"icon"`
	Description string    `yaml:"description"`
	Defaults    yaml.Node `yaml:"defaults"`
	Content     string    `yaml:"content"`
	Opaque      bool      `yaml:"opaque"`
	Parents     []string  `yaml:"parents"`
	Children    []string  `yaml:"children"`
	Attributes  []attrDoc `yaml:"attributes"`
}

type attrDoc struct {
	Name    string   `yaml:"name"`
	Kind    string   `yaml:"kind"`
	Label   string   `yaml:"label"`
	Values  []string `yaml:"values"`
	Default string   `yaml:"default"`
}

// Parse decodes a YAML catalog document.
// Every tag referenced by a parents or children list must be declared.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	c := &Catalog{types: make(map[string]*NodeType, len(doc.Types))}
	seenCategory := make(map[string]bool)

	for i, td := range doc.Types {
		if td.Tag == "" {
			return nil, fmt.Errorf("type #%d: missing tag", i)
		}
		if _, dup := c.types[td.Tag]; dup {
			return nil, fmt.Errorf("type %s: declared twice", td.Tag)
		}

		defaults, err := orderedPairs(&td.Defaults)
		if err != nil {
			return nil, fmt.Errorf("type %s: defaults: %w", td.Tag, err)
		}

		nt := &NodeType{
			Tag:               td.Tag,
			DisplayName:       td.Name,
			Category:          td.Category,
			Icon:              td.Icon,
			Description:       td.Description,
			DefaultAttributes: defaults,
			DefaultContent:    td.Content,
			Opaque:            td.Opaque,
			AllowedParents:    td.Parents,
			AllowedChildren:   td.Children,
		}
		if nt.DisplayName == "" {
			nt.DisplayName = td.Tag
		}

		for _, ad := range td.Attributes {
			kind := schema.Kind(ad.Kind)
			if kind == "select" {
				kind = schema.KindEnum
			}
			if _, err := schema.ParseType(string(kind), ad.Values...); err != nil {
				return nil, fmt.Errorf("type %s: attribute %s: %w", td.Tag, ad.Name, err)
			}
			if kind == "" {
				kind = schema.KindText
			}
			nt.AttributeSchema = append(nt.AttributeSchema, AttributeSpec{
				Name:       ad.Name,
				Label:      ad.Label,
				Kind:       kind,
				EnumValues: ad.Values,
				Default:    ad.Default,
			})
		}

		c.types[td.Tag] = nt
		c.order = append(c.order, td.Tag)
		if !seenCategory[nt.Category] {
			seenCategory[nt.Category] = true
			c.categories = append(c.categories, nt.Category)
		}
	}

	for _, tag := range c.order {
		t := c.types[tag]
		for _, ref := range slices.Concat(t.AllowedParents, t.AllowedChildren) {
			if _, ok := c.types[ref]; !ok {
				return nil, fmt.Errorf("type %s: references undeclared tag %s", tag, ref)
			}
		}
	}

	return c, nil
}

// orderedPairs reads a YAML mapping keeping its key order.
func orderedPairs(n *yaml.Node) (domain.Attributes, error) {
	var out domain.Attributes
	if n.Kind == 0 {
		return out, nil
	}
	if n.Kind != yaml.MappingNode {
		return out, fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return out, fmt.Errorf("line %d: value of %s must be a scalar", v.Line, k.Value)
		}
		out.Set(k.Value, v.Value)
	}
	return out, nil
}
