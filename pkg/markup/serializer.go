package markup

import (
	"strings"

	"github.com/aretw0/mjtree/pkg/domain"
)

var (
	attrEscaper = strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `>`, "&gt;", `"`, "&quot;")
	textEscaper = strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `>`, "&gt;")
)

// Serializer turns forests into markup text. Output is deterministic: the same
// forest always yields byte-identical text.
type Serializer struct {
	opts options
}

// NewSerializer creates a Serializer.
func NewSerializer(opts ...Option) *Serializer {
	return &Serializer{opts: newOptions(opts)}
}

// ToMarkup serializes the forest starting at the given indentation level.
//
// Attributes keep insertion order and empty values are skipped. A node without
// children or non-blank content is self-closing. Single-line content of a childless
// node stays on the tag line; otherwise content and children go on their own lines
// one level deeper. Opaque content is written verbatim, other text is escaped.
func (s *Serializer) ToMarkup(f domain.Forest, indent int) string {
	var b strings.Builder
	for i, n := range f {
		if n == nil || n.Type == "" {
			continue
		}
		if i > 0 && b.Len() > 0 {
			b.WriteByte('\n')
		}
		s.writeNode(&b, n, indent)
	}
	return b.String()
}

// WrapAsDocument serializes f as a complete document. A forest that already starts
// with the root type is serialized as-is; anything else is wrapped in a synthesized
// root and body carrying the catalog defaults.
func (s *Serializer) WrapAsDocument(f domain.Forest) string {
	if len(f) > 0 && f[0] != nil && f[0].Type == RootTag {
		return s.ToMarkup(f, 0)
	}
	body := s.synthesize(BodyTag, f)
	root := s.synthesize(RootTag, domain.Forest{body})
	return s.ToMarkup(domain.Forest{root}, 0)
}

func (s *Serializer) synthesize(tag string, children domain.Forest) *domain.Node {
	n := &domain.Node{Type: tag, Children: children}
	if nt, ok := s.opts.catalog.Lookup(tag); ok {
		n.Attributes = nt.DefaultAttributes
	}
	return n
}

func (s *Serializer) writeNode(b *strings.Builder, n *domain.Node, level int) {
	prefix := strings.Repeat(s.opts.indent, level)

	b.WriteString(prefix)
	b.WriteByte('<')
	b.WriteString(n.Type)
	n.Attributes.Each(func(k, v string) {
		if v == "" {
			return
		}
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(attrEscaper.Replace(v))
		b.WriteByte('"')
	})

	hasChildren := n.HasChildren()
	hasContent := n.HasContent()

	if !hasChildren && !hasContent {
		b.WriteString(" />")
		return
	}
	b.WriteByte('>')

	content := s.content(n)
	if !hasChildren && !strings.Contains(content, "\n") {
		b.WriteString(content)
	} else {
		b.WriteByte('\n')
		if hasContent {
			b.WriteString(prefix)
			b.WriteString(s.opts.indent)
			b.WriteString(content)
			b.WriteByte('\n')
		}
		if hasChildren {
			b.WriteString(s.ToMarkup(n.Children, level+1))
			b.WriteByte('\n')
		}
		b.WriteString(prefix)
	}

	b.WriteString("</")
	b.WriteString(n.Type)
	b.WriteByte('>')
}

func (s *Serializer) content(n *domain.Node) string {
	c := strings.TrimSpace(n.Content)
	if s.opts.catalog.IsOpaque(n.Type) {
		return c
	}
	return textEscaper.Replace(c)
}
