package markup

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/mjtree/pkg/domain"
)

const (
	// RootTag is the tag of a complete document.
	RootTag = "mjml"
	// BodyTag holds the editable content of a document.
	BodyTag = "mj-body"

	structuralMarker = "<mj-"

	// xmlNamespace is what the decoder reports for the reserved xml prefix.
	xmlNamespace = "http://www.w3.org/XML/1998/namespace"
)

// Parser turns markup text into component trees. The catalog is authoritative:
// an unknown tag fails the whole parse.
type Parser struct {
	opts options
}

// NewParser creates a Parser.
func NewParser(opts ...Option) *Parser {
	return &Parser{opts: newOptions(opts)}
}

// ToTree parses a single-rooted document.
func (p *Parser) ToTree(text string) (*domain.Node, error) {
	f, err := p.parse(text)
	if err != nil {
		return nil, err
	}
	switch len(f) {
	case 0:
		return nil, &domain.ParseError{Reason: "document has no root element"}
	case 1:
		return f[0], nil
	default:
		return nil, &domain.ParseError{Reason: fmt.Sprintf("document has %d root elements, want 1", len(f))}
	}
}

// ParseDocumentBody parses text and returns its editable forest: the children of
// the first mj-body for a complete document, or a one-node forest for any other
// root element. A document without a body yields an empty forest.
func (p *Parser) ParseDocumentBody(text string) (domain.Forest, error) {
	root, err := p.ToTree(text)
	if err != nil {
		return nil, err
	}
	if root.Type != RootTag {
		return domain.Forest{root}, nil
	}
	for _, c := range root.Children {
		if c.Type == BodyTag {
			return domain.Forest(c.Children), nil
		}
	}
	return domain.Forest{}, nil
}

// ParseFragment parses a sequence of sibling elements, such as pasted markup or
// the output of Serializer.ToMarkup for a multi-node forest.
func (p *Parser) ParseFragment(text string) (domain.Forest, error) {
	return p.parse(text)
}

func (p *Parser) parse(text string) (domain.Forest, error) {
	src := []byte(text)
	d := newDecoder(src)
	ns := &prefixes{}

	forest := domain.Forest{}
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return forest, nil
		}
		if err != nil {
			return nil, syntaxError(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n, err := p.element(d, src, t, ns)
			if err != nil {
				return nil, err
			}
			forest = append(forest, n)
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				line, _ := d.InputPos()
				return nil, &domain.ParseError{Line: line, Reason: "text outside of any element"}
			}
		}
	}
}

func (p *Parser) element(d *xml.Decoder, src []byte, start xml.StartElement, ns *prefixes) (*domain.Node, error) {
	line, _ := d.InputPos()
	ns.push(start.Attr)
	defer ns.pop()

	tag := strings.ToLower(ns.qualified(start.Name))
	if !p.opts.catalog.Has(tag) {
		return nil, &domain.ParseError{
			Line:   line,
			Reason: fmt.Sprintf("unknown tag <%s>", tag),
			Err:    domain.ErrUnknownNodeType,
		}
	}

	n := &domain.Node{
		ID:       p.opts.ids.NewID(),
		Type:     tag,
		Children: []*domain.Node{},
	}
	for _, a := range start.Attr {
		n.Attributes.Set(ns.qualified(a.Name), a.Value)
	}

	if p.opts.catalog.IsOpaque(tag) {
		inner, err := rawInner(d, src)
		if err != nil {
			return nil, syntaxError(err)
		}
		n.Content = p.opaqueContent(tag, inner, line)
		return n, nil
	}

	var text []string
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, syntaxError(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := p.element(d, src, t, ns)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		case xml.CharData:
			if s := string(t); strings.TrimSpace(s) != "" {
				text = append(text, s)
			}
		case xml.EndElement:
			n.Content = strings.TrimSpace(strings.Join(text, ""))
			return n, nil
		}
	}
}

func (p *Parser) opaqueContent(tag, inner string, line int) string {
	inner = strings.TrimSpace(inner)
	if strings.HasPrefix(inner, structuralMarker) && !p.opts.keepOpaqueTag {
		p.opts.logger.Warn("opaque content dropped: starts with a structural tag",
			"tag", tag, "line", line)
		return ""
	}
	return inner
}

// rawInner consumes tokens up to the end of the current element and returns the
// source bytes between its start and end tags.
func rawInner(d *xml.Decoder, src []byte) (string, error) {
	begin := d.InputOffset()
	depth := 0
	for {
		end := d.InputOffset()
		tok, err := d.Token()
		if err != nil {
			return "", err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return string(src[begin:end]), nil
			}
			depth--
		}
	}
}

func newDecoder(src []byte) *xml.Decoder {
	d := xml.NewDecoder(bytes.NewReader(src))
	d.Strict = true
	d.Entity = xml.HTMLEntity
	return d
}

// prefixes tracks the xmlns declarations in scope. The decoder replaces
// declared prefixes with their namespace URI; qualified turns them back into the
// names written in the source.
type prefixes struct {
	frames []map[string]string // namespace URI -> prefix
}

func (ns *prefixes) push(attrs []xml.Attr) {
	var frame map[string]string
	for _, a := range attrs {
		var prefix string
		switch {
		case a.Name.Space == "xmlns":
			prefix = a.Name.Local
		case a.Name.Space == "" && a.Name.Local == "xmlns":
		default:
			continue
		}
		if frame == nil {
			frame = make(map[string]string)
		}
		frame[a.Value] = prefix
	}
	ns.frames = append(ns.frames, frame)
}

func (ns *prefixes) pop() {
	ns.frames = ns.frames[:len(ns.frames)-1]
}

func (ns *prefixes) qualified(name xml.Name) string {
	switch name.Space {
	case "":
		return name.Local
	case "xmlns", "xml":
		return name.Space + ":" + name.Local
	case xmlNamespace:
		return "xml:" + name.Local
	}
	for i := len(ns.frames) - 1; i >= 0; i-- {
		if prefix, ok := ns.frames[i][name.Space]; ok {
			if prefix == "" {
				return name.Local
			}
			return prefix + ":" + name.Local
		}
	}
	// Undeclared prefixes are passed through by the decoder.
	return name.Space + ":" + name.Local
}

func syntaxError(err error) error {
	var se *xml.SyntaxError
	if errors.As(err, &se) {
		return &domain.ParseError{Line: se.Line, Reason: se.Msg, Err: err}
	}
	if errors.Is(err, io.EOF) {
		return &domain.ParseError{Reason: "unexpected end of input", Err: err}
	}
	return &domain.ParseError{Reason: err.Error(), Err: err}
}
