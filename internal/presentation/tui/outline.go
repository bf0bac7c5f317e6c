package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/mjtree/pkg/catalog"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/muesli/termenv"
)

// Outline renders a forest as a box-drawing tree, one line per node.
type Outline struct {
	Profile termenv.Profile
	// Invalid marks node ids to highlight as violations.
	Invalid  map[string]bool
	Selected string
	ShowIDs  bool
}

// NewOutline returns an Outline using the color profile of the environment.
func NewOutline() Outline {
	return Outline{Profile: termenv.EnvColorProfile()}
}

// Render returns the outline text without a trailing newline.
func (o Outline) Render(f domain.Forest) string {
	var lines []string
	var walk func(nodes []*domain.Node, prefix string, top bool)
	walk = func(nodes []*domain.Node, prefix string, top bool) {
		for i, n := range nodes {
			if n == nil {
				continue
			}
			last := i == len(nodes)-1
			branch, next := "├─ ", "│  "
			if last {
				branch, next = "└─ ", "   "
			}
			if top {
				branch, next = "", ""
			}
			lines = append(lines, prefix+branch+o.line(n))
			walk(n.Children, prefix+next, false)
		}
	}
	walk(f, "", true)
	return strings.Join(lines, "\n")
}

func (o Outline) line(n *domain.Node) string {
	tag := o.Profile.String(n.Type).Foreground(o.Profile.Color("#38bdf8")).Bold()
	switch {
	case o.Invalid[n.ID]:
		tag = o.Profile.String(n.Type + " ✗").Foreground(o.Profile.Color("#ef4444")).Bold()
	case n.ID != "" && n.ID == o.Selected:
		tag = o.Profile.String("▸ " + n.Type).Foreground(o.Profile.Color("#facc15")).Bold()
	}

	parts := []string{tag.String()}
	if o.ShowIDs && n.ID != "" {
		parts = append(parts, o.Profile.String("#"+n.ID).Faint().String())
	}
	n.Attributes.Each(func(k, v string) {
		parts = append(parts, o.Profile.String(fmt.Sprintf("%s=%q", k, v)).Foreground(o.Profile.Color("#a78bfa")).String())
	})
	if preview := excerpt(n.Content, 40); preview != "" {
		parts = append(parts, o.Profile.String(preview).Faint().String())
	}
	return strings.Join(parts, " ")
}

func excerpt(content string, limit int) string {
	s := strings.Join(strings.Fields(content), " ")
	if r := []rune(s); len(r) > limit {
		s = strings.TrimSpace(string(r[:limit])) + "…"
	}
	return s
}

// CatalogMarkdown documents node types as markdown for NewRenderer.
func CatalogMarkdown(types []catalog.NodeType) string {
	var sb strings.Builder
	sb.WriteString("# Components\n\n")
	sb.WriteString("| Tag | Name | Category | Children |\n|---|---|---|---|\n")
	for _, t := range types {
		children := "leaf"
		if !t.IsLeaf() {
			children = strings.Join(t.AllowedChildren, ", ")
		}
		fmt.Fprintf(&sb, "| `%s` | %s %s | %s | %s |\n", t.Tag, t.Icon, t.DisplayName, t.Category, children)
	}
	return sb.String()
}

// NodeTypeMarkdown documents a single node type in detail.
func NodeTypeMarkdown(t catalog.NodeType) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s %s\n\n`<%s>`", t.Icon, t.DisplayName, t.Tag)
	if t.Description != "" {
		fmt.Fprintf(&sb, " %s", t.Description)
	}
	sb.WriteString("\n\n")

	parents := "anywhere"
	if len(t.AllowedParents) > 0 {
		parents = strings.Join(t.AllowedParents, ", ")
	}
	children := "none (leaf)"
	if !t.IsLeaf() {
		children = strings.Join(t.AllowedChildren, ", ")
	}
	fmt.Fprintf(&sb, "- **Parents:** %s\n- **Children:** %s\n", parents, children)
	if t.Opaque {
		sb.WriteString("- **Content:** inner markup is kept verbatim\n")
	}

	if len(t.AttributeSchema) > 0 {
		sb.WriteString("\n## Attributes\n\n| Name | Kind | Default |\n|---|---|---|\n")
		for _, a := range t.AttributeSchema {
			kind := string(a.Kind)
			if len(a.EnumValues) > 0 {
				kind += " (" + strings.Join(a.EnumValues, " / ") + ")"
			}
			fmt.Fprintf(&sb, "| `%s` | %s | %s |\n", a.Name, kind, a.Default)
		}
	}
	return sb.String()
}
