package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/mjtree/pkg/catalog"
	"github.com/aretw0/mjtree/pkg/domain"
)

// previewLen bounds the content excerpt shown in a node label.
const previewLen = 24

// Overlay contains editor state to visualize on the graph.
type Overlay struct {
	Selected string
	// Invalid holds ids of nodes with containment violations.
	Invalid []string
}

// GenerateMermaid produces a Mermaid flowchart of the forest, one box per node
// and one edge per parent/child link. Shapes follow the catalog category:
//   - layout: [Rectangle]
//   - content and formatting: ([Stadium])
//   - opaque types: [[Subroutine]]
//   - unknown tags: {{Hexagon}}
//   - anything else: [/Parallelogram/]
//
// Overlay styles (selected, invalid) are applied if provided.
func GenerateMermaid(f domain.Forest, cat *catalog.Catalog, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	f.Walk(func(n, parent *domain.Node, _ int) bool {
		safeID := sanitizeMermaidID(n.ID)
		opener, closer := shape(cat, n.Type)

		label := n.Type
		if preview := excerpt(n.Content); preview != "" {
			label = fmt.Sprintf("%s <br/> %s", n.Type, preview)
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))

		if parent != nil {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", sanitizeMermaidID(parent.ID), safeID))
		}
		return true
	})

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef invalid fill:#ffebee,stroke:#c62828,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef selected fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Invalid {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !seen[safeID] {
				seen[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s invalid;\n", safeID))
			}
		}
		if overlay.Selected != "" {
			sb.WriteString(fmt.Sprintf("    class %s selected;\n", sanitizeMermaidID(overlay.Selected)))
		}
	}

	return sb.String()
}

func shape(cat *catalog.Catalog, tag string) (string, string) {
	t, ok := cat.Lookup(tag)
	switch {
	case !ok:
		return "{{", "}}"
	case t.Opaque:
		return "[[", "]]"
	case t.Category == "layout":
		return "[", "]"
	case t.Category == "content" || t.Category == "formatting":
		return "([", "])"
	default:
		return "[/", "/]"
	}
}

// excerpt flattens content to one line and trims it for a label.
func excerpt(content string) string {
	s := strings.Join(strings.Fields(content), " ")
	s = strings.ReplaceAll(s, "\"", "'")
	if r := []rune(s); len(r) > previewLen {
		s = strings.TrimSpace(string(r[:previewLen])) + "…"
	}
	return s
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
