package templates

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed library/*.mjml
var library embed.FS

// Premade is a starter document shipped with the library.
type Premade struct {
	Name   string
	Slug   string
	Markup string
}

// The order here is the order shown to users.
var index = []struct{ name, slug string }{
	{"Simple Welcome", "simple-welcome"},
	{"Product Promo", "product-promo"},
	{"Event Invitation", "event-invitation"},
	{"Newsletter Layout", "newsletter-layout"},
}

// All returns the premade templates in display order.
func All() []Premade {
	out := make([]Premade, 0, len(index))
	for _, e := range index {
		data, err := library.ReadFile("library/" + e.slug + ".mjml")
		if err != nil {
			panic(fmt.Sprintf("templates: missing embedded %s: %v", e.slug, err))
		}
		out = append(out, Premade{
			Name:   e.name,
			Slug:   e.slug,
			Markup: strings.TrimRight(string(data), "\n"),
		})
	}
	return out
}

// Lookup finds a premade template by name or slug, ignoring case.
func Lookup(nameOrSlug string) (Premade, bool) {
	for _, p := range All() {
		if strings.EqualFold(p.Name, nameOrSlug) || strings.EqualFold(p.Slug, nameOrSlug) {
			return p, true
		}
	}
	return Premade{}, false
}
