package render

import (
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
)

// PostProcessor transforms rendered HTML before it is handed to the caller.
type PostProcessor func(html string) (string, error)

// Minifier returns a PostProcessor that minifies HTML and inline CSS.
// Document tags, end tags and quotes are kept so mail clients see a complete page.
func Minifier() PostProcessor {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})

	return func(s string) (string, error) {
		out, err := m.String("text/html", s)
		if err != nil {
			return "", fmt.Errorf("failed to minify html: %w", err)
		}
		return out, nil
	}
}

// Sanitizer returns a PostProcessor that strips scripts and event handlers while
// keeping the table layout, inline styles and <style> blocks email markup relies on.
// The output is a fragment meant for embedding in a host page, not a standalone document.
func Sanitizer() PostProcessor {
	return SanitizerWithPolicy(EmailPolicy())
}

// SanitizerWithPolicy wraps a custom bluemonday policy.
func SanitizerWithPolicy(p *bluemonday.Policy) PostProcessor {
	return func(s string) (string, error) {
		return p.Sanitize(s), nil
	}
}

// EmailPolicy is a UGC policy widened with the presentational attributes
// rendered email HTML uses.
func EmailPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("style", "class", "align", "valign", "width", "height",
		"bgcolor", "border", "cellpadding", "cellspacing", "role").Globally()
	// <style> bodies are only written verbatim when unsafe output is allowed.
	p.AllowUnsafe(true)
	p.AllowElements("style", "center", "font")
	p.AllowAttrs("type").OnElements("style")
	return p
}

// Chain applies processors in order, stopping at the first error.
func Chain(processors ...PostProcessor) PostProcessor {
	return func(s string) (string, error) {
		var err error
		for _, p := range processors {
			if s, err = p(s); err != nil {
				return "", err
			}
		}
		return s, nil
	}
}
