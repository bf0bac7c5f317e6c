package templates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/mjtree/internal/logging"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/markup"
	"github.com/aretw0/mjtree/pkg/ports"
)

// SeedOption configures Seed.
type SeedOption func(*seedOptions)

type seedOptions struct {
	logger *slog.Logger
	parser *markup.Parser
}

// WithLogger sets the logger for Seed.
func WithLogger(l *slog.Logger) SeedOption {
	return func(o *seedOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithParser sets the parser used to build the cached tree.
func WithParser(p *markup.Parser) SeedOption {
	return func(o *seedOptions) {
		o.parser = p
	}
}

// Build turns a premade template into a storable one, with its body parsed
// into the visual tree.
func Build(p Premade, parser *markup.Parser) (*domain.Template, error) {
	if parser == nil {
		parser = markup.NewParser()
	}
	forest, err := parser.ParseDocumentBody(p.Markup)
	if err != nil {
		return nil, fmt.Errorf("premade template %q: %w", p.Name, err)
	}
	return &domain.Template{
		Name:   p.Name,
		Markup: p.Markup,
		Tree:   forest,
		Mode:   domain.ModeVisual,
	}, nil
}

// Seed saves every premade template that the store does not have yet.
// Existing templates are left untouched. It returns the names it installed.
func Seed(ctx context.Context, store ports.TemplateStore, opts ...SeedOption) ([]string, error) {
	o := seedOptions{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	var installed []string
	var errs []error
	for _, p := range All() {
		_, err := store.Get(ctx, p.Name)
		if err == nil {
			o.logger.Debug("template already present", "name", p.Name)
			continue
		}
		if !errors.Is(err, domain.ErrTemplateNotFound) {
			o.logger.Warn("failed to check template", "name", p.Name, "error", err)
			errs = append(errs, err)
			continue
		}

		tpl, err := Build(p, o.parser)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := store.Save(ctx, tpl); err != nil {
			o.logger.Warn("failed to save template", "name", p.Name, "error", err)
			errs = append(errs, fmt.Errorf("failed to save %q: %w", p.Name, err))
			continue
		}
		o.logger.Info("template installed", "name", p.Name)
		installed = append(installed, p.Name)
	}
	return installed, errors.Join(errs...)
}
