package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/mjtree"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/ports"
)

// Watcher is the part of the engine RunWatch needs.
type Watcher interface {
	WatchTemplates(ctx context.Context) (<-chan ports.TemplateEvent, error)
	GetTemplate(ctx context.Context, name string) (*domain.Template, error)
}

// RunWatch prints one line per template change until ctx is cancelled.
// Saved templates are re-read so their mode can be shown.
func RunWatch(ctx context.Context, w Watcher, out io.Writer, logger *slog.Logger) error {
	events, err := w.WatchTemplates(ctx)
	if err != nil {
		if errors.Is(err, mjtree.ErrWatchUnsupported) {
			return fmt.Errorf("%w: use a file store", err)
		}
		return err
	}

	logger.Info("Watching templates")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			fmt.Fprintln(out, describeEvent(ctx, w, ev, logger))
		}
	}
}

func describeEvent(ctx context.Context, w Watcher, ev ports.TemplateEvent, logger *slog.Logger) string {
	stamp := time.Now().Format(time.TimeOnly)
	if ev.Op != ports.TemplateSaved {
		return fmt.Sprintf("%s %-7s %s", stamp, ev.Op, ev.Name)
	}
	t, err := w.GetTemplate(ctx, ev.Name)
	if err != nil {
		// The file may be mid-write; report the event without details.
		logger.Debug("Template not readable yet", "name", ev.Name, "err", err)
		return fmt.Sprintf("%s %-7s %s", stamp, ev.Op, ev.Name)
	}
	return fmt.Sprintf("%s %-7s %s (%s)", stamp, ev.Op, ev.Name, t.Mode)
}
