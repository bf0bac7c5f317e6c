package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/mjtree/internal/logging"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/ports"
	"github.com/fsnotify/fsnotify"
)

const ext = ".json"

// Store implements ports.TemplateStore using the local filesystem.
// It stores each template as a JSON file in a configured directory. File names
// are the path-escaped template names.
type Store struct {
	BasePath string

	mu     sync.Mutex
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom structured logger for watch errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".mjtree/templates".
func New(basePath string, opts ...Option) *Store {
	if basePath == "" {
		basePath = filepath.Join(".mjtree", "templates")
	}
	s := &Store{
		BasePath: basePath,
		now:      time.Now,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) path(name string) string {
	return filepath.Join(s.BasePath, url.PathEscape(name)+ext)
}

func nameOf(path string) (string, bool) {
	base := filepath.Base(path)
	if filepath.Ext(base) != ext || strings.HasPrefix(base, ".") {
		return "", false
	}
	name, err := url.PathUnescape(strings.TrimSuffix(base, ext))
	if err != nil {
		return "", false
	}
	return name, true
}

// Save persists the template to a JSON file atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Save(ctx context.Context, tpl *domain.Template) (*domain.Template, error) {
	if tpl == nil || tpl.Name == "" {
		return nil, errors.New("template name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure directory exists
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure template directory: %w", err)
	}

	previous, err := s.read(tpl.Name)
	if err != nil && !errors.Is(err, domain.ErrTemplateNotFound) {
		return nil, err
	}
	stored := tpl.Clone()
	stored.Stamp(previous, s.now())

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template: %w", err)
	}

	// 1. Create Temp File in the same directory so the rename stays on one filesystem.
	// The leading dot keeps it out of List and Watch.
	tmpFile, err := os.CreateTemp(s.BasePath, ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	// 2. Write Data
	if _, err := tmpFile.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write to temp file: %w", err)
	}

	// 3. Fsync to ensure durability
	if err := tmpFile.Sync(); err != nil {
		return nil, fmt.Errorf("failed to fsync temp file: %w", err)
	}

	// 4. Close File (cannot rename open file on Windows)
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	// 5. Atomic Rename
	// On Windows, os.Rename fails if dest exists. We must remove it first.
	destPath := s.path(stored.Name)
	if _, err := os.Stat(destPath); err == nil && runtime.GOOS == "windows" {
		if err := os.Remove(destPath); err != nil {
			return nil, fmt.Errorf("failed to remove existing template file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return nil, fmt.Errorf("failed to rename temp file to template: %w", err)
	}

	return stored, nil
}

// Get retrieves the template from its JSON file.
func (s *Store) Get(ctx context.Context, name string) (*domain.Template, error) {
	if name == "" {
		return nil, domain.ErrTemplateNotFound
	}
	return s.read(name)
}

func (s *Store) read(name string) (*domain.Template, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}

	var tpl domain.Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template %q: %w", name, err)
	}
	return &tpl, nil
}

// Delete removes the template file.
func (s *Store) Delete(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("template name cannot be empty")
	}

	err := os.Remove(s.path(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete template file: %w", err)
	}
	return nil
}

// List reads every template file, most recently edited first.
func (s *Store) List(ctx context.Context) ([]*domain.Template, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*domain.Template{}, nil
		}
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	list := make([]*domain.Template, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, ok := nameOf(entry.Name())
		if !ok {
			continue
		}
		tpl, err := s.read(name)
		if errors.Is(err, domain.ErrTemplateNotFound) {
			continue // removed while listing
		}
		if err != nil {
			return nil, err
		}
		list = append(list, tpl)
	}

	domain.SortByRecent(list)
	return list, nil
}

// Watch reports template files created, rewritten or removed in BasePath,
// including edits made outside the process. The directory is created if needed.
func (s *Store) Watch(ctx context.Context) (<-chan ports.TemplateEvent, error) {
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure template directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(s.BasePath); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", s.BasePath, err)
	}

	events := make(chan ports.TemplateEvent, 16)
	go func() {
		defer close(events)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				name, ok := nameOf(ev.Name)
				if !ok {
					continue
				}
				op := ports.TemplateSaved
				if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					op = ports.TemplateDeleted
				}
				select {
				case events <- ports.TemplateEvent{Name: name, Op: op}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("template watcher error", "err", err)
			}
		}
	}()

	return events, nil
}
