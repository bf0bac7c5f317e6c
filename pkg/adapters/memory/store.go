package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aretw0/mjtree/pkg/domain"
)

// Store implements ports.TemplateStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Template
	mu   sync.RWMutex
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for timestamp stamping.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		data: make(map[string]*domain.Template),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save stores a copy of tpl so later changes by the caller do not leak in.
func (s *Store) Save(ctx context.Context, tpl *domain.Template) (*domain.Template, error) {
	if tpl == nil || tpl.Name == "" {
		return nil, errors.New("template name cannot be empty")
	}
	stored := tpl.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	stored.Stamp(s.data[stored.Name], s.now())
	s.data[stored.Name] = stored
	return stored.Clone(), nil
}

// Get returns a copy on read so callers can't mutate store state by pointer.
func (s *Store) Get(ctx context.Context, name string) (*domain.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tpl, ok := s.data[name]
	if !ok {
		return nil, domain.ErrTemplateNotFound
	}
	return tpl.Clone(), nil
}

// Delete removes the template.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, name)
	return nil
}

// List returns copies of every template, most recently edited first.
func (s *Store) List(ctx context.Context) ([]*domain.Template, error) {
	s.mu.RLock()
	list := make([]*domain.Template, 0, len(s.data))
	for _, tpl := range s.data {
		list = append(list, tpl.Clone())
	}
	s.mu.RUnlock()

	domain.SortByRecent(list)
	return list, nil
}
