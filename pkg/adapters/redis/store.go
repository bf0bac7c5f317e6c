package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "mjtree:template:"

// Store implements ports.TemplateStore using Redis.
// Each template is a JSON string key; a sorted set indexes names by edit time.
type Store struct {
	client  *backend.Client
	prefix  string
	locker  ports.DistributedLocker
	lockTTL time.Duration
	now     func() time.Time
}

type Option func(*Store)

// WithPrefix sets the key prefix for templates.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithLocker replaces the Redis locker guarding Save.
func WithLocker(l ports.DistributedLocker) Option {
	return func(s *Store) {
		s.locker = l
	}
}

// WithLockTTL sets how long a Save may hold its lock. Defaults to 5s.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.lockTTL = ttl
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client:  client,
		prefix:  defaultPrefix,
		lockTTL: 5 * time.Second,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(store)
	}
	if store.locker == nil {
		store.locker = NewLocker(client, store.prefix)
	}

	return store
}

func (s *Store) key(name string) string {
	return s.prefix + "t:" + name
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save stamps and persists the template. The read of the previous version and
// the write are guarded by a per-name lock, so replicas never lose CreatedAt.
func (s *Store) Save(ctx context.Context, tpl *domain.Template) (*domain.Template, error) {
	if tpl == nil || tpl.Name == "" {
		return nil, errors.New("template name cannot be empty")
	}

	unlock, err := s.locker.Lock(ctx, tpl.Name, s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = unlock(context.WithoutCancel(ctx)) }()

	previous, err := s.Get(ctx, tpl.Name)
	if err != nil && !errors.Is(err, domain.ErrTemplateNotFound) {
		return nil, err
	}
	stored := tpl.Clone()
	stored.Stamp(previous, s.now())

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template: %w", err)
	}

	pipe := s.client.TxPipeline()

	// 1. Save JSON
	pipe.Set(ctx, s.key(stored.Name), data, 0)

	// 2. Index by edit time (ZSET)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(stored.LastEditedAt.UnixNano()),
		Member: stored.Name,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to save to redis: %w", err)
	}

	return stored, nil
}

// Get retrieves the template from Redis.
func (s *Store) Get(ctx context.Context, name string) (*domain.Template, error) {
	val, err := s.client.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return decode(name, val)
}

func decode(name string, data []byte) (*domain.Template, error) {
	var tpl domain.Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template %q: %w", name, err)
	}
	return &tpl, nil
}

// Delete removes the template and its index entry.
func (s *Store) Delete(ctx context.Context, name string) error {
	pipe := s.client.TxPipeline()

	pipe.Del(ctx, s.key(name))
	pipe.ZRem(ctx, s.indexKey(), name)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns every indexed template, most recently edited first.
// Index entries whose key has vanished are pruned lazily.
func (s *Store) List(ctx context.Context) ([]*domain.Template, error) {
	names, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	if len(names) == 0 {
		return []*domain.Template{}, nil
	}

	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = s.key(n)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	list := make([]*domain.Template, 0, len(names))
	var stale []any
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, names[i])
			continue
		}
		tpl, err := decode(names[i], []byte(raw))
		if err != nil {
			return nil, err
		}
		list = append(list, tpl)
	}

	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune stale index entries: %w", err)
		}
	}

	domain.SortByRecent(list)
	return list, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
