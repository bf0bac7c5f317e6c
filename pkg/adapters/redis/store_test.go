package redis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/mjtree/pkg/adapters/redis"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := setup(t)

	// Run contract
	store := redis.NewFromClient(client)
	ports.RunTemplateStoreContract(t, store)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := setup(t)

	// Custom Prefix
	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	_, err := store.Save(ctx, &domain.Template{Name: "welcome", Markup: "<mjml />"})
	assert.NoError(t, err)

	// Verify keys in Redis directly
	assert.True(t, mr.Exists("custom:app:t:welcome"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")
	assert.False(t, mr.Exists("custom:app:lock:welcome"), "Expected lock to be released")

	list, err := store.List(ctx)
	assert.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "welcome", list[0].Name)
}

func TestRedisStore_PrunesStaleIndex(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	_, err := store.Save(ctx, &domain.Template{Name: "a", Markup: "<mjml />"})
	require.NoError(t, err)
	_, err = store.Save(ctx, &domain.Template{Name: "b", Markup: "<mjml />"})
	require.NoError(t, err)

	// Key removed behind the store's back.
	mr.Del("mjtree:template:t:a")

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].Name)

	members, err := mr.ZMembers("mjtree:template:index")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)
}

func TestLocker_Exclusive(t *testing.T) {
	_, client := setup(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)

	// A second holder waits until the first releases.
	short, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(short, "k", time.Minute)
	assert.ErrorIs(t, err, redis.ErrLockAcquire)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))

	unlock2, err := locker.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestLocker_SerializesSaves(t *testing.T) {
	_, client := setup(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	first, err := store.Save(ctx, &domain.Template{Name: "shared", Markup: "<mjml />"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Save(ctx, &domain.Template{Name: "shared", Markup: "<mjml><mj-body /></mjml>"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "shared")
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(first.CreatedAt))
}
