package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/aretw0/traverse/pkg/adapters/redis"
	"github.com/aretw0/traverse/pkg/domain"
	"github.com/aretw0/traverse/pkg/ports"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	return mr, backend.NewClient(&backend.Options{Addr: mr.Addr()})
}

func testSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		Entries: []domain.EntryRecord{
			{ID: "e1", Key: "k1", URL: "/a", State: map[string]any{"foo": "bar"}},
		},
		CurrentIndex: 0,
	}
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newTestClient(t)
	store := redis.NewFromClient(client)
	ports.RunSnapshotStoreContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newTestClient(t)

	// Create store with 1s TTL
	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	id := "snapshot-ttl"

	err := store.Save(ctx, id, testSnapshot())
	assert.NoError(t, err)

	ids, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, ids, id)

	// Fast forward time in miniredis (for key expiration)
	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	// Lazy index cleanup relies on time.Now() for the score cutoff, so we
	// have to actually outlive the TTL.
	time.Sleep(1200 * time.Millisecond)

	ids, err = store.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newTestClient(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:"))
	ctx := context.Background()

	assert.NoError(t, store.Save(ctx, "abc", testSnapshot()))
	assert.True(t, mr.Exists("custom:abc"), "key must carry the configured prefix")
}
