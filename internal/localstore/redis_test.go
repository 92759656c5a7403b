package localstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Filichkin/OnlineShop-sub000/internal/domain"
)

// setupTestRedis creates a miniredis server and returns a client pointing
// at it.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis, func()) {
	// Create an in-memory Redis server
	mr := miniredis.RunT(t)

	// Create Redis client pointing to miniredis
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, mr, cleanup
}

func TestRedisCartStore_SaveLoadRoundtrip(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisCartStore(client, "session-1")
	ctx := context.Background()

	items := []domain.CartItem{
		{ProductID: 1, Quantity: 3, UnitPrice: 15},
		{ProductID: 2, Quantity: 1, UnitPrice: 99.99},
	}
	store.Save(ctx, items)

	assert.Equal(t, items, store.Load(ctx))
}

func TestRedisCartStore_MissingKeyLoadsEmpty(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisCartStore(client, "session-1")
	assert.Empty(t, store.Load(context.Background()))
}

func TestRedisCartStore_CorruptDocumentLoadsEmpty(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, mr.Set(cartKey("session-1"), "{broken"))

	store := NewRedisCartStore(client, "session-1")
	assert.Empty(t, store.Load(context.Background()))
}

func TestRedisCartStore_SaveSetsTTL(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisCartStore(client, "session-1")
	store.Save(context.Background(), []domain.CartItem{{ProductID: 1, Quantity: 1, UnitPrice: 5}})

	assert.Equal(t, SnapshotTTL, mr.TTL(cartKey("session-1")))
}

func TestRedisCartStore_SessionsAreIsolated(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	first := NewRedisCartStore(client, "session-1")
	second := NewRedisCartStore(client, "session-2")

	first.Save(ctx, []domain.CartItem{{ProductID: 1, Quantity: 1, UnitPrice: 5}})

	assert.Len(t, first.Load(ctx), 1)
	assert.Empty(t, second.Load(ctx))
}

func TestRedisCartStore_ClearDeletesKey(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisCartStore(client, "session-1")
	ctx := context.Background()

	store.Save(ctx, []domain.CartItem{{ProductID: 1, Quantity: 1, UnitPrice: 5}})
	store.Clear(ctx)

	assert.False(t, mr.Exists(cartKey("session-1")))
	assert.Empty(t, store.Load(ctx))
}

func TestRedisFavoritesStore_SaveLoadRoundtrip(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisFavoritesStore(client, "session-1")
	ctx := context.Background()

	items := []domain.FavoriteItem{
		{ProductID: 7, Product: domain.ProductSnapshot{Name: "oil filter", Price: 12.3, PartNumber: "OF-7"}},
	}
	store.Save(ctx, items)

	assert.Equal(t, items, store.Load(ctx))
}

func TestRedisFavoritesStore_ClearDeletesKey(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisFavoritesStore(client, "session-1")
	ctx := context.Background()

	store.Save(ctx, []domain.FavoriteItem{{ProductID: 7, Product: domain.ProductSnapshot{Name: "x"}}})
	store.Clear(ctx)

	assert.False(t, mr.Exists(favoritesKey("session-1")))
}
