package localstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Filichkin/OnlineShop-sub000/internal/domain"
)

func setupTestDB(t *testing.T) (*mongo.Database, func()) {
	ctx := context.Background()

	// Start MongoDB container
	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	// Get connection string
	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	// Connect to MongoDB
	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	cleanup := func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return db, cleanup
}

func TestMongoCartStore_SaveLoadRoundtrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMongoCartStore(db, "session-1")
	require.NoError(t, store.CreateIndexes(ctx))

	items := []domain.CartItem{
		{ProductID: 1, Quantity: 3, UnitPrice: 15},
		{ProductID: 2, Quantity: 1, UnitPrice: 99.99},
	}
	store.Save(ctx, items)

	assert.Equal(t, items, store.Load(ctx))
}

func TestMongoCartStore_MissingDocumentLoadsEmpty(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMongoCartStore(db, "nonexistent")
	assert.Empty(t, store.Load(context.Background()))
}

func TestMongoCartStore_SaveOverwritesDocument(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMongoCartStore(db, "session-1")

	store.Save(ctx, []domain.CartItem{
		{ProductID: 1, Quantity: 1, UnitPrice: 10},
		{ProductID: 2, Quantity: 2, UnitPrice: 20},
	})
	store.Save(ctx, []domain.CartItem{
		{ProductID: 3, Quantity: 5, UnitPrice: 30},
	})

	loaded := store.Load(ctx)
	require.Len(t, loaded, 1)
	assert.Equal(t, int64(3), loaded[0].ProductID)
}

func TestMongoCartStore_SessionsAreIsolated(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	first := NewMongoCartStore(db, "session-1")
	second := NewMongoCartStore(db, "session-2")

	first.Save(ctx, []domain.CartItem{{ProductID: 1, Quantity: 1, UnitPrice: 5}})
	second.Save(ctx, []domain.CartItem{{ProductID: 2, Quantity: 2, UnitPrice: 6}})

	firstItems := first.Load(ctx)
	require.Len(t, firstItems, 1)
	assert.Equal(t, int64(1), firstItems[0].ProductID)

	secondItems := second.Load(ctx)
	require.Len(t, secondItems, 1)
	assert.Equal(t, int64(2), secondItems[0].ProductID)
}

func TestMongoCartStore_ClearDeletesDocument(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMongoCartStore(db, "session-1")

	store.Save(ctx, []domain.CartItem{{ProductID: 1, Quantity: 1, UnitPrice: 5}})
	store.Clear(ctx)

	assert.Empty(t, store.Load(ctx))

	// Clearing an already-missing document is fine.
	store.Clear(ctx)
}

func TestMongoFavoritesStore_SaveLoadRoundtrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMongoFavoritesStore(db, "session-1")
	require.NoError(t, store.CreateIndexes(ctx))

	items := []domain.FavoriteItem{
		{ProductID: 7, Product: domain.ProductSnapshot{Name: "oil filter", Price: 12.3, PartNumber: "OF-7"}},
		{ProductID: 8, Product: domain.ProductSnapshot{Name: "air filter", Price: 9.9, MainImage: "img/8.jpg"}},
	}
	store.Save(ctx, items)

	assert.Equal(t, items, store.Load(ctx))
}

func TestMongoFavoritesStore_ClearDeletesDocument(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMongoFavoritesStore(db, "session-1")

	store.Save(ctx, []domain.FavoriteItem{{ProductID: 7, Product: domain.ProductSnapshot{Name: "x"}}})
	store.Clear(ctx)

	assert.Empty(t, store.Load(ctx))
}
