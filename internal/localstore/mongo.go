package localstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Filichkin/OnlineShop-sub000/internal/domain"
)

// MongoCartStore keeps guest cart snapshots in MongoDB, one document per
// session. Snapshots expire via a TTL index after SnapshotTTL, matching the
// guest session lifetime.
type MongoCartStore struct {
	collection *mongo.Collection
	sessionID  string
}

func NewMongoCartStore(db *mongo.Database, sessionID string) *MongoCartStore {
	return &MongoCartStore{
		collection: db.Collection("cart_snapshots"),
		sessionID:  sessionID,
	}
}

func (s *MongoCartStore) Load(ctx context.Context) []domain.CartItem {
	raws, ok := mongoLoadItems(ctx, s.collection, s.sessionID)
	if !ok {
		return nil
	}

	items := make([]domain.CartItem, 0, len(raws))
	seen := make(map[int64]struct{}, len(raws))
	for _, raw := range raws {
		var item domain.CartItem
		if err := bson.Unmarshal(raw, &item); err != nil {
			log.Printf("dropping malformed cart snapshot item: %v", err)
			continue
		}
		if !item.Valid() {
			log.Printf("dropping invalid cart snapshot item: product_id=%d quantity=%d unit_price=%v",
				item.ProductID, item.Quantity, item.UnitPrice)
			continue
		}
		if _, dup := seen[item.ProductID]; dup {
			log.Printf("dropping duplicate cart snapshot item: product_id=%d", item.ProductID)
			continue
		}
		seen[item.ProductID] = struct{}{}
		items = append(items, item)
	}
	return items
}

func (s *MongoCartStore) Save(ctx context.Context, items []domain.CartItem) {
	if items == nil {
		items = []domain.CartItem{}
	}
	mongoSaveItems(ctx, s.collection, s.sessionID, items)
}

func (s *MongoCartStore) Clear(ctx context.Context) {
	mongoClearItems(ctx, s.collection, s.sessionID)
}

// CreateIndexes sets up the session lookup index and the TTL expiry index.
func (s *MongoCartStore) CreateIndexes(ctx context.Context) error {
	return createSnapshotIndexes(ctx, s.collection)
}

// MongoFavoritesStore keeps guest favorites snapshots in MongoDB, one
// document per session.
type MongoFavoritesStore struct {
	collection *mongo.Collection
	sessionID  string
}

func NewMongoFavoritesStore(db *mongo.Database, sessionID string) *MongoFavoritesStore {
	return &MongoFavoritesStore{
		collection: db.Collection("favorites_snapshots"),
		sessionID:  sessionID,
	}
}

func (s *MongoFavoritesStore) Load(ctx context.Context) []domain.FavoriteItem {
	raws, ok := mongoLoadItems(ctx, s.collection, s.sessionID)
	if !ok {
		return nil
	}

	items := make([]domain.FavoriteItem, 0, len(raws))
	seen := make(map[int64]struct{}, len(raws))
	for _, raw := range raws {
		var item domain.FavoriteItem
		if err := bson.Unmarshal(raw, &item); err != nil {
			log.Printf("dropping malformed favorites snapshot item: %v", err)
			continue
		}
		if !item.Valid() {
			log.Printf("dropping invalid favorites snapshot item: product_id=%d", item.ProductID)
			continue
		}
		if _, dup := seen[item.ProductID]; dup {
			log.Printf("dropping duplicate favorites snapshot item: product_id=%d", item.ProductID)
			continue
		}
		seen[item.ProductID] = struct{}{}
		items = append(items, item)
	}
	return items
}

func (s *MongoFavoritesStore) Save(ctx context.Context, items []domain.FavoriteItem) {
	if items == nil {
		items = []domain.FavoriteItem{}
	}
	mongoSaveItems(ctx, s.collection, s.sessionID, items)
}

func (s *MongoFavoritesStore) Clear(ctx context.Context) {
	mongoClearItems(ctx, s.collection, s.sessionID)
}

func (s *MongoFavoritesStore) CreateIndexes(ctx context.Context) error {
	return createSnapshotIndexes(ctx, s.collection)
}

func mongoLoadItems(ctx context.Context, collection *mongo.Collection, sessionID string) ([]bson.Raw, bool) {
	var doc struct {
		Items []bson.Raw `bson:"items"`
	}
	filter := bson.M{"session_id": sessionID}
	err := collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			log.Printf("mongo load snapshot failed, treating as empty: %v", err)
		}
		return nil, false
	}
	return doc.Items, true
}

func mongoSaveItems(ctx context.Context, collection *mongo.Collection, sessionID string, items interface{}) {
	filter := bson.M{"session_id": sessionID}
	update := bson.M{
		"$set": bson.M{
			"items":      items,
			"updated_at": time.Now(),
		},
		"$setOnInsert": bson.M{"session_id": sessionID},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := collection.UpdateOne(ctx, filter, update, opts); err != nil {
		log.Printf("mongo save snapshot failed: %v", err)
	}
}

func mongoClearItems(ctx context.Context, collection *mongo.Collection, sessionID string) {
	filter := bson.M{"session_id": sessionID}
	if _, err := collection.DeleteOne(ctx, filter); err != nil {
		log.Printf("mongo clear snapshot failed: %v", err)
	}
}

func createSnapshotIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(SnapshotTTL / time.Second)),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create snapshot indexes: %w", err)
	}
	return nil
}

// ConnectMongoDB opens a pooled connection and verifies it with a ping.
func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}
