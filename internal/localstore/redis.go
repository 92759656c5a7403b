package localstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Filichkin/OnlineShop-sub000/internal/domain"
)

// SnapshotTTL matches the guest session lifetime of the storefront API:
// a guest snapshot untouched for 30 days expires together with its session.
const SnapshotTTL = 30 * 24 * time.Hour

// RedisCartStore keeps guest cart snapshots in Redis keyed by session ID.
// Used by hosted gateway deployments where many guest sessions share one
// process.
type RedisCartStore struct {
	client    *redis.Client
	sessionID string
}

func NewRedisCartStore(client *redis.Client, sessionID string) *RedisCartStore {
	return &RedisCartStore{client: client, sessionID: sessionID}
}

func (s *RedisCartStore) Load(ctx context.Context) []domain.CartItem {
	data, ok := redisGet(ctx, s.client, cartKey(s.sessionID))
	if !ok {
		return nil
	}
	return decodeCartDocument(data)
}

func (s *RedisCartStore) Save(ctx context.Context, items []domain.CartItem) {
	data, err := encodeCartDocument(items)
	if err != nil {
		log.Printf("encode cart snapshot failed: %v", err)
		return
	}
	redisSet(ctx, s.client, cartKey(s.sessionID), data)
}

func (s *RedisCartStore) Clear(ctx context.Context) {
	redisDel(ctx, s.client, cartKey(s.sessionID))
}

// RedisFavoritesStore keeps guest favorites snapshots in Redis keyed by
// session ID.
type RedisFavoritesStore struct {
	client    *redis.Client
	sessionID string
}

func NewRedisFavoritesStore(client *redis.Client, sessionID string) *RedisFavoritesStore {
	return &RedisFavoritesStore{client: client, sessionID: sessionID}
}

func (s *RedisFavoritesStore) Load(ctx context.Context) []domain.FavoriteItem {
	data, ok := redisGet(ctx, s.client, favoritesKey(s.sessionID))
	if !ok {
		return nil
	}
	return decodeFavoritesDocument(data)
}

func (s *RedisFavoritesStore) Save(ctx context.Context, items []domain.FavoriteItem) {
	data, err := encodeFavoritesDocument(items)
	if err != nil {
		log.Printf("encode favorites snapshot failed: %v", err)
		return
	}
	redisSet(ctx, s.client, favoritesKey(s.sessionID), data)
}

func (s *RedisFavoritesStore) Clear(ctx context.Context) {
	redisDel(ctx, s.client, favoritesKey(s.sessionID))
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("snapshot:cart:%s", sessionID)
}

func favoritesKey(sessionID string) string {
	return fmt.Sprintf("snapshot:favorites:%s", sessionID)
}

func redisGet(ctx context.Context, client *redis.Client, key string) ([]byte, bool) {
	data, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		log.Printf("redis get %s failed, treating as empty: %v", key, err)
		return nil, false
	}
	return data, true
}

func redisSet(ctx context.Context, client *redis.Client, key string, data []byte) {
	if err := client.Set(ctx, key, data, SnapshotTTL).Err(); err != nil {
		log.Printf("redis set %s failed: %v", key, err)
	}
}

func redisDel(ctx context.Context, client *redis.Client, key string) {
	if err := client.Del(ctx, key).Err(); err != nil {
		log.Printf("redis del %s failed: %v", key, err)
	}
}
