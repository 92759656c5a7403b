package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Filichkin/OnlineShop-sub000/internal/auth"
	"github.com/Filichkin/OnlineShop-sub000/internal/engine"
	"github.com/Filichkin/OnlineShop-sub000/internal/events"
	"github.com/Filichkin/OnlineShop-sub000/internal/httpapi"
	"github.com/Filichkin/OnlineShop-sub000/internal/localstore"
	"github.com/Filichkin/OnlineShop-sub000/internal/remote"
)

type Config struct {
	HTTPPort        string
	APIBaseURL      string
	SnapshotBackend string
	SnapshotDir     string
	RedisAddr       string
	RedisPassword   string
	MongoURI        string
	MongoDBName     string
	KafkaBrokers    string
	SessionID       string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8090"),
		APIBaseURL:      getEnv("STOREFRONT_API_URL", "http://localhost:8000"),
		SnapshotBackend: getEnv("SNAPSHOT_BACKEND", "file"),
		SnapshotDir:     getEnv("SNAPSHOT_DIR", ".storefront"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:     getEnv("MONGO_DB_NAME", "storefront"),
		KafkaBrokers:    getEnv("KAFKA_BROKERS", ""),
		SessionID:       getEnv("SESSION_ID", ""),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	log.Printf("Guest session ID: %s", sessionID)

	cartStore, favoritesStore, closeStores := buildSnapshotStores(ctx, cfg, sessionID)
	defer closeStores()

	session := auth.NewSession()
	apiClient := remote.NewHTTPClient(cfg.APIBaseURL, session)

	cart := engine.NewCart(ctx, cartStore, apiClient, session)
	favorites := engine.NewFavorites(ctx, favoritesStore, apiClient, session)

	var publisher *events.Publisher
	if cfg.KafkaBrokers != "" {
		publisher = events.NewPublisher(sessionID, strings.Split(cfg.KafkaBrokers, ",")...)
		defer publisher.Close()
		log.Printf("Activity events enabled, brokers: %s", cfg.KafkaBrokers)
	}

	router := httpapi.NewRouter(session, cart, favorites, publisher, cfg.RequestTimeout)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Printf("Storefront gateway listening on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down storefront gateway...")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Storefront gateway stopped")
}

func buildSnapshotStores(ctx context.Context, cfg *Config, sessionID string) (localstore.CartStore, localstore.FavoritesStore, func()) {
	switch cfg.SnapshotBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		log.Printf("Snapshots in Redis at %s", cfg.RedisAddr)
		return localstore.NewRedisCartStore(client, sessionID),
			localstore.NewRedisFavoritesStore(client, sessionID),
			func() { client.Close() }

	case "mongo":
		db, err := localstore.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		cartStore := localstore.NewMongoCartStore(db, sessionID)
		favoritesStore := localstore.NewMongoFavoritesStore(db, sessionID)
		if err := cartStore.CreateIndexes(ctx); err != nil {
			log.Fatalf("Failed to create cart snapshot indexes: %v", err)
		}
		if err := favoritesStore.CreateIndexes(ctx); err != nil {
			log.Fatalf("Failed to create favorites snapshot indexes: %v", err)
		}
		log.Printf("Snapshots in MongoDB at %s", cfg.MongoURI)
		return cartStore, favoritesStore, func() { db.Client().Disconnect(ctx) }

	case "file":
		log.Printf("Snapshots in %s", cfg.SnapshotDir)
		return localstore.NewFileCartStore(cfg.SnapshotDir + "/cart.json"),
			localstore.NewFileFavoritesStore(cfg.SnapshotDir + "/favorites.json"),
			func() {}

	default:
		log.Fatalf("Unknown snapshot backend %q (want file, redis or mongo)", cfg.SnapshotBackend)
		return nil, nil, nil
	}
}
