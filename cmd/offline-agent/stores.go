package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/offline-agent/internal/config"
	"github.com/Sternrassler/offline-agent/pkg/cache"
	"github.com/Sternrassler/offline-agent/pkg/client"
	"github.com/Sternrassler/offline-agent/pkg/pending"
)

// openCache returns the Redis store when a URL is configured and an
// in-memory store otherwise. The returned func releases the connection.
func openCache(ctx context.Context, cfg config.Config) (cache.Store, func(), error) {
	if cfg.RedisURL == "" {
		return cache.NewMemoryStore(), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(opts)

	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	return cache.NewRedisStore(redisClient), func() { _ = redisClient.Close() }, nil
}

// openPending opens the SQLite pending store, applying migrations.
func openPending(ctx context.Context, cfg config.Config) (*pending.SQLiteStore, error) {
	store := pending.NewSQLiteStore(cfg.PendingDB)
	if err := store.Open(ctx); err != nil {
		return nil, fmt.Errorf("open pending store: %w", err)
	}
	return store, nil
}

// newUploader builds the upload client for cfg.
func newUploader(cfg config.Config) (*client.Client, error) {
	if cfg.UploadEndpoint == "" {
		return nil, client.ErrNoUploadEndpoint
	}
	return client.New(cfg.Upload())
}
