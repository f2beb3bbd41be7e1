package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis keys for generation storage.
const (
	// RedisKeyGenerations is the set of existing generation names.
	RedisKeyGenerations = "offline:cache:generations"

	// redisGenerationPrefix prefixes the hash holding one generation's entries.
	redisGenerationPrefix = "offline:cache:gen:"
)

// RedisStore keeps generations in Redis. Each generation is a hash of
// key string to JSON-encoded snapshot; generation names are tracked in a set.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a generation store with Redis backend.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
	}
}

// Open registers the generation name and returns a handle to it.
func (s *RedisStore) Open(ctx context.Context, name string) (Generation, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}

	if err := s.redis.SAdd(ctx, RedisKeyGenerations, name).Err(); err != nil {
		CacheErrors.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("redis sadd: %w", err)
	}

	return &redisGeneration{redis: s.redis, name: name}, nil
}

// Names lists the registered generation names.
func (s *RedisStore) Names(ctx context.Context) ([]string, error) {
	names, err := s.redis.SMembers(ctx, RedisKeyGenerations).Result()
	if err != nil {
		CacheErrors.WithLabelValues("names").Inc()
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Delete drops the generation hash and its registration atomically.
func (s *RedisStore) Delete(ctx context.Context, name string) (bool, error) {
	pipe := s.redis.TxPipeline()
	removed := pipe.SRem(ctx, RedisKeyGenerations, name)
	pipe.Del(ctx, redisGenerationPrefix+name)

	if _, err := pipe.Exec(ctx); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("redis delete generation: %w", err)
	}

	if removed.Val() > 0 {
		GenerationsDeleted.Inc()
		return true, nil
	}
	return false, nil
}

// putIfRegistered writes an entry only while the generation is registered,
// so a write racing a purge cannot resurrect a deleted generation.
var putIfRegistered = redis.NewScript(`
if redis.call("SISMEMBER", KEYS[1], ARGV[1]) == 0 then
	return -1
end
redis.call("HSET", KEYS[2], ARGV[2], ARGV[3])
return 1
`)

type redisGeneration struct {
	redis *redis.Client
	name  string
}

func (g *redisGeneration) Name() string { return g.name }

func (g *redisGeneration) hashKey() string { return redisGenerationPrefix + g.name }

// Match retrieves a snapshot by key.
func (g *redisGeneration) Match(ctx context.Context, key Key) (*Snapshot, error) {
	data, err := g.redis.HGet(ctx, g.hashKey(), key.String()).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis hget: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.WithLabelValues("redis").Inc()
	return &snap, nil
}

// Put stores a snapshot under key.
func (g *redisGeneration) Put(ctx context.Context, key Key, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	written, err := putIfRegistered.Run(ctx, g.redis,
		[]string{RedisKeyGenerations, g.hashKey()},
		g.name, key.String(), data,
	).Int()
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis hset: %w", err)
	}
	if written < 0 {
		return ErrUnknownGeneration
	}

	CacheBytesWritten.WithLabelValues("redis").Add(float64(len(data)))
	return nil
}

// Keys lists stored key strings.
func (g *redisGeneration) Keys(ctx context.Context) ([]string, error) {
	keys, err := g.redis.HKeys(ctx, g.hashKey()).Result()
	if err != nil {
		CacheErrors.WithLabelValues("keys").Inc()
		return nil, fmt.Errorf("redis hkeys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
