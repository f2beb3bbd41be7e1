// Package cache provides versioned response caching for the offline agent.
//
// Responses are stored in named cache generations. A generation is a
// collection of request key to response snapshot entries; the agent keeps
// exactly one generation current (named by its version tag) and purges every
// other generation on activation. There is no per-entry expiry and no LRU:
// eviction is generation-wide and happens only on a version bump.
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create generation store
//	store := cache.NewRedisStore(redisClient)
//
//	// Open (create if absent) the current generation
//	gen, err := store.Open(ctx, "offline-cache-v1")
//	if err != nil {
//		return err
//	}
//
//	// Look up a request
//	snap, err := gen.Match(ctx, cache.KeyFor(req))
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - fetch from network
//	}
//
// # Response Snapshots
//
// An http.Response body can be read exactly once. Capture reads the body into
// an immutable Snapshot and restores a fresh body on the original response,
// so the caller still gets a readable response:
//
//	snap, err := cache.Capture(resp)
//	if err != nil {
//		return err
//	}
//	if err := gen.Put(ctx, cache.KeyFor(req), snap); err != nil {
//		return err
//	}
//
// Every call to Snapshot.Response builds a new response with its own body
// reader, so a snapshot can be replayed any number of times.
//
// # Metrics
//
//   - offline_cache_hits_total{layer} - Cache hits
//   - offline_cache_misses_total - Cache misses
//   - offline_cache_size_bytes{layer} - Bytes written to the store
//   - offline_cache_generations_deleted_total - Generations purged
//   - offline_cache_errors_total{operation} - Store operation errors
package cache
