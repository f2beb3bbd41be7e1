package cache

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a Redis client backed by an in-process miniredis.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
	})

	return client
}

func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"redis":  func(t *testing.T) Store { return NewRedisStore(setupTestRedis(t)) },
	}
}

func testKey(t *testing.T, path string) Key {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "https://app.example.com"+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return KeyFor(req)
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore(nil)
}

func TestStore_PutAndMatch(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			gen, err := store.Open(ctx, "v1")
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}

			snap := &Snapshot{
				Body:       []byte(`{"ok":true}`),
				StatusCode: http.StatusOK,
				Status:     "200 OK",
				Headers:    http.Header{"Content-Type": []string{"application/json"}},
			}
			key := testKey(t, "/manifest.json")

			if err := gen.Put(ctx, key, snap); err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			got, err := gen.Match(ctx, key)
			if err != nil {
				t.Fatalf("Match() error = %v", err)
			}
			if string(got.Body) != string(snap.Body) {
				t.Errorf("Body = %q, want %q", got.Body, snap.Body)
			}
			if got.StatusCode != snap.StatusCode {
				t.Errorf("StatusCode = %d, want %d", got.StatusCode, snap.StatusCode)
			}
			if got.Headers.Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type = %q", got.Headers.Get("Content-Type"))
			}
		})
	}
}

func TestStore_MatchMiss(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			gen, err := store.Open(ctx, "v1")
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}

			_, err = gen.Match(ctx, testKey(t, "/missing"))
			if !errors.Is(err, ErrCacheMiss) {
				t.Errorf("Match() error = %v, want ErrCacheMiss", err)
			}
		})
	}
}

func TestStore_OpenIsIdempotent(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			first, _ := store.Open(ctx, "v1")
			if err := first.Put(ctx, testKey(t, "/"), &Snapshot{StatusCode: 200}); err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			second, err := store.Open(ctx, "v1")
			if err != nil {
				t.Fatalf("second Open() error = %v", err)
			}
			keys, err := second.Keys(ctx)
			if err != nil {
				t.Fatalf("Keys() error = %v", err)
			}
			if len(keys) != 1 {
				t.Errorf("reopen lost entries: keys = %v", keys)
			}

			names, _ := store.Names(ctx)
			if !reflect.DeepEqual(names, []string{"v1"}) {
				t.Errorf("Names() = %v, want [v1]", names)
			}
		})
	}
}

func TestStore_PutOverwritesSameKey(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			gen, _ := store.Open(ctx, "v1")
			key := testKey(t, "/app.js")

			_ = gen.Put(ctx, key, &Snapshot{Body: []byte("one"), StatusCode: 200})
			_ = gen.Put(ctx, key, &Snapshot{Body: []byte("two"), StatusCode: 200})

			keys, _ := gen.Keys(ctx)
			if len(keys) != 1 {
				t.Errorf("Keys() = %v, want exactly one entry", keys)
			}
			got, _ := gen.Match(ctx, key)
			if string(got.Body) != "two" {
				t.Errorf("Body = %q, want last write", got.Body)
			}
		})
	}
}

func TestStore_DeleteGeneration(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			old, _ := store.Open(ctx, "v1")
			_ = old.Put(ctx, testKey(t, "/"), &Snapshot{StatusCode: 200})
			_, _ = store.Open(ctx, "v2")

			existed, err := store.Delete(ctx, "v1")
			if err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if !existed {
				t.Error("Delete() reported missing generation")
			}

			names, _ := store.Names(ctx)
			if !reflect.DeepEqual(names, []string{"v2"}) {
				t.Errorf("Names() = %v, want [v2]", names)
			}

			existed, err = store.Delete(ctx, "v1")
			if err != nil || existed {
				t.Errorf("second Delete() = %v, %v; want false, nil", existed, err)
			}

			// Writes through a stale handle must not resurrect the generation
			err = old.Put(ctx, testKey(t, "/late"), &Snapshot{StatusCode: 200})
			if !errors.Is(err, ErrUnknownGeneration) {
				t.Errorf("Put() on deleted generation error = %v, want ErrUnknownGeneration", err)
			}
			names, _ = store.Names(ctx)
			if !reflect.DeepEqual(names, []string{"v2"}) {
				t.Errorf("Names() after stale write = %v, want [v2]", names)
			}
		})
	}
}

func TestStore_OpenRejectsEmptyName(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			_, err := newStore(t).Open(context.Background(), "  ")
			if !errors.Is(err, ErrInvalidName) {
				t.Errorf("Open() error = %v, want ErrInvalidName", err)
			}
		})
	}
}

func TestStore_ConcurrentPuts(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			gen, _ := store.Open(ctx, "v1")
			key := testKey(t, "/hot")

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = gen.Put(ctx, key, &Snapshot{Body: []byte("same"), StatusCode: 200})
				}()
			}
			wg.Wait()

			keys, _ := gen.Keys(ctx)
			if len(keys) != 1 {
				t.Errorf("Keys() = %v, want one entry", keys)
			}
		})
	}
}

func TestMemoryStore_MatchReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	gen, _ := store.Open(ctx, "v1")
	key := testKey(t, "/")

	_ = gen.Put(ctx, key, &Snapshot{Body: []byte("abc"), StatusCode: 200})

	got, _ := gen.Match(ctx, key)
	got.Body[0] = 'z'

	again, _ := gen.Match(ctx, key)
	if string(again.Body) != "abc" {
		t.Errorf("stored snapshot mutated through Match result: %q", again.Body)
	}
}

func TestStore_BytesWrittenCountsEveryPut(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			written := CacheBytesWritten.WithLabelValues(name)

			gen, err := store.Open(ctx, "v1")
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			snap := &Snapshot{Body: []byte("<html>shell</html>"), StatusCode: http.StatusOK}
			key := testKey(t, "/")

			before := promtest.ToFloat64(written)
			for i := 0; i < 2; i++ {
				if err := gen.Put(ctx, key, snap); err != nil {
					t.Fatalf("Put() error = %v", err)
				}
			}
			afterPuts := promtest.ToFloat64(written)
			if afterPuts <= before {
				t.Fatalf("bytes written = %v after two puts, want more than %v", afterPuts, before)
			}

			if _, err := store.Delete(ctx, "v1"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if got := promtest.ToFloat64(written); got != afterPuts {
				t.Errorf("bytes written = %v after purge, want %v", got, afterPuts)
			}
		})
	}
}
