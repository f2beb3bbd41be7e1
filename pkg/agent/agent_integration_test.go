//go:build integration

package agent

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Sternrassler/offline-agent/internal/testutil"
	"github.com/Sternrassler/offline-agent/pkg/cache"
	"github.com/Sternrassler/offline-agent/pkg/client"
	"github.com/Sternrassler/offline-agent/pkg/gateway"
	"github.com/Sternrassler/offline-agent/pkg/notify"
	"github.com/Sternrassler/offline-agent/pkg/pending"
	"github.com/Sternrassler/offline-agent/pkg/trigger"
)

// TestAgent_RedisEndToEnd runs install, upgrade, offline fallback and replay
// against a real Redis.
func TestAgent_RedisEndToEnd(t *testing.T) {
	ctx := context.Background()
	redisClient := testutil.SetupRedis(t)
	store := cache.NewRedisStore(redisClient)

	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.SeedShell()
	upload := testutil.NewMockUpload()
	defer upload.Close()

	queue := pending.NewSQLiteStore(filepath.Join(t.TempDir(), "pending.db"))
	defer queue.Close()

	uploader, err := client.New(client.DefaultConfig(upload.URL()))
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	hub := notify.NewHub()
	defer hub.Close()
	dispatcher := trigger.NewDispatcher(testTag, pending.NewReplayer(queue, uploader, hub))
	dispatcher.Start(ctx)

	a, err := New(Options{
		Gateway: gateway.Config{
			Version: "offline-cache-v1",
			Origin:  origin.URL(),
			Seeds:   testSeeds,
		},
		Cache:      store,
		Fetcher:    origin.Client(),
		Pending:    queue,
		Dispatcher: dispatcher,
		Hub:        hub,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	t.Run("install and activate", func(t *testing.T) {
		if err := a.Start(ctx); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		names, _ := store.Names(ctx)
		if !reflect.DeepEqual(names, []string{"offline-cache-v1"}) {
			t.Errorf("generations = %v", names)
		}
	})

	t.Run("upgrade purges old generation", func(t *testing.T) {
		if err := a.Upgrade(ctx, "offline-cache-v2"); err != nil {
			t.Fatalf("Upgrade() error = %v", err)
		}
		names, _ := store.Names(ctx)
		if !reflect.DeepEqual(names, []string{"offline-cache-v2"}) {
			t.Errorf("generations = %v", names)
		}
	})

	t.Run("offline fallback from redis", func(t *testing.T) {
		origin.SetOffline(true)
		defer origin.SetOffline(false)

		env := &testEnv{agent: a}
		code, body := env.get(t, "/anything")
		if code != 200 || body != "<html><body>shell</body></html>" {
			t.Errorf("GET = %d %q, want shell", code, body)
		}
	})

	t.Run("replay drains queue", func(t *testing.T) {
		if _, err := a.Enqueue(ctx, pending.Record{Key: "k1", Payload: []byte(`{"v":1}`)}); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		dispatcher.Wait()

		if n, _ := queue.Count(ctx); n != 0 {
			t.Errorf("Count() = %d, want 0", n)
		}
		if got := upload.Received(); len(got) != 1 {
			t.Errorf("uploaded = %v", got)
		}
	})
}
