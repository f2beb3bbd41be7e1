//go:build integration

package gateway

import (
	"context"
	"net/http"
	"reflect"
	"testing"

	"github.com/Sternrassler/offline-agent/internal/testutil"
	"github.com/Sternrassler/offline-agent/pkg/cache"
)

// TestRedisLifecycle runs install, activate, intercept and offline fallback
// against a real Redis.
func TestRedisLifecycle(t *testing.T) {
	redisClient := testutil.SetupRedis(t)
	store := cache.NewRedisStore(redisClient)
	ctx := context.Background()

	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.SeedShell()
	origin.SetResponse("/data.json", testutil.NewOKResponse(`{"rows":3}`, "application/json"))

	// Step 1: v1 installed and active
	v1 := newTestGateway(t, origin, store, "offline-cache-v1")
	if err := v1.Install(ctx); err != nil {
		t.Fatalf("v1 Install() error = %v", err)
	}
	if err := v1.Activate(ctx); err != nil {
		t.Fatalf("v1 Activate() error = %v", err)
	}

	resp, err := v1.Intercept(newRequest(t, http.MethodGet, origin.URL()+"/data.json"))
	if err != nil {
		t.Fatalf("Intercept() error = %v", err)
	}
	readBody(t, resp)

	// Step 2: v2 replaces v1
	v2 := newTestGateway(t, origin, store, "offline-cache-v2")
	if err := v2.Install(ctx); err != nil {
		t.Fatalf("v2 Install() error = %v", err)
	}
	if err := v2.Activate(ctx); err != nil {
		t.Fatalf("v2 Activate() error = %v", err)
	}

	names, err := v2.ListGenerations(ctx)
	if err != nil {
		t.Fatalf("ListGenerations() error = %v", err)
	}
	if !reflect.DeepEqual(names, []string{"offline-cache-v2"}) {
		t.Errorf("generations = %v, want [offline-cache-v2]", names)
	}

	// Step 3: a stale v1 handle cannot write into the purged generation
	resp, err = v1.Intercept(newRequest(t, http.MethodGet, origin.URL()+"/data.json?fresh=1"))
	if err != nil {
		t.Fatalf("stale Intercept() error = %v", err)
	}
	readBody(t, resp)
	names, _ = store.Names(ctx)
	if len(names) != 1 {
		t.Errorf("purged generation was recreated: %v", names)
	}

	// Step 4: offline fallback from Redis
	origin.SetOffline(true)
	resp, err = v2.Intercept(newRequest(t, http.MethodGet, origin.URL()+"/settings"))
	if err != nil {
		t.Fatalf("offline Intercept() error = %v", err)
	}
	if body := readBody(t, resp); body != "<html><body>shell</body></html>" {
		t.Errorf("fallback body = %q", body)
	}
}
