package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/offline-agent/pkg/notify"
	"github.com/Sternrassler/offline-agent/pkg/pending"
	"golang.org/x/net/websocket"
)

func newTestServer(t *testing.T, env *testEnv) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(env.agent.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func dialClients(t *testing.T, srv *httptest.Server, env *testEnv) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/_agent/clients"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) notify.Message {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	var msg notify.Message
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return msg
}

func TestRoutes_Health(t *testing.T) {
	env := newTestEnv(t)
	env.origin.SeedShell()
	srv := newTestServer(t, env)

	if err := env.agent.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := env.pending.Enqueue(context.Background(), pending.Record{Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	resp, err := http.Get(srv.URL + "/_agent/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Status != "ok" || st.State != StateActivated || !st.Controlled {
		t.Errorf("status = %+v", st)
	}
	if st.Version != "offline-cache-v1" || st.Pending != 1 {
		t.Errorf("status = %+v", st)
	}
}

func TestRoutes_Metrics(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestServer(t, env)

	resp, err := http.Get(srv.URL + "/_agent/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "offline_agent_") {
		t.Error("scrape output missing agent metrics")
	}
}

func TestRoutes_Generations(t *testing.T) {
	env := newTestEnv(t)
	env.origin.SeedShell()
	srv := newTestServer(t, env)
	if err := env.agent.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get(srv.URL + "/_agent/generations")
	if err != nil {
		t.Fatalf("GET generations: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		Current     string   `json:"current"`
		Generations []string `json:"generations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Current != "offline-cache-v1" || len(out.Generations) != 1 {
		t.Errorf("generations = %+v", out)
	}
}

func TestRoutes_EnqueueSyncsAndNotifies(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestServer(t, env)
	conn := dialClients(t, srv, env)

	code, out := post(t, srv.URL+"/_agent/pending", `{"payload":{"text":"offline note"}}`)
	if code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%v)", code, out)
	}
	if key, _ := out["key"].(string); key == "" {
		t.Error("expected generated key in response")
	}

	msg := readMessage(t, conn)
	if msg.Type != notify.TypeSyncComplete || msg.Message != pending.SyncCompleteText {
		t.Errorf("message = %+v", msg)
	}

	env.agent.dispatcher.Wait()
	if got := env.upload.Received(); len(got) != 1 || got[0] != `{"text":"offline note"}` {
		t.Errorf("uploaded = %v", got)
	}
}

func TestRoutes_EnqueueErrors(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestServer(t, env)

	if code, _ := post(t, srv.URL+"/_agent/pending", `{"key":"k1","payload":{}}`); code != http.StatusCreated {
		t.Fatalf("first enqueue status = %d", code)
	}
	env.agent.dispatcher.Wait()

	// Uploads now fail, so k2 stays queued.
	env.upload.SetStatusFunc(func([]byte) int { return http.StatusServiceUnavailable })
	if code, _ := post(t, srv.URL+"/_agent/pending", `{"key":"k2","payload":{}}`); code != http.StatusCreated {
		t.Fatalf("second enqueue status = %d", code)
	}
	env.agent.dispatcher.Wait()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"duplicate key", `{"key":"k2","payload":{}}`, http.StatusConflict},
		{"missing payload", `{"key":"k3"}`, http.StatusBadRequest},
		{"malformed body", `{"key":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := post(t, srv.URL+"/_agent/pending", tt.body)
			if code != tt.want {
				t.Errorf("status = %d, want %d", code, tt.want)
			}
		})
	}
	env.agent.dispatcher.Wait()
}

func TestRoutes_SyncTrigger(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestServer(t, env)

	code, out := post(t, srv.URL+"/_agent/sync/other", "")
	if code != http.StatusOK || out["accepted"] != false {
		t.Errorf("foreign tag = %d %v", code, out)
	}

	code, out = post(t, srv.URL+"/_agent/sync/"+testTag, "")
	if code != http.StatusAccepted || out["accepted"] != true {
		t.Errorf("sync tag = %d %v", code, out)
	}
	env.agent.dispatcher.Wait()
}

func TestRoutes_Control(t *testing.T) {
	env := newTestEnv(t)
	env.origin.SeedShell()
	srv := newTestServer(t, env)

	code, _ := post(t, srv.URL+"/_agent/control", `{"type":"hello"}`)
	if code != http.StatusBadRequest {
		t.Errorf("unknown type status = %d, want 400", code)
	}

	code, _ = post(t, srv.URL+"/_agent/control", `{"type":"SKIP_WAITING"}`)
	if code != http.StatusConflict {
		t.Errorf("nothing waiting status = %d, want 409", code)
	}

	env.cache.failNames.Store(true)
	_ = env.agent.Start(context.Background())
	env.cache.failNames.Store(false)

	code, out := post(t, srv.URL+"/_agent/control", `{"type":"SKIP_WAITING"}`)
	if code != http.StatusAccepted || out["state"] != string(StateActivated) {
		t.Errorf("skip waiting = %d %v", code, out)
	}
}

func TestRoutes_SkipWaitingOverWebSocket(t *testing.T) {
	env := newTestEnv(t)
	env.origin.SeedShell()
	srv := newTestServer(t, env)

	env.cache.failNames.Store(true)
	_ = env.agent.Start(context.Background())
	env.cache.failNames.Store(false)

	conn := dialClients(t, srv, env)
	if err := json.NewEncoder(conn).Encode(notify.Message{Type: notify.TypeSkipWaiting}); err != nil {
		t.Fatalf("send control: %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Type != notify.TypeActivated || msg.Message != "offline-cache-v1" {
		t.Errorf("message = %+v, want activated", msg)
	}
	if !env.agent.Controlled() {
		t.Error("Controlled() = false after SKIP_WAITING")
	}
}

func TestRoutes_CatchAllGoesThroughGateway(t *testing.T) {
	env := newTestEnv(t)
	env.origin.SeedShell()
	srv := newTestServer(t, env)
	if err := env.agent.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	env.origin.SetOffline(true)
	resp, err := http.Get(srv.URL + "/notes/42")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK || string(body) != "<html><body>shell</body></html>" {
		t.Errorf("offline GET = %d %q, want shell", resp.StatusCode, body)
	}
}
