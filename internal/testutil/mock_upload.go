package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

// MockUpload is a mock remote upload endpoint that records received payloads.
type MockUpload struct {
	server *httptest.Server
	mu     sync.Mutex

	// statusFor decides the status for a payload; nil means 200.
	statusFor func(payload []byte) int
	received  [][]byte
}

// NewMockUpload creates a new mock upload endpoint.
func NewMockUpload() *MockUpload {
	mock := &MockUpload{}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.received = append(mock.received, body)
		statusFor := mock.statusFor
		mock.mu.Unlock()

		status := http.StatusOK
		if statusFor != nil {
			status = statusFor(body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status/100 == 2 {
			json.NewEncoder(w).Encode(map[string]string{"status": "stored"})
			return
		}
		w.Write([]byte(`{"error": "rejected"}`))
	}))

	return mock
}

// URL returns the upload endpoint URL.
func (m *MockUpload) URL() string {
	return m.server.URL + "/api/sync"
}

// Client returns an HTTP client configured for the mock server.
func (m *MockUpload) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockUpload) Close() {
	m.server.Close()
}

// SetStatusFunc configures the response status per received payload.
func (m *MockUpload) SetStatusFunc(fn func(payload []byte) int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusFor = fn
}

// Received returns the payloads received so far, in arrival order.
func (m *MockUpload) Received() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.received))
	for i, body := range m.received {
		out[i] = string(body)
	}
	return out
}
