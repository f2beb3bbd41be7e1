// Package notify connects client views to the agent over WebSocket.
//
// The hub broadcasts lifecycle and sync notifications to every connected view
// and forwards control messages sent by views (such as SKIP_WAITING) to a
// registered callback. Frames are JSON objects of the form
// {"type": "...", "message": "..."}.
package notify

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Sternrassler/offline-agent/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/net/websocket"
)

// Message types.
const (
	// TypeSyncComplete is broadcast after the pending queue was fully synced.
	TypeSyncComplete = "sync-complete"

	// TypeSkipWaiting asks the agent to activate a waiting worker now.
	TypeSkipWaiting = "SKIP_WAITING"

	// TypeActivated is broadcast when a worker takes control of clients.
	TypeActivated = "activated"
)

var (
	clientsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "offline_notify_clients",
		Help: "Number of connected client views",
	})

	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_notify_messages_total",
		Help: "Total messages by direction and type",
	}, []string{"direction", "type"})
)

// defaultWriteTimeout bounds one frame write to a client view.
const defaultWriteTimeout = 5 * time.Second

// Message is one frame exchanged with a client view.
type Message struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// ControlFunc handles a control message received from a client view.
type ControlFunc func(msg Message)

type peer struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	encoder *json.Encoder
}

func (p *peer) write(msg Message, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return p.encoder.Encode(msg)
}

// Hub tracks connected client views.
type Hub struct {
	mu        sync.Mutex
	peers     map[*peer]struct{}
	onControl ControlFunc
	logger    zerolog.Logger

	// writeTimeout drops a view that stops reading
	writeTimeout time.Duration
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		peers:        make(map[*peer]struct{}),
		logger:       logging.NewLogger("notify-hub"),
		writeTimeout: defaultWriteTimeout,
	}
}

// OnControl registers fn for control messages from client views.
func (h *Hub) OnControl(fn ControlFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onControl = fn
}

// Handler returns the WebSocket endpoint for client views.
func (h *Hub) Handler() http.Handler {
	wsHandler := websocket.Handler(h.serveConn)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})
}

// Clients returns the number of connected client views.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Broadcast sends msg to every connected client view and returns how many
// received it. Views that cannot be written to within the write timeout are
// dropped.
func (h *Hub) Broadcast(msg Message) int {
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	delivered := 0
	for _, p := range peers {
		if err := p.write(msg, h.writeTimeout); err != nil {
			h.logger.Debug().Err(err).Msg("Dropping unreachable client view")
			h.remove(p)
			_ = p.conn.Close()
			continue
		}
		delivered++
	}

	messagesTotal.WithLabelValues("out", msg.Type).Inc()
	h.logger.Debug().
		Str("type", msg.Type).
		Int("clients", delivered).
		Msg("Broadcast sent")
	return delivered
}

// SyncComplete broadcasts the sync-complete notification.
func (h *Hub) SyncComplete(text string) int {
	return h.Broadcast(Message{Type: TypeSyncComplete, Message: text})
}

// Close disconnects every client view.
func (h *Hub) Close() {
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[*peer]struct{})
	h.mu.Unlock()

	for p := range peers {
		_ = p.conn.Close()
	}
	clientsGauge.Set(0)
}

func (h *Hub) add(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[p] = struct{}{}
	clientsGauge.Set(float64(len(h.peers)))
}

func (h *Hub) remove(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.peers[p]; !ok {
		return
	}
	delete(h.peers, p)
	clientsGauge.Set(float64(len(h.peers)))
}

func (h *Hub) serveConn(conn *websocket.Conn) {
	p := &peer{conn: conn, encoder: json.NewEncoder(conn)}
	h.add(p)
	defer func() {
		h.remove(p)
		_ = conn.Close()
	}()

	h.logger.Debug().Str("remote", conn.Request().RemoteAddr).Msg("Client view connected")

	decoder := json.NewDecoder(conn)
	for {
		var msg Message
		if err := decoder.Decode(&msg); err != nil {
			if !errors.Is(err, io.EOF) {
				h.logger.Debug().Err(err).Msg("Closing client view after invalid frame")
			}
			return
		}

		messagesTotal.WithLabelValues("in", msg.Type).Inc()
		h.handleControl(msg)
	}
}

func (h *Hub) handleControl(msg Message) {
	switch msg.Type {
	case TypeSkipWaiting:
	default:
		h.logger.Debug().Str("type", msg.Type).Msg("Ignoring unknown client message")
		return
	}

	h.mu.Lock()
	fn := h.onControl
	h.mu.Unlock()

	if fn != nil {
		fn(msg)
	}
}
