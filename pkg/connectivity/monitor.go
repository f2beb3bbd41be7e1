package connectivity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for connectivity tracking.
var (
	onlineGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "offline_connectivity_online",
		Help: "1 when the origin is reachable, 0 otherwise",
	})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_connectivity_transitions_total",
		Help: "Total connectivity status changes by new status",
	}, []string{"status"})

	probeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offline_connectivity_probe_failures_total",
		Help: "Total number of failed connectivity probes",
	})
)

// Config holds the monitor configuration.
type Config struct {
	// URL is probed with HEAD requests.
	URL string

	// Interval between probes.
	Interval time.Duration

	// Timeout bounds one probe.
	Timeout time.Duration

	// FailureThreshold is the number of consecutive failures before going offline.
	FailureThreshold int
}

// DefaultConfig returns the default monitor configuration for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		Interval:         15 * time.Second,
		Timeout:          5 * time.Second,
		FailureThreshold: 2,
	}
}

// Monitor probes the origin and calls onOnline when it comes back.
type Monitor struct {
	config   Config
	client   *http.Client
	onOnline func()
	logger   zerolog.Logger

	mu    sync.Mutex
	state State
}

// NewMonitor creates a connectivity monitor. onOnline runs on every
// offline→online transition and may be nil.
func NewMonitor(cfg Config, onOnline func()) (*Monitor, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("probe url is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("probe interval must be positive (got %v)", cfg.Interval)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}

	return &Monitor{
		config:   cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		onOnline: onOnline,
		logger:   log.With().Str("component", "connectivity").Logger(),
		state:    State{Status: StatusUnknown},
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (m *Monitor) SetHTTPClient(client *http.Client) {
	m.client = client
}

// State returns the current connectivity state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Check runs one probe and updates the state.
func (m *Monitor) Check(ctx context.Context) State {
	ok := m.probe(ctx)
	if !ok {
		probeFailuresTotal.Inc()
	}

	m.mu.Lock()
	prev := m.state.Status
	state, changed := m.state.next(ok, m.config.FailureThreshold, time.Now())
	m.state = state
	m.mu.Unlock()

	if state.Online() {
		onlineGauge.Set(1)
	} else {
		onlineGauge.Set(0)
	}

	if !changed {
		return state
	}

	transitionsTotal.WithLabelValues(string(state.Status)).Inc()
	m.logger.Info().
		Str("from", string(prev)).
		Str("to", string(state.Status)).
		Int("consecutive_failures", state.ConsecutiveFailures).
		Msg("Connectivity changed")

	if prev == StatusOffline && state.Status == StatusOnline && m.onOnline != nil {
		m.onOnline()
	}
	return state
}

// Run probes until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// probe reports whether the origin answered with any HTTP response.
func (m *Monitor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.config.URL, nil)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to build probe request")
		return false
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Debug().Err(err).Msg("Connectivity probe failed")
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return true
}
