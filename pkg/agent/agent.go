package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/Sternrassler/offline-agent/pkg/cache"
	"github.com/Sternrassler/offline-agent/pkg/gateway"
	"github.com/Sternrassler/offline-agent/pkg/logging"
	"github.com/Sternrassler/offline-agent/pkg/notify"
	"github.com/Sternrassler/offline-agent/pkg/pending"
	"github.com/Sternrassler/offline-agent/pkg/trigger"
	"github.com/rs/zerolog"
)

// Options holds the agent's collaborators.
type Options struct {
	// Gateway configures the worker built for each cache version.
	Gateway gateway.Config

	// Cache holds the cache generations.
	Cache cache.Store

	// Fetcher performs network requests for the gateway and for
	// uncontrolled pass-through.
	Fetcher gateway.Fetcher

	// Pending is the queue behind POST /_agent/pending.
	Pending pending.Store

	// Dispatcher runs replays for sync triggers.
	Dispatcher *trigger.Dispatcher

	// Hub is the client-view channel. A new hub is created when nil.
	Hub *notify.Hub
}

// Agent is the background worker host.
type Agent struct {
	gatewayConfig gateway.Config
	cache         cache.Store
	fetcher       gateway.Fetcher
	pending       pending.Store
	dispatcher    *trigger.Dispatcher
	hub           *notify.Hub
	logger        zerolog.Logger

	// mu serializes lifecycle transitions.
	mu       sync.Mutex
	incoming *worker
	active   atomic.Pointer[worker]

	// proxy rewrites inbound requests while no worker is active.
	proxy *gateway.Gateway
}

var _ Worker = (*Agent)(nil)

// New creates an agent with a parsed worker for opts.Gateway.Version.
func New(opts Options) (*Agent, error) {
	if opts.Cache == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if opts.Pending == nil {
		return nil, fmt.Errorf("pending store is required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("sync dispatcher is required")
	}

	gw, err := gateway.New(opts.Cache, opts.Fetcher, opts.Gateway)
	if err != nil {
		return nil, err
	}

	hub := opts.Hub
	if hub == nil {
		hub = notify.NewHub()
	}

	a := &Agent{
		gatewayConfig: gw.Config(),
		cache:         opts.Cache,
		fetcher:       opts.Fetcher,
		pending:       opts.Pending,
		dispatcher:    opts.Dispatcher,
		hub:           hub,
		logger:        logging.NewLogger("agent"),
		incoming:      newWorker(gw),
		proxy:         gw,
	}

	hub.OnControl(func(msg notify.Message) {
		if err := a.SkipWaiting(context.Background()); err != nil {
			a.logger.Warn().Err(err).Msg("Skip waiting from client failed")
		}
	})

	return a, nil
}

// Hub returns the client-view hub.
func (a *Agent) Hub() *notify.Hub {
	return a.hub
}

// State returns the state of the newest worker.
func (a *Agent) State() State {
	a.mu.Lock()
	incoming := a.incoming
	a.mu.Unlock()

	if incoming != nil {
		return incoming.State()
	}
	if w := a.active.Load(); w != nil {
		return w.State()
	}
	return StateRedundant
}

// Version returns the active cache version, or "" when nothing is active.
func (a *Agent) Version() string {
	if w := a.active.Load(); w != nil {
		return w.Version()
	}
	return ""
}

// Controlled reports whether requests go through the gateway.
func (a *Agent) Controlled() bool {
	return a.active.Load() != nil
}

// Start installs the worker and, since install asks to skip waiting,
// activates it. A failed install leaves the previous worker in control.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.OnInstall(ctx); err != nil {
		return err
	}
	err := a.OnActivate(ctx)
	if errors.Is(err, ErrNotWaiting) && a.Controlled() {
		return nil
	}
	return err
}

// OnInstall installs the incoming worker. A redundant or missing incoming
// worker is replaced by a fresh one for the configured version first.
func (a *Agent) OnInstall(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	w := a.incoming
	if w == nil || w.State() == StateRedundant {
		if active := a.active.Load(); active != nil && active.Version() == a.gatewayConfig.Version {
			return nil
		}
		gw, err := gateway.New(a.cache, a.fetcher, a.gatewayConfig)
		if err != nil {
			return err
		}
		w = newWorker(gw)
		a.incoming = w
	}
	return a.installLocked(ctx, w)
}

func (a *Agent) installLocked(ctx context.Context, w *worker) error {
	if w.State() != StateParsed {
		return nil
	}

	a.transition(w, StateInstalling)
	if err := w.gw.Install(ctx); err != nil {
		a.transition(w, StateRedundant)
		return err
	}
	a.transition(w, StateInstalled)
	return nil
}

// OnActivate activates the installed worker.
func (a *Agent) OnActivate(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activateLocked(ctx)
}

// SkipWaiting activates a worker that installed but is still waiting.
// It returns ErrNotWaiting when there is none.
func (a *Agent) SkipWaiting(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activateLocked(ctx)
}

func (a *Agent) activateLocked(ctx context.Context) error {
	w := a.incoming
	if w == nil || w.State() != StateInstalled {
		return ErrNotWaiting
	}

	a.transition(w, StateActivating)
	if err := w.gw.Activate(ctx); err != nil {
		// Still installed; a later SKIP_WAITING retries.
		a.transition(w, StateInstalled)
		return fmt.Errorf("activate %s: %w", w.Version(), err)
	}
	a.transition(w, StateActivated)

	// Claim: every request from now on goes through w.
	if prev := a.active.Swap(w); prev != nil && prev != w {
		a.transition(prev, StateRedundant)
	}
	a.incoming = nil

	a.hub.Broadcast(notify.Message{Type: notify.TypeActivated, Message: w.Version()})
	return nil
}

// Upgrade installs a worker for version and activates it, replacing the
// active one. On install failure the active worker stays in control.
func (a *Agent) Upgrade(ctx context.Context, version string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if active := a.active.Load(); active != nil && active.Version() == version {
		return nil
	}

	cfg := a.gatewayConfig
	cfg.Version = version
	gw, err := gateway.New(a.cache, a.fetcher, cfg)
	if err != nil {
		return err
	}

	if prev := a.incoming; prev != nil && prev.State() != StateRedundant {
		a.transition(prev, StateRedundant)
	}
	w := newWorker(gw)
	a.incoming = w
	a.gatewayConfig = cfg

	a.logger.Info().Str("version", version).Msg("Upgrading cache version")

	if err := a.installLocked(ctx, w); err != nil {
		return err
	}
	return a.activateLocked(ctx)
}

// Intercept answers req through the active worker, or passes it to the
// origin when no worker is in control.
func (a *Agent) Intercept(req *http.Request) (*http.Response, error) {
	if w := a.active.Load(); w != nil {
		return w.gw.Intercept(req)
	}
	uncontrolledTotal.Inc()
	return a.fetcher.Do(req)
}

// OnSyncTrigger delivers a sync trigger to the dispatcher.
func (a *Agent) OnSyncTrigger(tag, source string) bool {
	return a.dispatcher.Fire(tag, source)
}

// Enqueue adds a pending record and registers a sync for it.
func (a *Agent) Enqueue(ctx context.Context, rec pending.Record) (pending.Record, error) {
	stored, err := a.pending.Enqueue(ctx, rec)
	if err != nil {
		return pending.Record{}, err
	}
	a.dispatcher.Fire(a.dispatcher.Tag(), trigger.SourceHTTP)
	return stored, nil
}

// ServeHTTP rewrites an inbound request onto the origin and answers it
// through Intercept.
func (a *Agent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gw := a.proxy
	if active := a.active.Load(); active != nil {
		gw = active.gw
	}

	out, err := gw.OutboundRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := a.Intercept(out)
	if err != nil {
		http.Error(w, fmt.Sprintf("request failed: %v", err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	gateway.WriteResponse(w, resp)
}

// Close disconnects every client view.
func (a *Agent) Close() {
	a.hub.Close()
}

func (a *Agent) transition(w *worker, state State) {
	w.state.Store(state)
	transitionsTotal.WithLabelValues(string(state)).Inc()
	a.logger.Info().
		Str("version", w.Version()).
		Str("state", string(state)).
		Msg("Worker state changed")
}
