package agent

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/Sternrassler/offline-agent/pkg/gateway"
)

// State is a worker lifecycle state.
type State string

// Worker lifecycle states.
const (
	StateParsed     State = "parsed"
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActivated  State = "activated"
	StateRedundant  State = "redundant"
)

// ErrNotWaiting indicates that no installed worker is waiting to activate.
var ErrNotWaiting = errors.New("no worker waiting to activate")

// Worker is the set of hooks the host drives.
type Worker interface {
	// OnInstall pre-caches the shell into the worker's generation.
	OnInstall(ctx context.Context) error

	// OnActivate purges stale generations and takes control of requests.
	OnActivate(ctx context.Context) error

	// Intercept answers one outbound request.
	Intercept(req *http.Request) (*http.Response, error)

	// OnSyncTrigger delivers a sync trigger; it reports whether tag matched.
	OnSyncTrigger(tag, source string) bool
}

// worker is one version of the gateway moving through the lifecycle.
type worker struct {
	gw    *gateway.Gateway
	state atomic.Value
}

func newWorker(gw *gateway.Gateway) *worker {
	w := &worker{gw: gw}
	w.state.Store(StateParsed)
	return w
}

func (w *worker) State() State {
	return w.state.Load().(State)
}

func (w *worker) Version() string {
	return w.gw.Version()
}
