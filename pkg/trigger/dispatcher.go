package trigger

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/Sternrassler/offline-agent/pkg/client"
	"github.com/Sternrassler/offline-agent/pkg/pending"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Trigger sources.
const (
	SourceHTTP         = "http"
	SourceConnectivity = "connectivity"
	SourceSchedule     = "schedule"
	SourceCLI          = "cli"
	SourceStartup      = "startup"
)

// Replayer runs one replay pass over the pending queue.
type Replayer interface {
	Replay(ctx context.Context) (pending.Result, error)
}

// Dispatcher serializes replay runs for one sync tag.
type Dispatcher struct {
	tag      string
	replayer Replayer
	policy   func(client.ErrorClass) Policy
	logger   zerolog.Logger

	// Injected for tests
	jitter func() float64
	after  func(time.Duration) <-chan time.Time

	mu      sync.Mutex
	ctx     context.Context
	running bool
	closed  bool
	wake    chan struct{}

	// done is closed when the current run loop exits
	done chan struct{}
}

// NewDispatcher creates a dispatcher that runs replayer for triggers tagged tag.
func NewDispatcher(tag string, replayer Replayer) *Dispatcher {
	return &Dispatcher{
		tag:      tag,
		replayer: replayer,
		policy:   PolicyFor,
		logger:   log.With().Str("component", "sync-dispatcher").Str("tag", tag).Logger(),
		jitter:   rand.Float64,
		after:    time.After,
		ctx:      context.Background(),
		wake:     make(chan struct{}, 1),
	}
}

// SetPolicy overrides the retry policy for every error class.
func (d *Dispatcher) SetPolicy(p Policy) {
	d.policy = func(client.ErrorClass) Policy { return p }
}

// Tag returns the sync tag this dispatcher answers to.
func (d *Dispatcher) Tag() string {
	return d.tag
}

// Start binds runs to ctx; cancelling it stops pending backoff waits.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ctx = ctx
}

// Wait blocks until no replay is running. A trigger fired while Wait is
// blocked extends the wait to cover its run.
func (d *Dispatcher) Wait() {
	for {
		d.mu.Lock()
		if !d.running {
			d.mu.Unlock()
			return
		}
		done := d.done
		d.mu.Unlock()
		<-done
	}
}

// Close refuses further triggers and waits for the running replay to end.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.Wait()
}

// Running reports whether a replay run is in progress.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Fire delivers a trigger. It reports false when tag does not match or the
// dispatcher is closed. Fire never blocks on the replay itself.
func (d *Dispatcher) Fire(tag, source string) bool {
	if tag != d.tag {
		triggersTotal.WithLabelValues(source, "ignored").Inc()
		d.logger.Debug().Str("received_tag", tag).Str("source", source).Msg("Ignoring sync trigger")
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		triggersTotal.WithLabelValues(source, "closed").Inc()
		d.logger.Debug().Str("source", source).Msg("Dispatcher closed, dropping sync trigger")
		return false
	}

	if d.running {
		select {
		case d.wake <- struct{}{}:
		default:
		}
		triggersTotal.WithLabelValues(source, "coalesced").Inc()
		d.logger.Debug().Str("source", source).Msg("Sync trigger coalesced into running replay")
		return true
	}

	d.running = true
	d.done = make(chan struct{})
	triggersTotal.WithLabelValues(source, "started").Inc()
	d.logger.Info().Str("source", source).Msg("Sync trigger received")

	go d.loop(d.ctx, d.done)
	return true
}

func (d *Dispatcher) loop(ctx context.Context, done chan struct{}) {
	attempt := 1
	for {
		// A trigger consumed here is served by the run below
		select {
		case <-d.wake:
		default:
		}

		_, err := d.replayer.Replay(ctx)

		var uploadErr *pending.UploadError
		if errors.As(err, &uploadErr) {
			errClass := client.Classify(err)
			policy := d.policy(errClass)

			if attempt < policy.MaxAttempts {
				delay := policy.Backoff(attempt, d.jitter())
				retriesTotal.WithLabelValues(string(errClass)).Inc()
				retryBackoffSeconds.WithLabelValues(string(errClass)).Observe(delay.Seconds())
				d.logger.Debug().
					Str("error_class", string(errClass)).
					Int("attempt", attempt).
					Dur("backoff", delay).
					Msg("Retrying replay after backoff")

				select {
				case <-ctx.Done():
					d.logger.Warn().Int("attempt", attempt).Msg("Context cancelled during replay backoff")
					d.mu.Lock()
					d.finish(done)
					d.mu.Unlock()
					return
				case <-d.after(delay):
				case <-d.wake:
				}
				attempt++
				continue
			}

			retryExhaustedTotal.WithLabelValues(string(errClass)).Inc()
			d.logger.Warn().
				Err(err).
				Int("attempts", attempt).
				Msg("Replay retries exhausted, waiting for next trigger")
		}

		// Run a coalesced trigger, or stop
		d.mu.Lock()
		select {
		case <-d.wake:
			d.mu.Unlock()
			attempt = 1
			continue
		default:
			d.finish(done)
			d.mu.Unlock()
			return
		}
	}
}

// finish marks the run loop stopped. d.mu must be held.
func (d *Dispatcher) finish(done chan struct{}) {
	d.running = false
	close(done)
}
