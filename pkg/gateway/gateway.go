package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/offline-agent/pkg/cache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Fetcher performs network requests. *http.Client satisfies it.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// Gateway decides cache-or-network for every outbound request.
type Gateway struct {
	store   cache.Store
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger

	mu         sync.Mutex
	generation cache.Generation
}

// New creates a gateway over store using fetcher for network access.
func New(store cache.Store, fetcher Fetcher, cfg Config) (*Gateway, error) {
	if store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Gateway{
		store:   store,
		fetcher: fetcher,
		config:  cfg,
		logger: log.With().
			Str("component", "cache-gateway").
			Str("version", cfg.Version).
			Logger(),
	}, nil
}

// Version returns the gateway's cache generation name.
func (g *Gateway) Version() string {
	return g.config.Version
}

// Config returns a copy of the validated configuration.
func (g *Gateway) Config() Config {
	return g.config
}

// current opens the gateway's generation once and reuses the handle.
func (g *Gateway) current(ctx context.Context) (cache.Generation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.generation != nil {
		return g.generation, nil
	}
	gen, err := g.store.Open(ctx, g.config.Version)
	if err != nil {
		return nil, err
	}
	g.generation = gen
	return gen, nil
}

// Install opens the current generation and pre-caches every seed resource.
// Any seed fetch failure aborts the install before anything is stored. When
// storing fails partway, a generation created by this install is deleted
// again; a generation that already existed keeps the seeds rewritten so far.
func (g *Gateway) Install(ctx context.Context) error {
	start := time.Now()

	existed := g.generationExists(ctx)

	gen, err := g.current(ctx)
	if err != nil {
		installTotal.WithLabelValues("failed").Inc()
		return &InstallError{Err: fmt.Errorf("open generation: %w", err)}
	}

	seeds, err := g.fetchSeeds(ctx)
	if err != nil {
		installTotal.WithLabelValues("failed").Inc()
		g.logger.Error().Err(err).Msg("Install aborted")
		return err
	}

	for _, seed := range seeds {
		if err := gen.Put(ctx, seed.key, seed.snapshot); err != nil {
			installTotal.WithLabelValues("failed").Inc()
			if !existed {
				g.discard(ctx)
			}
			g.logger.Error().Err(err).Str("url", seed.path).Msg("Install aborted while storing seeds")
			return &InstallError{Resource: seed.path, Err: fmt.Errorf("store seed: %w", err)}
		}
	}

	installTotal.WithLabelValues("ok").Inc()
	g.logger.Info().
		Int("seeds", len(seeds)).
		Dur("duration", time.Since(start)).
		Msg("Cache generation installed")

	return nil
}

// generationExists reports whether the current generation is already in the
// store. When the store cannot list generations it answers true, so a failed
// install never deletes a generation it did not create.
func (g *Gateway) generationExists(ctx context.Context) bool {
	names, err := g.store.Names(ctx)
	if err != nil {
		g.logger.Debug().Err(err).Msg("Cannot list generations before install")
		return true
	}
	for _, name := range names {
		if name == g.config.Version {
			return true
		}
	}
	return false
}

// discard deletes the current generation and forgets the open handle, so
// the next install starts from an empty generation.
func (g *Gateway) discard(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.generation = nil
	if _, err := g.store.Delete(context.WithoutCancel(ctx), g.config.Version); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to discard partially installed generation")
	}
}

// Activate deletes every generation other than the current one.
func (g *Gateway) Activate(ctx context.Context) error {
	names, err := g.store.Names(ctx)
	if err != nil {
		return fmt.Errorf("list generations: %w", err)
	}

	purged := 0
	for _, name := range names {
		if name == g.config.Version {
			continue
		}
		if _, err := g.store.Delete(ctx, name); err != nil {
			return fmt.Errorf("delete generation %s: %w", name, err)
		}
		purged++
		g.logger.Info().Str("generation", name).Msg("Purged stale cache generation")
	}

	// Make sure the current generation exists even if install stored nothing
	if _, err := g.current(ctx); err != nil {
		return fmt.Errorf("open generation: %w", err)
	}

	g.logger.Info().Int("purged", purged).Msg("Cache generation activated")
	return nil
}

// ListGenerations returns the names of all existing generations.
func (g *Gateway) ListGenerations(ctx context.Context) ([]string, error) {
	return g.store.Names(ctx)
}

// Excluded reports whether req matches a configured exclusion pattern.
func (g *Gateway) Excluded(req *http.Request) bool {
	if req.URL == nil {
		return false
	}
	target := req.URL.String()
	for _, pattern := range g.config.Exclude {
		if pattern != "" && strings.Contains(target, pattern) {
			return true
		}
	}
	return false
}

// Intercept answers req from the cache or the network.
// It always terminates with either a response or an error; errors from the
// live fetch that cannot be recovered by the offline fallback are returned as
// *NetworkError.
func (g *Gateway) Intercept(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()
	endpoint := req.URL.Path

	// Step 1: Only read-only fetches are intercepted
	if req.Method != http.MethodGet {
		g.record(OutcomePassThrough, start)
		return g.fetcher.Do(req)
	}

	// Step 2: Excluded hosts are dynamic per call and never cached
	if g.Excluded(req) {
		g.logger.Debug().Str("url", req.URL.String()).Msg("Excluded request passed through")
		g.record(OutcomePassThrough, start)
		return g.fetcher.Do(req)
	}

	// Step 3: Look up the current generation
	key := cache.KeyFor(req)
	gen, err := g.current(ctx)
	if err != nil {
		g.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache open error")
	} else {
		snap, err := gen.Match(ctx, key)
		switch {
		case err == nil:
			g.logger.Debug().Str("endpoint", endpoint).Bool("cache_hit", true).Msg("Served from cache")
			g.record(OutcomeHit, start)
			return snap.Response(req), nil
		case !errors.Is(err, cache.ErrCacheMiss):
			g.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	// Step 4: Miss - go to the network
	resp, err := g.fetcher.Do(req)
	if err != nil {
		return g.fallback(req, gen, err, start)
	}

	if !cache.Cacheable(req, resp, g.config.Origin) {
		g.logger.Debug().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg("Response not cacheable")
		g.record(OutcomeNetwork, start)
		return resp, nil
	}

	// Step 5: Capture before the caller consumes the body
	snap, err := cache.Capture(resp)
	if err != nil {
		return g.fallback(req, gen, err, start)
	}

	if gen != nil {
		if err := gen.Put(ctx, key, snap); err != nil {
			g.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache response")
		} else {
			g.logger.Debug().
				Str("endpoint", endpoint).
				Int("bytes", snap.Size()).
				Msg("Cached response")
		}
	}

	g.record(OutcomeStored, start)
	return resp, nil
}

// fallback serves the cached shell document after a network failure.
func (g *Gateway) fallback(req *http.Request, gen cache.Generation, cause error, start time.Time) (*http.Response, error) {
	g.logger.Warn().
		Err(cause).
		Str("endpoint", req.URL.Path).
		Msg("Network request failed, trying offline fallback")

	// The request context may be the reason the fetch failed
	ctx := context.WithoutCancel(req.Context())
	if gen == nil {
		opened, err := g.current(ctx)
		if err != nil {
			g.logger.Warn().Err(err).Msg("Cache open error during fallback")
		}
		gen = opened
	}

	if gen != nil {
		shell, err := g.shellRequest(ctx)
		if err == nil {
			snap, err := gen.Match(ctx, cache.KeyFor(shell))
			if err == nil {
				g.record(OutcomeFallback, start)
				return snap.Response(req), nil
			}
			if !errors.Is(err, cache.ErrCacheMiss) {
				g.logger.Warn().Err(err).Msg("Cache get error during fallback")
			}
		}
	}

	g.record(OutcomeFallbackMiss, start)
	return nil, &NetworkError{URL: req.URL.String(), Err: cause}
}

// shellRequest builds the GET request for the cached shell document.
func (g *Gateway) shellRequest(ctx context.Context) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, g.config.Origin+g.config.ShellPath, nil)
}

func (g *Gateway) record(outcome string, start time.Time) {
	interceptTotal.WithLabelValues(outcome).Inc()
	interceptDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
