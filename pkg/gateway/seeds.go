package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/Sternrassler/offline-agent/pkg/cache"
)

// seedResult is one pre-cached seed resource.
type seedResult struct {
	path     string
	key      cache.Key
	snapshot *cache.Snapshot
	err      error
}

// uniqueSeeds returns the configured seeds without duplicates, in order.
func (g *Gateway) uniqueSeeds() []string {
	seen := make(map[string]bool, len(g.config.Seeds))
	seeds := make([]string, 0, len(g.config.Seeds))
	for _, seed := range g.config.Seeds {
		if seen[seed] {
			continue
		}
		seen[seed] = true
		seeds = append(seeds, seed)
	}
	return seeds
}

// fetchSeeds fetches every seed with a bounded worker pool.
// The first failure cancels outstanding fetches and is returned as an
// *InstallError; no partial result is returned.
func (g *Gateway) fetchSeeds(ctx context.Context) ([]seedResult, error) {
	seeds := g.uniqueSeeds()
	if len(seeds) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	seedQueue := make(chan string, len(seeds))
	for _, seed := range seeds {
		seedQueue <- seed
	}
	close(seedQueue)

	results := make(chan seedResult, len(seeds))

	workers := g.config.SeedConcurrency
	if workers > len(seeds) {
		workers = len(seeds)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go g.seedWorker(ctx, seedQueue, results, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	fetched := make(map[string]seedResult, len(seeds))
	var firstErr error
	for result := range results {
		if result.err != nil {
			seedFetchTotal.WithLabelValues("failed").Inc()
			if firstErr == nil {
				firstErr = &InstallError{Resource: result.path, Err: result.err}
				cancel()
			}
			continue
		}
		seedFetchTotal.WithLabelValues("ok").Inc()
		fetched[result.path] = result
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if len(fetched) != len(seeds) {
		return nil, &InstallError{Err: fmt.Errorf("fetched %d of %d seeds: %w", len(fetched), len(seeds), ctx.Err())}
	}

	// Keep configured order
	ordered := make([]seedResult, 0, len(seeds))
	for _, seed := range seeds {
		ordered = append(ordered, fetched[seed])
	}
	return ordered, nil
}

// seedWorker processes seeds from the queue.
func (g *Gateway) seedWorker(ctx context.Context, seedQueue <-chan string, results chan<- seedResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for seed := range seedQueue {
		// Check context cancellation
		select {
		case <-ctx.Done():
			g.logger.Debug().
				Int("worker_id", workerID).
				Msg("Seed worker stopping (context cancelled)")
			return
		default:
		}

		results <- g.fetchSeed(ctx, seed)
	}
}

// fetchSeed fetches one seed resource. Any non-2xx status fails it.
func (g *Gateway) fetchSeed(ctx context.Context, seed string) seedResult {
	result := seedResult{path: seed}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.config.Origin+seed, nil)
	if err != nil {
		result.err = fmt.Errorf("create request: %w", err)
		return result
	}
	result.key = cache.KeyFor(req)

	resp, err := g.fetcher.Do(req)
	if err != nil {
		result.err = err
		return result
	}
	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		result.err = fmt.Errorf("unexpected status %d", resp.StatusCode)
		return result
	}

	snap, err := cache.Capture(resp)
	resp.Body.Close()
	if err != nil {
		result.err = err
		return result
	}
	result.snapshot = snap

	g.logger.Debug().Str("seed", seed).Int("bytes", snap.Size()).Msg("Seed fetched")
	return result
}
