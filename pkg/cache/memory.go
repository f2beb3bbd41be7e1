package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps generations in process memory. It backs the agent when
// no Redis address is configured and is used throughout the tests.
type MemoryStore struct {
	mu          sync.RWMutex
	generations map[string]map[string]*Snapshot
}

// NewMemoryStore creates an empty in-memory generation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		generations: make(map[string]map[string]*Snapshot),
	}
}

// Open returns the named generation, creating it if absent.
func (s *MemoryStore) Open(ctx context.Context, name string) (Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.generations[name]; !ok {
		s.generations[name] = make(map[string]*Snapshot)
	}
	return &memoryGeneration{store: s, name: name}, nil
}

// Names lists generation names in sorted order.
func (s *MemoryStore) Names(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.generations))
	for name := range s.generations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a generation.
func (s *MemoryStore) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.generations[name]; !ok {
		return false, nil
	}
	delete(s.generations, name)
	GenerationsDeleted.Inc()
	return true, nil
}

type memoryGeneration struct {
	store *MemoryStore
	name  string
}

func (g *memoryGeneration) Name() string { return g.name }

func (g *memoryGeneration) Match(ctx context.Context, key Key) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.store.mu.RLock()
	defer g.store.mu.RUnlock()
	snap, ok := g.store.generations[g.name][key.String()]
	if !ok {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}
	CacheHits.WithLabelValues("memory").Inc()
	return snap.Clone(), nil
}

func (g *memoryGeneration) Put(ctx context.Context, key Key, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap == nil {
		return ErrInvalidEntry
	}

	g.store.mu.Lock()
	defer g.store.mu.Unlock()
	entries, ok := g.store.generations[g.name]
	if !ok {
		return ErrUnknownGeneration
	}
	entries[key.String()] = snap.Clone()
	CacheBytesWritten.WithLabelValues("memory").Add(float64(snap.Size()))
	return nil
}

func (g *memoryGeneration) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.store.mu.RLock()
	defer g.store.mu.RUnlock()
	keys := make([]string, 0, len(g.store.generations[g.name]))
	for key := range g.store.generations[g.name] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
