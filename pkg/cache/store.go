package cache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates the requested key was not found in the generation
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored snapshot is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrInvalidName indicates an empty generation name
	ErrInvalidName = errors.New("invalid generation name")

	// ErrUnknownGeneration indicates a write to a generation that was deleted
	ErrUnknownGeneration = errors.New("unknown cache generation")
)

// Store holds named cache generations.
type Store interface {
	// Open returns the generation called name, creating it if absent.
	Open(ctx context.Context, name string) (Generation, error)

	// Names lists all existing generation names in sorted order.
	Names(ctx context.Context) ([]string, error)

	// Delete removes the generation and all its entries.
	// It reports whether the generation existed.
	Delete(ctx context.Context, name string) (bool, error)
}

// Generation is one named collection of cached responses.
type Generation interface {
	// Name returns the generation name.
	Name() string

	// Match returns a copy of the snapshot stored under key, or ErrCacheMiss.
	Match(ctx context.Context, key Key) (*Snapshot, error)

	// Put stores a copy of snap under key. Concurrent writes to the same key
	// resolve last-write-wins. Writing to a deleted generation fails with
	// ErrUnknownGeneration.
	Put(ctx context.Context, key Key, snap *Snapshot) error

	// Keys lists the key strings of all stored entries in sorted order.
	Keys(ctx context.Context) ([]string, error)
}
