package pending

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrDuplicateKey is returned when a record with the same key is queued.
	ErrDuplicateKey = errors.New("pending record key already exists")

	// ErrInvalidPayload is returned when a payload is empty or not JSON.
	ErrInvalidPayload = errors.New("pending record payload must be valid JSON")
)

// Record is one queued item awaiting upload.
type Record struct {
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store is the durable queue contract the Replayer depends on.
type Store interface {
	// Enqueue adds rec. An empty key is replaced by a generated one; an
	// existing key is rejected with ErrDuplicateKey.
	Enqueue(ctx context.Context, rec Record) (Record, error)

	// All returns every queued record in enqueue order.
	All(ctx context.Context) ([]Record, error)

	// Delete removes the record with key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Count returns the number of queued records.
	Count(ctx context.Context) (int, error)
}

func validPayload(payload json.RawMessage) bool {
	return len(payload) > 0 && json.Valid(payload)
}
