package trigger

import (
	"time"

	"github.com/Sternrassler/offline-agent/pkg/client"
)

// Policy holds the retry configuration applied after a failed replay.
type Policy struct {
	// MaxAttempts is the maximum number of replay runs per trigger (including the first).
	MaxAttempts int

	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between retries.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultPolicy returns the default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		InitialBackoff:    5 * time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// PolicyFor returns the retry policy for an upload error class.
func PolicyFor(errorClass client.ErrorClass) Policy {
	switch errorClass {
	case client.ErrorClassRateLimit:
		// 429 - longer backoff
		return Policy{
			MaxAttempts:       3,
			InitialBackoff:    10 * time.Second,
			MaxBackoff:        60 * time.Second,
			BackoffMultiplier: 2.0,
		}
	case client.ErrorClassClient:
		// The endpoint rejected the payload; repeating it now will not help
		return Policy{MaxAttempts: 1}
	default:
		return DefaultPolicy()
	}
}

// Backoff returns the jittered wait after the given failed attempt (1-based).
// r must be in [0, 1); it spreads the wait by ±20%.
func (p Policy) Backoff(attempt int, r float64) time.Duration {
	backoff := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * p.BackoffMultiplier)
		if backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
			break
		}
	}
	if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
		backoff = p.MaxBackoff
	}

	// Add jitter (±20% randomness)
	return time.Duration(float64(backoff) * (0.8 + r*0.4))
}
