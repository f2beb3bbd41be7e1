// Package connectivity watches whether the origin is reachable and reports
// the offline→online transition that triggers a pending-queue sync.
package connectivity

import (
	"time"
)

// Status is the reachability of the probed origin.
type Status string

const (
	// StatusUnknown is the state before the first probe.
	StatusUnknown Status = "unknown"

	// StatusOnline means the last probe got an HTTP response.
	StatusOnline Status = "online"

	// StatusOffline means FailureThreshold consecutive probes failed.
	StatusOffline Status = "offline"
)

// State is the monitor's current view of connectivity.
type State struct {
	// Status is the current reachability.
	Status Status `json:"status"`

	// LastCheck is when the last probe finished.
	LastCheck time.Time `json:"last_check"`

	// LastChange is when Status last changed.
	LastChange time.Time `json:"last_change"`

	// ConsecutiveFailures counts failed probes since the last success.
	ConsecutiveFailures int `json:"consecutive_failures"`
}

// Online reports whether the origin was reachable at the last probe.
func (s State) Online() bool {
	return s.Status == StatusOnline
}

// IsStale returns true if the last probe is older than maxAge.
func (s State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastCheck) > maxAge
}

// next returns the state after a probe outcome and whether it changed status.
func (s State) next(ok bool, threshold int, now time.Time) (State, bool) {
	s.LastCheck = now
	prev := s.Status

	if ok {
		s.ConsecutiveFailures = 0
		s.Status = StatusOnline
	} else {
		s.ConsecutiveFailures++
		if s.ConsecutiveFailures >= threshold {
			s.Status = StatusOffline
		}
	}

	if s.Status != prev {
		s.LastChange = now
		return s, true
	}
	return s, false
}
