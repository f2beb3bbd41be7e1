package connectivity

import (
	"testing"
	"time"
)

func TestState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		maxAge   time.Duration
		expected bool
	}{
		{
			name:     "fresh state",
			state:    State{LastCheck: time.Now()},
			maxAge:   time.Minute,
			expected: false,
		},
		{
			name:     "stale state",
			state:    State{LastCheck: time.Now().Add(-2 * time.Minute)},
			maxAge:   time.Minute,
			expected: true,
		},
		{
			name:     "never checked",
			state:    State{},
			maxAge:   time.Minute,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsStale(tt.maxAge); got != tt.expected {
				t.Errorf("IsStale() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_Next(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		state       State
		ok          bool
		threshold   int
		wantStatus  Status
		wantChanged bool
		wantFails   int
	}{
		{
			name:        "unknown to online",
			state:       State{Status: StatusUnknown},
			ok:          true,
			threshold:   2,
			wantStatus:  StatusOnline,
			wantChanged: true,
		},
		{
			name:        "single failure below threshold",
			state:       State{Status: StatusOnline},
			ok:          false,
			threshold:   2,
			wantStatus:  StatusOnline,
			wantChanged: false,
			wantFails:   1,
		},
		{
			name:        "failure reaches threshold",
			state:       State{Status: StatusOnline, ConsecutiveFailures: 1},
			ok:          false,
			threshold:   2,
			wantStatus:  StatusOffline,
			wantChanged: true,
			wantFails:   2,
		},
		{
			name:        "offline to online resets failures",
			state:       State{Status: StatusOffline, ConsecutiveFailures: 5},
			ok:          true,
			threshold:   2,
			wantStatus:  StatusOnline,
			wantChanged: true,
		},
		{
			name:        "still offline",
			state:       State{Status: StatusOffline, ConsecutiveFailures: 3},
			ok:          false,
			threshold:   2,
			wantStatus:  StatusOffline,
			wantChanged: false,
			wantFails:   4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := tt.state.next(tt.ok, tt.threshold, now)
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", got.Status, tt.wantStatus)
			}
			if changed != tt.wantChanged {
				t.Errorf("changed = %v, want %v", changed, tt.wantChanged)
			}
			if got.ConsecutiveFailures != tt.wantFails {
				t.Errorf("ConsecutiveFailures = %d, want %d", got.ConsecutiveFailures, tt.wantFails)
			}
			if !got.LastCheck.Equal(now) {
				t.Error("LastCheck not updated")
			}
			if changed && !got.LastChange.Equal(now) {
				t.Error("LastChange not updated on transition")
			}
		})
	}
}
