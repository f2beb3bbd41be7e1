package trigger

import (
	"testing"
	"time"

	"github.com/Sternrassler/offline-agent/pkg/client"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	if p.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", p.MaxAttempts)
	}
	if p.InitialBackoff != 5*time.Second {
		t.Errorf("InitialBackoff = %v, want 5s", p.InitialBackoff)
	}
	if p.MaxBackoff != 60*time.Second {
		t.Errorf("MaxBackoff = %v, want 60s", p.MaxBackoff)
	}
	if p.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", p.BackoffMultiplier)
	}
}

func TestPolicyFor(t *testing.T) {
	tests := []struct {
		name         string
		errorClass   client.ErrorClass
		wantAttempts int
		wantInitial  time.Duration
	}{
		{name: "server", errorClass: client.ErrorClassServer, wantAttempts: 3, wantInitial: 5 * time.Second},
		{name: "network", errorClass: client.ErrorClassNetwork, wantAttempts: 3, wantInitial: 5 * time.Second},
		{name: "rate limit", errorClass: client.ErrorClassRateLimit, wantAttempts: 3, wantInitial: 10 * time.Second},
		{name: "client", errorClass: client.ErrorClassClient, wantAttempts: 1},
		{name: "unknown", errorClass: "", wantAttempts: 3, wantInitial: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PolicyFor(tt.errorClass)
			if p.MaxAttempts != tt.wantAttempts {
				t.Errorf("MaxAttempts = %d, want %d", p.MaxAttempts, tt.wantAttempts)
			}
			if p.InitialBackoff != tt.wantInitial {
				t.Errorf("InitialBackoff = %v, want %v", p.InitialBackoff, tt.wantInitial)
			}
		})
	}
}

func TestPolicy_Backoff(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name    string
		attempt int
		r       float64
		want    time.Duration
	}{
		{name: "first retry no jitter", attempt: 1, r: 0.5, want: 5 * time.Second},
		{name: "second retry doubles", attempt: 2, r: 0.5, want: 10 * time.Second},
		{name: "third retry doubles again", attempt: 3, r: 0.5, want: 20 * time.Second},
		{name: "capped at max", attempt: 5, r: 0.5, want: 60 * time.Second},
		{name: "low jitter", attempt: 1, r: 0, want: 4 * time.Second},
		{name: "high jitter", attempt: 1, r: 1, want: 6 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Backoff(tt.attempt, tt.r); got != tt.want {
				t.Errorf("Backoff(%d, %v) = %v, want %v", tt.attempt, tt.r, got, tt.want)
			}
		})
	}
}
