package trigger

import (
	"testing"
	"time"
)

func TestNewScheduler_Validation(t *testing.T) {
	d := newTestDispatcher(&fakeReplayer{})

	tests := []struct {
		name       string
		spec       string
		dispatcher *Dispatcher
		wantErr    bool
	}{
		{name: "standard spec", spec: "*/5 * * * *", dispatcher: d},
		{name: "descriptor", spec: "@every 5m", dispatcher: d},
		{name: "invalid spec", spec: "every five minutes", dispatcher: d, wantErr: true},
		{name: "nil dispatcher", spec: "@hourly", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScheduler(tt.spec, tt.dispatcher)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewScheduler() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScheduler_FiresTrigger(t *testing.T) {
	replayer := &fakeReplayer{}
	d := newTestDispatcher(replayer)

	s, err := NewScheduler("@every 1s", d)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for replayer.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if replayer.count() == 0 {
		t.Error("scheduled trigger never ran a replay")
	}
}
