package config

import (
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/offline-agent/pkg/logging"
)

func validConfig() Config {
	cfg := Default()
	cfg.Origin = "http://app.local:3000"
	cfg.UploadEndpoint = "http://app.local:3000/api/sync"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.CacheVersion != "offline-cache-v1" {
		t.Errorf("CacheVersion = %q, want offline-cache-v1", cfg.CacheVersion)
	}
	if cfg.SyncTag != "sync-pending" {
		t.Errorf("SyncTag = %q, want sync-pending", cfg.SyncTag)
	}
	if cfg.ShellPath != "/" {
		t.Errorf("ShellPath = %q, want /", cfg.ShellPath)
	}
	if len(cfg.Seeds) != 5 || cfg.Seeds[0] != "/" || cfg.Seeds[4] != "/icon-512.png" {
		t.Errorf("Seeds = %v", cfg.Seeds)
	}
	if len(cfg.Exclude) != 1 || cfg.Exclude[0] != "generativelanguage.googleapis.com" {
		t.Errorf("Exclude = %v", cfg.Exclude)
	}
	if cfg.UploadEndpoint != "" {
		t.Errorf("UploadEndpoint should have no default, got %q", cfg.UploadEndpoint)
	}

	// Default seeds must not alias the package-level slice.
	cfg.Seeds[0] = "/changed"
	if DefaultSeeds[0] != "/" {
		t.Error("Default() leaked DefaultSeeds")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing origin", mutate: func(c *Config) { c.Origin = "" }, wantErr: "origin is required"},
		{name: "relative origin", mutate: func(c *Config) { c.Origin = "/app" }, wantErr: "absolute"},
		{name: "missing upload endpoint", mutate: func(c *Config) { c.UploadEndpoint = "" }, wantErr: "upload-endpoint is required"},
		{name: "relative upload endpoint", mutate: func(c *Config) { c.UploadEndpoint = "/api/sync" }, wantErr: "absolute"},
		{name: "missing version", mutate: func(c *Config) { c.CacheVersion = "" }, wantErr: "cache-version"},
		{name: "missing tag", mutate: func(c *Config) { c.SyncTag = "" }, wantErr: "sync-tag"},
		{name: "missing listen", mutate: func(c *Config) { c.Listen = "" }, wantErr: "listen"},
		{name: "missing db", mutate: func(c *Config) { c.PendingDB = "" }, wantErr: "pending-db"},
		{name: "zero upload timeout", mutate: func(c *Config) { c.UploadTimeout = 0 }, wantErr: "timeout"},
		{name: "negative probe interval", mutate: func(c *Config) { c.ProbeInterval = -time.Second }, wantErr: "probe interval"},
		{name: "disabled probing", mutate: func(c *Config) { c.ProbeInterval = 0 }},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_TrimsOriginSlash(t *testing.T) {
	cfg := validConfig()
	cfg.Origin = "http://app.local:3000/"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if cfg.Origin != "http://app.local:3000" {
		t.Errorf("Origin = %q", cfg.Origin)
	}
}

func TestValidateLocal(t *testing.T) {
	cfg := Default()
	if err := cfg.ValidateLocal(); err != nil {
		t.Errorf("ValidateLocal() without origin should pass: %v", err)
	}

	cfg.PendingDB = ""
	if err := cfg.ValidateLocal(); err == nil {
		t.Error("ValidateLocal() expected error for empty pending-db")
	}
}

func TestDerivedConfigs(t *testing.T) {
	cfg := validConfig()
	cfg.UploadTimeout = 7 * time.Second
	cfg.ProbeInterval = 3 * time.Second
	cfg.LogLevel = "debug"
	cfg.LogPretty = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	gw := cfg.Gateway()
	if gw.Version != cfg.CacheVersion || gw.Origin != cfg.Origin || gw.ShellPath != "/" {
		t.Errorf("Gateway() = %+v", gw)
	}
	gw.Seeds[0] = "/mutated"
	if cfg.Seeds[0] != "/" {
		t.Error("Gateway() should copy seeds")
	}

	up := cfg.Upload()
	if up.Endpoint != cfg.UploadEndpoint || up.Timeout != 7*time.Second {
		t.Errorf("Upload() = %+v", up)
	}

	conn := cfg.Connectivity()
	if conn.URL != "http://app.local:3000/" || conn.Interval != 3*time.Second {
		t.Errorf("Connectivity() = %+v", conn)
	}

	lg := cfg.Logging()
	if lg.Level != logging.LevelDebug || !lg.Pretty {
		t.Errorf("Logging() = %+v", lg)
	}
}

func TestSetter(t *testing.T) {
	s := newSetter(map[string]bool{"listen": true})

	listen := "flag"
	s.setString("listen", "file", &listen)
	if listen != "flag" {
		t.Errorf("changed flag overridden: %q", listen)
	}

	origin := "default"
	s.setString("origin", "", &origin)
	if origin != "default" {
		t.Errorf("empty value applied: %q", origin)
	}

	seeds := []string{"/a"}
	s.setStrings("seeds", nil, &seeds)
	if len(seeds) != 1 {
		t.Errorf("nil slice applied: %v", seeds)
	}
	s.setStrings("seeds", []string{}, &seeds)
	if len(seeds) != 0 {
		t.Errorf("explicit empty slice not applied: %v", seeds)
	}

	var n int
	if err := s.setIntFromString("seed-concurrency", "x", &n); err == nil {
		t.Error("setIntFromString() expected parse error")
	}
	if err := s.setIntFromString("seed-concurrency", "8", &n); err != nil || n != 8 {
		t.Errorf("setIntFromString() = %d, %v", n, err)
	}

	var d time.Duration
	if err := s.setDuration("upload-timeout", "soon", &d); err == nil {
		t.Error("setDuration() expected parse error")
	}
}
