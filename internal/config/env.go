package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable the agent reads.
const EnvPrefix = "OFFLINE_AGENT_"

// envConfig holds raw environment values. Pointers and nil slices mark
// variables that are not set.
type envConfig struct {
	Listen          string   `env:"LISTEN"`
	Origin          string   `env:"ORIGIN"`
	UploadEndpoint  string   `env:"UPLOAD_ENDPOINT"`
	CacheVersion    string   `env:"CACHE_VERSION"`
	Seeds           []string `env:"SEEDS" envSeparator:","`
	Exclude         []string `env:"EXCLUDE" envSeparator:","`
	ShellPath       string   `env:"SHELL_PATH"`
	SeedConcurrency string   `env:"SEED_CONCURRENCY"`
	RedisURL        string   `env:"REDIS_URL"`
	PendingDB       string   `env:"PENDING_DB"`
	SyncTag         string   `env:"SYNC_TAG"`
	SyncSchedule    string   `env:"SYNC_SCHEDULE"`
	UploadTimeout   string   `env:"UPLOAD_TIMEOUT"`
	ProbeInterval   string   `env:"PROBE_INTERVAL"`
	LogLevel        string   `env:"LOG_LEVEL"`
	LogPretty       *bool    `env:"LOG_PRETTY"`
}

// applyEnvConfig applies configuration from OFFLINE_AGENT_* environment
// variables. It respects flags that have been explicitly set (changed map).
func applyEnvConfig(cfg *Config, changed map[string]bool) error {
	var ec envConfig
	if err := env.ParseWithOptions(&ec, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	s := newSetter(changed)

	s.setString("listen", ec.Listen, &cfg.Listen)
	s.setString("origin", ec.Origin, &cfg.Origin)
	s.setString("upload-endpoint", ec.UploadEndpoint, &cfg.UploadEndpoint)
	s.setString("cache-version", ec.CacheVersion, &cfg.CacheVersion)
	s.setStrings("seeds", ec.Seeds, &cfg.Seeds)
	s.setStrings("exclude", ec.Exclude, &cfg.Exclude)
	s.setString("shell-path", ec.ShellPath, &cfg.ShellPath)
	s.setString("redis-url", ec.RedisURL, &cfg.RedisURL)
	s.setString("pending-db", ec.PendingDB, &cfg.PendingDB)
	s.setString("sync-tag", ec.SyncTag, &cfg.SyncTag)
	s.setString("sync-schedule", ec.SyncSchedule, &cfg.SyncSchedule)
	s.setString("log-level", ec.LogLevel, &cfg.LogLevel)
	s.setBool("log-pretty", ec.LogPretty, &cfg.LogPretty)

	if err := s.setIntFromString("seed-concurrency", ec.SeedConcurrency, &cfg.SeedConcurrency); err != nil {
		return err
	}
	if err := s.setDuration("upload-timeout", ec.UploadTimeout, &cfg.UploadTimeout); err != nil {
		return err
	}
	if err := s.setDuration("probe-interval", ec.ProbeInterval, &cfg.ProbeInterval); err != nil {
		return err
	}

	return nil
}
