package config

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config but uses strings for durations to make TOML friendly.
type fileConfig struct {
	Listen          string   `toml:"listen"`
	Origin          string   `toml:"origin"`
	UploadEndpoint  string   `toml:"upload_endpoint"`
	CacheVersion    string   `toml:"cache_version"`
	Seeds           []string `toml:"seeds"`
	Exclude         []string `toml:"exclude"`
	ShellPath       string   `toml:"shell_path"`
	SeedConcurrency int      `toml:"seed_concurrency"`
	RedisURL        string   `toml:"redis_url"`
	PendingDB       string   `toml:"pending_db"`
	SyncTag         string   `toml:"sync_tag"`
	SyncSchedule    string   `toml:"sync_schedule"`
	UploadTimeout   string   `toml:"upload_timeout"`
	ProbeInterval   string   `toml:"probe_interval"`
	LogLevel        string   `toml:"log_level"`
	LogPretty       *bool    `toml:"log_pretty"`
}

// loadFileConfig reads and parses a TOML config file.
func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// applyFileConfig applies configuration from a file to cfg.
// It respects flags that have been explicitly set (changed map).
func applyFileConfig(cfg *Config, fc fileConfig, changed map[string]bool) error {
	s := newSetter(changed)

	s.setString("listen", fc.Listen, &cfg.Listen)
	s.setString("origin", fc.Origin, &cfg.Origin)
	s.setString("upload-endpoint", fc.UploadEndpoint, &cfg.UploadEndpoint)
	s.setString("cache-version", fc.CacheVersion, &cfg.CacheVersion)
	s.setStrings("seeds", fc.Seeds, &cfg.Seeds)
	s.setStrings("exclude", fc.Exclude, &cfg.Exclude)
	s.setString("shell-path", fc.ShellPath, &cfg.ShellPath)
	s.setInt("seed-concurrency", fc.SeedConcurrency, &cfg.SeedConcurrency)
	s.setString("redis-url", fc.RedisURL, &cfg.RedisURL)
	s.setString("pending-db", fc.PendingDB, &cfg.PendingDB)
	s.setString("sync-tag", fc.SyncTag, &cfg.SyncTag)
	s.setString("sync-schedule", fc.SyncSchedule, &cfg.SyncSchedule)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setBool("log-pretty", fc.LogPretty, &cfg.LogPretty)

	if err := s.setDuration("upload-timeout", fc.UploadTimeout, &cfg.UploadTimeout); err != nil {
		return err
	}
	if err := s.setDuration("probe-interval", fc.ProbeInterval, &cfg.ProbeInterval); err != nil {
		return err
	}

	return nil
}

// DefaultConfigPath returns ~/.offline-agent/config.toml, or "" if the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".offline-agent", "config.toml")
	}
	return ""
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
