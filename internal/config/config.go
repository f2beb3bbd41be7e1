// Package config loads the offline agent configuration.
//
// Values are layered: built-in defaults, then the TOML file, then
// OFFLINE_AGENT_* environment variables, then command-line flags. A value
// whose flag was set explicitly is never overridden by the file or the
// environment.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/offline-agent/pkg/client"
	"github.com/Sternrassler/offline-agent/pkg/connectivity"
	"github.com/Sternrassler/offline-agent/pkg/gateway"
	"github.com/Sternrassler/offline-agent/pkg/logging"
)

// Defaults.
const (
	DefaultListen       = "127.0.0.1:8787"
	DefaultCacheVersion = "offline-cache-v1"
	DefaultShellPath    = "/"
	DefaultSyncTag      = "sync-pending"
	DefaultPendingDB    = "offline-agent.db"
	DefaultExclude      = "generativelanguage.googleapis.com"
)

// DefaultSeeds are the shell resources pre-cached on install.
var DefaultSeeds = []string{"/", "/index.html", "/manifest.json", "/icon-192.png", "/icon-512.png"}

// Config holds the agent configuration.
type Config struct {
	// Listen is the address the agent serves on.
	Listen string

	// Origin is the application origin the agent fronts.
	Origin string

	// UploadEndpoint receives pending records. There is no default.
	UploadEndpoint string

	// Cache Gateway
	CacheVersion    string
	Seeds           []string
	Exclude         []string
	ShellPath       string
	SeedConcurrency int

	// RedisURL selects the Redis cache store; empty keeps generations in memory.
	RedisURL string

	// Pending-Sync Store
	PendingDB     string
	SyncTag       string
	SyncSchedule  string
	UploadTimeout time.Duration

	// Connectivity probing; zero disables it.
	ProbeInterval time.Duration

	LogLevel  string
	LogPretty bool
}

// Default returns a Config with default values.
func Default() Config {
	return Config{
		Listen:          DefaultListen,
		CacheVersion:    DefaultCacheVersion,
		Seeds:           append([]string(nil), DefaultSeeds...),
		Exclude:         []string{DefaultExclude},
		ShellPath:       DefaultShellPath,
		SeedConcurrency: 4,
		PendingDB:       DefaultPendingDB,
		SyncTag:         DefaultSyncTag,
		UploadTimeout:   30 * time.Second,
		ProbeInterval:   15 * time.Second,
		LogLevel:        "info",
	}
}

// Validate checks the configuration for errors and normalizes URLs.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}

	origin, err := absoluteURL("origin", c.Origin)
	if err != nil {
		return err
	}
	c.Origin = strings.TrimRight(origin, "/")

	if c.UploadEndpoint == "" {
		return fmt.Errorf("upload-endpoint is required")
	}
	if c.UploadEndpoint, err = absoluteURL("upload-endpoint", c.UploadEndpoint); err != nil {
		return err
	}

	if c.CacheVersion == "" {
		return fmt.Errorf("cache-version is required")
	}
	if c.SyncTag == "" {
		return fmt.Errorf("sync-tag is required")
	}
	if c.PendingDB == "" {
		return fmt.Errorf("pending-db is required")
	}
	if c.UploadTimeout <= 0 {
		return fmt.Errorf("upload timeout must be positive")
	}
	if c.ProbeInterval < 0 {
		return fmt.Errorf("probe interval must not be negative")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// ValidateLocal checks only what commands working on local state need.
func (c *Config) ValidateLocal() error {
	if c.PendingDB == "" {
		return fmt.Errorf("pending-db is required")
	}
	return nil
}

func absoluteURL(name, raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", name, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%s must be an absolute URL (got %q)", name, raw)
	}
	return u.String(), nil
}

// Gateway returns the Cache Gateway configuration.
func (c Config) Gateway() gateway.Config {
	return gateway.Config{
		Version:         c.CacheVersion,
		Origin:          c.Origin,
		Seeds:           append([]string(nil), c.Seeds...),
		Exclude:         append([]string(nil), c.Exclude...),
		ShellPath:       c.ShellPath,
		SeedConcurrency: c.SeedConcurrency,
	}
}

// Upload returns the upload client configuration.
func (c Config) Upload() client.Config {
	cfg := client.DefaultConfig(c.UploadEndpoint)
	cfg.Timeout = c.UploadTimeout
	return cfg
}

// Connectivity returns the connectivity monitor configuration.
func (c Config) Connectivity() connectivity.Config {
	cfg := connectivity.DefaultConfig(c.Origin + "/")
	cfg.Interval = c.ProbeInterval
	return cfg
}

// Logging returns the logging configuration.
func (c Config) Logging() logging.Config {
	level, _ := logging.ParseLevel(c.LogLevel)
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Pretty = c.LogPretty
	return cfg
}

// setter applies configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type setter struct {
	changed map[string]bool
}

func newSetter(changed map[string]bool) *setter {
	return &setter{changed: changed}
}

func (s *setter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *setter) setStrings(flag string, value []string, dst *[]string) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = append([]string(nil), value...)
}

func (s *setter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *setter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *setter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *setter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	s.setInt(flag, i, dst)
	return nil
}
