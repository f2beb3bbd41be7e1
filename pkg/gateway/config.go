package gateway

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultShellPath is the path of the root document served as the offline page.
const DefaultShellPath = "/"

// Config holds the gateway configuration.
type Config struct {
	// Version is the current cache generation name. Bumping it invalidates
	// every previously cached entry on the next activation.
	Version string

	// Origin is the application origin (scheme://host[:port]). Only responses
	// from this origin are cached.
	Origin string

	// Seeds are origin-relative paths pre-cached on install.
	Seeds []string

	// Exclude lists substrings; a request whose URL contains any of them is
	// never intercepted.
	Exclude []string

	// ShellPath is the cached document returned when the network fails.
	ShellPath string

	// SeedConcurrency bounds parallel seed fetches during install.
	SeedConcurrency int
}

// Validate checks the configuration and fills derived defaults.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Version) == "" {
		return fmt.Errorf("cache version is required")
	}

	u, err := url.Parse(c.Origin)
	if err != nil {
		return fmt.Errorf("parse origin: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("origin must be absolute (got %q)", c.Origin)
	}
	c.Origin = u.Scheme + "://" + u.Host

	if c.ShellPath == "" {
		c.ShellPath = DefaultShellPath
	}
	if !strings.HasPrefix(c.ShellPath, "/") {
		return fmt.Errorf("shell path must start with / (got %q)", c.ShellPath)
	}

	for _, seed := range c.Seeds {
		if !strings.HasPrefix(seed, "/") {
			return fmt.Errorf("seed %q must be an origin-relative path", seed)
		}
	}

	if c.SeedConcurrency <= 0 {
		c.SeedConcurrency = 4
	}
	return nil
}
