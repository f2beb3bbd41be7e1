package config

import (
	"fmt"
)

// Loader assembles a Config from its layers.
type Loader struct {
	// Path is the TOML file; a missing file is skipped.
	Path string

	// Base holds defaults overlaid with flag values.
	Base Config

	// Changed names the flags set explicitly on the command line.
	Changed map[string]bool
}

// Load applies the file and the environment over Base. The result is not
// validated.
func (l Loader) Load() (Config, error) {
	cfg := l.Base
	cfg.Seeds = append([]string(nil), l.Base.Seeds...)
	cfg.Exclude = append([]string(nil), l.Base.Exclude...)

	if l.Path != "" && FileExists(l.Path) {
		fc, err := loadFileConfig(l.Path)
		if err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", l.Path, err)
		}
		if err := applyFileConfig(&cfg, fc, l.Changed); err != nil {
			return Config{}, fmt.Errorf("apply config file %s: %w", l.Path, err)
		}
	}

	if err := applyEnvConfig(&cfg, l.Changed); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
