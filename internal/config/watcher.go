package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// reloadDelay collapses bursts of file events into one reload.
const reloadDelay = 100 * time.Millisecond

// Watch reloads the configuration whenever the loader's file is written and
// passes every valid result to onChange. It blocks until ctx is done.
func Watch(ctx context.Context, l Loader, onChange func(Config)) error {
	if l.Path == "" {
		return fmt.Errorf("config path is required")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace files on save; watching the directory survives that.
	if err := watcher.Add(filepath.Dir(l.Path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(l.Path), err)
	}

	logger := log.With().Str("component", "config").Str("path", l.Path).Logger()
	name := filepath.Base(l.Path)

	var (
		mu       sync.Mutex
		debounce *time.Timer
	)
	defer func() {
		mu.Lock()
		if debounce != nil {
			debounce.Stop()
		}
		mu.Unlock()
	}()

	reload := func() {
		if ctx.Err() != nil {
			return
		}
		cfg, err := l.Load()
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			logger.Warn().Err(err).Msg("Config reload rejected")
			return
		}
		logger.Info().Msg("Config reloaded")
		onChange(cfg)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			mu.Lock()
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDelay, reload)
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("Config watcher error")
		}
	}
}
