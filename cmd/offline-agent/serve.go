package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/offline-agent/internal/config"
	"github.com/Sternrassler/offline-agent/pkg/agent"
	"github.com/Sternrassler/offline-agent/pkg/connectivity"
	"github.com/Sternrassler/offline-agent/pkg/notify"
	"github.com/Sternrassler/offline-agent/pkg/pending"
	"github.com/Sternrassler/offline-agent/pkg/trigger"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, c.loader(changedFlags(cmd)))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&c.cfg.CacheVersion, "cache-version", c.cfg.CacheVersion, "cache generation name; bump to invalidate every cached response")
	flags.StringSliceVar(&c.cfg.Seeds, "seeds", c.cfg.Seeds, "origin paths pre-cached on install")
	flags.StringSliceVar(&c.cfg.Exclude, "exclude", c.cfg.Exclude, "URL substrings never intercepted")
	flags.StringVar(&c.cfg.ShellPath, "shell-path", c.cfg.ShellPath, "cached document served when the network fails")
	flags.IntVar(&c.cfg.SeedConcurrency, "seed-concurrency", c.cfg.SeedConcurrency, "parallel seed fetches during install")
	flags.StringVar(&c.cfg.SyncSchedule, "sync-schedule", c.cfg.SyncSchedule, "cron schedule for periodic sync (e.g. \"@every 5m\")")
	flags.DurationVar(&c.cfg.ProbeInterval, "probe-interval", c.cfg.ProbeInterval, "connectivity probe interval (0 disables)")

	return cmd
}

// app is a fully wired agent process.
type app struct {
	cfg        config.Config
	agent      *agent.Agent
	pending    *pending.SQLiteStore
	dispatcher *trigger.Dispatcher
	scheduler  *trigger.Scheduler
	monitor    *connectivity.Monitor
	closeCache func()
}

// newApp wires every component for cfg. Runs are bound to ctx.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	uploader, err := newUploader(cfg)
	if err != nil {
		return nil, err
	}

	cacheStore, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := openPending(ctx, cfg)
	if err != nil {
		closeCache()
		return nil, err
	}

	hub := notify.NewHub()
	dispatcher := trigger.NewDispatcher(cfg.SyncTag, pending.NewReplayer(store, uploader, hub))
	dispatcher.Start(ctx)

	a, err := agent.New(agent.Options{
		Gateway:    cfg.Gateway(),
		Cache:      cacheStore,
		Fetcher:    &http.Client{Timeout: cfg.UploadTimeout},
		Pending:    store,
		Dispatcher: dispatcher,
		Hub:        hub,
	})
	if err != nil {
		_ = store.Close()
		closeCache()
		return nil, err
	}

	ap := &app{
		cfg:        cfg,
		agent:      a,
		pending:    store,
		dispatcher: dispatcher,
		closeCache: closeCache,
	}

	if cfg.SyncSchedule != "" {
		if ap.scheduler, err = trigger.NewScheduler(cfg.SyncSchedule, dispatcher); err != nil {
			ap.close()
			return nil, err
		}
	}

	if cfg.ProbeInterval > 0 {
		ap.monitor, err = connectivity.NewMonitor(cfg.Connectivity(), func() {
			ap.onOnline(ctx)
		})
		if err != nil {
			ap.close()
			return nil, err
		}
	}

	return ap, nil
}

// onOnline replays the queue and retries a failed install.
func (ap *app) onOnline(ctx context.Context) {
	ap.agent.OnSyncTrigger(ap.cfg.SyncTag, trigger.SourceConnectivity)
	if !ap.agent.Controlled() {
		if err := ap.agent.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("Install retry after reconnect failed")
		}
	}
}

// onConfig upgrades the cache version when the config file changes it.
func (ap *app) onConfig(ctx context.Context, cfg config.Config) {
	if cfg.CacheVersion == ap.agent.Version() {
		return
	}
	if err := ap.agent.Upgrade(ctx, cfg.CacheVersion); err != nil {
		log.Error().Err(err).Str("version", cfg.CacheVersion).Msg("Cache version upgrade failed")
	}
}

// run starts the background parts and blocks until ctx is done.
func (ap *app) run(ctx context.Context, loader config.Loader) {
	if err := ap.agent.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Agent install failed; serving uncontrolled")
	}

	// Records left over from a previous run.
	ap.agent.OnSyncTrigger(ap.cfg.SyncTag, trigger.SourceStartup)

	if ap.scheduler != nil {
		if err := ap.scheduler.Start(); err != nil {
			log.Error().Err(err).Msg("Sync schedule disabled")
		}
	}
	if ap.monitor != nil {
		go ap.monitor.Run(ctx)
	}
	if loader.Path != "" && config.FileExists(loader.Path) {
		go func() {
			err := config.Watch(ctx, loader, func(cfg config.Config) { ap.onConfig(ctx, cfg) })
			if err != nil {
				log.Warn().Err(err).Msg("Config watcher stopped")
			}
		}()
	}

	<-ctx.Done()
}

func (ap *app) close() {
	if ap.scheduler != nil {
		ap.scheduler.Stop()
	}
	ap.dispatcher.Close()
	ap.agent.Close()
	if err := ap.pending.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close pending store")
	}
	ap.closeCache()
}

func serve(ctx context.Context, cfg config.Config, loader config.Loader) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ap, err := newApp(runCtx, cfg)
	if err != nil {
		return err
	}
	defer ap.close()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           ap.agent.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("listen", cfg.Listen).
			Str("origin", cfg.Origin).
			Str("version", cfg.CacheVersion).
			Msg("Starting offline agent")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			cancel()
		}
	}()

	ap.run(runCtx, loader)
	log.Info().Msg("Shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	default:
		return nil
	}
}
