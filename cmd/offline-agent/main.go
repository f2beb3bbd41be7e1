package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/Sternrassler/offline-agent/internal/config"
	"github.com/Sternrassler/offline-agent/pkg/logging"
	"github.com/rs/zerolog/log"
)

const longHelp = `Run an offline-first agent in front of a single-page application.

The agent pre-caches the application shell into a versioned cache generation,
answers requests from the cache when the origin is unreachable, and replays
records queued while offline to the upload endpoint once connectivity returns.

Configuration is read from the config file, then OFFLINE_AGENT_* environment
variables, then flags. Flags set on the command line always win.`

var exampleUsage = strings.TrimSpace(`
  offline-agent serve --origin http://localhost:3000 --upload-endpoint https://api.example.com/sync
  offline-agent enqueue --payload '{"note":"written offline"}'
  offline-agent sync
  offline-agent generations --redis-url redis://localhost:6379/0
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli holds state shared by all commands.
type cli struct {
	cfg     config.Config
	cfgPath string
}

func newRootCmd() *cobra.Command {
	c := &cli{cfg: config.Default()}

	root := &cobra.Command{
		Use:           "offline-agent",
		Short:         "Offline cache gateway and pending-sync agent",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.offline-agent/config.toml)")
	flags.StringVar(&c.cfg.Origin, "origin", c.cfg.Origin, "application origin URL")
	flags.StringVar(&c.cfg.UploadEndpoint, "upload-endpoint", c.cfg.UploadEndpoint, "URL receiving pending records (required for serve and sync)")
	flags.StringVar(&c.cfg.PendingDB, "pending-db", c.cfg.PendingDB, "SQLite file holding pending records")
	flags.StringVar(&c.cfg.RedisURL, "redis-url", c.cfg.RedisURL, "Redis URL for cache generations (default: in-memory)")
	flags.StringVar(&c.cfg.SyncTag, "sync-tag", c.cfg.SyncTag, "sync trigger tag")
	flags.StringVar(&c.cfg.Listen, "listen", c.cfg.Listen, "agent listen address")
	flags.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.BoolVar(&c.cfg.LogPretty, "log-pretty", c.cfg.LogPretty, "human-readable console logs")
	flags.DurationVar(&c.cfg.UploadTimeout, "upload-timeout", c.cfg.UploadTimeout, "timeout for one upload request")

	root.AddCommand(
		newServeCmd(c),
		newEnqueueCmd(c),
		newSyncCmd(c),
		newGenerationsCmd(c),
	)

	return root
}

// load layers file and environment under the flags set on cmd and sets up
// logging. The result is not validated.
func (c *cli) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := c.loader(changedFlags(cmd)).Load()
	if err != nil {
		return config.Config{}, err
	}

	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return config.Config{}, err
	}
	logCfg := cfg.Logging()
	logCfg.Output = cmd.ErrOrStderr()
	logging.Setup(logCfg)

	return cfg, nil
}

// changedFlags names the flags set explicitly on the command line.
func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	return changed
}

func (c *cli) loader(changed map[string]bool) config.Loader {
	path := c.cfgPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Loader{Path: path, Base: c.cfg, Changed: changed}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("offline-agent")
		os.Exit(1)
	}
}
