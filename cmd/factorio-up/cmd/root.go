package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oshokin/factorio-up/internal/config"
	"github.com/oshokin/factorio-up/internal/logger"
	"github.com/oshokin/factorio-up/internal/service/updater"
	"github.com/oshokin/factorio-up/internal/version"
)

// flagValues holds raw flag input before it is merged over the config file.
type flagValues struct {
	configPath     string
	initMap        boolish
	saveFile       string
	mapGenSettings string
	mapSettings    string
	exePath        string
	dataDir        string
	user           string
	logLevel       string
}

// runFunc executes a run with fully merged settings.
type runFunc func(ctx context.Context, settings *config.Settings) error

// NewRootCommand builds the factorio-up command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(func(ctx context.Context, settings *config.Settings) error {
		return updater.Run(ctx, &updater.Options{Settings: settings})
	})
}

func newRootCommand(run runFunc) *cobra.Command {
	values := new(flagValues)

	root := &cobra.Command{
		Use:   "factorio-up [flags] [command [args...]]",
		Short: "Install the latest stable Factorio headless server and launch it.",
		Long: `Downloads the latest stable headless server, verifies it against the published
sha256 checksums and unpacks it into a fresh temporary directory.

The install root can be handed to another user, the binary and data directory
can be symlinked to stable paths and a new save can be created from map
settings. Everything after the flags is executed in place of this process,
as the configured user when one is set.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := values.settings(cmd.Flags(), args)
			if err != nil {
				return err
			}

			level, _ := logger.ParseLogLevel(settings.LogLevel)
			logger.SetLevel(level)

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return run(ctx, settings)
		},
	}

	flags := root.Flags()
	// The launch command may carry its own flags.
	flags.SetInterspersed(false)

	flags.StringVarP(&values.configPath, "config", "c", "", "path to an optional YAML settings file")
	flags.Var(&values.initMap, "init-map", "initialize the map settings (true|false)")
	flags.StringVar(&values.saveFile, "save-file", config.DefaultSaveFile, "file path to the save .zip")
	flags.StringVar(&values.mapGenSettings, "map-gen-settings", config.DefaultMapGenSettings,
		"file path to the map generator settings")
	flags.StringVar(&values.mapSettings, "map-settings", config.DefaultMapSettings, "file path to the map settings")
	flags.StringVar(&values.exePath, "exe-path", "", "file path to symlink the downloaded server binary")
	flags.StringVar(&values.dataDir, "data-dir", "", "directory to symlink the downloaded server data")
	flags.StringVar(&values.user, "user", "", "run the command as this user")
	flags.StringVar(&values.logLevel, "log-level", config.DefaultLogLevel, "log level (debug|info|warn|error)")

	version.AttachCobraVersion(root)

	return root
}

// settings merges explicitly set flags over the config file or the defaults.
func (v *flagValues) settings(flags *pflag.FlagSet, args []string) (*config.Settings, error) {
	settings := config.Default()

	if v.configPath != "" {
		loaded, err := config.Load(v.configPath)
		if err != nil {
			return nil, err
		}

		settings = loaded
	}

	overrides := map[string]func(){
		"init-map":         func() { settings.InitMap = bool(v.initMap) },
		"save-file":        func() { settings.SaveFile = v.saveFile },
		"map-gen-settings": func() { settings.MapGenSettings = v.mapGenSettings },
		"map-settings":     func() { settings.MapSettings = v.mapSettings },
		"exe-path":         func() { settings.ExePath = v.exePath },
		"data-dir":         func() { settings.DataDir = v.dataDir },
		"user":             func() { settings.User = v.user },
		"log-level":        func() { settings.LogLevel = v.logLevel },
	}

	for name, apply := range overrides {
		if flags.Changed(name) {
			apply()
		}
	}

	if len(args) > 0 {
		settings.Command = append([]string(nil), args...)
	}

	if err := config.Validate(settings); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return settings, nil
}

// Execute runs the factorio-up CLI and exits with non-zero status on error.
func Execute() {
	defer logger.Sync()

	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)

		logger.Sync()
		os.Exit(1)
	}
}
