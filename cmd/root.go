package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaellans/Badger/internal/config"
	"github.com/michaellans/Badger/internal/plugin"
	"github.com/michaellans/Badger/internal/store"
)

var (
	logLevel   string
	configPath string
	dataDir    string
	logger     *slog.Logger

	// settings is loaded once per process; tests assign it directly
	settings *config.Settings
)

var rootCmd = &cobra.Command{
	Use:   "badger",
	Short: "Optimize machine and simulator parameters with pluggable routines",
	Long: `Badger composes an environment (the problem), an interface (the
transport to a machine or simulator) and a generator (the algorithm) into
routines, runs them and keeps every evaluated point.

Plugins are discovered under the directory named by BADGER_PLUGIN_ROOT.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Setup logger
		var level slog.Level
		switch logLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{Level: level}
		handler := slog.NewJSONHandler(os.Stderr, opts)
		logger = slog.New(handler)
		slog.SetDefault(logger)

		s, err := config.Load(configPath)
		if err != nil {
			return err
		}
		settings = s
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (YAML)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for routines, runs and traces (overrides settings)")
}

// loadSettings returns the process settings with the --data-dir override.
func loadSettings() (*config.Settings, error) {
	if settings == nil {
		s, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		settings = s
	}
	if dataDir != "" {
		settings.DataDir = dataDir
	}
	return settings, nil
}

// openRegistry validates the settings and indexes the plugin root.
func openRegistry() (*plugin.Registry, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return plugin.FromSettings(s), nil
}

func openRunStore() (*store.FSRunStore, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}
	return store.NewFSRunStore(s.DataDir)
}

func openRoutineStore() (*store.FSRoutineStore, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}
	return store.NewFSRoutineStore(s.DataDir)
}

// commandContext tolerates the nil commands tests pass to RunE functions.
func commandContext(cmd *cobra.Command) context.Context {
	if cmd == nil || cmd.Context() == nil {
		return context.Background()
	}
	return cmd.Context()
}
