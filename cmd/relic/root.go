package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"relic/internal/config"
	"relic/internal/slogutil"
	"relic/internal/version"
)

var (
	dataDirFlag   string
	logLevelFlag  string
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "relic",
	Short: "relic - find the oldest surviving TODO in a repository",
	Long: `relic clones a remote repository, finds every TODO marker in it, attributes
each one to the commit that introduced it, and reports the marker that has
survived longest. Winners compete for a persistent all-time leaderboard.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("relic version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "",
		"Data directory for working copies and state (default: ~/.relic)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "",
		"Log format: text or json")
}

// loadConfig resolves the data dir, reads config.json if present, and builds
// the logger. CLI flags win over the config file.
func loadConfig() (*config.Config, *slog.Logger, error) {
	dataDir := dataDirFlag
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}

	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if logLevelFlag != "" {
		cfg.Logging.Level = logLevelFlag
	}
	if logFormatFlag != "" {
		cfg.Logging.Format = logFormatFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	level := slogutil.LevelFromString(cfg.Logging.Level)
	format := slogutil.FormatFromString(cfg.Logging.Format)

	return cfg, slogutil.NewLogger(os.Stderr, level, format), nil
}
