// Package config loads and persists the relic configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete relic configuration.
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	// DataDir is the base directory for all relic state (working copies,
	// leaderboard file, job database, auth token hash).
	DataDir string `json:"dataDir" mapstructure:"dataDir"`

	Scan        ScanConfig        `json:"scan" mapstructure:"scan"`
	Git         GitConfig         `json:"git" mapstructure:"git"`
	Leaderboard LeaderboardConfig `json:"leaderboard" mapstructure:"leaderboard"`
	Sweep       SweepConfig       `json:"sweep" mapstructure:"sweep"`
	Jobs        JobsConfig        `json:"jobs" mapstructure:"jobs"`
	Server      ServerConfig      `json:"server" mapstructure:"server"`
	Logging     LoggingConfig     `json:"logging" mapstructure:"logging"`
}

// ScanConfig controls the candidate scanner.
type ScanConfig struct {
	// Marker is the literal, case-sensitive string searched for.
	Marker string `json:"marker" mapstructure:"marker"`
	// ContextLines is the number of lines captured before and after a match.
	ContextLines int `json:"contextLines" mapstructure:"contextLines"`
	// TimeoutSeconds bounds one search invocation.
	TimeoutSeconds int `json:"timeoutSeconds" mapstructure:"timeoutSeconds"`
}

// GitConfig controls working-copy acquisition and attribution lookups.
type GitConfig struct {
	// CloneDepth is the initial shallow-clone depth.
	CloneDepth int `json:"cloneDepth" mapstructure:"cloneDepth"`
	// DeepenDepth is the additional history fetched after a clone so blame
	// reaches lines far back in history without a full clone.
	DeepenDepth int `json:"deepenDepth" mapstructure:"deepenDepth"`
	// DefaultBranch is tried first on clone and reset.
	DefaultBranch string `json:"defaultBranch" mapstructure:"defaultBranch"`
	// FallbackBranch is tried when the default branch does not exist.
	FallbackBranch string `json:"fallbackBranch" mapstructure:"fallbackBranch"`
	// CloneTimeoutSeconds bounds clone/fetch/reset invocations.
	CloneTimeoutSeconds int `json:"cloneTimeoutSeconds" mapstructure:"cloneTimeoutSeconds"`
	// BlameTimeoutSeconds bounds one blame or show invocation.
	BlameTimeoutSeconds int `json:"blameTimeoutSeconds" mapstructure:"blameTimeoutSeconds"`
}

// LeaderboardConfig controls the persistent all-time leaderboard.
type LeaderboardConfig struct {
	// Path of the JSON file; relative paths resolve under DataDir.
	Path string `json:"path" mapstructure:"path"`
	// Capacity is the maximum number of entries retained.
	Capacity int `json:"capacity" mapstructure:"capacity"`
}

// SweepConfig controls the idle working-copy sweeper.
type SweepConfig struct {
	IntervalHours  int `json:"intervalHours" mapstructure:"intervalHours"`
	MaxRepoAgeDays int `json:"maxRepoAgeDays" mapstructure:"maxRepoAgeDays"`
}

// JobsConfig controls job tracking and attribution fan-out.
type JobsConfig struct {
	// RetentionHours is how long finished jobs stay queryable.
	RetentionHours int `json:"retentionHours" mapstructure:"retentionHours"`
	// CleanupIntervalMinutes is how often stale jobs are swept.
	CleanupIntervalMinutes int `json:"cleanupIntervalMinutes" mapstructure:"cleanupIntervalMinutes"`
	// AttributionWorkers bounds concurrent blame lookups per job; 0 means
	// one goroutine per candidate with no cap.
	AttributionWorkers int `json:"attributionWorkers" mapstructure:"attributionWorkers"`
}

// ServerConfig controls the HTTP daemon.
type ServerConfig struct {
	Bind string     `json:"bind" mapstructure:"bind"`
	Port int        `json:"port" mapstructure:"port"`
	Auth AuthConfig `json:"auth" mapstructure:"auth"`
}

// AuthConfig controls bearer-token authentication for the API.
type AuthConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

const configVersion = 1

// DefaultDataDir returns ~/.relic, or a relative fallback when the home
// directory cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".relic"
	}
	return filepath.Join(home, ".relic")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version: configVersion,
		DataDir: DefaultDataDir(),
		Scan: ScanConfig{
			Marker:         "TODO",
			ContextLines:   2,
			TimeoutSeconds: 60,
		},
		Git: GitConfig{
			CloneDepth:          1000,
			DeepenDepth:         10000,
			DefaultBranch:       "main",
			FallbackBranch:      "master",
			CloneTimeoutSeconds: 600,
			BlameTimeoutSeconds: 120,
		},
		Leaderboard: LeaderboardConfig{
			Path:     "leaderboard.json",
			Capacity: 100,
		},
		Sweep: SweepConfig{
			IntervalHours:  24,
			MaxRepoAgeDays: 7,
		},
		Jobs: JobsConfig{
			RetentionHours:         24,
			CleanupIntervalMinutes: 10,
			AttributionWorkers:     16,
		},
		Server: ServerConfig{
			Bind: "0.0.0.0",
			Port: 8998,
			Auth: AuthConfig{Enabled: false},
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// Load reads the configuration from <dataDir>/config.json, falling back to
// defaults when the file does not exist.
func Load(dataDir string) (*Config, error) {
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(dataDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			cfg := DefaultConfig()
			cfg.DataDir = dataDir
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.DataDir = dataDir
	return cfg, nil
}

// Save writes the configuration to <DataDir>/config.json.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(c.DataDir, "config.json"), data, 0644)
}

// ReposDir returns the directory holding all working copies.
func (c *Config) ReposDir() string {
	return filepath.Join(c.DataDir, "repos")
}

// LeaderboardPath resolves the leaderboard file location.
func (c *Config) LeaderboardPath() string {
	if filepath.IsAbs(c.Leaderboard.Path) {
		return c.Leaderboard.Path
	}
	return filepath.Join(c.DataDir, c.Leaderboard.Path)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Version != configVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Scan.Marker == "" {
		return &ConfigError{Field: "scan.marker", Message: "marker must not be empty"}
	}
	if c.Leaderboard.Capacity <= 0 {
		return &ConfigError{Field: "leaderboard.capacity", Message: "capacity must be positive"}
	}
	if c.Git.CloneDepth <= 0 {
		return &ConfigError{Field: "git.cloneDepth", Message: "clone depth must be positive"}
	}
	if c.Sweep.MaxRepoAgeDays <= 0 {
		return &ConfigError{Field: "sweep.maxRepoAgeDays", Message: "max repo age must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
