package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/nasti-scaffold/nasti/internal/journal"
	"github.com/nasti-scaffold/nasti/internal/project"
)

// Config represents the nasti configuration
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Color   bool          `mapstructure:"color"`
	Git     GitConfig     `mapstructure:"git"`
	Source  SourceConfig  `mapstructure:"source"`
	Journal JournalConfig `mapstructure:"journal"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// GitConfig controls repository initialization of new projects
type GitConfig struct {
	Init          bool   `mapstructure:"init"`
	CommitMessage string `mapstructure:"commit_message"`
}

// SourceConfig controls template acquisition
type SourceConfig struct {
	TmpDir string `mapstructure:"tmp_dir"`
}

// JournalConfig controls the run journal
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// EnvPrefix is prepended to environment overrides, e.g. NASTI_GIT_INIT
const EnvPrefix = "NASTI"

// Load loads the configuration. An explicit path must exist; otherwise
// $XDG_CONFIG_HOME/nasti/config.yaml is read when present.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("log.level", "")
	v.SetDefault("color", true)
	v.SetDefault("git.init", false)
	v.SetDefault("git.commit_message", project.DefaultCommitMessage)
	v.SetDefault("source.tmp_dir", os.TempDir())
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", journal.DefaultPath())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultDir())
	}

	// Enable environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// DefaultDir returns $XDG_CONFIG_HOME/nasti, falling back to ~/.config/nasti
func DefaultDir() string {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, "nasti")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "nasti")
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	switch strings.ToLower(cfg.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got: %s", cfg.Log.Level)
	}
	if cfg.Journal.Enabled && strings.TrimSpace(cfg.Journal.Path) == "" {
		return fmt.Errorf("journal.path must be set when the journal is enabled")
	}
	return nil
}
