// Package config holds wsrun's layered configuration: built-in defaults,
// then config files, then WSRUN_* environment variables, then CLI flags.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete wsrun configuration
type Config struct {
	Run       RunConfig       `mapstructure:"run" yaml:"run"`
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	UI        UIConfig        `mapstructure:"ui" yaml:"ui"`
}

// RunConfig controls how a script is scheduled across packages
type RunConfig struct {
	// Bail stops scheduling new packages after the first failure (default: true)
	Bail bool `mapstructure:"bail" yaml:"bail"`
	// Parallel runs every package at once, ignoring dependency order
	Parallel bool `mapstructure:"parallel" yaml:"parallel"`
	// Concurrency caps simultaneous invocations in batched mode.
	// 0 means one per CPU.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	// RejectCycles fails the run when selected packages form a dependency cycle
	// instead of running the cycle as a single batch
	RejectCycles bool `mapstructure:"reject_cycles" yaml:"reject_cycles"`
	// Stream forwards output live instead of capturing it
	Stream bool `mapstructure:"stream" yaml:"stream"`
	// Sort honors dependency order (default: true)
	Sort bool `mapstructure:"sort" yaml:"sort"`
	// Prefix tags streamed lines with the package name (default: true)
	Prefix bool `mapstructure:"prefix" yaml:"prefix"`
	// NPMClient is the package manager used to run scripts (default: "npm")
	NPMClient string `mapstructure:"npm_client" yaml:"npm_client"`
	// MaxOutputBytes bounds the output captured per stream per package
	MaxOutputBytes int `mapstructure:"max_output_bytes" yaml:"max_output_bytes"`
}

// WorkspaceConfig controls package discovery
type WorkspaceConfig struct {
	// Packages overrides the package globs found in the workspace files
	Packages []string `mapstructure:"packages" yaml:"packages"`
	// IgnorePrivate drops packages marked "private": true
	IgnorePrivate bool `mapstructure:"ignore_private" yaml:"ignore_private"`
}

// LoggingConfig controls the debug log
type LoggingConfig struct {
	// Enabled writes the debug log to .wsrun/logs/debug.log
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is one of debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
	// MaxSizeMB is the size at which the log is rotated (0 = never)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of rotated logs kept
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// MetricsConfig controls run metrics export
type MetricsConfig struct {
	// Textfile is a path the run's Prometheus metrics are written to, in the
	// text exposition format, when the run finishes. Empty disables export.
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// UIConfig controls terminal presentation
type UIConfig struct {
	// Progress shows a live progress view when stdout is a terminal
	Progress bool `mapstructure:"progress" yaml:"progress"`
}

// Default returns a Config with the built-in defaults
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Bail:           true,
			Parallel:       false,
			Concurrency:    0, // resolved to runtime.NumCPU() by the caller
			RejectCycles:   false,
			Stream:         false,
			Sort:           true,
			Prefix:         true,
			NPMClient:      "npm",
			MaxOutputBytes: 1 << 20,
		},
		Workspace: WorkspaceConfig{
			Packages:      []string{},
			IgnorePrivate: false,
		},
		Logging: LoggingConfig{
			Enabled:    false,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{
			Textfile: "",
		},
		UI: UIConfig{
			Progress: false,
		},
	}
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	// Run defaults
	v.SetDefault("run.bail", defaults.Run.Bail)
	v.SetDefault("run.parallel", defaults.Run.Parallel)
	v.SetDefault("run.concurrency", defaults.Run.Concurrency)
	v.SetDefault("run.reject_cycles", defaults.Run.RejectCycles)
	v.SetDefault("run.stream", defaults.Run.Stream)
	v.SetDefault("run.sort", defaults.Run.Sort)
	v.SetDefault("run.prefix", defaults.Run.Prefix)
	v.SetDefault("run.npm_client", defaults.Run.NPMClient)
	v.SetDefault("run.max_output_bytes", defaults.Run.MaxOutputBytes)

	// Workspace defaults
	v.SetDefault("workspace.packages", defaults.Workspace.Packages)
	v.SetDefault("workspace.ignore_private", defaults.Workspace.IgnorePrivate)

	// Logging defaults
	v.SetDefault("logging.enabled", defaults.Logging.Enabled)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	// Metrics defaults
	v.SetDefault("metrics.textfile", defaults.Metrics.Textfile)

	// UI defaults
	v.SetDefault("ui.progress", defaults.UI.Progress)
}

// Load reads the configuration from v into a Config struct and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "wsrun")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wsrun"
	}
	return filepath.Join(home, ".config", "wsrun")
}

// ConfigFile returns the path to the user-level config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// EnvPrefix is the prefix of environment variables that override config
// keys: run.concurrency is read from WSRUN_RUN_CONCURRENCY.
const EnvPrefix = "WSRUN"

// NewViper returns a viper instance with defaults registered and
// environment overrides enabled.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}
