// Package config handles configuration loading and validation for
// anchorctl. Configuration is TOML, loaded over engine defaults, with a
// small set of environment overrides for scripting.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/quillmark/driftanchor/core/anchor"
	"github.com/quillmark/driftanchor/core/errors"
	"github.com/quillmark/driftanchor/core/resolve"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete anchorctl configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version"`

	// Resolve tunes anchor building and restoration.
	Resolve ResolveConfig `toml:"resolve"`

	// Store locates the anchor database.
	Store StoreConfig `toml:"store"`

	// Watch tunes live re-anchoring.
	Watch WatchConfig `toml:"watch"`

	// Logging selects log level and format.
	Logging LoggingConfig `toml:"logging"`
}

// ResolveConfig tunes the resolution engine.
type ResolveConfig struct {
	// ContextWindow is the rune width of stored position context.
	ContextWindow int `toml:"context_window"`

	// FuzzyWindow is the rune width of stored fuzzy context.
	FuzzyWindow int `toml:"fuzzy_window"`

	// Threshold is the context similarity gate (0.0-1.0].
	Threshold float64 `toml:"threshold"`

	// MaxErrorRate bounds the fuzzy edit budget as a fraction of the
	// pattern length [0.0-1.0).
	MaxErrorRate float64 `toml:"max_error_rate"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	// Path is the anchor database file.
	Path string `toml:"path"`
}

// WatchConfig holds live re-anchoring configuration.
type WatchConfig struct {
	// DebounceMs is how long a file must stay quiet before anchors are
	// re-resolved against it.
	DebounceMs int `toml:"debounce_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format"`
}

// DefaultConfig returns a configuration with the engine's defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Resolve: ResolveConfig{
			ContextWindow: anchor.DefaultContextWindow,
			FuzzyWindow:   anchor.DefaultFuzzyWindow,
			Threshold:     anchor.DefaultThreshold,
			MaxErrorRate:  resolve.DefaultMaxErrorRate,
		},
		Store: StoreConfig{
			Path: filepath.Join(DataDir(), "anchors.db"),
		},
		Watch: WatchConfig{
			DebounceMs: 500,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DataDir returns the base anchorctl data directory. ANCHORCTL_DATA_DIR
// overrides the platform default.
func DataDir() string {
	if envDir := os.Getenv("ANCHORCTL_DATA_DIR"); envDir != "" {
		return envDir
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "anchorctl")
	}
	return filepath.Join(".", ".anchorctl")
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// Load reads configuration from the given path, layering it over the
// defaults. A missing file is not an error; the defaults are returned.
// An empty path means ConfigPath().
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("decode TOML: %w", err)
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides. Variables
// are prefixed with ANCHORCTL_.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("ANCHORCTL_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("ANCHORCTL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ANCHORCTL_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// Validate checks the configuration and returns all problems found.
func (c *Config) Validate() []error {
	var errs []error

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, errors.NewValidation("version",
			fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version)))
	}
	if c.Resolve.ContextWindow < 1 {
		errs = append(errs, errors.NewValidation("resolve.context_window", "must be positive"))
	}
	if c.Resolve.FuzzyWindow < 1 {
		errs = append(errs, errors.NewValidation("resolve.fuzzy_window", "must be positive"))
	}
	if c.Resolve.Threshold <= 0 || c.Resolve.Threshold > 1 {
		errs = append(errs, errors.NewValidation("resolve.threshold", "must be in (0, 1]"))
	}
	if c.Resolve.MaxErrorRate < 0 || c.Resolve.MaxErrorRate >= 1 {
		errs = append(errs, errors.NewValidation("resolve.max_error_rate", "must be in [0, 1)"))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.NewValidation("store.path", "is required"))
	}
	if c.Watch.DebounceMs < 0 {
		errs = append(errs, errors.NewValidation("watch.debounce_ms", "cannot be negative"))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, errors.NewValidation("logging.level",
			fmt.Sprintf("unknown level %q", c.Logging.Level)))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, errors.NewValidation("logging.format",
			fmt.Sprintf("unknown format %q", c.Logging.Format)))
	}

	return errs
}

// EnsureDirectories creates the directories the configuration points at.
func (c *Config) EnsureDirectories() error {
	dir := filepath.Dir(c.Store.Path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}
