package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"
)

// DocumentPath is the configuration file printed by the tool, relative to
// the working directory.
const DocumentPath = "config/manufacturing_config.yaml"

const (
	defaultLogLevel   = "info"
	defaultWatchRPS   = 2.0
	defaultWatchBurst = 1
)

// Config aggregates runtime settings resolved from multiple sources.
// Precedence: CLI flags > Environment variables > Defaults
type Config struct {
	DocumentPath string
	LogLevel     string
	Watch        bool
	WatchRPS     float64
	WatchBurst   int
}

// CLIOverrides holds command-line flag overrides. Nil fields are not applied.
type CLIOverrides struct {
	LogLevel   *string
	Watch      *bool
	WatchRPS   *float64
	WatchBurst *int
}

// Load resolves settings with precedence:
// CLI flags > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	applyEnvConfig(&cfg)

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		DocumentPath: DocumentPath,
		LogLevel:     defaultLogLevel,
		WatchRPS:     defaultWatchRPS,
		WatchBurst:   defaultWatchBurst,
	}
}

// applyEnvConfig applies environment variable configuration. Unparseable
// values are ignored.
func applyEnvConfig(cfg *Config) {
	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	if watch := strings.TrimSpace(os.Getenv("WATCH")); watch != "" {
		if value, err := strconv.ParseBool(watch); err == nil {
			cfg.Watch = value
		}
	}

	if rps := strings.TrimSpace(os.Getenv("WATCH_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value > 0 {
			cfg.WatchRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("WATCH_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value > 0 {
			cfg.WatchBurst = value
		}
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.Watch != nil {
		cfg.Watch = *overrides.Watch
	}

	if overrides.WatchRPS != nil {
		cfg.WatchRPS = *overrides.WatchRPS
	}

	if overrides.WatchBurst != nil {
		cfg.WatchBurst = *overrides.WatchBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	if cfg.WatchRPS <= 0 {
		return fmt.Errorf("WATCH_RPS must be > 0")
	}
	if cfg.WatchBurst < 1 {
		return fmt.Errorf("WATCH_BURST must be >= 1")
	}
	return nil
}
