// Package config loads the engine's runtime configuration from TOML
// (spec's DOMAIN STACK: BurntSushi/toml), following the same
// file-then-environment-override shape as the pack's own config loader
// (malbeclabs-doublezero's s3-uploader internal/config).
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config is the complete runtime configuration for one engine process:
// where its reference metadata/trace store lives, how it logs, where it
// exposes metrics, and whether tracing/the expression cache are enabled.
type Config struct {
	Store   StoreConfig   `toml:"store"`
	Logging LoggingConfig `toml:"logging"`
	Metrics MetricsConfig `toml:"metrics"`
	Run     RunConfig     `toml:"run"`
}

// StoreConfig points at the BoltDB file backing internal/refstore.
type StoreConfig struct {
	BoltPath string `toml:"bolt_path"`
}

// LoggingConfig configures the sirupsen/logrus root logger.
type LoggingConfig struct {
	Level  string `toml:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `toml:"format"` // "text" | "json"
}

// MetricsConfig configures the prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// RunConfig configures per-run behavior that isn't part of the project
// definition itself.
type RunConfig struct {
	TraceEnabled    bool `toml:"trace_enabled"`
	ExpressionCache bool `toml:"expression_cache"`
}

// Default returns the configuration used when no file and no
// environment overrides are present.
func Default() *Config {
	return &Config{
		Store:   StoreConfig{BoltPath: "engine.db"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Listen: ":9090"},
		Run:     RunConfig{TraceEnabled: true, ExpressionCache: true},
	}
}

// Load reads configPath (if non-empty) as TOML over Default(), then
// applies environment variable overrides. Priority: environment >
// config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse TOML config: %w", err)
		}
	}

	if v := os.Getenv("LATTICERUN_STORE_BOLT_PATH"); v != "" {
		cfg.Store.BoltPath = v
	}
	if v := os.Getenv("LATTICERUN_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LATTICERUN_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LATTICERUN_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
	if v := os.Getenv("LATTICERUN_METRICS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("parse LATTICERUN_METRICS_ENABLED: %w", err)
		}
		cfg.Metrics.Enabled = b
	}
	if v := os.Getenv("LATTICERUN_RUN_TRACE_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("parse LATTICERUN_RUN_TRACE_ENABLED: %w", err)
		}
		cfg.Run.TraceEnabled = b
	}

	return cfg, nil
}

// Validate reports whether cfg is usable to start an engine process.
func (c *Config) Validate() error {
	if c.Store.BoltPath == "" {
		return fmt.Errorf("store.bolt_path must not be empty")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be one of text/json, got %q", c.Logging.Format)
	}
	return nil
}
