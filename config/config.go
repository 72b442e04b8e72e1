// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/artpar/usageledger/domain/pricing"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig           `yaml:"server"`
	Database DatabaseConfig         `yaml:"database"`
	Limits   LimitsConfig           `yaml:"limits"`
	Pricing  map[string]PriceConfig `yaml:"pricing"`
	Rollup   RollupConfig           `yaml:"rollup"`
	Logging  LoggingConfig          `yaml:"logging"`
	Metrics  MetricsConfig          `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite"
	DSN    string `yaml:"dsn"`
}

// LimitsConfig configures the per-project quota pools.
type LimitsConfig struct {
	RequestsPerMinute int64 `yaml:"requests_per_minute"`
	RequestsPerDay    int64 `yaml:"requests_per_day"`
	AIRequestsPerDay  int64 `yaml:"ai_requests_per_day"`
}

// PriceConfig holds per-1000-token rates for one model as exact decimal
// strings.
type PriceConfig struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

// RollupConfig configures the background aggregation schedule.
type RollupConfig struct {
	Interval time.Duration `yaml:"interval"` // 0 disables the ticker
	OnStart  bool          `yaml:"on_start"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// Load reads configuration from a YAML file. An empty path yields the
// built-in defaults plus environment overrides.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		// Expand environment variables
		data = []byte(os.ExpandEnv(string(data)))

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variables always override file-based configuration.
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Table builds the pricing table from the configured rates. An empty
// pricing section falls back to the built-in table.
func (c *Config) Table() (pricing.Table, error) {
	if len(c.Pricing) == 0 {
		return pricing.DefaultTable(), nil
	}

	rates := make(map[string]pricing.Rate, len(c.Pricing))
	for model, p := range c.Pricing {
		rate, err := pricing.ParseRate(p.Input, p.Output)
		if err != nil {
			return pricing.Table{}, fmt.Errorf("pricing[%s]: %w", model, err)
		}
		rates[model] = rate
	}
	return pricing.NewTable(rates), nil
}

// ToLimits converts the limits section to the limiter's shape.
func (c *Config) ToLimits() (perMinute, perDay, aiPerDay int64) {
	return c.Limits.RequestsPerMinute, c.Limits.RequestsPerDay, c.Limits.AIRequestsPerDay
}

// applyEnvOverrides applies USAGELEDGER_* environment variables.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("USAGELEDGER_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("USAGELEDGER_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("USAGELEDGER_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("USAGELEDGER_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Database configuration
	if v := os.Getenv("USAGELEDGER_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("USAGELEDGER_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Quota limits
	if v := os.Getenv("USAGELEDGER_LIMITS_PER_MINUTE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Limits.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("USAGELEDGER_LIMITS_PER_DAY"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Limits.RequestsPerDay = n
		}
	}
	if v := os.Getenv("USAGELEDGER_LIMITS_AI_PER_DAY"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Limits.AIRequestsPerDay = n
		}
	}

	// Rollup schedule
	if v := os.Getenv("USAGELEDGER_ROLLUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Rollup.Interval = d
		}
	}
	if v := os.Getenv("USAGELEDGER_ROLLUP_ON_START"); v != "" {
		cfg.Rollup.OnStart = parseBool(v)
	}

	// Logging configuration
	if v := os.Getenv("USAGELEDGER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("USAGELEDGER_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("USAGELEDGER_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("USAGELEDGER_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "usageledger.db"
	}

	if cfg.Limits.RequestsPerMinute == 0 {
		cfg.Limits.RequestsPerMinute = 60
	}
	if cfg.Limits.RequestsPerDay == 0 {
		cfg.Limits.RequestsPerDay = 5000
	}
	if cfg.Limits.AIRequestsPerDay == 0 {
		cfg.Limits.AIRequestsPerDay = 20
	}

	if cfg.Rollup.Interval == 0 {
		cfg.Rollup.Interval = time.Hour
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if cfg.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver must be 'sqlite', got %q", cfg.Database.Driver)
	}

	if cfg.Limits.RequestsPerMinute < 0 || cfg.Limits.RequestsPerDay < 0 || cfg.Limits.AIRequestsPerDay < 0 {
		return fmt.Errorf("limits must be non-negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	// Surface bad rates at load time rather than on first ingest.
	if _, err := cfg.Table(); err != nil {
		return err
	}

	return nil
}
