// Package config loads service configuration from an optional YAML file
// with environment variable overrides for deployment secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" or "10m" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full service configuration.
type Config struct {
	Addr        string       `yaml:"addr"`
	DatabaseURL string       `yaml:"database_url"`
	RedisURL    string       `yaml:"redis_url"`
	Sentry      SentryConfig `yaml:"sentry"`
	Cache       CacheConfig  `yaml:"cache"`
	Warmup      WarmupConfig `yaml:"warmup"`
}

// SentryConfig configures error reporting. An empty DSN disables Sentry.
type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// CacheConfig tunes the cache store. RedisURL on the top-level Config
// selects the backend: empty means the in-memory store.
type CacheConfig struct {
	Prefix          string   `yaml:"prefix"`
	DefaultTTL      Duration `yaml:"default_ttl"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
	MaxEntries      int      `yaml:"max_entries"`
}

// WarmupConfig tunes the warmup orchestrator, startup trigger and refresh
// scheduler.
type WarmupConfig struct {
	// RefreshCron, when set, overrides RefreshInterval with a five-field
	// cron expression.
	RefreshCron string `yaml:"refresh_cron"`

	StartupDelay        Duration `yaml:"startup_delay"`
	RefreshInitialDelay Duration `yaml:"refresh_initial_delay"`
	RefreshInterval     Duration `yaml:"refresh_interval"`

	ReferenceTTL   Duration `yaml:"reference_ttl"`
	DashboardTTL   Duration `yaml:"dashboard_ttl"`
	POSTTL         Duration `yaml:"pos_ttl"`
	PredictionsTTL Duration `yaml:"predictions_ttl"`

	BranchLimit       int `yaml:"branch_limit"`
	TopProductsLimit  int `yaml:"top_products_limit"`
	LowStockThreshold int `yaml:"low_stock_threshold"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Addr: ":8080",
		Sentry: SentryConfig{
			Environment: "production",
		},
		Cache: CacheConfig{
			Prefix:          "stockroom",
			DefaultTTL:      Duration(time.Hour),
			CleanupInterval: Duration(time.Minute),
			MaxEntries:      50_000,
		},
		Warmup: WarmupConfig{
			StartupDelay:        Duration(5 * time.Second),
			RefreshInitialDelay: Duration(30 * time.Second),
			RefreshInterval:     Duration(10 * time.Minute),
			ReferenceTTL:        Duration(12 * time.Hour),
			DashboardTTL:        Duration(10 * time.Minute),
			POSTTL:              Duration(5 * time.Minute),
			PredictionsTTL:      Duration(time.Hour),
			BranchLimit:         5,
			TopProductsLimit:    10,
			LowStockThreshold:   10,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment overrides for deployment secrets
// (ADDR, DATABASE_URL, REDIS_URL, SENTRY_DSN, SENTRY_ENVIRONMENT).
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("config: database URL is required (database_url or DATABASE_URL)")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("SENTRY_DSN"); v != "" {
		cfg.Sentry.DSN = v
	}
	if v := os.Getenv("SENTRY_ENVIRONMENT"); v != "" {
		cfg.Sentry.Environment = v
	}
}
