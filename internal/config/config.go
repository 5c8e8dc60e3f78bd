package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where a config file is searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/garmin-connect-sync/config.yaml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Garmin   GarminConfig   `koanf:"garmin"`
	Sync     SyncConfig     `koanf:"sync"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds the HTTP listener and webhook settings
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// Shared secret expected in X-Webhook-Signature on POST /sync.
	// Empty disables verification.
	WebhookSecret string `koanf:"webhook_secret"`

	// Shared secret for the Ride with GPS webhook endpoint.
	RideWithGPSSecret string `koanf:"ridewithgps_secret"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// GarminConfig holds the upstream API settings
type GarminConfig struct {
	BaseURL string `koanf:"base_url"`

	// Bearer credential for Garmin Connect. The login handshake that
	// produces it lives outside this service.
	Token string `koanf:"token"`
}

// SyncConfig holds the synchronization pipeline settings
type SyncConfig struct {
	// Interval between scheduled sync runs.
	Interval time.Duration `koanf:"interval"`

	// Activities fetched per list page.
	PageSize int `koanf:"page_size"`

	// Hard cap on activities scanned during an initial full sync.
	InitialMaxActivities int `koanf:"initial_max_activities"`

	// Cap on activities scanned during an incremental run.
	IncrementalMaxActivities int `koanf:"incremental_max_activities"`

	// Newest activities re-examined every incremental run regardless of
	// the cursor, to pick up post-hoc edits.
	TailRefreshCount int `koanf:"tail_refresh_count"`

	// External-call budget per invocation.
	MaxCalls int `koanf:"max_calls"`

	// Concurrent enrichment+store operations per chunk.
	Concurrency int `koanf:"concurrency"`

	// Courtesy delay between individual upstream calls.
	CallDelay time.Duration `koanf:"call_delay"`

	// Courtesy delay between batches.
	BatchDelay time.Duration `koanf:"batch_delay"`
}

// MetricsConfig holds the Prometheus listener settings
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `koanf:"level"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 4201,
		},
		Database: DatabaseConfig{
			Path: "./data.db",
		},
		Garmin: GarminConfig{
			BaseURL: "https://connect.garmin.com",
		},
		Sync: SyncConfig{
			Interval:                 24 * time.Hour,
			PageSize:                 20,
			InitialMaxActivities:     1500,
			IncrementalMaxActivities: 100,
			TailRefreshCount:         8,
			MaxCalls:                 250,
			Concurrency:              5,
			CallDelay:                100 * time.Millisecond,
			BatchDelay:               time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Host:    "localhost",
			Port:    9201,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration in layers: struct defaults, then an optional
// YAML file, then environment variables. It fails fast if required
// values are missing.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required values and numeric sanity
func (c *Config) Validate() error {
	var missingVars []string

	if c.Garmin.Token == "" {
		missingVars = append(missingVars, "GARMIN_TOKEN")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	if c.Sync.PageSize < 1 {
		return fmt.Errorf("sync.page_size must be positive, got %d", c.Sync.PageSize)
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be positive, got %d", c.Sync.Concurrency)
	}
	if c.Sync.MaxCalls < 1 {
		return fmt.Errorf("sync.max_calls must be positive, got %d", c.Sync.MaxCalls)
	}
	if c.Sync.TailRefreshCount < 0 {
		return fmt.Errorf("sync.tail_refresh_count must not be negative, got %d", c.Sync.TailRefreshCount)
	}

	return nil
}

// findConfigFile returns the first existing config file path, or ""
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps environment variable names to config paths.
// Unknown variables map to "" and are dropped, so unrelated environment
// noise cannot leak into the configuration.
func envTransformFunc(key string) string {
	switch strings.ToUpper(key) {
	case "HOST":
		return "server.host"
	case "PORT":
		return "server.port"
	case "GARMIN_WEBHOOK_SECRET":
		return "server.webhook_secret"
	case "RIDEWITHGPS_API_SECRET":
		return "server.ridewithgps_secret"
	case "DATABASE_PATH":
		return "database.path"
	case "GARMIN_BASE_URL":
		return "garmin.base_url"
	case "GARMIN_TOKEN":
		return "garmin.token"
	case "SYNC_INTERVAL":
		return "sync.interval"
	case "SYNC_PAGE_SIZE":
		return "sync.page_size"
	case "SYNC_INITIAL_MAX_ACTIVITIES":
		return "sync.initial_max_activities"
	case "SYNC_INCREMENTAL_MAX_ACTIVITIES":
		return "sync.incremental_max_activities"
	case "SYNC_TAIL_REFRESH_COUNT":
		return "sync.tail_refresh_count"
	case "SYNC_MAX_CALLS":
		return "sync.max_calls"
	case "SYNC_CONCURRENCY":
		return "sync.concurrency"
	case "SYNC_CALL_DELAY":
		return "sync.call_delay"
	case "SYNC_BATCH_DELAY":
		return "sync.batch_delay"
	case "METRICS_ENABLED":
		return "metrics.enabled"
	case "METRICS_HOST":
		return "metrics.host"
	case "METRICS_PORT":
		return "metrics.port"
	case "LOG_LEVEL":
		return "logging.level"
	default:
		return ""
	}
}
