// Package config holds service settings, layered from defaults, an optional
// YAML file, and environment variables.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Region is a watched area scanned for fire detections.
type Region struct {
	Name     string  `koanf:"name"`
	Lat      float64 `koanf:"lat"`
	Lon      float64 `koanf:"lon"`
	RadiusKm float64 `koanf:"radius_km"`
}

// Config contains all service settings.
type Config struct {
	LogLevel        string        `koanf:"log_level"`
	LogFormat       string        `koanf:"log_format"`
	HTTPAddr        string        `koanf:"http_addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Feed selects the event source: "firms" for the live NASA FIRMS
	// feed, "demo" for the synthetic generator. The choice is made once
	// here; there is no runtime fallback between the two.
	FeedMode     string        `koanf:"feed_mode"`
	FirmsMapKey  string        `koanf:"firms_map_key"`
	FirmsSources []string      `koanf:"firms_sources"`
	FeedTimeout  time.Duration `koanf:"feed_timeout"`
	FeedDayRange int           `koanf:"feed_day_range"`

	ImageryBaseURL    string        `koanf:"imagery_base_url"`
	ImageryTimeout    time.Duration `koanf:"imagery_timeout"`
	ImageryMaxRetries int           `koanf:"imagery_max_retries"`
	ImageryCacheSize  int           `koanf:"imagery_cache_size"`

	DBPath        string `koanf:"db_path"`
	RetentionDays int    `koanf:"retention_days"`

	// Alert publishing is optional; when disabled, classified detections
	// are only persisted.
	KafkaEnabled    bool     `koanf:"kafka_enabled"`
	KafkaBrokers    []string `koanf:"kafka_brokers"`
	KafkaAlertTopic string   `koanf:"kafka_alert_topic"`

	ScanInterval time.Duration `koanf:"scan_interval"`
	Regions      []Region      `koanf:"regions"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "json",
		HTTPAddr:        ":8080",
		ShutdownTimeout: 10 * time.Second,

		FeedMode:     "demo",
		FeedTimeout:  30 * time.Second,
		FeedDayRange: 1,

		ImageryTimeout:    30 * time.Second,
		ImageryMaxRetries: 3,
		ImageryCacheSize:  100,

		DBPath:        "data/fire_history.db",
		RetentionDays: 365,

		KafkaAlertTopic: "fire-alerts",

		ScanInterval: 15 * time.Minute,
		Regions: []Region{
			{Name: "Northern California", Lat: 38.5, Lon: -120.5, RadiusKm: 200},
		},
	}
}

// Load builds a Config by layering defaults, an optional YAML file, and env
// vars. Order of precedence (low -> high):
//  1. defaults (New)
//  2. file (YAML) if FIREWATCH_CONFIG is set
//  3. env vars with prefix FIREWATCH_, e.g. FIREWATCH_LOG_LEVEL
func Load() (*Config, error) {
	cfg := *New()

	k := koanf.New(".")

	if path := os.Getenv("FIREWATCH_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	envProvider := env.Provider("FIREWATCH_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "firewatch_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service could not run with.
func (c *Config) Validate() error {
	switch c.FeedMode {
	case "firms":
		if c.FirmsMapKey == "" {
			return errors.New("feed_mode is firms but firms_map_key is not set")
		}
	case "demo":
	default:
		return errors.New("feed_mode must be firms or demo")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("kafka_enabled is true but kafka_brokers is empty")
	}
	if c.KafkaEnabled && c.KafkaAlertTopic == "" {
		return errors.New("kafka_enabled is true but kafka_alert_topic is empty")
	}
	if c.DBPath == "" {
		return errors.New("db_path must not be empty")
	}
	if c.RetentionDays <= 0 {
		return errors.New("retention_days must be positive")
	}
	if c.ScanInterval <= 0 {
		return errors.New("scan_interval must be positive")
	}
	if len(c.Regions) == 0 {
		return errors.New("at least one watch region is required")
	}
	return nil
}
