package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Address             string `yaml:"address"`
		ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	} `yaml:"server"`

	Database struct {
		Path         string `yaml:"path"`
		MaxOpenConns int    `yaml:"max_open_conns"`
	} `yaml:"database"`

	Redis struct {
		Address             string `yaml:"address"`
		Password            string `yaml:"password"`
		DB                  int    `yaml:"db"`
		SlotCacheTTLSeconds int    `yaml:"slot_cache_ttl_seconds"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Booking struct {
		Timezone                  string `yaml:"timezone"`
		StorageRetries            int    `yaml:"storage_retries"`
		RetryBackoffMS            int    `yaml:"retry_backoff_ms"`
		CompletionIntervalMinutes int    `yaml:"completion_interval_minutes"`
	} `yaml:"booking"`

	API struct {
		RateLimitPerSecond float64  `yaml:"rate_limit_per_second"`
		RateLimitBurst     int      `yaml:"rate_limit_burst"`
		TrustedProxies     []string `yaml:"trusted_proxies"`
	} `yaml:"api"`

	Logging struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"logging"`

	ResourcesConfigPath string `yaml:"resources_config_path"`
}

// Load reads the YAML config at path (configs/config.yaml when empty). A .env
// file next to the working directory is loaded first so ${VAR} placeholders
// can be filled from it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		c.Server.ReadTimeoutSeconds = 10
	}
	if c.Server.WriteTimeoutSeconds <= 0 {
		c.Server.WriteTimeoutSeconds = 10
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/courtbook.db"
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Booking.Timezone == "" {
		c.Booking.Timezone = "UTC"
	}
	if c.Booking.StorageRetries < 0 {
		c.Booking.StorageRetries = 0
	}
	if c.Booking.RetryBackoffMS <= 0 {
		c.Booking.RetryBackoffMS = 50
	}
	if c.Booking.CompletionIntervalMinutes <= 0 {
		c.Booking.CompletionIntervalMinutes = 5
	}
	if c.API.RateLimitPerSecond <= 0 {
		c.API.RateLimitPerSecond = 10
	}
	if c.API.RateLimitBurst <= 0 {
		c.API.RateLimitBurst = 20
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.ResourcesConfigPath == "" {
		c.ResourcesConfigPath = "configs/resources.yaml"
	}
}

// Location is the timezone in which operators define opening hours.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return nil, fmt.Errorf("booking.timezone %q: %w", c.Booking.Timezone, err)
	}
	return loc, nil
}

func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Booking.RetryBackoffMS) * time.Millisecond
}

func (c *Config) CompletionInterval() time.Duration {
	return time.Duration(c.Booking.CompletionIntervalMinutes) * time.Minute
}

// SlotCacheTTL is zero when the slot cache is disabled.
func (c *Config) SlotCacheTTL() time.Duration {
	if c.Redis.Address == "" || c.Redis.SlotCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Redis.SlotCacheTTLSeconds) * time.Second
}

func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// LoadResources reads the resources file referenced by the config.
func (c *Config) LoadResources() (*ResourcesConfig, error) {
	return LoadResourcesConfig(c.ResourcesConfigPath)
}
