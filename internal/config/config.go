package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the tracking service
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Tracking TrackingConfig `yaml:"tracking"`
	Webhooks WebhookConfig  `yaml:"webhooks"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                int      `yaml:"port"`
	Host                string   `yaml:"host"`
	ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
	AllowedOrigins      []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// ReadTimeout returns the configured read timeout as a duration
func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the configured write timeout as a duration
func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the Redis connection used for locks and dedup markers.
// An empty Addr disables Redis; locks then fall back to PG advisory locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TrackingConfig holds the engagement tracking knobs
type TrackingConfig struct {
	LockTimeoutSeconds    int      `yaml:"lock_timeout_seconds"`
	LockTTLSeconds        int      `yaml:"lock_ttl_seconds"`
	LockRetryMillis       int      `yaml:"lock_retry_millis"`
	TemplateEngineEnabled bool     `yaml:"template_engine_enabled"`
	IgnoreBots            bool     `yaml:"ignore_bots"`
	ExcludedIPs           []string `yaml:"excluded_ips"`
	ExclusionCacheSeconds int      `yaml:"exclusion_cache_seconds"`
}

// LockTimeout returns how long a request waits for the idempotency lock
func (c TrackingConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

// LockTTL returns how long an acquired lock lives before it expires
func (c TrackingConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// LockRetry returns the polling interval while waiting for a lock
func (c TrackingConfig) LockRetry() time.Duration {
	return time.Duration(c.LockRetryMillis) * time.Millisecond
}

// ExclusionCacheTTL returns how long the IP exclusion list is cached
func (c TrackingConfig) ExclusionCacheTTL() time.Duration {
	return time.Duration(c.ExclusionCacheSeconds) * time.Second
}

// WebhookConfig selects where webhook delivery jobs are queued
type WebhookConfig struct {
	Queue       string `yaml:"queue"` // "postgres" or "sqs"
	SQSQueueURL string `yaml:"sqs_queue_url"`
	Region      string `yaml:"region"`
}

// UsesSQS reports whether webhook jobs go to SQS instead of Postgres
func (c WebhookConfig) UsesSQS() bool {
	return strings.EqualFold(c.Queue, "sqs")
}

// LoggingConfig holds structured logger settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// ShouldRedactPII returns the redaction switch, defaulting to on
func (c LoggingConfig) ShouldRedactPII() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// IsEnabled returns the metrics switch, defaulting to on
func (c MetricsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8081
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 5
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 10
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Tracking.LockTimeoutSeconds == 0 {
		cfg.Tracking.LockTimeoutSeconds = 30
	}
	if cfg.Tracking.LockTTLSeconds == 0 {
		cfg.Tracking.LockTTLSeconds = 30
	}
	if cfg.Tracking.LockRetryMillis == 0 {
		cfg.Tracking.LockRetryMillis = 100
	}
	if cfg.Tracking.ExclusionCacheSeconds == 0 {
		cfg.Tracking.ExclusionCacheSeconds = 60
	}
	if cfg.Webhooks.Queue == "" {
		cfg.Webhooks.Queue = "postgres"
	}
	if cfg.Webhooks.Region == "" {
		cfg.Webhooks.Region = "us-west-2"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg)
	return cfg, nil
}

// ApplyEnv overrides cfg with environment variables if present.
func ApplyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Database.URL = dsn
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if queueURL := os.Getenv("SQS_WEBHOOK_QUEUE_URL"); queueURL != "" {
		cfg.Webhooks.SQSQueueURL = queueURL
		cfg.Webhooks.Queue = "sqs"
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.Webhooks.Region = region
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if ips := os.Getenv("TRACKING_EXCLUDED_IPS"); ips != "" {
		for _, ip := range strings.Split(ips, ",") {
			if ip = strings.TrimSpace(ip); ip != "" {
				cfg.Tracking.ExcludedIPs = append(cfg.Tracking.ExcludedIPs, ip)
			}
		}
	}
	if v := os.Getenv("TRACKING_TEMPLATE_ENGINE"); v != "" {
		cfg.Tracking.TemplateEngineEnabled = v == "true" || v == "1"
	}
}
