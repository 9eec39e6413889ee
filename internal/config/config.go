// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	domain "github.com/tlundberg/wishwatch/pkg/types"
)

// Config is the top-level application configuration.
type Config struct {
	Server        ServerConfig              `yaml:"server"`
	Database      DatabaseConfig            `yaml:"database"`
	Engine        EngineConfig              `yaml:"engine"`
	History       HistoryConfig             `yaml:"history"`
	Alerts        AlertsConfig              `yaml:"alerts"`
	Retailers     map[string]RetailerConfig `yaml:"retailers"`
	Notifications NotificationsConfig       `yaml:"notifications"`
	Logging       LoggingConfig             `yaml:"logging"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig defines PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	PoolSize int    `yaml:"pool_size"`
}

// DSN returns a PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode,
	)
}

// EngineConfig defines polling, backoff, and concurrency behavior.
type EngineConfig struct {
	PollInterval           time.Duration `yaml:"poll_interval"`
	AuctionUrgentInterval  time.Duration `yaml:"auction_urgent_interval"`
	AuctionUrgentThreshold time.Duration `yaml:"auction_urgent_threshold"`
	MaxConcurrentFetches   int           `yaml:"max_concurrent_fetches"`
	BackoffBase            time.Duration `yaml:"backoff_base"`
	BackoffCap             time.Duration `yaml:"backoff_cap"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures"`
	FetchTimeout           time.Duration `yaml:"fetch_timeout"`
	PriceEpsilon           float64       `yaml:"price_epsilon"`
}

// HistoryConfig defines history retention behavior.
type HistoryConfig struct {
	RetentionWindow time.Duration `yaml:"retention_window"`
	PointCap        int           `yaml:"point_cap"`
	Bucket          time.Duration `yaml:"bucket"`
	CompactInterval time.Duration `yaml:"compact_interval"`
}

// AlertsConfig defines alert dedup and retention behavior.
type AlertsConfig struct {
	DedupCooldown  time.Duration `yaml:"dedup_cooldown"`
	RetentionCount int           `yaml:"retention_count"`
	QueueSize      int           `yaml:"queue_size"`
	PruneInterval  time.Duration `yaml:"prune_interval"`
}

// RetailerConfig defines the endpoint and rate limit for one retailer's
// snapshot source.
type RetailerConfig struct {
	Endpoint  string  `yaml:"endpoint"`
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// NotificationsConfig defines notification targets.
type NotificationsConfig struct {
	Webhook WebhookConfig `yaml:"webhook"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation. A validation failure here is the only fatal
// error class at startup.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with the documented defaults.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyEngineDefaults(&cfg.Engine)
	applyHistoryDefaults(&cfg.History)
	applyAlertsDefaults(&cfg.Alerts)
	applyRetailerDefaults(cfg)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
}

func applyDatabaseDefaults(d *DatabaseConfig) {
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.PoolSize == 0 {
		d.PoolSize = 10
	}
}

func applyEngineDefaults(e *EngineConfig) {
	if e.PollInterval == 0 {
		e.PollInterval = time.Hour
	}
	if e.AuctionUrgentInterval == 0 {
		e.AuctionUrgentInterval = 5 * time.Minute
	}
	if e.AuctionUrgentThreshold == 0 {
		e.AuctionUrgentThreshold = time.Hour
	}
	if e.MaxConcurrentFetches == 0 {
		e.MaxConcurrentFetches = 4
	}
	if e.BackoffBase == 0 {
		e.BackoffBase = time.Minute
	}
	if e.BackoffCap == 0 {
		e.BackoffCap = 30 * time.Minute
	}
	if e.MaxConsecutiveFailures == 0 {
		e.MaxConsecutiveFailures = 5
	}
	if e.FetchTimeout == 0 {
		e.FetchTimeout = 10 * time.Second
	}
	if e.PriceEpsilon == 0 {
		e.PriceEpsilon = 0.01
	}
}

func applyHistoryDefaults(h *HistoryConfig) {
	if h.RetentionWindow == 0 {
		h.RetentionWindow = 30 * 24 * time.Hour
	}
	if h.PointCap == 0 {
		h.PointCap = 500
	}
	if h.Bucket == 0 {
		h.Bucket = 24 * time.Hour
	}
	if h.CompactInterval == 0 {
		h.CompactInterval = 6 * time.Hour
	}
}

func applyAlertsDefaults(a *AlertsConfig) {
	if a.DedupCooldown == 0 {
		a.DedupCooldown = 6 * time.Hour
	}
	if a.RetentionCount == 0 {
		a.RetentionCount = 500
	}
	if a.QueueSize == 0 {
		a.QueueSize = 256
	}
	if a.PruneInterval == 0 {
		a.PruneInterval = 12 * time.Hour
	}
}

func applyRetailerDefaults(cfg *Config) {
	if cfg.Retailers == nil {
		cfg.Retailers = map[string]RetailerConfig{}
	}
	for name, rc := range cfg.Retailers {
		if rc.PerSecond == 0 {
			rc.PerSecond = 2.0
		}
		if rc.Burst == 0 {
			rc.Burst = 5
		}
		cfg.Retailers[name] = rc
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

// Validate checks the configuration for fatal inconsistencies.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if cfg.Database.Name == "" {
		errs = append(errs, fmt.Errorf("database.name is required"))
	}
	if cfg.Database.User == "" {
		errs = append(errs, fmt.Errorf("database.user is required"))
	}

	e := &cfg.Engine
	if e.PollInterval < 0 || e.AuctionUrgentInterval < 0 {
		errs = append(errs, fmt.Errorf("engine intervals must be positive"))
	}
	if e.AuctionUrgentInterval > e.PollInterval {
		errs = append(errs, fmt.Errorf(
			"engine.auction_urgent_interval (%s) must not exceed engine.poll_interval (%s)",
			e.AuctionUrgentInterval, e.PollInterval,
		))
	}
	if e.BackoffBase > e.BackoffCap {
		errs = append(errs, fmt.Errorf(
			"engine.backoff_base (%s) must not exceed engine.backoff_cap (%s)",
			e.BackoffBase, e.BackoffCap,
		))
	}
	if e.MaxConcurrentFetches < 1 {
		errs = append(errs, fmt.Errorf("engine.max_concurrent_fetches must be at least 1"))
	}
	if e.PriceEpsilon < 0 {
		errs = append(errs, fmt.Errorf("engine.price_epsilon must not be negative"))
	}

	if cfg.History.PointCap < 2 {
		errs = append(errs, fmt.Errorf("history.point_cap must be at least 2"))
	}
	if cfg.Alerts.DedupCooldown < 0 {
		errs = append(errs, fmt.Errorf("alerts.dedup_cooldown must not be negative"))
	}

	for name, rc := range cfg.Retailers {
		switch domain.Retailer(name) {
		case domain.RetailerEbay, domain.RetailerAmazon, domain.RetailerEtsy, domain.RetailerGeneric:
		default:
			errs = append(errs, fmt.Errorf("retailers: unknown retailer %q", name))
		}
		if rc.Endpoint == "" {
			errs = append(errs, fmt.Errorf("retailers.%s.endpoint is required", name))
		}
	}

	if cfg.Notifications.Webhook.Enabled && cfg.Notifications.Webhook.URL == "" {
		errs = append(errs, fmt.Errorf("notifications.webhook.url is required when enabled"))
	}

	return errors.Join(errs...)
}
