package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type NATSConfig struct {
	URL  string `yaml:"url"` // empty disables event publishing
	Name string `yaml:"name"`
}

type ProvidersConfig struct {
	Stripe struct {
		SecretKey     string `yaml:"secret_key"`
		WebhookSecret string `yaml:"webhook_secret"`
	} `yaml:"stripe"`
	Paystack struct {
		SecretKey string `yaml:"secret_key"`
		BaseURL   string `yaml:"base_url"`
	} `yaml:"paystack"`
}

type ReconcileConfig struct {
	CronSecret    string        `yaml:"cron_secret"`
	StaleAfter    time.Duration `yaml:"stale_after"`    // min age before an initiated intent is eligible
	DefaultLimit  int           `yaml:"default_limit"`  // per-run candidate cap
	MaxLimit      int           `yaml:"max_limit"`      // hard clamp for the trigger's limit param
	Interval      time.Duration `yaml:"interval"`       // in-process worker tick; 0 disables
	ActiveLockTTL time.Duration `yaml:"active_lock_ttl"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
}

type AdminConfig struct {
	APIKey        string        `yaml:"api_key"`
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	NATS      NATSConfig      `yaml:"nats"`
	Providers ProvidersConfig `yaml:"providers"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Admin     AdminConfig     `yaml:"admin"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 24 * time.Hour
	}
	if cfg.NATS.Name == "" {
		cfg.NATS.Name = "shortlet-payments"
	}
	if cfg.Providers.Paystack.BaseURL == "" {
		cfg.Providers.Paystack.BaseURL = "https://api.paystack.co"
	}
	if cfg.Reconcile.StaleAfter <= 0 {
		cfg.Reconcile.StaleAfter = 5 * time.Minute
	}
	if cfg.Reconcile.DefaultLimit <= 0 {
		cfg.Reconcile.DefaultLimit = 50
	}
	if cfg.Reconcile.MaxLimit <= 0 {
		cfg.Reconcile.MaxLimit = 200
	}
	if cfg.Reconcile.ActiveLockTTL <= 0 {
		cfg.Reconcile.ActiveLockTTL = 90 * time.Second
	}
	if cfg.Reconcile.RetryBackoff <= 0 {
		cfg.Reconcile.RetryBackoff = 60 * time.Second
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Reconcile.CronSecret == "" {
		return nil, errors.New("reconcile.cron_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
