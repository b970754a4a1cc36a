// Package config loads the application configuration: the shared core
// sections plus the air-quality, storage and ops settings of this bot.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/aqibot/core/config"
	coredatabase "github.com/m3rciful/aqibot/core/database"
)

// Session store backends.
const (
	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// AirVisualConfig configures the IQAir client.
type AirVisualConfig struct {
	APIKey  string `yaml:"api_key" envconfig:"IQAIR_API_KEY"`
	BaseURL string `yaml:"base_url" envconfig:"IQAIR_BASE_URL"`
	Country string `yaml:"country" envconfig:"IQAIR_COUNTRY"`
	// TimeoutSeconds bounds one upstream request; 0 -> 10s.
	TimeoutSeconds int `yaml:"timeout_seconds" envconfig:"IQAIR_TIMEOUT_SECONDS"`
}

// Timeout returns the request timeout as a duration.
func (c AirVisualConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CatalogConfig points at an optional region catalog overriding the built-in one.
type CatalogConfig struct {
	Path string `yaml:"path" envconfig:"CATALOG_PATH"`
}

// SessionConfig selects where dialog sessions live.
type SessionConfig struct {
	Backend       string `yaml:"backend" envconfig:"SESSION_BACKEND"`
	RedisAddr     string `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" envconfig:"REDIS_DB"`
	KeyPrefix     string `yaml:"key_prefix" envconfig:"SESSION_KEY_PREFIX"`
	// TTLMinutes expires idle sessions; 0 -> 30 minutes.
	TTLMinutes int `yaml:"ttl_minutes" envconfig:"SESSION_TTL_MINUTES"`
}

// TTL returns the session lifetime as a duration.
func (c SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// AuditConfig tunes the usage recorder.
type AuditConfig struct {
	QueueSize int `yaml:"queue_size" envconfig:"AUDIT_QUEUE_SIZE"`
}

// OpsConfig configures the health and metrics listener. An empty Listen disables it.
type OpsConfig struct {
	Listen string `yaml:"listen" envconfig:"OPS_LISTEN"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	AirVisual AirVisualConfig     `yaml:"airvisual"`
	Catalog   CatalogConfig       `yaml:"catalog"`
	Database  coredatabase.Config `yaml:"database"`
	Session   SessionConfig       `yaml:"session"`
	Audit     AuditConfig         `yaml:"audit"`
	Ops       OpsConfig           `yaml:"ops"`
}

// CoreConfig exposes the shared core section.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads path (optional) and the environment, then validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required settings and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}

	c.AirVisual.APIKey = strings.TrimSpace(c.AirVisual.APIKey)
	if c.AirVisual.APIKey == "" {
		return fmt.Errorf("%w: IQAir api key is required (IQAIR_API_KEY)", coreconfig.ErrMissingCredentials)
	}
	if strings.TrimSpace(c.AirVisual.Country) == "" {
		c.AirVisual.Country = "Uzbekistan"
	}
	if c.AirVisual.TimeoutSeconds <= 0 {
		c.AirVisual.TimeoutSeconds = 10
	}

	if err := c.Database.Normalize(); err != nil {
		return err
	}

	c.Session.Backend = strings.ToLower(strings.TrimSpace(c.Session.Backend))
	if c.Session.Backend == "" {
		c.Session.Backend = SessionMemory
		if strings.TrimSpace(c.Session.RedisAddr) != "" {
			c.Session.Backend = SessionRedis
		}
	}
	switch c.Session.Backend {
	case SessionMemory:
	case SessionRedis:
		if strings.TrimSpace(c.Session.RedisAddr) == "" {
			return fmt.Errorf("session.redis_addr is required when session.backend is 'redis'")
		}
	default:
		return fmt.Errorf("session.backend must be 'memory' or 'redis', got %q", c.Session.Backend)
	}
	if c.Session.TTLMinutes <= 0 {
		c.Session.TTLMinutes = 30
	}

	if c.Audit.QueueSize <= 0 {
		c.Audit.QueueSize = 256
	}
	c.Ops.Listen = strings.TrimSpace(c.Ops.Listen)
	return nil
}
