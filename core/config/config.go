// Package config holds the settings shared by every bot built on core:
// Telegram access, update transport, logging and rate limiting.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Update transports.
const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"
)

// Update kinds that rate limiting can skip.
const (
	UpdateMessage  = "message"
	UpdateLocation = "location"
	UpdateOther    = "other"
)

var rateLimitKinds = []string{UpdateMessage, UpdateLocation, UpdateOther}

// TelegramConfig holds Bot API access settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"TELEGRAM_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	// RunMode is "longpoll" or "webhook". Empty picks webhook when a URL is set.
	RunMode                string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	LongPollTimeoutSeconds int    `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies the webhook listener.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig configures core/logger.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
	// KeysOrder is a comma separated field order, or "default".
	KeysOrder string `yaml:"keys_order" envconfig:"LOG_KEYS_ORDER"`
	// DebugSample is "num/den" or "n" for sampled debug events.
	DebugSample string `yaml:"debug_sample" envconfig:"LOG_DEBUG_SAMPLE"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file" envconfig:"LOG_BOT_FILE"`
	// ErrorsFile receives WARN and ERROR lines only.
	ErrorsFile string `yaml:"errors_file" envconfig:"LOG_ERRORS_FILE"`
	// Profile is "prod", "dev" or "debug". Dev and debug default to key=value output.
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig sets the minimum gap between two updates of one user.
// ExcludeUpdates lists kinds that bypass it: message, location or other.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ErrMissingCredentials is returned when a required token or API key is absent.
var ErrMissingCredentials = errors.New("config: missing credentials")

// Load reads the core configuration from path and the environment.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode fills dst from the YAML file at path, then overlays environment
// variables. A missing file is not an error, so env-only deployments work.
func Decode(path string, dst any) error {
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, dst); err != nil {
				return fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
	cfg.Telegram.Token = strings.TrimSpace(cfg.Telegram.Token)
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("%w: telegram token is required (TELEGRAM_TOKEN)", ErrMissingCredentials)
	}
	if err := cfg.normalizeTransport(); err != nil {
		return err
	}
	return cfg.RateLimit.normalize()
}

func (c *Config) normalizeTransport() error {
	mode := strings.ToLower(strings.TrimSpace(c.Telegram.RunMode))
	switch {
	case mode == "" && strings.TrimSpace(c.Webhook.URL) != "":
		mode = RunModeWebhook
	case mode == "", mode == "polling":
		mode = RunModeLongpoll
	}
	c.Telegram.RunMode = mode

	switch mode {
	case RunModeLongpoll:
		if c.Telegram.LongPollTimeoutSeconds < 0 {
			return errors.New("config: telegram.longpoll_timeout_seconds must be >= 0")
		}
	case RunModeWebhook:
		if strings.TrimSpace(c.Webhook.URL) == "" {
			return errors.New("config: webhook.url is required in webhook mode")
		}
		if c.Webhook.Port < 0 {
			return errors.New("config: webhook.port must be > 0")
		}
		if strings.TrimSpace(c.Webhook.Listen) == "" {
			c.Webhook.Listen = "0.0.0.0"
		}
		if c.Webhook.Port == 0 {
			c.Webhook.Port = 8080
		}
	default:
		return fmt.Errorf("config: invalid telegram.run_mode %q; allowed: webhook, longpoll", mode)
	}
	return nil
}

func (r *RateLimitConfig) normalize() error {
	if r.IntervalMS < 0 {
		return errors.New("config: rate_limit.interval_ms must be >= 0")
	}
	kinds := r.ExcludeUpdates[:0]
	for _, v := range r.ExcludeUpdates {
		k := strings.ToLower(strings.TrimSpace(v))
		if k == "" {
			continue
		}
		if !slices.Contains(rateLimitKinds, k) {
			return fmt.Errorf("config: invalid rate_limit.exclude_updates value %q; allowed: %s",
				v, strings.Join(rateLimitKinds, ", "))
		}
		kinds = append(kinds, k)
	}
	r.ExcludeUpdates = kinds
	return nil
}
