package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mohsenfayyazi/billder/logger"
	"github.com/mohsenfayyazi/billder/ratelimit"
)

type Config struct {
	// Backend
	APIURL      string        `env:"API_URL" envDefault:"http://127.0.0.1:8000/api"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	// Dashboard
	FrontendURL string        `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	Port        int           `env:"PORT" envDefault:"3000"`
	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	Currency    string        `env:"CURRENCY" envDefault:"CAD"`

	// Local session storage
	DBDriver     string `env:"DB_DRIVER" envDefault:"sqlite"`
	DatabaseURL  string `env:"DATABASE_URL" envDefault:"billder.db"`
	GormLogLevel string `env:"GORM_LOG_LEVEL" envDefault:"warn"`

	// Payment: Stripe
	StripeSecretKey      string `env:"STRIPE_SECRET_KEY"`
	StripePublishableKey string `env:"STRIPE_PUBLISHABLE_KEY"`

	// Rate limits
	APIRateLimitMax        int           `env:"API_RATE_LIMIT_MAX" envDefault:"10"`
	APIRateLimitWindow     time.Duration `env:"API_RATE_LIMIT_WINDOW" envDefault:"60s"`
	PaymentRateLimitMax    int           `env:"PAYMENT_RATE_LIMIT_MAX" envDefault:"3"`
	PaymentRateLimitWindow time.Duration `env:"PAYMENT_RATE_LIMIT_WINDOW" envDefault:"60s"`
	SettlePollInterval     time.Duration `env:"SETTLE_POLL_INTERVAL" envDefault:"500ms"`
	SettleTimeout          time.Duration `env:"SETTLE_TIMEOUT" envDefault:"10s"`
	RetryMax               int           `env:"RETRY_MAX" envDefault:"3"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
	LogOutput string `env:"LOG_OUTPUT" envDefault:"stdout"`

	// Tracing
	AeonisAPIKey   string `env:"AEONIS_API_KEY"`
	AeonisEndpoint string `env:"AEONIS_ENDPOINT" envDefault:"http://localhost:8000/v1/traces"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := url.ParseRequestURI(c.APIURL); err != nil {
		return fmt.Errorf("API_URL is not a valid URL: %w", err)
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.APIRateLimitMax <= 0 || c.PaymentRateLimitMax <= 0 {
		return fmt.Errorf("rate limit maximums must be positive")
	}
	if c.APIRateLimitWindow <= 0 || c.PaymentRateLimitWindow <= 0 {
		return fmt.Errorf("rate limit windows must be positive")
	}
	if c.RetryMax < 0 {
		return fmt.Errorf("RETRY_MAX cannot be negative")
	}
	return nil
}

// StripeEnabled reports whether card payments can be tokenized from the CLI.
func (c *Config) StripeEnabled() bool {
	return strings.HasPrefix(c.StripeSecretKey, "sk_")
}

// StripeJSEnabled reports whether the dashboard can render the hosted card field.
func (c *Config) StripeJSEnabled() bool {
	return strings.HasPrefix(c.StripePublishableKey, "pk_")
}

// TracingEnabled reports whether spans are exported to aeonis.
func (c *Config) TracingEnabled() bool {
	return c.AeonisAPIKey != ""
}

// Addr returns the dashboard listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// RateLimits returns the per-client limiter settings.
func (c *Config) RateLimits() ratelimit.Limits {
	return ratelimit.Limits{
		APIMax:        c.APIRateLimitMax,
		APIWindow:     c.APIRateLimitWindow,
		PaymentMax:    c.PaymentRateLimitMax,
		PaymentWindow: c.PaymentRateLimitWindow,
	}
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	cfg := logger.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Format = c.LogFormat
	cfg.Output = c.LogOutput
	return cfg
}
