package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Shared secret for the internal cron endpoint. Required so the
	// scheduler can never be triggered unauthenticated.
	CronSecret string `envconfig:"CRON_SECRET" required:"true"`

	// Delivery pipeline
	DeliveryMaxAttempts   int `envconfig:"DELIVERY_MAX_ATTEMPTS" default:"8"`
	DeliveryBaseDelayMs   int `envconfig:"DELIVERY_BASE_DELAY_MS" default:"5000"`
	DeliveryMaxDelayMs    int `envconfig:"DELIVERY_MAX_DELAY_MS" default:"3600000"`
	DispatchTimeoutMs     int `envconfig:"DISPATCH_TIMEOUT_MS" default:"10000"`
	CronBatchLimit        int `envconfig:"CRON_BATCH_LIMIT" default:"100"`
	DeliveryClaimLeaseSec int `envconfig:"DELIVERY_CLAIM_LEASE_SEC" default:"60"`

	// Rate limiting
	WorkspaceRateLimit  int `envconfig:"WORKSPACE_RATE_LIMIT" default:"1000"`
	IngestSourceLimit   int `envconfig:"INGEST_SOURCE_LIMIT" default:"120"`
	RateLimitWindowSecs int `envconfig:"RATE_LIMIT_WINDOW_SECS" default:"60"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the delivery pipeline cannot operate with.
func (c *Config) Validate() error {
	if c.DeliveryMaxAttempts < 1 {
		return fmt.Errorf("DELIVERY_MAX_ATTEMPTS must be >= 1, got %d", c.DeliveryMaxAttempts)
	}
	if c.DeliveryBaseDelayMs < 1 {
		return fmt.Errorf("DELIVERY_BASE_DELAY_MS must be >= 1, got %d", c.DeliveryBaseDelayMs)
	}
	if c.DeliveryMaxDelayMs < c.DeliveryBaseDelayMs {
		return fmt.Errorf("DELIVERY_MAX_DELAY_MS must be >= DELIVERY_BASE_DELAY_MS")
	}
	if c.CronBatchLimit < 1 {
		return fmt.Errorf("CRON_BATCH_LIMIT must be >= 1, got %d", c.CronBatchLimit)
	}
	if c.RateLimitWindowSecs < 1 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_SECS must be >= 1, got %d", c.RateLimitWindowSecs)
	}
	return nil
}

func (c *Config) DispatchTimeout() time.Duration {
	return time.Duration(c.DispatchTimeoutMs) * time.Millisecond
}

func (c *Config) DeliveryBaseDelay() time.Duration {
	return time.Duration(c.DeliveryBaseDelayMs) * time.Millisecond
}

func (c *Config) DeliveryMaxDelay() time.Duration {
	return time.Duration(c.DeliveryMaxDelayMs) * time.Millisecond
}

func (c *Config) DeliveryClaimLease() time.Duration {
	return time.Duration(c.DeliveryClaimLeaseSec) * time.Second
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSecs) * time.Second
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
