package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/leadops")
	t.Setenv("CRON_SECRET", "cron-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8, cfg.DeliveryMaxAttempts)
	assert.Equal(t, 100, cfg.CronBatchLimit)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_MissingRequired(t *testing.T) {
	// t.Setenv registers cleanup to restore the originals; it cannot
	// unset, so clear the variables explicitly to make them missing.
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CRON_SECRET", "")
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("CRON_SECRET")

	_, err := Load()
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		DeliveryMaxAttempts: 3,
		DeliveryBaseDelayMs: 1000,
		DeliveryMaxDelayMs:  60000,
		CronBatchLimit:      50,
		RateLimitWindowSecs: 60,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "zero max attempts", mutate: func(c *Config) { c.DeliveryMaxAttempts = 0 }, wantErr: true},
		{name: "zero base delay", mutate: func(c *Config) { c.DeliveryBaseDelayMs = 0 }, wantErr: true},
		{name: "max delay below base", mutate: func(c *Config) { c.DeliveryMaxDelayMs = 10 }, wantErr: true},
		{name: "zero batch limit", mutate: func(c *Config) { c.CronBatchLimit = 0 }, wantErr: true},
		{name: "zero window", mutate: func(c *Config) { c.RateLimitWindowSecs = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := Config{
		DispatchTimeoutMs:     10000,
		DeliveryBaseDelayMs:   5000,
		DeliveryMaxDelayMs:    3600000,
		DeliveryClaimLeaseSec: 60,
		RateLimitWindowSecs:   60,
	}

	assert.Equal(t, "10s", cfg.DispatchTimeout().String())
	assert.Equal(t, "5s", cfg.DeliveryBaseDelay().String())
	assert.Equal(t, "1h0m0s", cfg.DeliveryMaxDelay().String())
	assert.Equal(t, "1m0s", cfg.DeliveryClaimLease().String())
	assert.Equal(t, "1m0s", cfg.RateLimitWindow().String())
}
