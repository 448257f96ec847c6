package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"BILLING_BATCH_SIZE", "BILLING_STORE", "BILLING_AUDIT", "BILLING_TIMEZONE", "PAYMENT_GATEWAY_MOCK"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, 10, cfg.Billing.BatchSize)
	assert.Equal(t, StorePostgres, cfg.Billing.Store)
	assert.Equal(t, AuditPostgres, cfg.Billing.Audit)
	assert.True(t, cfg.Billing.SchedulerEnabled)
	assert.True(t, cfg.Gateway.Mock)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BILLING_BATCH_SIZE", "25")
	t.Setenv("BILLING_STORE", "dynamodb")
	t.Setenv("BILLING_AUDIT", "redis")
	t.Setenv("BILLING_TIMEZONE", "Europe/Copenhagen")
	t.Setenv("SERVER_READ_TIMEOUT", "3s")
	t.Setenv("BILLING_SCHEDULER_ENABLED", "false")

	cfg := Load()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 25, cfg.Billing.BatchSize)
	assert.Equal(t, StoreDynamoDB, cfg.Billing.Store)
	assert.Equal(t, AuditRedis, cfg.Billing.Audit)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.False(t, cfg.Billing.SchedulerEnabled)

	loc, err := cfg.Billing.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Copenhagen", loc.String())
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("BILLING_BATCH_SIZE", "many")
	assert.Equal(t, 10, Load().Billing.BatchSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.Billing.BatchSize = 0 }},
		{"oversized batch size", func(c *Config) { c.Billing.BatchSize = MaxBatchSize + 1 }},
		{"unknown store", func(c *Config) { c.Billing.Store = "mongo" }},
		{"unknown audit", func(c *Config) { c.Billing.Audit = "kafka" }},
		{"real gateway without token", func(c *Config) { c.Gateway.Mock = false; c.Gateway.AccessToken = "" }},
		{"bad timezone", func(c *Config) { c.Billing.Timezone = "Mars/Olympus" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			cfg.Gateway.Mock = true
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAcceptsMaxBatchSize(t *testing.T) {
	cfg := Load()
	cfg.Gateway.Mock = true
	cfg.Billing.BatchSize = MaxBatchSize
	assert.NoError(t, cfg.Validate())
}
