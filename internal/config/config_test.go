package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []int{1, 3, 7}, cfg.Billing.DunningScheduleDays)
	assert.Equal(t, 2, cfg.Webhook.MaxRetries)
}

func TestNewConfigReadsEnvironment(t *testing.T) {
	t.Setenv("BILLINGCORE_BILLING_DUNNING_MAX_ATTEMPTS", "5")
	t.Setenv("BILLINGCORE_SERVER_ADDRESS", ":9090")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Billing.DunningMaxAttempts)
	assert.Equal(t, ":9090", cfg.Server.Address)
}

func TestTenantDSN(t *testing.T) {
	cfg := GetDefaultConfig()
	assert.Contains(t, cfg.Postgres.GetTenantDSN("tenant_acme"), "search_path=tenant_acme")
}
