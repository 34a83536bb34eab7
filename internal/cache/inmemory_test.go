package cache

import (
	"context"
	"testing"

	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestTenantScopedKeys(t *testing.T) {
	c := NewInMemoryCache(config.GetDefaultConfig())

	acme := types.SetTenantID(context.Background(), "tenant_acme")
	globex := types.SetTenantID(context.Background(), "tenant_globex")

	c.Set(acme, TenantKey(acme, PrefixDefaultTax), "acme-taxes", 0)

	v, ok := c.Get(acme, TenantKey(acme, PrefixDefaultTax))
	assert.True(t, ok)
	assert.Equal(t, "acme-taxes", v)

	_, ok = c.Get(globex, TenantKey(globex, PrefixDefaultTax))
	assert.False(t, ok)

	c.DeleteByPrefix(acme, GenerateKey(PrefixDefaultTax, "tenant_acme"))
	_, ok = c.Get(acme, TenantKey(acme, PrefixDefaultTax))
	assert.False(t, ok)
}

func TestDisabledCacheNeverHits(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Cache.Enabled = false
	c := NewInMemoryCache(cfg)

	c.Set(context.Background(), "k", "v", 0)
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestFetchLoadsOnceAndSkipsErrors(t *testing.T) {
	c := NewInMemoryCache(config.GetDefaultConfig())
	ctx := types.SetTenantID(context.Background(), "tenant_acme")
	key := TenantKey(ctx, PrefixPlan, "plan_basic")

	loads := 0
	load := func(context.Context) (string, error) {
		loads++
		return "basic", nil
	}

	for i := 0; i < 3; i++ {
		v, err := Fetch(ctx, c, key, load)
		assert.NoError(t, err)
		assert.Equal(t, "basic", v)
	}
	assert.Equal(t, 1, loads)

	InvalidateTenant(ctx, c, PrefixPlan)
	_, err := Fetch(ctx, c, key, load)
	assert.NoError(t, err)
	assert.Equal(t, 2, loads)

	failing := TenantKey(ctx, PrefixMeter, "missing")
	_, err = Fetch(ctx, c, failing, func(context.Context) (string, error) { return "", assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)
	_, ok := c.Get(ctx, failing)
	assert.False(t, ok)
}

func TestFetchWithoutCache(t *testing.T) {
	v, err := Fetch(context.Background(), nil, "k", func(context.Context) (int, error) { return 7, nil })
	assert.NoError(t, err)
	assert.Equal(t, 7, v)
}
