package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/billingcore/internal/types"
)

// Cache holds read-mostly reference data. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	// Set stores value; an expiration of 0 uses the cache's default TTL
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)
	Delete(ctx context.Context, key string)
	DeleteByPrefix(ctx context.Context, prefix string)
}

const (
	PrefixPlan       = "plan:v1:"
	PrefixDefaultTax = "default_tax:v1:"
	PrefixMeter      = "meter:v1:"
	PrefixSettings   = "settings:v1:"
)

// GenerateKey joins prefix and params with colons
func GenerateKey(prefix string, params ...interface{}) string {
	parts := make([]string, len(params)+1)
	parts[0] = strings.TrimSuffix(prefix, ":")
	for i, param := range params {
		parts[i+1] = fmt.Sprintf("%v", param)
	}
	return strings.Join(parts, ":")
}

// TenantKey scopes a key to the tenant in ctx so entries never leak across tenants
func TenantKey(ctx context.Context, prefix string, params ...interface{}) string {
	return GenerateKey(prefix, append([]interface{}{types.GetTenantID(ctx)}, params...)...)
}

// Fetch returns the cached value under key or loads and stores it. A nil
// cache always loads. Load errors are returned and nothing is stored.
func Fetch[T any](ctx context.Context, c Cache, key string, load func(ctx context.Context) (T, error)) (T, error) {
	if c != nil {
		if v, ok := c.Get(ctx, key); ok {
			if typed, ok := v.(T); ok {
				return typed, nil
			}
		}
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if c != nil {
		c.Set(ctx, key, v, 0)
	}
	return v, nil
}

// InvalidateTenant drops every entry under prefix for the tenant in ctx
func InvalidateTenant(ctx context.Context, c Cache, prefix string) {
	if c == nil {
		return
	}
	key := TenantKey(ctx, prefix)
	c.Delete(ctx, key)
	c.DeleteByPrefix(ctx, key+":")
}
