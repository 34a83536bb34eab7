package cache

import (
	"context"
	"strings"
	"time"

	"github.com/flexprice/billingcore/internal/config"
	goCache "github.com/patrickmn/go-cache"
)

const cleanupInterval = time.Hour

// InMemoryCache implements the Cache interface using github.com/patrickmn/go-cache.
// It is process local; every entry is read-only reference data (plans, default taxes,
// tenant settings), never balances or counters.
type InMemoryCache struct {
	cache   *goCache.Cache
	enabled bool
	ttl     time.Duration
}

func NewInMemoryCache(cfg *config.Configuration) Cache {
	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &InMemoryCache{
		cache:   goCache.New(ttl, cleanupInterval),
		enabled: cfg.Cache.Enabled,
		ttl:     ttl,
	}
}

func (c *InMemoryCache) Get(_ context.Context, key string) (interface{}, bool) {
	if !c.enabled {
		return nil, false
	}
	return c.cache.Get(key)
}

func (c *InMemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) {
	if !c.enabled {
		return
	}
	if expiration == 0 {
		expiration = goCache.DefaultExpiration
	}
	c.cache.Set(key, value, expiration)
}

func (c *InMemoryCache) Delete(_ context.Context, key string) {
	c.cache.Delete(key)
}

// DeleteByPrefix scans every item; entries are few and invalidation is rare
func (c *InMemoryCache) DeleteByPrefix(_ context.Context, prefix string) {
	for k := range c.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			c.cache.Delete(k)
		}
	}
}
