package middleware

import (
	"sync"
	"time"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	maxLimitedTenants = 10000
	limiterIdleTTL    = 10 * time.Minute
)

// TenantRateLimit applies a token bucket per tenant. It must run after the
// tenant middleware. A non-positive rate disables limiting.
func TenantRateLimit(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = int(perSecond) + 1
	}

	var mu sync.Mutex
	limiters := lru.NewLRU[string, *rate.Limiter](maxLimitedTenants, nil, limiterIdleTTL)
	limiterFor := func(tenantID string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		limiter, ok := limiters.Get(tenantID)
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
			limiters.Add(tenantID, limiter)
		}
		return limiter
	}

	return func(c *gin.Context) {
		tenantID := types.GetTenantID(c.Request.Context())
		limiter := limiterFor(tenantID)

		if !limiter.Allow() {
			_ = c.Error(ierr.NewError("tenant ingest rate exceeded").
				WithHint("Too many requests, slow down and retry").
				WithReportableDetails(map[string]any{"tenant_id": tenantID}).
				Mark(ierr.ErrRateLimited))
			c.Abort()
			return
		}
		c.Next()
	}
}
