package middleware

import (
	"time"

	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/types"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

// SentryMiddleware attaches a hub to every request and tags it with the request id.
// It is a pass-through when sentry is disabled.
func SentryMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	if !cfg.Sentry.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return sentrygin.New(sentrygin.Options{
		Repanic: true,
		Timeout: 2 * time.Second,
	})
}

// SentryTags copies the request and tenant ids onto the request's sentry scope.
// It runs after the tenant middleware so events carry the tenant.
func SentryTags(c *gin.Context) {
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		ctx := c.Request.Context()
		hub.Scope().SetTag("request_id", types.GetRequestID(ctx))
		if tenantID := types.GetTenantID(ctx); tenantID != "" {
			hub.Scope().SetTag("tenant_id", tenantID)
		}
	}
	c.Next()
}
