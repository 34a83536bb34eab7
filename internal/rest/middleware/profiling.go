package middleware

import (
	"context"

	"github.com/flexprice/billingcore/internal/profiling"
	"github.com/gin-gonic/gin"
)

// Profiling labels request samples with the matched route. Path parameters are
// left out to keep label cardinality bounded.
func Profiling(svc *profiling.Service) gin.HandlerFunc {
	if !svc.Enabled() {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		svc.Do(c.Request.Context(), func(context.Context) {
			c.Next()
		}, "route", c.Request.Method+" "+c.FullPath())
	}
}
