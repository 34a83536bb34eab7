package middleware

import (
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/gin-gonic/gin"
)

// TenantFromHeader scopes the request to the tenant named in the X-Tenant-ID header
func TenantFromHeader(c *gin.Context) {
	setTenant(c, c.GetHeader(types.HeaderTenantID))
}

// TenantFromPath scopes the request to the tenant in the :tenant_id path parameter.
// Provider callbacks carry no headers of ours.
func TenantFromPath(c *gin.Context) {
	setTenant(c, c.Param("tenant_id"))
}

func setTenant(c *gin.Context, tenantID string) {
	if tenantID == "" {
		_ = c.Error(ierr.NewError("missing tenant").
			WithHint("Requests must be scoped to a tenant").
			Mark(ierr.ErrValidation))
		c.Abort()
		return
	}
	ctx := types.SetActor(c.Request.Context(), types.APIActor)
	c.Request = c.Request.WithContext(types.WithTenant(ctx, tenantID))
	c.Next()
}
