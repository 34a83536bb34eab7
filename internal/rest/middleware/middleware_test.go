package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(limit gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware, ErrorHandler(logger.NewNoopLogger()))
	r.POST("/events", TenantFromHeader, limit, func(c *gin.Context) {
		c.String(http.StatusAccepted, types.GetTenantID(c.Request.Context()))
	})
	return r
}

func post(r *gin.Engine, tenantID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	if tenantID != "" {
		req.Header.Set(types.HeaderTenantID, tenantID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTenantRateLimitIsPerTenant(t *testing.T) {
	r := newEngine(TenantRateLimit(0.001, 2))

	assert.Equal(t, http.StatusAccepted, post(r, "tenant_a").Code)
	assert.Equal(t, http.StatusAccepted, post(r, "tenant_a").Code)

	w := post(r, "tenant_a")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	var resp ierr.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ierr.ErrCodeRateLimited, resp.Error.Code)
	assert.Equal(t, w.Header().Get(types.HeaderRequestID), resp.RequestID)

	assert.Equal(t, http.StatusAccepted, post(r, "tenant_b").Code)
}

func TestTenantRateLimitDisabled(t *testing.T) {
	r := newEngine(TenantRateLimit(0, 0))
	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusAccepted, post(r, "tenant_a").Code)
	}
}

func TestMissingTenantIsRejected(t *testing.T) {
	r := newEngine(TenantRateLimit(0, 0))
	w := post(r, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Requests must be scoped to a tenant")
}

func TestRequestIDIsPropagated(t *testing.T) {
	r := newEngine(TenantRateLimit(0, 0))
	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	req.Header.Set(types.HeaderTenantID, "tenant_a")
	req.Header.Set(types.HeaderRequestID, "req_123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req_123", w.Header().Get(types.HeaderRequestID))
}
