package middleware

import (
	"github.com/flexprice/billingcore/internal/types"
	"github.com/gin-gonic/gin"
)

// RequestIDMiddleware propagates the caller's request id or assigns one
func RequestIDMiddleware(c *gin.Context) {
	requestID := c.GetHeader(types.HeaderRequestID)
	if requestID == "" {
		requestID = types.GenerateUUID()
	}

	c.Request = c.Request.WithContext(types.SetRequestID(c.Request.Context(), requestID))
	c.Header(types.HeaderRequestID, requestID)
	c.Next()
}
