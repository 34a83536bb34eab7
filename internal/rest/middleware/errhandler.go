package middleware

import (
	"net/http"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the last error a handler recorded with c.Error.
// Server side failures are logged with their full chain; callers only see hints.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := ierr.HTTPStatusFromErr(err)
		ctx := c.Request.Context()

		if status >= http.StatusInternalServerError {
			log.WithContext(ctx).Errorw("request failed",
				"method", c.Request.Method,
				"path", c.FullPath(),
				"status", status,
				"error", err,
			)
		}

		c.JSON(status, ierr.NewErrorResponse(err, types.GetRequestID(ctx)))
	}
}
