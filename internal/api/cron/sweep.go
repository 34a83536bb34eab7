package cron

import (
	"net/http"
	"time"

	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/sweep"
	"github.com/gin-gonic/gin"
)

// SweepHandler lets an external scheduler trigger a sweep
type SweepHandler struct {
	sweeper *sweep.Sweeper
	logger  *logger.Logger
}

func NewSweepHandler(sweeper *sweep.Sweeper, logger *logger.Logger) *SweepHandler {
	return &SweepHandler{sweeper: sweeper, logger: logger}
}

// Run executes the sweep named in the path for every active tenant. Tenant
// failures are reported in the body with a 200; the next run retries them.
func (h *SweepHandler) Run(c *gin.Context) {
	name := c.Param("sweep")
	h.logger.Infow("cron sweep triggered", "sweep", name)

	result, err := h.sweeper.Run(c.Request.Context(), name, time.Now().UTC())
	if result == nil {
		c.Error(err)
		return
	}
	if err != nil {
		h.logger.Errorw("cron sweep partially failed", "sweep", name, "error", err)
	}
	c.JSON(http.StatusOK, result)
}
