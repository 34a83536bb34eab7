package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	central Pinger
}

// NewHealthHandler checks the central store on every probe when central is set
func NewHealthHandler(central Pinger) *HealthHandler {
	return &HealthHandler{central: central}
}

func (h *HealthHandler) Health(c *gin.Context) {
	if h.central != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.central.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "postgres": "down"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
