package api

import (
	"github.com/flexprice/billingcore/internal/api/cron"
	v1 "github.com/flexprice/billingcore/internal/api/v1"
	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/metrics"
	"github.com/flexprice/billingcore/internal/profiling"
	"github.com/flexprice/billingcore/internal/rest/middleware"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Events   *v1.EventsHandler
	Webhooks *v1.ProviderWebhookHandler
	Health   *v1.HealthHandler
	Sweeps   *cron.SweepHandler
}

func NewRouter(
	handlers Handlers,
	cfg *config.Configuration,
	log *logger.Logger,
	metrics *metrics.Metrics,
	profiler *profiling.Service,
) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.Profiling(profiler),
		middleware.ErrorHandler(log),
	)

	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1Router := router.Group("/v1")
	{
		events := v1Router.Group("/events",
			middleware.TenantFromHeader,
			middleware.TenantRateLimit(cfg.Server.IngestRate, cfg.Server.IngestBurst),
			middleware.SentryTags,
		)
		events.POST("", handlers.Events.IngestEvent)

		webhooks := v1Router.Group("/webhooks")
		webhooks.POST("/:provider/:tenant_id", middleware.TenantFromPath, middleware.SentryTags, handlers.Webhooks.Handle)

		cronRoutes := v1Router.Group("/cron", middleware.SentryTags)
		cronRoutes.POST("/:sweep", handlers.Sweeps.Run)
	}

	return router
}
