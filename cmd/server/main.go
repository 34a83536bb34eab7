package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/flexprice/billingcore/internal/api"
	"github.com/flexprice/billingcore/internal/api/cron"
	v1 "github.com/flexprice/billingcore/internal/api/v1"
	"github.com/flexprice/billingcore/internal/cache"
	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/domain/tenant"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/integration"
	"github.com/flexprice/billingcore/internal/interfaces"
	"github.com/flexprice/billingcore/internal/jobs"
	jobHandler "github.com/flexprice/billingcore/internal/jobs/handler"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/metrics"
	"github.com/flexprice/billingcore/internal/notification"
	"github.com/flexprice/billingcore/internal/pdf"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/profiling"
	"github.com/flexprice/billingcore/internal/pubsub"
	"github.com/flexprice/billingcore/internal/pubsub/kafka"
	"github.com/flexprice/billingcore/internal/pubsub/memory"
	pubsubRouter "github.com/flexprice/billingcore/internal/pubsub/router"
	"github.com/flexprice/billingcore/internal/repository"
	"github.com/flexprice/billingcore/internal/scheduler"
	"github.com/flexprice/billingcore/internal/security"
	"github.com/flexprice/billingcore/internal/sentry"
	"github.com/flexprice/billingcore/internal/service"
	"github.com/flexprice/billingcore/internal/sweep"
	"github.com/flexprice/billingcore/internal/temporal"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/flexprice/billingcore/internal/typst"
	"github.com/flexprice/billingcore/internal/validator"
	"github.com/flexprice/billingcore/internal/webhook"
	webhookHandler "github.com/flexprice/billingcore/internal/webhook/handler"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

const jobsPubSubName = `name:"jobs_pubsub"`

func init() {
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	opts = append(opts,
		fx.Provide(
			config.NewConfig,

			logger.NewLogger,

			metrics.NewMetrics,

			sentry.NewSentryService,

			cache.NewInMemoryCache,

			provideCentralDB,
			repository.NewTenantRepository,
			postgres.NewTenantRegistry,
			provideTenantClient,

			repository.NewRepositories,

			fx.Annotate(security.NewCodec, fx.As(new(interfaces.SecretsCodec))),
			fx.Annotate(integration.NewFactory, fx.As(new(interfaces.ProviderResolver))),
			provideRenderer,

			fx.Annotate(provideJobsPubSub, fx.ResultTags(jobsPubSubName)),
			fx.Annotate(provideJobQueue, fx.ParamTags(jobsPubSubName)),
			notification.NewQueuedNotifier,
			fx.Annotate(provideNotificationHandler, fx.ParamTags(jobsPubSubName)),

			fx.Annotate(provideMessageRouter, fx.ParamTags(jobsPubSubName)),
		),
	)

	opts = append(opts, webhook.Module, profiling.Module())

	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewEventService,
			service.NewOverrideService,
			service.NewBillingService,
			service.NewProgressiveBillingService,
			service.NewTaxService,
			service.NewCouponService,
			service.NewSubscriptionService,
			service.NewInvoiceService,
			service.NewPaymentService,
			service.NewDunningService,
			service.NewWalletService,
		),
	)

	opts = append(opts,
		fx.Provide(
			fx.Annotate(provideJobHandler, fx.ParamTags(jobsPubSubName)),
			provideSweeper,
			provideHandlers,
			api.NewRouter,
		),
		fx.Invoke(
			validator.NewValidator,
			sentry.RegisterHooks,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideCentralDB(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) (*postgres.DB, error) {
	db, err := postgres.NewDB(cfg, log)
	if err != nil {
		return nil, err
	}
	if cfg.Postgres.AutoMigrate {
		if err := postgres.MigrateCentral(context.Background(), db); err != nil {
			db.Close()
			return nil, err
		}
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			db.Close()
			return nil
		},
	})
	return db, nil
}

// provideTenantClient routes every repository call to the pool of the tenant
// carried by the request context
func provideTenantClient(
	lc fx.Lifecycle,
	registry *postgres.TenantRegistry,
	sentryService *sentry.Service,
	log *logger.Logger,
) postgres.IClient {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			registry.Close()
			return nil
		},
	})
	return postgres.NewSentryClient(postgres.NewRouter(registry), sentryService, log)
}

func provideRenderer(cfg *config.Configuration, log *logger.Logger) interfaces.DocumentRenderer {
	if !cfg.Documents.Enabled {
		return nil
	}
	return pdf.NewRenderer(typst.NewCompilerFromConfig(cfg, log), log)
}

func provideJobsPubSub(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) (pubsub.PubSub, error) {
	var (
		ps  pubsub.PubSub
		err error
	)

	switch cfg.Jobs.PubSub {
	case types.MemoryPubSub:
		ps = memory.NewPubSub(log)
	case types.KafkaPubSub:
		ps, err = kafka.NewPubSub(cfg, log, cfg.Kafka.ConsumerGroup+".jobs")
		if err != nil {
			return nil, err
		}
	default:
		return nil, ierr.NewError("unsupported pubsub type").
			WithHintf("jobs.pubsub must be %q or %q", types.MemoryPubSub, types.KafkaPubSub).
			Mark(ierr.ErrConfiguration)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return ps.Close()
		},
	})
	return ps, nil
}

func provideJobQueue(ps pubsub.PubSub, log *logger.Logger) jobs.Queue {
	return jobs.NewQueue(ps, log)
}

func provideNotificationHandler(ps pubsub.PubSub, cfg *config.Configuration, log *logger.Logger) *notification.Handler {
	return notification.NewHandler(ps, &notification.LogSender{Logger: log}, cfg, log)
}

func provideMessageRouter(
	ps pubsub.PubSub,
	log *logger.Logger,
	sentryService *sentry.Service,
	m *metrics.Metrics,
	profiler *profiling.Service,
) (*pubsubRouter.Router, error) {
	router, err := pubsubRouter.NewRouter(ps, log, sentryService, m)
	if err != nil {
		return nil, err
	}
	router.Use(profiler.HandlerMiddleware)
	return router, nil
}

func provideJobHandler(
	ps pubsub.PubSub,
	cfg *config.Configuration,
	billing service.BillingService,
	invoices service.InvoiceService,
	payments service.PaymentService,
	dunning service.DunningService,
	progressive service.ProgressiveBillingService,
	events service.EventService,
	log *logger.Logger,
) jobHandler.Handler {
	return jobHandler.NewHandler(ps, cfg, jobHandler.Services{
		Rater:       billing,
		Finalizer:   invoices,
		Charger:     payments,
		Retries:     dunning,
		Progressive: progressive,
		Ingester:    events,
	}, log)
}

func provideSweeper(
	cfg *config.Configuration,
	tenants tenant.Repository,
	subscriptions service.SubscriptionService,
	invoices service.InvoiceService,
	dunning service.DunningService,
	wallets service.WalletService,
	log *logger.Logger,
	m *metrics.Metrics,
) *sweep.Sweeper {
	return sweep.NewSweeper(tenants, sweep.Sweeps{
		Lifecycle:    subscriptions.ProcessLifecycle,
		GracePeriod:  invoices.SweepGracePeriods,
		PaymentRetry: dunning.SweepDueRetries,
		WalletExpiry: wallets.ExpireWallets,
	}, cfg.Scheduler.Concurrency, log, m)
}

func provideHandlers(
	log *logger.Logger,
	central *postgres.DB,
	eventService service.EventService,
	paymentService service.PaymentService,
	sweeper *sweep.Sweeper,
) api.Handlers {
	return api.Handlers{
		Events:   v1.NewEventsHandler(eventService, log),
		Webhooks: v1.NewProviderWebhookHandler(paymentService, log),
		Health:   v1.NewHealthHandler(central),
		Sweeps:   cron.NewSweepHandler(sweeper, log),
	}
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	router *pubsubRouter.Router,
	jobs jobHandler.Handler,
	notifications *notification.Handler,
	webhooks webhookHandler.Handler,
	sweeper *sweep.Sweeper,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		startAPIServer(lc, r, cfg, log)
		startMessageRouter(lc, router, log, jobs, notifications, webhooks)
		startScheduler(lc, cfg, sweeper, log)
		if cfg.Temporal.Enabled {
			startTemporalWorker(lc, cfg, sweeper, log)
		}
	case types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
	case types.ModeWorker:
		startMessageRouter(lc, router, log, jobs, notifications, webhooks)
		startScheduler(lc, cfg, sweeper, log)
	case types.ModeTemporalWorker:
		startTemporalWorker(lc, cfg, sweeper, log)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{Addr: cfg.Server.Address, Handler: r}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting API server", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down API server")
			return srv.Shutdown(ctx)
		},
	})
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	log *logger.Logger,
	handlers ...interface {
		RegisterHandler(router *pubsubRouter.Router)
	},
) {
	for _, h := range handlers {
		h.RegisterHandler(router)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting message router")
			go func() {
				if err := router.Run(context.Background()); err != nil {
					log.Errorw("message router stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping message router")
			return router.Close()
		},
	})
}

func startScheduler(lc fx.Lifecycle, cfg *config.Configuration, sweeper *sweep.Sweeper, log *logger.Logger) {
	if !cfg.Scheduler.Enabled {
		log.Info("in-process scheduler disabled")
		return
	}
	s, err := scheduler.New(cfg, sweeper, log)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	s.RegisterWithLifecycle(lc)
}

func startTemporalWorker(lc fx.Lifecycle, cfg *config.Configuration, sweeper *sweep.Sweeper, log *logger.Logger) {
	client, err := temporal.NewTemporalClient(&cfg.Temporal, log)
	if err != nil {
		log.Fatalf("Failed to connect to temporal: %v", err)
	}

	worker := temporal.NewWorker(client, cfg, sweeper, log)
	worker.RegisterWithLifecycle(lc)

	svc := temporal.NewService(client, cfg, log)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return svc.EnsureSweepSchedule(ctx)
		},
		OnStop: func(ctx context.Context) error {
			client.Close()
			return nil
		},
	})
}
