package router

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/metrics"
	"github.com/flexprice/billingcore/internal/pubsub"
	"github.com/flexprice/billingcore/internal/sentry"
	"github.com/flexprice/billingcore/internal/types"
)

// PoisonTopic receives messages whose retries were exhausted
const PoisonTopic = "poison_queue"

// Router manages all message routing
type Router struct {
	router  *message.Router
	logger  *logger.Logger
	sentry  *sentry.Service
	metrics *metrics.Metrics
}

// NewRouter creates a new message router. Exhausted messages are published
// to PoisonTopic on dlq.
func NewRouter(
	dlq pubsub.Publisher,
	logger *logger.Logger,
	sentry *sentry.Service,
	metrics *metrics.Metrics,
) (*Router, error) {
	router, err := message.NewRouter(
		message.RouterConfig{CloseTimeout: 30 * time.Second},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return nil, err
	}

	poisonQueue, err := middleware.PoisonQueue(pubsub.AsWatermillPublisher(dlq), PoisonTopic)
	if err != nil {
		return nil, err
	}

	// router middlewares wrap handler middlewares, so the poison queue sees
	// the error only after the handler's retries are spent
	router.AddMiddleware(
		poisonQueue,
		middleware.Recoverer,
		middleware.CorrelationID,
	)

	return &Router{
		router:  router,
		logger:  logger,
		sentry:  sentry,
		metrics: metrics,
	}, nil
}

// AddNoPublishHandler adds a consumer for topic. Errors that a redelivery cannot fix
// are logged and acknowledged; everything else goes through retry and then the poison queue.
func (r *Router) AddNoPublishHandler(
	handlerName string,
	topicName string,
	subscriber message.Subscriber,
	handlerFunc func(msg *message.Message) error,
	middlewares ...message.HandlerMiddleware,
) {
	handler := r.router.AddNoPublisherHandler(
		handlerName,
		topicName,
		subscriber,
		func(msg *message.Message) error {
			start := time.Now()
			ctx := msg.Context()
			if tenantID := msg.Metadata.Get(pubsub.MetadataTenantID); tenantID != "" {
				ctx = types.WithTenant(ctx, tenantID)
				msg.SetContext(ctx)
			}

			err := handlerFunc(msg)
			r.metrics.JobProcessed(topicName, err, time.Since(start).Seconds())
			if err == nil {
				return nil
			}

			r.sentry.CaptureException(ctx, err)
			if !shouldRetry(r.logger, err) {
				r.logger.Warnw("dropping message after non-retryable error",
					"handler", handlerName,
					"error", err,
					"correlation_id", middleware.MessageCorrelationID(msg),
					"message_uuid", msg.UUID,
				)
				return nil
			}

			r.logger.Errorw("handler failed",
				"handler", handlerName,
				"error", err,
				"correlation_id", middleware.MessageCorrelationID(msg),
				"message_uuid", msg.UUID,
			)
			return err
		},
	)

	for _, m := range middlewares {
		handler.AddMiddleware(m)
	}
}

// Use adds middlewares applied to every handler, inside the poison queue
func (r *Router) Use(middlewares ...message.HandlerMiddleware) {
	r.router.AddMiddleware(middlewares...)
}

// Run blocks until ctx is cancelled or Close is called
func (r *Router) Run(ctx context.Context) error {
	r.logger.Info("starting router")
	return r.router.Run(ctx)
}

// Running is closed once every handler is subscribed
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

// Close gracefully shuts down the router
func (r *Router) Close() error {
	r.logger.Info("closing router")
	return r.router.Close()
}
