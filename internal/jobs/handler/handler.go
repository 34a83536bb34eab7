// Package handler consumes the billing job topics and hands each job to the
// service that owns its phase.
package handler

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/domain/events"
	"github.com/flexprice/billingcore/internal/domain/invoice"
	"github.com/flexprice/billingcore/internal/jobs"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/pubsub"
	pubsubRouter "github.com/flexprice/billingcore/internal/pubsub/router"
	"github.com/flexprice/billingcore/internal/service"
)

// Handler registers the job consumers on a router
type Handler interface {
	RegisterHandler(router *pubsubRouter.Router)
}

type Rater interface {
	RateSubscription(ctx context.Context, req service.RateRequest) (*invoice.Invoice, bool, error)
}

type Finalizer interface {
	FinalizeInvoice(ctx context.Context, id string, now time.Time) (*invoice.Invoice, error)
}

type Charger interface {
	ChargeInvoice(ctx context.Context, invoiceID string, now time.Time) error
}

type RetryProcessor interface {
	ProcessRetry(ctx context.Context, retryID string, now time.Time) error
}

type ProgressiveChecker interface {
	Check(ctx context.Context, subscriptionID string, now time.Time) (bool, error)
}

type Ingester interface {
	Ingest(ctx context.Context, req *dto.IngestEventRequest) (*events.UsageEvent, bool, error)
}

// Services are the phase owners a job is dispatched to
type Services struct {
	Rater       Rater
	Finalizer   Finalizer
	Charger     Charger
	Retries     RetryProcessor
	Progressive ProgressiveChecker
	Ingester    Ingester
}

type consumer struct {
	name    string
	topic   string
	process func(msg *message.Message) error
}

type handler struct {
	pubSub   pubsub.Subscriber
	config   *config.JobsConfig
	services Services
	logger   *logger.Logger
	now      func() time.Time
}

// NewHandler creates the consumers for every job topic except notifications,
// which the notification package consumes itself.
func NewHandler(
	pubSub pubsub.Subscriber,
	cfg *config.Configuration,
	services Services,
	logger *logger.Logger,
) Handler {
	return &handler{
		pubSub:   pubSub,
		config:   &cfg.Jobs,
		services: services,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (h *handler) consumers() []consumer {
	return []consumer{
		{"rate_subscription_handler", h.config.RateTopic, h.rateSubscription},
		{"finalize_invoice_handler", h.config.FinalizeTopic, h.finalizeInvoice},
		{"charge_invoice_handler", h.config.ChargeTopic, h.chargeInvoice},
		{"payment_retry_handler", h.config.RetryTopic, h.paymentRetry},
		{"progressive_check_handler", h.config.ProgressiveTopic, h.progressiveCheck},
		{"usage_event_handler", h.config.UsageTopic, h.usageEvent},
	}
}

func (h *handler) RegisterHandler(router *pubsubRouter.Router) {
	for _, c := range h.consumers() {
		router.AddNoPublishHandler(
			c.name,
			c.topic,
			h.pubSub,
			c.process,
			pubsubRouter.RetryMiddleware(h.config.Retry, h.logger),
		)
	}
}

func (h *handler) rateSubscription(msg *message.Message) error {
	var job jobs.RateSubscription
	if err := jobs.Decode(msg, &job); err != nil {
		return err
	}

	inv, created, err := h.services.Rater.RateSubscription(msg.Context(), service.RateRequest{
		SubscriptionID: job.SubscriptionID,
		PlanID:         job.PlanID,
		UsagePlanID:    job.UsagePlanID,
		Kind:           job.Kind,
		PeriodStart:    job.PeriodStart,
		PeriodEnd:      job.PeriodEnd,
		UsageStart:     job.UsageStart,
		UsageEnd:       job.UsageEnd,
		Now:            h.now(),
	})
	if err != nil {
		return err
	}
	if !created && inv != nil {
		h.logger.WithContext(msg.Context()).Debugw("period already rated",
			"subscription_id", job.SubscriptionID,
			"period_start", job.PeriodStart,
			"invoice_id", inv.ID,
		)
	}
	return nil
}

func (h *handler) finalizeInvoice(msg *message.Message) error {
	var job jobs.FinalizeInvoice
	if err := jobs.Decode(msg, &job); err != nil {
		return err
	}
	_, err := h.services.Finalizer.FinalizeInvoice(msg.Context(), job.InvoiceID, h.now())
	return err
}

func (h *handler) chargeInvoice(msg *message.Message) error {
	var job jobs.ChargeInvoice
	if err := jobs.Decode(msg, &job); err != nil {
		return err
	}
	return h.services.Charger.ChargeInvoice(msg.Context(), job.InvoiceID, h.now())
}

func (h *handler) paymentRetry(msg *message.Message) error {
	var job jobs.PaymentRetry
	if err := jobs.Decode(msg, &job); err != nil {
		return err
	}
	return h.services.Retries.ProcessRetry(msg.Context(), job.RetryID, h.now())
}

func (h *handler) progressiveCheck(msg *message.Message) error {
	var job jobs.ProgressiveCheck
	if err := jobs.Decode(msg, &job); err != nil {
		return err
	}
	billed, err := h.services.Progressive.Check(msg.Context(), job.SubscriptionID, h.now())
	if err != nil {
		return err
	}
	if billed {
		h.logger.WithContext(msg.Context()).Infow("progressive threshold crossed",
			"subscription_id", job.SubscriptionID,
		)
	}
	return nil
}

func (h *handler) usageEvent(msg *message.Message) error {
	var job jobs.UsageEvent
	if err := jobs.Decode(msg, &job); err != nil {
		return err
	}
	_, _, err := h.services.Ingester.Ingest(msg.Context(), &dto.IngestEventRequest{
		TransactionID:  job.TransactionID,
		SubscriptionID: job.SubscriptionID,
		MetricCode:     job.MetricCode,
		Timestamp:      job.Timestamp,
		Properties:     job.Properties,
	})
	return err
}
