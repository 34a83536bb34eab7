// Package notification queues customer notifications and delivers them from a
// queue consumer, so the billing pipeline never waits on delivery.
package notification

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/billingcore/internal/config"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/interfaces"
	"github.com/flexprice/billingcore/internal/jobs"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/pubsub"
	pubsubRouter "github.com/flexprice/billingcore/internal/pubsub/router"
	"github.com/flexprice/billingcore/internal/types"
)

// Envelope carries a notification over the notify topic
type Envelope struct {
	interfaces.Notification
}

func (Envelope) JobType() string { return jobs.TypeNotification }

type queuedNotifier struct {
	queue jobs.Queue
	topic string
}

// NewQueuedNotifier returns a Notifier that enqueues onto the notify topic
func NewQueuedNotifier(queue jobs.Queue, cfg *config.Configuration) interfaces.Notifier {
	return &queuedNotifier{queue: queue, topic: cfg.Jobs.NotifyTopic}
}

func (n *queuedNotifier) Send(ctx context.Context, note *interfaces.Notification) error {
	if note.Recipient == "" {
		return ierr.NewError("notification has no recipient").
			WithHintf("Notification %s requires a recipient", note.Template).
			Mark(ierr.ErrValidation)
	}
	if note.TenantID == "" {
		note.TenantID = types.GetTenantID(ctx)
	}
	if types.GetTenantID(ctx) == "" {
		ctx = types.WithTenant(ctx, note.TenantID)
	}
	return n.queue.Enqueue(ctx, n.topic, Envelope{Notification: *note})
}

// Sender performs the actual delivery, e.g. email
type Sender interface {
	Deliver(ctx context.Context, note *interfaces.Notification) error
}

// LogSender records notifications in the log. It is the default until a delivery
// channel is configured.
type LogSender struct {
	Logger *logger.Logger
}

func (s *LogSender) Deliver(ctx context.Context, note *interfaces.Notification) error {
	s.Logger.WithContext(ctx).Infow("notification delivered",
		"recipient", note.Recipient,
		"template", note.Template,
		"attachments", len(note.Attachments),
	)
	return nil
}

// Handler consumes the notify topic
type Handler struct {
	pubSub pubsub.Subscriber
	sender Sender
	cfg    *config.Configuration
	logger *logger.Logger
}

func NewHandler(pubSub pubsub.Subscriber, sender Sender, cfg *config.Configuration, logger *logger.Logger) *Handler {
	return &Handler{pubSub: pubSub, sender: sender, cfg: cfg, logger: logger}
}

func (h *Handler) RegisterHandler(router *pubsubRouter.Router) {
	router.AddNoPublishHandler(
		"notification_handler",
		h.cfg.Jobs.NotifyTopic,
		h.pubSub,
		h.processMessage,
		pubsubRouter.RetryMiddleware(h.cfg.Jobs.Retry, h.logger),
	)
}

func (h *Handler) processMessage(msg *message.Message) error {
	var env Envelope
	if err := jobs.Decode(msg, &env); err != nil {
		return err
	}
	ctx := types.WithTenant(msg.Context(), env.TenantID)
	return h.sender.Deliver(ctx, &env.Notification)
}
