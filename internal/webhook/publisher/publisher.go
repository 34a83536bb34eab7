package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/billingcore/internal/config"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/pubsub"
	"github.com/flexprice/billingcore/internal/types"
)

// WebhookPublisher queues outbound tenant notifications for delivery
type WebhookPublisher interface {
	PublishWebhook(ctx context.Context, event *types.WebhookEvent) error
	Close() error
}

type webhookPublisher struct {
	pubSub pubsub.Publisher
	config *config.Webhook
	logger *logger.Logger
}

func NewPublisher(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	logger *logger.Logger,
) (WebhookPublisher, error) {
	return &webhookPublisher{
		pubSub: pubSub,
		config: &cfg.Webhook,
		logger: logger,
	}, nil
}

// PublishWebhook stamps the event with an id, the tenant of ctx and a timestamp
// before queueing it. The message id is the event id, so a replayed publish is
// recognisable downstream.
func (p *webhookPublisher) PublishWebhook(ctx context.Context, event *types.WebhookEvent) error {
	if !p.config.Enabled {
		return nil
	}

	if event.TenantID == "" {
		event.TenantID = types.GetTenantID(ctx)
	}
	if event.TenantID == "" {
		return ierr.NewError("webhook event without tenant").
			WithHintf("Webhook event %s must be scoped to a tenant", event.EventName).
			Mark(ierr.ErrValidation)
	}
	if event.ID == "" {
		event.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WEBHOOK_EVENT)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to marshal webhook event").
			Mark(ierr.ErrSystem)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set(pubsub.MetadataTenantID, event.TenantID)

	log := p.logger.WithContext(ctx).With(
		"event_id", event.ID,
		"event_name", event.EventName,
		"topic", p.config.Topic,
	)
	if err := p.pubSub.Publish(ctx, p.config.Topic, msg); err != nil {
		log.Errorw("failed to publish webhook event", "error", err)
		return ierr.WithError(err).
			WithHint("Failed to publish webhook event").
			Mark(ierr.ErrSystem)
	}

	log.Debugw("published webhook event")
	return nil
}

// Close is a no-op; the pubsub is closed by the module lifecycle
func (p *webhookPublisher) Close() error {
	return nil
}
