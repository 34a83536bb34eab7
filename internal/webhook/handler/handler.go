package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/domain/webhook"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/httpclient"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/metrics"
	"github.com/flexprice/billingcore/internal/pubsub"
	pubsubRouter "github.com/flexprice/billingcore/internal/pubsub/router"
	"github.com/flexprice/billingcore/internal/types"
	svix "github.com/svix/svix-webhooks/go"
)

// Handler interface for processing webhook events
type Handler interface {
	RegisterHandler(router *pubsubRouter.Router)
	// Deliver performs a single signed delivery attempt and records it
	Deliver(ctx context.Context, event *types.WebhookEvent) error
}

type handler struct {
	pubSub  pubsub.PubSub
	config  *config.Webhook
	repo    webhook.Repository
	client  httpclient.Client
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// envelope is the body posted to tenant endpoints
type envelope struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewHandler creates the webhook delivery consumer
func NewHandler(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	repo webhook.Repository,
	client httpclient.Client,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) Handler {
	return &handler{
		pubSub:  pubSub,
		config:  &cfg.Webhook,
		repo:    repo,
		client:  client,
		logger:  logger,
		metrics: metrics,
	}
}

func (h *handler) RegisterHandler(router *pubsubRouter.Router) {
	router.AddNoPublishHandler(
		"webhook_handler",
		h.config.Topic,
		h.pubSub,
		h.processMessage,
		pubsubRouter.RetryMiddleware(pubsubRouter.WebhookRetryConfig(*h.config), h.logger),
	)
}

func (h *handler) processMessage(msg *message.Message) error {
	var event types.WebhookEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		h.logger.Errorw("failed to unmarshal webhook event",
			"error", err,
			"message_uuid", msg.UUID,
		)
		return nil
	}

	ctx := types.WithTenant(msg.Context(), event.TenantID)
	return h.Deliver(ctx, &event)
}

func (h *handler) Deliver(ctx context.Context, event *types.WebhookEvent) error {
	endpoint, err := h.repo.GetEndpoint(ctx)
	if err != nil {
		return err
	}
	if endpoint == nil || !endpoint.Accepts(event.EventName) {
		h.logger.Debugw("no endpoint accepts event, skipping",
			"tenant_id", event.TenantID,
			"event", event.EventName,
		)
		return nil
	}

	body, err := json.Marshal(envelope{
		Event:     event.EventName,
		Data:      event.Payload,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to build webhook body").
			Mark(ierr.ErrValidation)
	}

	headers, err := signedHeaders(endpoint.Secret, event.ID, time.Now().UTC(), body)
	if err != nil {
		return err
	}

	attempts, err := h.repo.CountAttempts(ctx, event.ID)
	if err != nil {
		return err
	}

	resp, sendErr := h.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     endpoint.URL,
		Headers: headers,
		Body:    body,
	})

	entry := &webhook.Log{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WEBHOOK_LOG),
		TenantID:     event.TenantID,
		EventID:      event.ID,
		EventName:    event.EventName,
		EndpointURL:  endpoint.URL,
		AttemptCount: attempts + 1,
		Success:      sendErr == nil,
		CreatedAt:    time.Now().UTC(),
	}
	if resp != nil {
		entry.StatusCode = resp.StatusCode
		entry.ResponseBody = string(resp.Body)
	}
	if httpErr, ok := httpclient.IsHTTPError(sendErr); ok {
		entry.StatusCode = httpErr.StatusCode
		entry.ResponseBody = string(httpErr.Response)
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}

	if err := h.repo.CreateLog(ctx, entry); err != nil {
		h.logger.Errorw("failed to record webhook attempt",
			"error", err,
			"event_id", event.ID,
		)
	}
	h.metrics.WebhookDelivered(event.EventName, sendErr == nil)

	if sendErr != nil {
		h.logger.Warnw("webhook delivery failed",
			"error", sendErr,
			"tenant_id", event.TenantID,
			"event", event.EventName,
			"attempt", entry.AttemptCount,
		)
		// every non-2xx goes back through the delivery backoff, 4xx included
		if httpErr, ok := httpclient.IsHTTPError(sendErr); ok {
			return httpErr.Unwrap()
		}
		return sendErr
	}

	h.logger.Infow("webhook sent successfully",
		"tenant_id", event.TenantID,
		"event", event.EventName,
		"status_code", entry.StatusCode,
		"attempt", entry.AttemptCount,
	)
	return nil
}

// signedHeaders signs body the Standard Webhooks way. Both header families are
// set because receivers built on the svix libraries look for either.
func signedHeaders(secret, msgID string, ts time.Time, body []byte) (map[string]string, error) {
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Webhook endpoint secret is not a valid signing key").
			Mark(ierr.ErrConfiguration)
	}

	signature, err := wh.Sign(msgID, ts, body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to sign webhook").
			Mark(ierr.ErrSystem)
	}

	unix := strconv.FormatInt(ts.Unix(), 10)
	return map[string]string{
		"Content-Type":      "application/json",
		"webhook-id":        msgID,
		"webhook-timestamp": unix,
		"webhook-signature": signature,
		"svix-id":           msgID,
		"svix-timestamp":    unix,
		"svix-signature":    signature,
	}, nil
}
