package publisher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/flexprice/billingcore/internal/config"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/pubsub"
	"github.com/flexprice/billingcore/internal/pubsub/memory"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPublisher(t *testing.T, enabled bool) (WebhookPublisher, pubsub.PubSub, *config.Configuration) {
	cfg := config.GetDefaultConfig()
	cfg.Webhook.Enabled = enabled
	ps := memory.NewPubSub(logger.NewNoopLogger())
	t.Cleanup(func() { _ = ps.Close() })

	p, err := NewPublisher(ps, cfg, logger.NewNoopLogger())
	require.NoError(t, err)
	return p, ps, cfg
}

func TestPublishStampsTenantAndID(t *testing.T) {
	p, ps, cfg := newPublisher(t, true)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := ps.Subscribe(ctx, cfg.Webhook.Topic)
	require.NoError(t, err)

	event := &types.WebhookEvent{EventName: types.WebhookEventInvoiceFinalized, Payload: json.RawMessage(`{}`)}
	require.NoError(t, p.PublishWebhook(types.WithTenant(ctx, "tenant_a"), event))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, event.ID, msg.UUID)
		assert.Equal(t, "tenant_a", msg.Metadata.Get(pubsub.MetadataTenantID))

		var got types.WebhookEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, "tenant_a", got.TenantID)
		assert.False(t, got.Timestamp.IsZero())
	case <-ctx.Done():
		t.Fatal("webhook event was not published")
	}
}

func TestPublishRequiresTenant(t *testing.T) {
	p, _, _ := newPublisher(t, true)
	err := p.PublishWebhook(context.Background(), &types.WebhookEvent{EventName: types.WebhookEventInvoiceFinalized})
	assert.True(t, ierr.IsValidation(err))
}

func TestDisabledPublisherDropsEvents(t *testing.T) {
	p, _, _ := newPublisher(t, false)
	assert.NoError(t, p.PublishWebhook(context.Background(), &types.WebhookEvent{}))
}
