package stripe

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testSecret = "whsec_test_secret"

func signedPayload(t *testing.T, payload map[string]any) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   raw,
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func TestVerifyWebhookSucceededIntent(t *testing.T) {
	p := NewProvider(nil, testSecret, logger.NewNoopLogger())
	payload, header := signedPayload(t, map[string]any{
		"id":     "evt_1",
		"object": "event",
		"type":   "payment_intent.succeeded",
		"data": map[string]any{"object": map[string]any{
			"id":             "pi_123",
			"object":         "payment_intent",
			"metadata":       map[string]string{MetadataInvoiceID: "inv_1"},
			"payment_method": "pm_saved",
		}},
	})

	event, err := p.VerifyWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, types.ProviderEventSucceeded, event.Status)
	assert.Equal(t, "pi_123", event.TransactionID)
	assert.Equal(t, "inv_1", event.InvoiceRef)
	assert.Equal(t, "pm_saved", event.SavedMethodToken)
}

func TestVerifyWebhookRejectsBadSignature(t *testing.T) {
	p := NewProvider(nil, testSecret, logger.NewNoopLogger())
	payload, _ := signedPayload(t, map[string]any{"id": "evt_1", "object": "event", "type": "payment_intent.succeeded"})

	_, err := p.VerifyWebhook(context.Background(), payload, "t=1,v1=deadbeef")
	assert.Error(t, err)
}

func TestVerifyWebhookIgnoresOtherEvents(t *testing.T) {
	p := NewProvider(nil, testSecret, logger.NewNoopLogger())
	payload, header := signedPayload(t, map[string]any{"id": "evt_2", "object": "event", "type": "customer.created"})

	event, err := p.VerifyWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, types.ProviderEventIgnored, event.Status)
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(4410), toMinorUnits(decimal.RequireFromString("44.10"), "usd"))
	assert.Equal(t, int64(1500), toMinorUnits(decimal.RequireFromString("1500"), "jpy"))
	assert.Equal(t, int64(1), toMinorUnits(decimal.RequireFromString("0.005"), "eur"))
}
