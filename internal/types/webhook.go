package types

import (
	"encoding/json"
	"time"
)

// WebhookEvent represents a webhook event to be delivered
type WebhookEvent struct {
	ID        string          `json:"id"`
	EventName string          `json:"event_name"`
	TenantID  string          `json:"tenant_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// invoice event names
const (
	WebhookEventInvoiceCreated   = "invoice.created"
	WebhookEventInvoiceDrafted   = "invoice.drafted"
	WebhookEventInvoiceFinalized = "invoice.finalized"
	WebhookEventInvoicePaid      = "invoice.paid"
	WebhookEventInvoiceFailed    = "invoice.payment_failed"
)

// subscription event names
const (
	WebhookEventSubscriptionActivated   = "subscription.activated"
	WebhookEventSubscriptionRenewed     = "subscription.renewed"
	WebhookEventSubscriptionPlanChanged = "subscription.plan_changed"
	WebhookEventSubscriptionPastDue     = "subscription.past_due"
	WebhookEventSubscriptionPaused      = "subscription.paused"
	WebhookEventSubscriptionResumed     = "subscription.resumed"
	WebhookEventSubscriptionCanceled    = "subscription.canceled"
)

// payment event names
const (
	WebhookEventPaymentSucceeded      = "payment.succeeded"
	WebhookEventPaymentFailed         = "payment.failed"
	WebhookEventPaymentRefunded       = "payment.refunded"
	WebhookEventPaymentRetryScheduled = "payment.retry.scheduled"
	WebhookEventPaymentRetrySucceeded = "payment.retry.succeeded"
	WebhookEventPaymentRetryExhausted = "payment.retry.exhausted"
)

// wallet event names
const (
	WebhookEventWalletTransactionCreated = "wallet.transaction.created"
	WebhookEventWalletTerminated         = "wallet.terminated"
)
