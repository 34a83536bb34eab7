// Package interfaces holds the narrow contracts of the collaborators the billing
// core calls but does not implement: payment providers, notification delivery,
// document rendering and secrets handling.
package interfaces

import (
	"context"

	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

// ChargeResult is the outcome of a provider charge. A declined charge is a
// result with Success false, not an error; errors are reserved for transport
// and configuration failures.
type ChargeResult struct {
	Success       bool
	TransactionID string
	Error         string
}

type RefundResult struct {
	Success bool
	Error   string
}

// ProviderWebhookEvent is a verified provider notification normalised to what
// the core needs
type ProviderWebhookEvent struct {
	TransactionID    string
	Status           types.ProviderEventStatus
	InvoiceRef       string
	SavedMethodToken string
	FailureReason    string
}

// PaymentProvider is implemented by each provider adapter
type PaymentProvider interface {
	Charge(ctx context.Context, amount decimal.Decimal, currency, customerRef string, metadata map[string]string) (*ChargeResult, error)
	ChargeSavedMethod(ctx context.Context, methodRef string, amount decimal.Decimal, currency string, metadata map[string]string) (*ChargeResult, error)
	// Refund refunds amount, or the full transaction when amount is nil
	Refund(ctx context.Context, transactionRef string, amount *decimal.Decimal, currency string) (*RefundResult, error)
	VerifyWebhook(ctx context.Context, payload []byte, signature string) (*ProviderWebhookEvent, error)
}

// ProviderResolver returns the active provider of the tenant in ctx. It fails with
// ErrConfiguration when the tenant has none.
type ProviderResolver interface {
	Resolve(ctx context.Context) (PaymentProvider, error)
}

// Notification is a queued customer message
type Notification struct {
	TenantID    string                     `json:"tenant_id"`
	Recipient   string                     `json:"recipient"`
	Template    types.NotificationTemplate `json:"template"`
	Context     map[string]interface{}     `json:"context"`
	Attachments []Attachment               `json:"attachments,omitempty"`
}

type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// Notifier queues a message for asynchronous delivery. The core never waits for delivery.
type Notifier interface {
	Send(ctx context.Context, n *Notification) error
}

// DocumentSnapshot is the data a renderer turns into a document
type DocumentSnapshot struct {
	Invoice  interface{}
	Customer interface{}
	Tenant   interface{}
}

// DocumentRenderer renders invoice documents, e.g. PDFs
type DocumentRenderer interface {
	Render(ctx context.Context, snapshot DocumentSnapshot) ([]byte, error)
}

// SecretsCodec encrypts provider credentials at rest
type SecretsCodec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
