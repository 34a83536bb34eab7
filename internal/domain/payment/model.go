package payment

import (
	"time"

	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

// Payment records a settled or failed collection attempt against an invoice
type Payment struct {
	ID              string              `db:"id" json:"id"`
	InvoiceID       string              `db:"invoice_id" json:"invoice_id"`
	CustomerID      string              `db:"customer_id" json:"customer_id"`
	Amount          decimal.Decimal     `db:"amount" json:"amount"`
	Currency        string              `db:"currency" json:"currency"`
	PaymentStatus   types.PaymentStatus `db:"payment_status" json:"payment_status"`
	Provider        types.ProviderType  `db:"provider" json:"provider"`
	ProviderTxnID   string              `db:"provider_txn_id" json:"provider_txn_id"`
	PaymentMethodID string              `db:"payment_method_id" json:"payment_method_id,omitempty"`
	FailureReason   string              `db:"failure_reason" json:"failure_reason,omitempty"`
	RefundedAmount  decimal.Decimal     `db:"refunded_amount" json:"refunded_amount"`
	types.BaseModel
}

// PaymentRetry tracks dunning for one failed invoice. At most one PENDING retry
// exists per invoice.
type PaymentRetry struct {
	ID             string                   `db:"id" json:"id"`
	InvoiceID      string                   `db:"invoice_id" json:"invoice_id"`
	SubscriptionID string                   `db:"subscription_id" json:"subscription_id"`
	AttemptNumber  int                      `db:"attempt_number" json:"attempt_number"`
	MaxAttempts    int                      `db:"max_attempts" json:"max_attempts"`
	NextRetryAt    *time.Time               `db:"next_retry_at" json:"next_retry_at,omitempty"`
	RetryStatus    types.PaymentRetryStatus `db:"retry_status" json:"retry_status"`
	LastError      string                   `db:"last_error" json:"last_error,omitempty"`
	types.BaseModel
}

// IsDue reports whether the retry should be attempted at now
func (r *PaymentRetry) IsDue(now time.Time) bool {
	return r.RetryStatus == types.PaymentRetryStatusPending &&
		r.NextRetryAt != nil && !r.NextRetryAt.After(now)
}

// IsLastAttempt reports whether a failure now exhausts the retry
func (r *PaymentRetry) IsLastAttempt() bool {
	return r.AttemptNumber >= r.MaxAttempts
}
