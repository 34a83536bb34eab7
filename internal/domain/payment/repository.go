package payment

import (
	"context"
	"time"
)

type Repository interface {
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id string) (*Payment, error)
	// GetByProviderTxnID returns nil, nil when the provider transaction is unknown
	GetByProviderTxnID(ctx context.Context, providerTxnID string) (*Payment, error)
	UpdatePayment(ctx context.Context, p *Payment) error

	// CreateRetry fails with ErrAlreadyExists when the invoice already has a PENDING retry
	CreateRetry(ctx context.Context, r *PaymentRetry) error
	GetRetry(ctx context.Context, id string) (*PaymentRetry, error)
	// GetActiveRetryForInvoice returns nil, nil when the invoice has no PENDING retry
	GetActiveRetryForInvoice(ctx context.Context, invoiceID string) (*PaymentRetry, error)
	// UpdateRetry persists r only if the stored retry is still PENDING at
	// expectedAttempt; otherwise it fails with ErrVersionConflict
	UpdateRetry(ctx context.Context, r *PaymentRetry, expectedAttempt int) error
	ListDueRetryIDs(ctx context.Context, now time.Time, limit int) ([]string, error)
}
