package invoice

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for invoice persistence
type Repository interface {
	// Create stores the invoice with its line items. A duplicate idempotency key fails
	// with ErrAlreadyExists.
	Create(ctx context.Context, inv *Invoice) error
	// Get loads the invoice with its line items
	Get(ctx context.Context, id string) (*Invoice, error)
	GetForUpdate(ctx context.Context, id string) (*Invoice, error)
	// GetByIdempotencyKey returns nil, nil when none exists
	GetByIdempotencyKey(ctx context.Context, key string) (*Invoice, error)
	// Update persists status, amount and dates when the version matches
	Update(ctx context.Context, inv *Invoice) error
	AddLineItems(ctx context.Context, invoiceID string, items []*LineItem) error
	// ListDraftsPastGrace returns ids of DRAFT invoices whose grace period ended at or before now
	ListDraftsPastGrace(ctx context.Context, now time.Time, limit int) ([]string, error)
	// SumProgressiveUsage totals the usage line amounts of non-canceled progressive
	// invoices for the subscription whose period starts in [periodStart, periodEnd)
	SumProgressiveUsage(ctx context.Context, subscriptionID string, periodStart, periodEnd time.Time) (decimal.Decimal, error)
}
