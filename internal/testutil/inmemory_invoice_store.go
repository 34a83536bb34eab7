package testutil

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/domain/invoice"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{NewInMemoryStore(copyInvoice)}
}

// copyInvoice copies the invoice and its line items
func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	if inv == nil {
		return nil
	}
	c := *inv
	c.LineItems = make([]*invoice.LineItem, len(inv.LineItems))
	for i, li := range inv.LineItems {
		c.LineItems[i] = copyOf(li)
	}
	return &c
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if inv.IdempotencyKey != "" {
		if existing, _ := s.GetByIdempotencyKey(ctx, inv.IdempotencyKey); existing != nil {
			return ierr.NewError("invoice already exists").
				WithReportableDetails(map[string]any{"idempotency_key": inv.IdempotencyKey}).
				Mark(ierr.ErrAlreadyExists)
		}
	}
	if inv.Version == 0 {
		inv.Version = 1
	}
	for _, li := range inv.LineItems {
		li.InvoiceID = inv.ID
	}
	return s.InMemoryStore.Create(ctx, inv.ID, inv)
}

func (s *InMemoryInvoiceStore) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	return s.Get(ctx, id)
}

func (s *InMemoryInvoiceStore) GetByIdempotencyKey(ctx context.Context, key string) (*invoice.Invoice, error) {
	found := s.List(ctx, func(inv *invoice.Invoice) bool { return inv.IdempotencyKey == key })
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	stored, err := s.Get(ctx, inv.ID)
	if err != nil {
		return err
	}
	if stored.Version != inv.Version {
		return ierr.NewError("invoice was modified concurrently").
			WithReportableDetails(map[string]any{"invoice_id": inv.ID}).
			Mark(ierr.ErrVersionConflict)
	}
	// line items are only changed through AddLineItems
	inv.Version++
	inv.UpdatedAt = time.Now().UTC()
	updated := copyInvoice(inv)
	updated.LineItems = stored.LineItems
	return s.InMemoryStore.Update(ctx, inv.ID, updated)
}

func (s *InMemoryInvoiceStore) AddLineItems(ctx context.Context, invoiceID string, items []*invoice.LineItem) error {
	stored, err := s.Get(ctx, invoiceID)
	if err != nil {
		return err
	}
	for _, li := range items {
		li.InvoiceID = invoiceID
		stored.LineItems = append(stored.LineItems, li)
	}
	return s.InMemoryStore.Update(ctx, invoiceID, stored)
}

func (s *InMemoryInvoiceStore) ListDraftsPastGrace(ctx context.Context, now time.Time, limit int) ([]string, error) {
	drafts := s.List(ctx, func(inv *invoice.Invoice) bool {
		return inv.InvoiceStatus == types.InvoiceStatusDraft &&
			inv.GracePeriodEndsAt != nil && !inv.GracePeriodEndsAt.After(now)
	})
	ids := make([]string, 0, len(drafts))
	for i, inv := range drafts {
		if limit > 0 && i >= limit {
			break
		}
		ids = append(ids, inv.ID)
	}
	return ids, nil
}

func (s *InMemoryInvoiceStore) SumProgressiveUsage(ctx context.Context, subscriptionID string, periodStart, periodEnd time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	invoices := s.List(ctx, func(inv *invoice.Invoice) bool {
		return inv.SubscriptionID == subscriptionID &&
			inv.InvoiceKind == types.InvoiceKindProgressive &&
			inv.InvoiceStatus != types.InvoiceStatusCanceled &&
			!inv.PeriodStart.Before(periodStart) &&
			inv.PeriodStart.Before(periodEnd)
	})
	for _, inv := range invoices {
		for _, li := range inv.LineItemsOfType(types.LineItemTypeUsage) {
			total = total.Add(li.Amount)
		}
	}
	return total, nil
}

// All returns every invoice of the tenant in creation order
func (s *InMemoryInvoiceStore) All(ctx context.Context) []*invoice.Invoice {
	return s.List(ctx, nil)
}
