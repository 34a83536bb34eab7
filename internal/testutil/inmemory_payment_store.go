package testutil

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/domain/payment"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
)

// InMemoryPaymentStore implements payment.Repository
type InMemoryPaymentStore struct {
	payments *InMemoryStore[*payment.Payment]
	retries  *InMemoryStore[*payment.PaymentRetry]
}

func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		payments: NewInMemoryStore(copyOf[payment.Payment]),
		retries:  NewInMemoryStore(copyRetry),
	}
}

func copyRetry(r *payment.PaymentRetry) *payment.PaymentRetry {
	c := *r
	if r.NextRetryAt != nil {
		c.NextRetryAt = lo.ToPtr(*r.NextRetryAt)
	}
	return &c
}

func (s *InMemoryPaymentStore) CreatePayment(ctx context.Context, p *payment.Payment) error {
	return s.payments.Create(ctx, p.ID, p)
}

func (s *InMemoryPaymentStore) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	return s.payments.Get(ctx, id)
}

func (s *InMemoryPaymentStore) GetByProviderTxnID(ctx context.Context, providerTxnID string) (*payment.Payment, error) {
	if providerTxnID == "" {
		return nil, nil
	}
	found := s.payments.List(ctx, func(p *payment.Payment) bool { return p.ProviderTxnID == providerTxnID })
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (s *InMemoryPaymentStore) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	return s.payments.Update(ctx, p.ID, p)
}

func (s *InMemoryPaymentStore) CreateRetry(ctx context.Context, r *payment.PaymentRetry) error {
	if active, _ := s.GetActiveRetryForInvoice(ctx, r.InvoiceID); active != nil {
		return ierr.NewError("invoice already has an active retry").
			WithReportableDetails(map[string]any{"invoice_id": r.InvoiceID}).
			Mark(ierr.ErrAlreadyExists)
	}
	return s.retries.Create(ctx, r.ID, r)
}

func (s *InMemoryPaymentStore) GetRetry(ctx context.Context, id string) (*payment.PaymentRetry, error) {
	return s.retries.Get(ctx, id)
}

func (s *InMemoryPaymentStore) GetActiveRetryForInvoice(ctx context.Context, invoiceID string) (*payment.PaymentRetry, error) {
	found := s.retries.List(ctx, func(r *payment.PaymentRetry) bool {
		return r.InvoiceID == invoiceID && r.RetryStatus == types.PaymentRetryStatusPending
	})
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (s *InMemoryPaymentStore) UpdateRetry(ctx context.Context, r *payment.PaymentRetry, expectedAttempt int) error {
	stored, err := s.retries.Get(ctx, r.ID)
	if err != nil {
		return err
	}
	if stored.RetryStatus != types.PaymentRetryStatusPending || stored.AttemptNumber != expectedAttempt {
		return ierr.NewError("payment retry was modified concurrently").
			WithReportableDetails(map[string]any{"retry_id": r.ID}).
			Mark(ierr.ErrVersionConflict)
	}
	return s.retries.Update(ctx, r.ID, r)
}

func (s *InMemoryPaymentStore) ListDueRetryIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	due := s.retries.List(ctx, func(r *payment.PaymentRetry) bool {
		return r.RetryStatus == types.PaymentRetryStatusPending &&
			r.NextRetryAt != nil && !r.NextRetryAt.After(now)
	})
	ids := make([]string, 0, len(due))
	for i, r := range due {
		if limit > 0 && i >= limit {
			break
		}
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// Payments returns the payments recorded against invoiceID
func (s *InMemoryPaymentStore) Payments(ctx context.Context, invoiceID string) []*payment.Payment {
	return s.payments.List(ctx, func(p *payment.Payment) bool { return p.InvoiceID == invoiceID })
}

// Retries returns every retry recorded against invoiceID
func (s *InMemoryPaymentStore) Retries(ctx context.Context, invoiceID string) []*payment.PaymentRetry {
	return s.retries.List(ctx, func(r *payment.PaymentRetry) bool { return r.InvoiceID == invoiceID })
}

func (s *InMemoryPaymentStore) Clear() {
	s.payments.Clear()
	s.retries.Clear()
}
