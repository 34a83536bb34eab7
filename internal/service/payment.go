package service

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/domain/invoice"
	"github.com/flexprice/billingcore/internal/domain/payment"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/idempotency"
	"github.com/flexprice/billingcore/internal/interfaces"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// PaymentService collects finalized invoices through the tenant's payment provider
type PaymentService interface {
	// ChargeInvoice attempts an auto-charge of a PENDING invoice. A declined charge
	// hands the invoice to dunning.
	ChargeInvoice(ctx context.Context, invoiceID string, now time.Time) error

	// HandleProviderWebhook applies a verified provider notification. Replays of a
	// notification already applied are no-ops.
	HandleProviderWebhook(ctx context.Context, payload []byte, signature string) error

	// Refund refunds part or all of a settled payment
	Refund(ctx context.Context, req *dto.RefundRequest) (*payment.Payment, error)
}

type paymentService struct {
	ServiceParams
	idempotencyGenerator *idempotency.Generator
}

func NewPaymentService(params ServiceParams) PaymentService {
	return &paymentService{
		ServiceParams:        params,
		idempotencyGenerator: idempotency.NewGenerator(),
	}
}

func (s *paymentService) ChargeInvoice(ctx context.Context, invoiceID string, now time.Time) error {
	inv, err := s.InvoiceRepo.Get(ctx, invoiceID)
	if err != nil {
		return err
	}
	if inv.InvoiceStatus != types.InvoiceStatusPending || !inv.Amount.IsPositive() {
		s.Logger.Debugw("invoice not chargeable, skipping",
			"invoice_id", inv.ID,
			"status", inv.InvoiceStatus,
			"amount", inv.Amount)
		return nil
	}

	sub, err := s.SubRepo.Get(ctx, inv.SubscriptionID)
	if err != nil {
		return err
	}

	provider, err := s.Providers.Resolve(ctx)
	if err != nil {
		return err
	}

	key := s.idempotencyGenerator.GenerateKey(idempotency.ScopeInvoiceCharge, map[string]interface{}{
		"invoice_id": inv.ID,
	})
	metadata := map[string]string{
		"invoice_id":      inv.ID,
		"idempotency_key": key,
	}

	var result *interfaces.ChargeResult
	methodID := sub.PaymentMethodID
	if methodID != "" {
		result, err = provider.ChargeSavedMethod(ctx, methodID, inv.Amount, inv.Currency, metadata)
	} else {
		cust, custErr := s.CustomerRepo.Get(ctx, inv.CustomerID)
		if custErr != nil {
			return custErr
		}
		if cust.ProviderCustomerRef == "" {
			return ierr.NewError("no payment method for invoice").
				WithHint("The customer has no saved payment method or provider customer").
				WithReportableDetails(map[string]any{
					"invoice_id":  inv.ID,
					"customer_id": inv.CustomerID,
				}).
				Mark(ierr.ErrConfiguration)
		}
		result, err = provider.Charge(ctx, inv.Amount, inv.Currency, cust.ProviderCustomerRef, metadata)
	}
	if err != nil {
		// transient failures go back to the job retry policy; the key keeps the
		// provider from charging twice
		return err
	}
	s.Metrics.PaymentAttempted(string(types.ProviderStripe), result.Success)

	if result.Success {
		var pay *payment.Payment
		err := s.DB.WithTx(ctx, func(ctx context.Context) error {
			var err error
			pay, err = markInvoicePaid(ctx, s.ServiceParams, inv.ID, methodID, result.TransactionID, now)
			return err
		})
		if err != nil {
			return err
		}
		s.afterPaid(ctx, inv, pay)
		return nil
	}

	s.Logger.Infow("auto-charge declined",
		"invoice_id", inv.ID,
		"reason", result.Error)

	failed := &payment.Payment{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID:       inv.ID,
		CustomerID:      inv.CustomerID,
		Amount:          inv.Amount,
		Currency:        inv.Currency,
		PaymentStatus:   types.PaymentStatusFailed,
		Provider:        types.ProviderStripe,
		ProviderTxnID:   result.TransactionID,
		PaymentMethodID: methodID,
		FailureReason:   result.Error,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
	if err := s.PaymentRepo.CreatePayment(ctx, failed); err != nil {
		return err
	}
	s.publishWebhook(ctx, types.WebhookEventPaymentFailed, failed)

	_, err = NewDunningService(s.ServiceParams).StartRetry(ctx, inv, result.Error, now)
	return err
}

func (s *paymentService) HandleProviderWebhook(ctx context.Context, payload []byte, signature string) error {
	provider, err := s.Providers.Resolve(ctx)
	if err != nil {
		return err
	}
	event, err := provider.VerifyWebhook(ctx, payload, signature)
	if err != nil {
		return err
	}
	if event.Status == types.ProviderEventIgnored || event.InvoiceRef == "" {
		return nil
	}

	if event.TransactionID != "" {
		seen, err := s.PaymentRepo.GetByProviderTxnID(ctx, event.TransactionID)
		if err != nil {
			return err
		}
		if seen != nil {
			s.Logger.Debugw("provider event already applied", "transaction_id", event.TransactionID)
			return nil
		}
	}

	inv, err := s.InvoiceRepo.Get(ctx, event.InvoiceRef)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.Warnw("provider event for unknown invoice", "invoice_id", event.InvoiceRef)
			return nil
		}
		return err
	}
	now := time.Now().UTC()

	switch event.Status {
	case types.ProviderEventSucceeded:
		return s.applyProviderSuccess(ctx, inv, event, now)
	case types.ProviderEventFailed:
		if !inv.InvoiceStatus.IsCollectible() {
			return nil
		}
		reason := lo.Ternary(event.FailureReason != "", event.FailureReason, "payment failed")
		failed := &payment.Payment{
			ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
			InvoiceID:     inv.ID,
			CustomerID:    inv.CustomerID,
			Amount:        inv.Amount,
			Currency:      inv.Currency,
			PaymentStatus: types.PaymentStatusFailed,
			Provider:      types.ProviderStripe,
			ProviderTxnID: event.TransactionID,
			FailureReason: reason,
			BaseModel:     types.GetDefaultBaseModel(ctx),
		}
		if err := s.PaymentRepo.CreatePayment(ctx, failed); err != nil {
			return err
		}
		s.publishWebhook(ctx, types.WebhookEventPaymentFailed, failed)
		_, err := NewDunningService(s.ServiceParams).StartRetry(ctx, inv, reason, now)
		return err
	}
	return nil
}

func (s *paymentService) applyProviderSuccess(ctx context.Context, inv *invoice.Invoice, event *interfaces.ProviderWebhookEvent, now time.Time) error {
	var pay *payment.Payment
	var restored bool

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		pay, err = markInvoicePaid(ctx, s.ServiceParams, inv.ID, event.SavedMethodToken, event.TransactionID, now)
		if err != nil {
			return err
		}

		retry, err := s.PaymentRepo.GetActiveRetryForInvoice(ctx, inv.ID)
		if err != nil {
			return err
		}
		if retry != nil {
			retry.RetryStatus = types.PaymentRetryStatusSuccess
			retry.NextRetryAt = nil
			if err := s.PaymentRepo.UpdateRetry(ctx, retry, retry.AttemptNumber); err != nil {
				return err
			}
		}

		sub, err := s.SubRepo.GetForUpdate(ctx, inv.SubscriptionID)
		if err != nil {
			return err
		}
		changed := false
		if event.SavedMethodToken != "" && sub.PaymentMethodID != event.SavedMethodToken {
			sub.PaymentMethodID = event.SavedMethodToken
			changed = true
		}
		if sub.SubscriptionStatus == types.SubscriptionStatusPastDue {
			sub.SubscriptionStatus = types.SubscriptionStatusActive
			restored, changed = true, true
		}
		if changed {
			return s.SubRepo.Update(ctx, sub)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.afterPaid(ctx, inv, pay)
	if restored {
		s.publishWebhook(ctx, types.WebhookEventSubscriptionActivated, map[string]string{
			"subscription_id": inv.SubscriptionID,
		})
	}
	return nil
}

func (s *paymentService) afterPaid(ctx context.Context, inv *invoice.Invoice, pay *payment.Payment) {
	if pay == nil {
		return
	}
	s.Logger.Infow("invoice paid",
		"invoice_id", inv.ID,
		"payment_id", pay.ID,
		"amount", pay.Amount)

	s.publishWebhook(ctx, types.WebhookEventPaymentSucceeded, pay)
	s.publishWebhook(ctx, types.WebhookEventInvoicePaid, map[string]string{"invoice_id": inv.ID})
	s.notifyCustomer(ctx, inv.CustomerID, types.NotificationPaymentSucceeded, map[string]interface{}{
		"invoice_id": inv.ID,
		"amount":     pay.Amount.String(),
		"currency":   pay.Currency,
	})
}

func (s *paymentService) Refund(ctx context.Context, req *dto.RefundRequest) (*payment.Payment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	pay, err := s.PaymentRepo.GetPayment(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if pay.PaymentStatus != types.PaymentStatusSucceeded {
		return nil, ierr.NewError("payment is not refundable").
			WithHintf("A %s payment cannot be refunded", pay.PaymentStatus).
			WithReportableDetails(map[string]any{"payment_id": pay.ID}).
			Mark(ierr.ErrInvalidOperation)
	}

	refundable := pay.Amount.Sub(pay.RefundedAmount)
	amount := refundable
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount.GreaterThan(refundable) {
		return nil, ierr.NewError("refund exceeds the refundable amount").
			WithHint("Refund amount is larger than what remains on the payment").
			WithReportableDetails(map[string]any{
				"payment_id": pay.ID,
				"refundable": refundable,
				"requested":  amount,
			}).
			Mark(ierr.ErrValidation)
	}

	provider, err := s.Providers.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	var partial *decimal.Decimal
	if !amount.Equal(pay.Amount) {
		partial = lo.ToPtr(amount)
	}
	result, err := provider.Refund(ctx, pay.ProviderTxnID, partial, pay.Currency)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, ierr.NewError("refund declined").
			WithHintf("The provider declined the refund: %s", result.Error).
			WithReportableDetails(map[string]any{"payment_id": pay.ID}).
			Mark(ierr.ErrInvalidOperation)
	}

	pay.RefundedAmount = pay.RefundedAmount.Add(amount)
	if pay.RefundedAmount.Equal(pay.Amount) {
		pay.PaymentStatus = types.PaymentStatusRefunded
	}
	if err := s.PaymentRepo.UpdatePayment(ctx, pay); err != nil {
		return nil, err
	}

	s.publishWebhook(ctx, types.WebhookEventPaymentRefunded, pay)
	return pay, nil
}

// markInvoicePaid settles a collectible invoice and records the payment. It runs in
// the caller's transaction and returns nil when the invoice was already paid.
func markInvoicePaid(ctx context.Context, p ServiceParams, invoiceID, methodID, txnID string, now time.Time) (*payment.Payment, error) {
	inv, err := p.InvoiceRepo.GetForUpdate(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.InvoiceStatus == types.InvoiceStatusPaid {
		return nil, nil
	}
	if !inv.InvoiceStatus.IsCollectible() {
		return nil, ierr.NewError("invoice is not collectible").
			WithHintf("A %s invoice cannot be paid", inv.InvoiceStatus).
			WithReportableDetails(map[string]any{"invoice_id": inv.ID}).
			Mark(ierr.ErrInvalidOperation)
	}

	inv.InvoiceStatus = types.InvoiceStatusPaid
	inv.PaidAt = lo.ToPtr(now)
	if err := p.InvoiceRepo.Update(ctx, inv); err != nil {
		return nil, err
	}

	pay := &payment.Payment{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID:       inv.ID,
		CustomerID:      inv.CustomerID,
		Amount:          inv.Amount,
		Currency:        inv.Currency,
		PaymentStatus:   types.PaymentStatusSucceeded,
		Provider:        types.ProviderStripe,
		ProviderTxnID:   txnID,
		PaymentMethodID: methodID,
		RefundedAmount:  decimal.Zero,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
	if err := p.PaymentRepo.CreatePayment(ctx, pay); err != nil {
		return nil, err
	}
	return pay, nil
}
