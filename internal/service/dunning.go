package service

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/domain/invoice"
	"github.com/flexprice/billingcore/internal/domain/payment"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/idempotency"
	"github.com/flexprice/billingcore/internal/interfaces"
	"github.com/flexprice/billingcore/internal/jobs"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
)

// dunning outcomes, used as metric labels
const (
	dunningScheduled = "scheduled"
	dunningSucceeded = "succeeded"
	dunningExhausted = "exhausted"
	dunningTerminal  = "terminal"
)

// DunningService retries failed recurring charges on a backoff schedule
type DunningService interface {
	// StartRetry opens dunning for a failed invoice. An invoice already in dunning
	// keeps its active retry.
	StartRetry(ctx context.Context, inv *invoice.Invoice, reason string, now time.Time) (*payment.PaymentRetry, error)

	// ProcessRetry makes the attempt of a due retry. A retry that is not due or no
	// longer pending is left untouched.
	ProcessRetry(ctx context.Context, retryID string, now time.Time) error

	// SweepDueRetries enqueues every due retry
	SweepDueRetries(ctx context.Context, now time.Time) (int, error)
}

type dunningService struct {
	ServiceParams
	idempotencyGenerator *idempotency.Generator
}

func NewDunningService(params ServiceParams) DunningService {
	return &dunningService{
		ServiceParams:        params,
		idempotencyGenerator: idempotency.NewGenerator(),
	}
}

// backoff returns the delay before the given attempt. Attempts past the end of
// the schedule reuse its last entry.
func (s *dunningService) backoff(attempt int) time.Duration {
	schedule := s.Config.Billing.DunningScheduleDays
	if len(schedule) == 0 {
		return 24 * time.Hour
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	return time.Duration(schedule[idx]) * 24 * time.Hour
}

func (s *dunningService) StartRetry(ctx context.Context, inv *invoice.Invoice, reason string, now time.Time) (*payment.PaymentRetry, error) {
	settings, err := s.billingSettings(ctx)
	if err != nil {
		return nil, err
	}

	var retry *payment.PaymentRetry
	var created, pastDue bool

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		active, err := s.PaymentRepo.GetActiveRetryForInvoice(ctx, inv.ID)
		if err != nil {
			return err
		}
		if active != nil {
			retry = active
			return nil
		}

		retry = &payment.PaymentRetry{
			ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT_RETRY),
			InvoiceID:      inv.ID,
			SubscriptionID: inv.SubscriptionID,
			AttemptNumber:  1,
			MaxAttempts:    settings.DunningMaxAttempts,
			NextRetryAt:    lo.ToPtr(now.Add(s.backoff(1))),
			RetryStatus:    types.PaymentRetryStatusPending,
			LastError:      reason,
			BaseModel:      types.GetDefaultBaseModel(ctx),
		}
		if err := s.PaymentRepo.CreateRetry(ctx, retry); err != nil {
			return err
		}
		created = true

		locked, err := s.InvoiceRepo.GetForUpdate(ctx, inv.ID)
		if err != nil {
			return err
		}
		if locked.InvoiceStatus == types.InvoiceStatusPending {
			locked.InvoiceStatus = types.InvoiceStatusFailed
			if err := s.InvoiceRepo.Update(ctx, locked); err != nil {
				return err
			}
		}

		sub, err := s.SubRepo.GetForUpdate(ctx, inv.SubscriptionID)
		if err != nil {
			return err
		}
		if sub.SubscriptionStatus == types.SubscriptionStatusActive {
			sub.SubscriptionStatus = types.SubscriptionStatusPastDue
			pastDue = true
			return s.SubRepo.Update(ctx, sub)
		}
		return nil
	})
	if ierr.IsAlreadyExists(err) {
		// a concurrent failure opened dunning first
		return s.PaymentRepo.GetActiveRetryForInvoice(ctx, inv.ID)
	}
	if err != nil {
		return nil, err
	}
	if !created {
		return retry, nil
	}

	s.Metrics.DunningOutcome(dunningScheduled)
	s.Logger.Infow("started payment retry",
		"invoice_id", inv.ID,
		"retry_id", retry.ID,
		"next_retry_at", retry.NextRetryAt)

	s.notifyCustomer(ctx, inv.CustomerID, types.NotificationPaymentFailed, map[string]interface{}{
		"invoice_id":    inv.ID,
		"amount":        inv.Amount.String(),
		"currency":      inv.Currency,
		"reason":        reason,
		"next_retry_at": retry.NextRetryAt,
	})
	s.publishWebhook(ctx, types.WebhookEventInvoiceFailed, inv)
	s.publishWebhook(ctx, types.WebhookEventPaymentRetryScheduled, retry)
	if pastDue {
		s.publishWebhook(ctx, types.WebhookEventSubscriptionPastDue, map[string]string{
			"subscription_id": inv.SubscriptionID,
		})
	}
	return retry, nil
}

func (s *dunningService) ProcessRetry(ctx context.Context, retryID string, now time.Time) error {
	retry, err := s.PaymentRepo.GetRetry(ctx, retryID)
	if err != nil {
		return err
	}
	if !retry.IsDue(now) {
		return nil
	}
	attempt := retry.AttemptNumber

	inv, err := s.InvoiceRepo.Get(ctx, retry.InvoiceID)
	if err != nil {
		return err
	}
	if inv.InvoiceStatus == types.InvoiceStatusPaid {
		// settled out of band, e.g. through a provider webhook
		retry.RetryStatus = types.PaymentRetryStatusSuccess
		retry.NextRetryAt = nil
		return s.ignoreConflict(s.PaymentRepo.UpdateRetry(ctx, retry, attempt))
	}

	sub, err := s.SubRepo.Get(ctx, retry.SubscriptionID)
	if err != nil {
		return err
	}
	if sub.PaymentMethodID == "" {
		return s.markTerminal(ctx, retry, "subscription has no saved payment method")
	}

	provider, err := s.Providers.Resolve(ctx)
	if err != nil {
		if ierr.IsConfiguration(err) {
			return s.markTerminal(ctx, retry, errorReason(err))
		}
		return err
	}

	key := s.idempotencyGenerator.GenerateKey(idempotency.ScopeRetryAttempt, map[string]interface{}{
		"retry_id": retry.ID,
		"attempt":  attempt,
	})
	result, err := provider.ChargeSavedMethod(ctx, sub.PaymentMethodID, inv.Amount, inv.Currency, map[string]string{
		"invoice_id":      inv.ID,
		"retry_id":        retry.ID,
		"idempotency_key": key,
	})
	if err != nil {
		if ierr.IsConfiguration(err) {
			return s.markTerminal(ctx, retry, errorReason(err))
		}
		// a timeout or transport failure counts as a failed attempt
		s.Logger.Warnw("payment retry attempt errored",
			"retry_id", retry.ID,
			"attempt", attempt,
			"error", err)
		result = &interfaces.ChargeResult{Success: false, Error: err.Error()}
	}
	s.Metrics.PaymentAttempted(string(types.ProviderStripe), result.Success)

	if result.Success {
		return s.onRetrySucceeded(ctx, retry, inv, sub.PaymentMethodID, result.TransactionID, now)
	}
	return s.onRetryFailed(ctx, retry, inv, sub.PaymentMethodID, result.Error, now)
}

func (s *dunningService) onRetrySucceeded(
	ctx context.Context,
	retry *payment.PaymentRetry,
	inv *invoice.Invoice,
	methodID, txnID string,
	now time.Time,
) error {
	attempt := retry.AttemptNumber
	var pay *payment.Payment
	var restored bool

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		retry.RetryStatus = types.PaymentRetryStatusSuccess
		retry.NextRetryAt = nil
		retry.LastError = ""
		if err := s.PaymentRepo.UpdateRetry(ctx, retry, attempt); err != nil {
			return err
		}

		var err error
		pay, err = markInvoicePaid(ctx, s.ServiceParams, inv.ID, methodID, txnID, now)
		if err != nil {
			return err
		}

		sub, err := s.SubRepo.GetForUpdate(ctx, retry.SubscriptionID)
		if err != nil {
			return err
		}
		if sub.SubscriptionStatus == types.SubscriptionStatusPastDue {
			sub.SubscriptionStatus = types.SubscriptionStatusActive
			restored = true
			return s.SubRepo.Update(ctx, sub)
		}
		return nil
	})
	if ierr.IsVersionConflict(err) {
		s.Logger.Infow("payment retry already resolved", "retry_id", retry.ID)
		return nil
	}
	if err != nil {
		return err
	}

	s.Metrics.DunningOutcome(dunningSucceeded)
	s.Logger.Infow("payment retry succeeded",
		"retry_id", retry.ID,
		"invoice_id", inv.ID,
		"attempt", attempt)

	s.notifyCustomer(ctx, inv.CustomerID, types.NotificationPaymentSucceeded, map[string]interface{}{
		"invoice_id": inv.ID,
		"amount":     inv.Amount.String(),
		"currency":   inv.Currency,
	})
	s.publishWebhook(ctx, types.WebhookEventPaymentRetrySucceeded, retry)
	if pay != nil {
		s.publishWebhook(ctx, types.WebhookEventPaymentSucceeded, pay)
		s.publishWebhook(ctx, types.WebhookEventInvoicePaid, map[string]string{"invoice_id": inv.ID})
	}
	if restored {
		s.publishWebhook(ctx, types.WebhookEventSubscriptionActivated, map[string]string{
			"subscription_id": retry.SubscriptionID,
		})
	}
	return nil
}

func (s *dunningService) onRetryFailed(
	ctx context.Context,
	retry *payment.PaymentRetry,
	inv *invoice.Invoice,
	methodID, reason string,
	now time.Time,
) error {
	attempt := retry.AttemptNumber
	exhausted := retry.IsLastAttempt()
	var canceled bool

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		retry.LastError = reason
		if exhausted {
			retry.RetryStatus = types.PaymentRetryStatusExhausted
			retry.NextRetryAt = nil
		} else {
			retry.AttemptNumber = attempt + 1
			retry.NextRetryAt = lo.ToPtr(now.Add(s.backoff(retry.AttemptNumber)))
		}
		// the attempt guard makes exhaustion, and so cancellation, happen once
		if err := s.PaymentRepo.UpdateRetry(ctx, retry, attempt); err != nil {
			return err
		}

		if err := s.PaymentRepo.CreatePayment(ctx, &payment.Payment{
			ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
			InvoiceID:       inv.ID,
			CustomerID:      inv.CustomerID,
			Amount:          inv.Amount,
			Currency:        inv.Currency,
			PaymentStatus:   types.PaymentStatusFailed,
			Provider:        types.ProviderStripe,
			PaymentMethodID: methodID,
			FailureReason:   reason,
			BaseModel:       types.GetDefaultBaseModel(ctx),
		}); err != nil {
			return err
		}

		if !exhausted {
			return nil
		}
		sub, err := s.SubRepo.GetForUpdate(ctx, retry.SubscriptionID)
		if err != nil {
			return err
		}
		if sub.SubscriptionStatus == types.SubscriptionStatusCanceled {
			return nil
		}
		markCanceled(sub, now)
		canceled = true
		return s.SubRepo.Update(ctx, sub)
	})
	if ierr.IsVersionConflict(err) {
		s.Logger.Infow("payment retry already resolved", "retry_id", retry.ID)
		return nil
	}
	if err != nil {
		return err
	}

	if !exhausted {
		s.Metrics.DunningOutcome(dunningScheduled)
		s.Logger.Infow("payment retry failed, rescheduled",
			"retry_id", retry.ID,
			"attempt", retry.AttemptNumber,
			"next_retry_at", retry.NextRetryAt)
		s.notifyCustomer(ctx, inv.CustomerID, types.NotificationPaymentRetry, map[string]interface{}{
			"invoice_id":    inv.ID,
			"amount":        inv.Amount.String(),
			"currency":      inv.Currency,
			"reason":        reason,
			"next_retry_at": retry.NextRetryAt,
		})
		s.publishWebhook(ctx, types.WebhookEventPaymentFailed, retry)
		s.publishWebhook(ctx, types.WebhookEventPaymentRetryScheduled, retry)
		return nil
	}

	s.Metrics.DunningOutcome(dunningExhausted)
	s.Logger.Warnw("payment retries exhausted",
		"retry_id", retry.ID,
		"invoice_id", inv.ID,
		"subscription_id", retry.SubscriptionID)
	s.publishWebhook(ctx, types.WebhookEventPaymentRetryExhausted, retry)
	if canceled {
		s.notifyCustomer(ctx, inv.CustomerID, types.NotificationSubscriptionCanceled, map[string]interface{}{
			"subscription_id": retry.SubscriptionID,
			"invoice_id":      inv.ID,
			"reason":          reason,
		})
		s.publishWebhook(ctx, types.WebhookEventSubscriptionCanceled, map[string]string{
			"subscription_id": retry.SubscriptionID,
		})
	}
	return nil
}

// markTerminal records a failure no retry can fix. The retry stays PENDING without
// a next attempt, leaving the invoice for manual action.
func (s *dunningService) markTerminal(ctx context.Context, retry *payment.PaymentRetry, reason string) error {
	attempt := retry.AttemptNumber
	retry.LastError = reason
	retry.NextRetryAt = nil
	if err := s.ignoreConflict(s.PaymentRepo.UpdateRetry(ctx, retry, attempt)); err != nil {
		return err
	}

	s.Metrics.DunningOutcome(dunningTerminal)
	s.Logger.Errorw("payment retry cannot proceed",
		"retry_id", retry.ID,
		"invoice_id", retry.InvoiceID,
		"reason", reason)
	return nil
}

func (s *dunningService) ignoreConflict(err error) error {
	if ierr.IsVersionConflict(err) {
		return nil
	}
	return err
}

func (s *dunningService) SweepDueRetries(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.PaymentRepo.ListDueRetryIDs(ctx, now, s.Config.Billing.SweepBatchSize)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, id := range ids {
		if err := s.Jobs.Enqueue(ctx, s.Config.Jobs.RetryTopic, jobs.PaymentRetry{RetryID: id}); err != nil {
			s.Logger.Errorw("failed to enqueue payment retry", "retry_id", id, "error", err)
			continue
		}
		enqueued++
	}
	return enqueued, nil
}
