package service

import (
	"testing"
	"time"

	"github.com/flexprice/billingcore/internal/domain/invoice"
	"github.com/flexprice/billingcore/internal/domain/payment"
	"github.com/flexprice/billingcore/internal/domain/subscription"
	"github.com/flexprice/billingcore/internal/interfaces"
	"github.com/flexprice/billingcore/internal/jobs"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

var (
	declined = &interfaces.ChargeResult{Success: false, Error: "card_declined"}
	approved = &interfaces.ChargeResult{Success: true, TransactionID: "ch_approved"}
)

// issueInvoice rates a 49.00 plan for the fixture period, leaving a PENDING invoice
func (s *billingFixtures) issueInvoice(mutate ...func(*subscription.Subscription)) *invoice.Invoice {
	s.createPlan("plan_basic", "49.00")
	sub := s.createSubscription("sub_basic", "plan_basic", mutate...)

	inv, _, err := NewBillingService(s.params).RateSubscription(s.GetContext(), s.periodRequest(sub.ID))
	s.Require().NoError(err)
	s.Require().Equal(types.InvoiceStatusPending, inv.InvoiceStatus)
	return inv
}

func withSavedMethod(sub *subscription.Subscription) {
	sub.PaymentMethodID = "pm_card"
}

type DunningServiceSuite struct {
	billingFixtures
	service DunningService
	payment PaymentService
}

func TestDunningService(t *testing.T) {
	suite.Run(t, new(DunningServiceSuite))
}

func (s *DunningServiceSuite) SetupTest() {
	s.billingFixtures.SetupTest()
	s.service = NewDunningService(s.params)
	s.payment = NewPaymentService(s.params)
}

func (s *DunningServiceSuite) activeRetry(invoiceID string) *payment.PaymentRetry {
	retry, err := s.GetStores().PaymentRepo.GetActiveRetryForInvoice(s.GetContext(), invoiceID)
	s.Require().NoError(err)
	s.Require().NotNil(retry)
	return retry
}

func (s *DunningServiceSuite) subStatus() types.SubscriptionStatus {
	sub, err := s.GetStores().SubRepo.Get(s.GetContext(), "sub_basic")
	s.Require().NoError(err)
	return sub.SubscriptionStatus
}

func (s *DunningServiceSuite) TestDeclineSchedulesFirstRetry() {
	inv := s.issueInvoice(withSavedMethod)
	s.GetProvider().On("ChargeSavedMethod", mock.Anything, "pm_card", mock.Anything, "usd", mock.Anything).
		Return(declined, nil)

	s.NoError(s.payment.ChargeInvoice(s.GetContext(), inv.ID, s.GetNow()))

	retry := s.activeRetry(inv.ID)
	s.Equal(1, retry.AttemptNumber)
	s.Equal(3, retry.MaxAttempts)
	s.Equal("card_declined", retry.LastError)
	s.Equal(s.GetNow().Add(24*time.Hour), *retry.NextRetryAt)

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusFailed, stored.InvoiceStatus)
	s.Equal(types.SubscriptionStatusPastDue, s.subStatus())
	s.Contains(s.GetNotifier().Templates(), types.NotificationPaymentFailed)
	s.Subset(s.GetWebhooks().Names(), []string{
		types.WebhookEventPaymentFailed,
		types.WebhookEventInvoiceFailed,
		types.WebhookEventPaymentRetryScheduled,
		types.WebhookEventSubscriptionPastDue,
	})

	// a second decline of the same invoice does not open another retry
	_, err = s.service.StartRetry(s.GetContext(), stored, "card_declined", s.GetNow())
	s.NoError(err)
	s.Len(s.GetStores().PaymentRepo.Retries(s.GetContext(), inv.ID), 1)
}

func (s *DunningServiceSuite) TestRetriesBackOffThenExhaust() {
	inv := s.issueInvoice(withSavedMethod)
	s.GetProvider().On("ChargeSavedMethod", mock.Anything, "pm_card", mock.Anything, "usd", mock.Anything).
		Return(declined, nil)
	s.NoError(s.payment.ChargeInvoice(s.GetContext(), inv.ID, s.GetNow()))

	retry := s.activeRetry(inv.ID)
	day := 24 * time.Hour

	// not due yet
	s.NoError(s.service.ProcessRetry(s.GetContext(), retry.ID, s.GetNow()))
	s.GetProvider().AssertNumberOfCalls(s.T(), "ChargeSavedMethod", 1)

	at := s.GetNow().Add(day)
	s.NoError(s.service.ProcessRetry(s.GetContext(), retry.ID, at))
	retry = s.activeRetry(inv.ID)
	s.Equal(2, retry.AttemptNumber)
	s.Equal(at.Add(3*day), *retry.NextRetryAt)

	at = at.Add(3 * day)
	s.NoError(s.service.ProcessRetry(s.GetContext(), retry.ID, at))
	retry = s.activeRetry(inv.ID)
	s.Equal(3, retry.AttemptNumber)
	s.Equal(at.Add(7*day), *retry.NextRetryAt)

	at = at.Add(7 * day)
	s.NoError(s.service.ProcessRetry(s.GetContext(), retry.ID, at))

	final, err := s.GetStores().PaymentRepo.GetRetry(s.GetContext(), retry.ID)
	s.NoError(err)
	s.Equal(types.PaymentRetryStatusExhausted, final.RetryStatus)
	s.Nil(final.NextRetryAt)
	s.Equal(types.SubscriptionStatusCanceled, s.subStatus())
	s.Contains(s.GetWebhooks().Names(), types.WebhookEventPaymentRetryExhausted)
	s.Contains(s.GetNotifier().Templates(), types.NotificationSubscriptionCanceled)

	failed := lo.Filter(s.GetStores().PaymentRepo.Payments(s.GetContext(), inv.ID), func(p *payment.Payment, _ int) bool {
		return p.PaymentStatus == types.PaymentStatusFailed
	})
	s.Len(failed, 4)

	// exhausted retries are never attempted again
	s.NoError(s.service.ProcessRetry(s.GetContext(), retry.ID, at.Add(30*day)))
	s.GetProvider().AssertNumberOfCalls(s.T(), "ChargeSavedMethod", 4)
}

func (s *DunningServiceSuite) TestSuccessfulRetryRestoresSubscription() {
	inv := s.issueInvoice(withSavedMethod)
	s.GetProvider().On("ChargeSavedMethod", mock.Anything, "pm_card", mock.Anything, "usd", mock.Anything).
		Return(declined, nil).Once()
	s.GetProvider().On("ChargeSavedMethod", mock.Anything, "pm_card", mock.Anything, "usd", mock.Anything).
		Return(approved, nil)
	s.NoError(s.payment.ChargeInvoice(s.GetContext(), inv.ID, s.GetNow()))
	retry := s.activeRetry(inv.ID)

	at := s.GetNow().Add(24 * time.Hour)
	enqueued, err := s.service.SweepDueRetries(s.GetContext(), at)
	s.NoError(err)
	s.Equal(1, enqueued)
	s.Equal([]jobs.Job{jobs.PaymentRetry{RetryID: retry.ID}}, s.GetQueue().Jobs(s.GetConfig().Jobs.RetryTopic))

	s.NoError(s.service.ProcessRetry(s.GetContext(), retry.ID, at))

	done, err := s.GetStores().PaymentRepo.GetRetry(s.GetContext(), retry.ID)
	s.NoError(err)
	s.Equal(types.PaymentRetryStatusSuccess, done.RetryStatus)

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, stored.InvoiceStatus)
	s.Equal(types.SubscriptionStatusActive, s.subStatus())
	s.Contains(s.GetWebhooks().Names(), types.WebhookEventSubscriptionActivated)

	succeeded := lo.Filter(s.GetStores().PaymentRepo.Payments(s.GetContext(), inv.ID), func(p *payment.Payment, _ int) bool {
		return p.PaymentStatus == types.PaymentStatusSucceeded
	})
	s.Require().Len(succeeded, 1)
	s.Equal("ch_approved", succeeded[0].ProviderTxnID)

	// a redelivered job finds nothing left to do
	s.NoError(s.service.ProcessRetry(s.GetContext(), retry.ID, at))
	s.GetProvider().AssertNumberOfCalls(s.T(), "ChargeSavedMethod", 2)
}

func (s *DunningServiceSuite) TestRetryWithoutSavedMethodStops() {
	inv := s.issueInvoice()
	s.GetProvider().On("Charge", mock.Anything, mock.Anything, "usd", "cus_stripe_acme", mock.Anything).
		Return(declined, nil)
	s.NoError(s.payment.ChargeInvoice(s.GetContext(), inv.ID, s.GetNow()))
	retry := s.activeRetry(inv.ID)

	at := s.GetNow().Add(24 * time.Hour)
	s.NoError(s.service.ProcessRetry(s.GetContext(), retry.ID, at))

	stopped, err := s.GetStores().PaymentRepo.GetRetry(s.GetContext(), retry.ID)
	s.NoError(err)
	s.Nil(stopped.NextRetryAt)
	s.Equal("subscription has no saved payment method", stopped.LastError)

	enqueued, err := s.service.SweepDueRetries(s.GetContext(), at.Add(30*24*time.Hour))
	s.NoError(err)
	s.Zero(enqueued)
	s.GetProvider().AssertNotCalled(s.T(), "ChargeSavedMethod", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
