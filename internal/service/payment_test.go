package service

import (
	"errors"
	"testing"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/domain/payment"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/interfaces"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type PaymentServiceSuite struct {
	billingFixtures
	service PaymentService
}

func TestPaymentService(t *testing.T) {
	suite.Run(t, new(PaymentServiceSuite))
}

func (s *PaymentServiceSuite) SetupTest() {
	s.billingFixtures.SetupTest()
	s.service = NewPaymentService(s.params)
}

func (s *PaymentServiceSuite) paymentsWith(invoiceID string, status types.PaymentStatus) []*payment.Payment {
	return lo.Filter(s.GetStores().PaymentRepo.Payments(s.GetContext(), invoiceID), func(p *payment.Payment, _ int) bool {
		return p.PaymentStatus == status
	})
}

func (s *PaymentServiceSuite) TestChargeSavedMethodSettlesInvoice() {
	inv := s.issueInvoice(withSavedMethod)
	s.GetProvider().On("ChargeSavedMethod", mock.Anything, "pm_card",
		mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(dec("49")) }),
		"usd",
		mock.MatchedBy(func(md map[string]string) bool {
			return md["invoice_id"] == inv.ID && md["idempotency_key"] != ""
		}),
	).Return(approved, nil)

	s.NoError(s.service.ChargeInvoice(s.GetContext(), inv.ID, s.GetNow()))

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, stored.InvoiceStatus)
	s.Equal(s.GetNow(), *stored.PaidAt)

	paid := s.paymentsWith(inv.ID, types.PaymentStatusSucceeded)
	s.Require().Len(paid, 1)
	s.Equal("ch_approved", paid[0].ProviderTxnID)
	s.Equal("pm_card", paid[0].PaymentMethodID)
	s.Subset(s.GetWebhooks().Names(), []string{types.WebhookEventPaymentSucceeded, types.WebhookEventInvoicePaid})
	s.Contains(s.GetNotifier().Templates(), types.NotificationPaymentSucceeded)

	// a paid invoice is never charged again
	s.NoError(s.service.ChargeInvoice(s.GetContext(), inv.ID, s.GetNow()))
	s.GetProvider().AssertNumberOfCalls(s.T(), "ChargeSavedMethod", 1)
}

func (s *PaymentServiceSuite) TestChargeFallsBackToProviderCustomer() {
	inv := s.issueInvoice()
	s.GetProvider().On("Charge", mock.Anything, mock.Anything, "usd", "cus_stripe_acme", mock.Anything).
		Return(approved, nil)

	s.NoError(s.service.ChargeInvoice(s.GetContext(), inv.ID, s.GetNow()))
	s.Len(s.paymentsWith(inv.ID, types.PaymentStatusSucceeded), 1)
}

func (s *PaymentServiceSuite) TestTransportErrorLeavesInvoicePending() {
	inv := s.issueInvoice(withSavedMethod)
	s.GetProvider().On("ChargeSavedMethod", mock.Anything, "pm_card", mock.Anything, "usd", mock.Anything).
		Return(nil, errors.New("connection reset"))

	err := s.service.ChargeInvoice(s.GetContext(), inv.ID, s.GetNow())
	s.Error(err)

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPending, stored.InvoiceStatus)
	s.Empty(s.GetStores().PaymentRepo.Retries(s.GetContext(), inv.ID))
	s.Empty(s.GetStores().PaymentRepo.Payments(s.GetContext(), inv.ID))
}

func (s *PaymentServiceSuite) TestProviderResolutionFailure() {
	inv := s.issueInvoice(withSavedMethod)
	s.GetProviders().Err = ierr.NewError("no active payment provider").Mark(ierr.ErrConfiguration)

	err := s.service.ChargeInvoice(s.GetContext(), inv.ID, s.GetNow())
	s.True(ierr.IsConfiguration(err))
}

func (s *PaymentServiceSuite) TestProviderWebhookSettlesOnce() {
	inv := s.issueInvoice(withSavedMethod)
	s.GetProvider().On("ChargeSavedMethod", mock.Anything, "pm_card", mock.Anything, "usd", mock.Anything).
		Return(declined, nil)
	s.NoError(s.service.ChargeInvoice(s.GetContext(), inv.ID, s.GetNow()))

	payload := []byte(`{"type":"payment_intent.succeeded"}`)
	s.GetProvider().On("VerifyWebhook", mock.Anything, payload, "sig").Return(&interfaces.ProviderWebhookEvent{
		TransactionID:    "pi_123",
		Status:           types.ProviderEventSucceeded,
		InvoiceRef:       inv.ID,
		SavedMethodToken: "pm_new",
	}, nil)

	s.NoError(s.service.HandleProviderWebhook(s.GetContext(), payload, "sig"))
	s.NoError(s.service.HandleProviderWebhook(s.GetContext(), payload, "sig"))

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, stored.InvoiceStatus)
	s.Len(s.paymentsWith(inv.ID, types.PaymentStatusSucceeded), 1)

	retries := s.GetStores().PaymentRepo.Retries(s.GetContext(), inv.ID)
	s.Require().Len(retries, 1)
	s.Equal(types.PaymentRetryStatusSuccess, retries[0].RetryStatus)

	sub, err := s.GetStores().SubRepo.Get(s.GetContext(), "sub_basic")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
	s.Equal("pm_new", sub.PaymentMethodID)
}

func (s *PaymentServiceSuite) TestProviderWebhookFailureStartsDunning() {
	inv := s.issueInvoice()
	s.GetProvider().On("VerifyWebhook", mock.Anything, mock.Anything, mock.Anything).Return(&interfaces.ProviderWebhookEvent{
		TransactionID: "pi_456",
		Status:        types.ProviderEventFailed,
		InvoiceRef:    inv.ID,
		FailureReason: "insufficient_funds",
	}, nil)

	s.NoError(s.service.HandleProviderWebhook(s.GetContext(), []byte(`{}`), "sig"))

	retries := s.GetStores().PaymentRepo.Retries(s.GetContext(), inv.ID)
	s.Require().Len(retries, 1)
	s.Equal("insufficient_funds", retries[0].LastError)
}

func (s *PaymentServiceSuite) TestProviderWebhookIgnoresUnknownInvoice() {
	s.GetProvider().On("VerifyWebhook", mock.Anything, mock.Anything, mock.Anything).Return(&interfaces.ProviderWebhookEvent{
		TransactionID: "pi_789",
		Status:        types.ProviderEventSucceeded,
		InvoiceRef:    "inv_missing",
	}, nil)

	s.NoError(s.service.HandleProviderWebhook(s.GetContext(), []byte(`{}`), "sig"))
}

func (s *PaymentServiceSuite) TestProviderWebhookRejectsBadSignature() {
	s.GetProvider().On("VerifyWebhook", mock.Anything, mock.Anything, "forged").
		Return(nil, ierr.NewError("invalid signature").Mark(ierr.ErrValidation))

	err := s.service.HandleProviderWebhook(s.GetContext(), []byte(`{}`), "forged")
	s.True(ierr.Is(err, ierr.ErrValidation))
}

func (s *PaymentServiceSuite) TestPartialThenFullRefund() {
	inv := s.issueInvoice(withSavedMethod)
	s.GetProvider().On("ChargeSavedMethod", mock.Anything, "pm_card", mock.Anything, "usd", mock.Anything).
		Return(approved, nil)
	s.NoError(s.service.ChargeInvoice(s.GetContext(), inv.ID, s.GetNow()))
	pay := s.paymentsWith(inv.ID, types.PaymentStatusSucceeded)[0]

	s.GetProvider().On("Refund", mock.Anything, "ch_approved", mock.Anything, "usd").
		Return(&interfaces.RefundResult{Success: true}, nil)

	_, err := s.service.Refund(s.GetContext(), &dto.RefundRequest{PaymentID: pay.ID, Amount: lo.ToPtr(dec("60"))})
	s.True(ierr.Is(err, ierr.ErrValidation))

	partial, err := s.service.Refund(s.GetContext(), &dto.RefundRequest{PaymentID: pay.ID, Amount: lo.ToPtr(dec("20"))})
	s.NoError(err)
	s.Equal(types.PaymentStatusSucceeded, partial.PaymentStatus)
	s.True(dec("20").Equal(partial.RefundedAmount))

	rest, err := s.service.Refund(s.GetContext(), &dto.RefundRequest{PaymentID: pay.ID})
	s.NoError(err)
	s.Equal(types.PaymentStatusRefunded, rest.PaymentStatus)
	s.True(dec("49").Equal(rest.RefundedAmount))
	s.Contains(s.GetWebhooks().Names(), types.WebhookEventPaymentRefunded)

	_, err = s.service.Refund(s.GetContext(), &dto.RefundRequest{PaymentID: pay.ID})
	s.True(ierr.Is(err, ierr.ErrInvalidOperation))
	s.GetProvider().AssertNumberOfCalls(s.T(), "Refund", 2)
}
