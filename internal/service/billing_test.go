package service

import (
	"testing"
	"time"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/domain/coupon"
	"github.com/flexprice/billingcore/internal/domain/invoice"
	"github.com/flexprice/billingcore/internal/domain/plan"
	"github.com/flexprice/billingcore/internal/domain/subscription"
	"github.com/flexprice/billingcore/internal/jobs"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type BillingServiceSuite struct {
	billingFixtures
	service BillingService
}

func TestBillingService(t *testing.T) {
	suite.Run(t, new(BillingServiceSuite))
}

func (s *BillingServiceSuite) SetupTest() {
	s.billingFixtures.SetupTest()
	s.service = NewBillingService(s.params)
}

func (s *BillingServiceSuite) TestGraduatedUsage() {
	s.createPlan("plan_usage", "")
	m := s.createMetric("api_calls", types.AggregationCount, "")
	s.createCharge("chg_api", "plan_usage", m.ID, types.ChargeModelGraduated, nil, plan.Ranges{
		rng("0", lo.ToPtr("10"), "1", "0"),
		rng("11", nil, "0.5", "0"),
	})
	s.createSubscription("sub_usage", "plan_usage")
	s.recordUsage("sub_usage", "api_calls", s.periodStart.Add(24*time.Hour), 15, nil)

	inv, created, err := s.service.RateSubscription(s.GetContext(), s.periodRequest("sub_usage"))
	s.NoError(err)
	s.True(created)
	s.Require().NotNil(inv)

	usage := inv.LineItemsOfType(types.LineItemTypeUsage)
	s.Require().Len(usage, 1)
	s.True(dec("15").Equal(usage[0].Units))
	s.True(dec("13").Equal(usage[0].Amount), "got %s", usage[0].Amount)
	s.True(dec("13").Equal(inv.Amount))

	s.Equal(types.InvoiceStatusPending, inv.InvoiceStatus)
	s.Require().NotNil(inv.FinalizedAt)
	s.Require().NotNil(inv.DueDate)
	s.Equal(s.GetNow(), *inv.DueDate)
	s.Contains(s.GetWebhooks().Names(), types.WebhookEventInvoiceCreated)
	s.Equal([]types.NotificationTemplate{types.NotificationInvoiceIssued}, s.GetNotifier().Templates())
	s.Len(s.GetNotifier().Sent()[0].Attachments, 1)
	// no saved payment method, nothing to auto-charge
	s.Empty(s.GetQueue().Jobs(s.GetConfig().Jobs.ChargeTopic))
}

func (s *BillingServiceSuite) TestUsageOutsideWindowIsIgnored() {
	s.createPlan("plan_usage", "")
	m := s.createMetric("api_calls", types.AggregationCount, "")
	s.createCharge("chg_api", "plan_usage", m.ID, types.ChargeModelStandard,
		types.Properties{types.ChargePropertyAmount: "2"}, nil)
	s.createSubscription("sub_usage", "plan_usage")
	s.recordUsage("sub_usage", "api_calls", s.periodStart.Add(-time.Hour), 3, nil)
	s.recordUsage("sub_usage", "api_calls", s.periodEnd, 2, nil)
	s.recordUsage("sub_usage", "api_calls", s.periodStart.Add(48*time.Hour), 4, nil)

	inv, _, err := s.service.RateSubscription(s.GetContext(), s.periodRequest("sub_usage"))
	s.NoError(err)
	s.Require().NotNil(inv)
	// the first batch straddles the start: 2 of its 3 events land inside
	s.True(dec("12").Equal(inv.Amount), "got %s", inv.Amount)
}

func (s *BillingServiceSuite) TestPercentageCouponDiscountsPlanFee() {
	s.createPlan("plan_basic", "49.00")
	s.createSubscription("sub_basic", "plan_basic")
	s.NoError(s.GetStores().CouponRepo.CreateCoupon(s.GetContext(), &coupon.Coupon{
		ID:           "cpn_ten",
		Code:         "TEN",
		Name:         "Ten percent off",
		DiscountType: types.DiscountTypePercentage,
		Value:        dec("10"),
		CouponStatus: types.CouponStatusActive,
		BaseModel:    types.GetDefaultBaseModel(s.GetContext()),
	}))
	_, err := NewCouponService(s.params).ApplyCouponToCustomer(s.GetContext(), &dto.ApplyCouponRequest{
		CouponID:   "cpn_ten",
		CustomerID: s.customer.ID,
	})
	s.Require().NoError(err)

	inv, _, err := s.service.RateSubscription(s.GetContext(), s.periodRequest("sub_basic"))
	s.NoError(err)
	s.Require().NotNil(inv)

	coupons := inv.LineItemsOfType(types.LineItemTypeCoupon)
	s.Require().Len(coupons, 1)
	s.True(dec("-4.90").Equal(coupons[0].Amount), "got %s", coupons[0].Amount)
	s.True(dec("44.10").Equal(inv.Amount), "got %s", inv.Amount)
}

func (s *BillingServiceSuite) TestLimitedCouponIsConsumed() {
	s.createPlan("plan_basic", "49.00")
	s.createSubscription("sub_basic", "plan_basic")
	s.NoError(s.GetStores().CouponRepo.CreateCoupon(s.GetContext(), &coupon.Coupon{
		ID:                 "cpn_five",
		Code:               "FIVE",
		DiscountType:       types.DiscountTypeFixedAmount,
		Value:              dec("5"),
		UsesPerApplication: lo.ToPtr(1),
		CouponStatus:       types.CouponStatusActive,
		BaseModel:          types.GetDefaultBaseModel(s.GetContext()),
	}))
	_, err := NewCouponService(s.params).ApplyCouponToCustomer(s.GetContext(), &dto.ApplyCouponRequest{
		CouponID:       "cpn_five",
		CustomerID:     s.customer.ID,
		SubscriptionID: lo.ToPtr("sub_basic"),
	})
	s.Require().NoError(err)

	inv, _, err := s.service.RateSubscription(s.GetContext(), s.periodRequest("sub_basic"))
	s.NoError(err)
	s.True(dec("44").Equal(inv.Amount))
	s.Empty(s.GetStores().CouponRepo.Applied(s.GetContext()))

	next := s.periodRequest("sub_basic")
	next.PeriodStart, next.PeriodEnd = s.periodEnd, s.periodEnd.AddDate(0, 1, 0)
	next.UsageStart, next.UsageEnd = next.PeriodStart, next.PeriodEnd
	inv, _, err = s.service.RateSubscription(s.GetContext(), next)
	s.NoError(err)
	s.True(dec("49").Equal(inv.Amount))
}

func (s *BillingServiceSuite) TestMinimumCommitmentTrueUp() {
	s.createPlan("plan_commit", "49.00", func(p *plan.Plan) {
		p.MinimumCommitment = lo.ToPtr(dec("100.00"))
	})
	s.createSubscription("sub_commit", "plan_commit")

	inv, _, err := s.service.RateSubscription(s.GetContext(), s.periodRequest("sub_commit"))
	s.NoError(err)
	s.Require().NotNil(inv)

	trueUp := inv.LineItemsOfType(types.LineItemTypeMinimumCommitment)
	s.Require().Len(trueUp, 1)
	s.True(dec("51").Equal(trueUp[0].Amount), "got %s", trueUp[0].Amount)
	s.True(dec("100").Equal(inv.Amount), "got %s", inv.Amount)
}

func (s *BillingServiceSuite) TestCommitmentMetByUsageAddsNoTrueUp() {
	s.createPlan("plan_commit", "49.00", func(p *plan.Plan) {
		p.MinimumCommitment = lo.ToPtr(dec("50.00"))
	})
	m := s.createMetric("storage_gb", types.AggregationMax, "gb")
	s.createCharge("chg_storage", "plan_commit", m.ID, types.ChargeModelStandard,
		types.Properties{types.ChargePropertyAmount: "1"}, nil)
	s.createSubscription("sub_commit", "plan_commit")
	s.recordUsage("sub_commit", "storage_gb", s.periodStart.Add(time.Hour), 1, types.Properties{"gb": 20.0})

	inv, _, err := s.service.RateSubscription(s.GetContext(), s.periodRequest("sub_commit"))
	s.NoError(err)
	s.Empty(inv.LineItemsOfType(types.LineItemTypeMinimumCommitment))
	s.True(dec("69").Equal(inv.Amount))
}

func (s *BillingServiceSuite) TestCustomerTaxOnPlanFee() {
	s.createPlan("plan_basic", "100.00")
	s.createSubscription("sub_basic", "plan_basic")
	s.createTax("tax_vat", "20", false)
	s.assignTax("tax_vat", types.TaxScopeCustomer, s.customer.ID)

	inv, _, err := s.service.RateSubscription(s.GetContext(), s.periodRequest("sub_basic"))
	s.NoError(err)

	taxes := inv.LineItemsOfType(types.LineItemTypeTax)
	s.Require().Len(taxes, 1)
	s.True(dec("20").Equal(taxes[0].Amount))
	s.True(dec("120").Equal(inv.Amount))
}

func (s *BillingServiceSuite) TestRatingIsIdempotentPerTrigger() {
	s.createPlan("plan_basic", "49.00")
	s.createSubscription("sub_basic", "plan_basic")

	first, created, err := s.service.RateSubscription(s.GetContext(), s.periodRequest("sub_basic"))
	s.NoError(err)
	s.True(created)

	second, created, err := s.service.RateSubscription(s.GetContext(), s.periodRequest("sub_basic"))
	s.NoError(err)
	s.False(created)
	s.Equal(first.ID, second.ID)
	s.Len(s.GetStores().InvoiceRepo.All(s.GetContext()), 1)
	s.Len(lo.Filter(s.GetWebhooks().Names(), func(n string, _ int) bool {
		return n == types.WebhookEventInvoiceCreated
	}), 1)
}

func (s *BillingServiceSuite) TestGracePeriodLeavesDraft() {
	s.createPlan("plan_grace", "49.00", func(p *plan.Plan) {
		p.GracePeriodDays = lo.ToPtr(3)
	})
	s.createSubscription("sub_grace", "plan_grace", func(sub *subscription.Subscription) {
		sub.PaymentMethodID = "pm_card"
	})

	inv, _, err := s.service.RateSubscription(s.GetContext(), s.periodRequest("sub_grace"))
	s.NoError(err)
	s.Equal(types.InvoiceStatusDraft, inv.InvoiceStatus)
	s.Require().NotNil(inv.GracePeriodEndsAt)
	s.Equal(s.GetNow().AddDate(0, 0, 3), *inv.GracePeriodEndsAt)
	s.Nil(inv.FinalizedAt)
	s.Contains(s.GetWebhooks().Names(), types.WebhookEventInvoiceDrafted)
	s.Empty(s.GetNotifier().Templates())
	s.Empty(s.GetQueue().Jobs(s.GetConfig().Jobs.ChargeTopic))
}

func (s *BillingServiceSuite) TestFinalizedInvoiceWithSavedMethodIsCharged() {
	s.createPlan("plan_basic", "49.00")
	s.createSubscription("sub_basic", "plan_basic", func(sub *subscription.Subscription) {
		sub.PaymentMethodID = "pm_card"
	})

	inv, _, err := s.service.RateSubscription(s.GetContext(), s.periodRequest("sub_basic"))
	s.NoError(err)

	charges := s.GetQueue().Jobs(s.GetConfig().Jobs.ChargeTopic)
	s.Require().Len(charges, 1)
	s.Equal(jobs.ChargeInvoice{InvoiceID: inv.ID}, charges[0])
}

func (s *BillingServiceSuite) TestZeroTotalIsPaidImmediately() {
	s.createPlan("plan_free", "0")
	s.createSubscription("sub_free", "plan_free")

	inv, _, err := s.service.RateSubscription(s.GetContext(), s.periodRequest("sub_free"))
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.InvoiceStatus)
	s.True(inv.Amount.IsZero())
	s.NotNil(inv.PaidAt)
	s.Contains(s.GetWebhooks().Names(), types.WebhookEventInvoicePaid)
}

func (s *BillingServiceSuite) TestWalletCreditsDrainOldestFirst() {
	s.createPlan("plan_basic", "49.00")
	s.createSubscription("sub_basic", "plan_basic")

	walletSvc := NewWalletService(s.params)
	older := s.fundWallet(walletSvc, "20")
	newer := s.fundWallet(walletSvc, "50")

	inv, _, err := s.service.RateSubscription(s.GetContext(), s.periodRequest("sub_basic"))
	s.NoError(err)

	credit := inv.LineItemsOfType(types.LineItemTypeWalletCredit)
	s.Require().Len(credit, 1)
	s.True(dec("-49").Equal(credit[0].Amount))
	s.True(inv.Amount.IsZero())
	s.Equal(types.InvoiceStatusPaid, inv.InvoiceStatus)

	w1, err := s.GetStores().WalletRepo.GetWalletByID(s.GetContext(), older)
	s.NoError(err)
	s.True(w1.Balance.IsZero())
	w2, err := s.GetStores().WalletRepo.GetWalletByID(s.GetContext(), newer)
	s.NoError(err)
	s.True(dec("21").Equal(w2.Balance), "got %s", w2.Balance)

	s.NoError(walletSvc.VerifyBalance(s.GetContext(), older))
	s.NoError(walletSvc.VerifyBalance(s.GetContext(), newer))
}

func (s *BillingServiceSuite) TestProgressiveUsageIsNetted() {
	s.createPlan("plan_prog", "", func(p *plan.Plan) {
		p.ProgressiveBillingThreshold = lo.ToPtr(dec("10"))
	})
	m := s.createMetric("api_calls", types.AggregationCount, "")
	s.createCharge("chg_api", "plan_prog", m.ID, types.ChargeModelStandard,
		types.Properties{types.ChargePropertyAmount: "1"}, nil)
	s.createSubscription("sub_prog", "plan_prog")

	mid := s.periodStart.AddDate(0, 0, 14)
	s.recordUsage("sub_prog", "api_calls", s.periodStart.Add(time.Hour), 12, nil)

	triggered, err := NewProgressiveBillingService(s.params).Check(s.GetContext(), "sub_prog", mid)
	s.NoError(err)
	s.True(triggered)

	queued := s.GetQueue().Jobs(s.GetConfig().Jobs.RateTopic)
	s.Require().Len(queued, 1)
	job := queued[0].(jobs.RateSubscription)
	s.Equal(types.InvoiceKindProgressive, job.Kind)

	progressive, created, err := s.service.RateSubscription(s.GetContext(), RateRequest{
		SubscriptionID: job.SubscriptionID,
		PlanID:         job.PlanID,
		Kind:           job.Kind,
		PeriodStart:    job.PeriodStart,
		PeriodEnd:      job.PeriodEnd,
		UsageStart:     job.UsageStart,
		UsageEnd:       job.UsageEnd,
		Now:            mid,
	})
	s.NoError(err)
	s.True(created)
	s.Require().NotNil(progressive)
	s.Equal(types.InvoiceKindProgressive, progressive.InvoiceKind)
	s.True(dec("12").Equal(progressive.Amount))

	// nothing new above the threshold until more usage arrives
	triggered, err = NewProgressiveBillingService(s.params).Check(s.GetContext(), "sub_prog", mid.Add(time.Hour))
	s.NoError(err)
	s.False(triggered)

	s.recordUsage("sub_prog", "api_calls", mid.Add(2*time.Hour), 5, nil)

	final, _, err := s.service.RateSubscription(s.GetContext(), s.periodRequest("sub_prog"))
	s.NoError(err)
	s.Require().NotNil(final)

	netting := lo.Filter(final.LineItemsOfType(types.LineItemTypeUsage), func(li *invoice.LineItem, _ int) bool {
		return li.Amount.IsNegative()
	})
	s.Require().Len(netting, 1)
	s.True(dec("-12").Equal(netting[0].Amount))
	s.True(dec("5").Equal(final.Amount), "got %s", final.Amount)
}

func (s *BillingServiceSuite) TestProgressiveBelowThresholdBillsNothing() {
	s.createPlan("plan_prog", "", func(p *plan.Plan) {
		p.ProgressiveBillingThreshold = lo.ToPtr(dec("10"))
	})
	m := s.createMetric("api_calls", types.AggregationCount, "")
	s.createCharge("chg_api", "plan_prog", m.ID, types.ChargeModelStandard,
		types.Properties{types.ChargePropertyAmount: "1"}, nil)
	s.createSubscription("sub_prog", "plan_prog")
	s.recordUsage("sub_prog", "api_calls", s.periodStart.Add(time.Hour), 4, nil)

	mid := s.periodStart.AddDate(0, 0, 14)
	inv, created, err := s.service.RateSubscription(s.GetContext(), RateRequest{
		SubscriptionID: "sub_prog",
		Kind:           types.InvoiceKindProgressive,
		PeriodStart:    s.periodStart,
		PeriodEnd:      mid,
		UsageStart:     s.periodStart,
		UsageEnd:       mid,
		Now:            mid,
	})
	s.NoError(err)
	s.False(created)
	s.Nil(inv)
	s.Empty(s.GetStores().InvoiceRepo.All(s.GetContext()))
}

func (s *BillingServiceSuite) TestRejectsInvalidRequest() {
	_, _, err := s.service.RateSubscription(s.GetContext(), RateRequest{Kind: types.InvoiceKindSubscription})
	s.Error(err)

	req := s.periodRequest("sub_x")
	req.PeriodEnd = req.PeriodStart.Add(-time.Hour)
	_, _, err = s.service.RateSubscription(s.GetContext(), req)
	s.Error(err)
}

func (s *BillingServiceSuite) fundWallet(svc WalletService, credits string) string {
	w, err := svc.CreateWallet(s.GetContext(), &dto.CreateWalletRequest{
		CustomerID: s.customer.ID,
		Currency:   "usd",
	})
	s.Require().NoError(err)
	_, err = svc.TopUp(s.GetContext(), &dto.TopUpWalletRequest{
		WalletID:          w.ID,
		Credits:           decimal.RequireFromString(credits),
		TransactionStatus: types.TransactionStatusPurchased,
	})
	s.Require().NoError(err)
	return w.ID
}
