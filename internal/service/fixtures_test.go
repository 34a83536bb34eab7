package service

import (
	"fmt"
	"time"

	"github.com/flexprice/billingcore/internal/domain/customer"
	"github.com/flexprice/billingcore/internal/domain/events"
	"github.com/flexprice/billingcore/internal/domain/meter"
	"github.com/flexprice/billingcore/internal/domain/plan"
	"github.com/flexprice/billingcore/internal/domain/subscription"
	"github.com/flexprice/billingcore/internal/domain/tax"
	"github.com/flexprice/billingcore/internal/testutil"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// billingFixtures wires services over the in-memory stores and builds the catalog
// the scenarios bill against. Every scenario rates February 2024 and runs at
// 2024-03-01.
type billingFixtures struct {
	testutil.BaseServiceTestSuite
	params ServiceParams

	customer    *customer.Customer
	periodStart time.Time
	periodEnd   time.Time
}

func (s *billingFixtures) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	stores := s.GetStores()
	s.params = ServiceParams{
		Logger:           s.GetLogger(),
		Config:           s.GetConfig(),
		DB:               s.GetDB(),
		Cache:            s.GetCache(),
		Metrics:          s.GetMetrics(),
		MeterRepo:        stores.MeterRepo,
		EventRepo:        stores.EventRepo,
		CustomerRepo:     stores.CustomerRepo,
		PlanRepo:         stores.PlanRepo,
		OverrideRepo:     stores.OverrideRepo,
		SubRepo:          stores.SubRepo,
		InvoiceRepo:      stores.InvoiceRepo,
		CouponRepo:       stores.CouponRepo,
		AddonRepo:        stores.AddonRepo,
		TaxRepo:          stores.TaxRepo,
		WalletRepo:       stores.WalletRepo,
		PaymentRepo:      stores.PaymentRepo,
		SettingsRepo:     stores.SettingsRepo,
		WebhookPublisher: s.GetWebhooks(),
		Jobs:             s.GetQueue(),
		Notifier:         s.GetNotifier(),
		Renderer:         s.GetRenderer(),
		Providers:        s.GetProviders(),
	}

	s.periodStart = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	s.periodEnd = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	s.customer = &customer.Customer{
		ID:                  "cust_acme",
		ExternalID:          "acme",
		Name:                "Acme Corp",
		Email:               "billing@acme.test",
		ProviderCustomerRef: "cus_stripe_acme",
		BaseModel:           types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(stores.CustomerRepo.Create(s.GetContext(), s.customer))
}

func (s *billingFixtures) createPlan(id string, fee string, mutate ...func(*plan.Plan)) *plan.Plan {
	ctx := s.GetContext()
	p := &plan.Plan{
		ID:                 id,
		Name:               "Plan " + id,
		BillingPeriod:      types.BILLING_PERIOD_MONTHLY,
		BillingPeriodCount: 1,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}
	for _, fn := range mutate {
		fn(p)
	}
	s.NoError(s.GetStores().PlanRepo.CreatePlan(ctx, p))

	if fee != "" {
		s.NoError(s.GetStores().PlanRepo.CreatePrice(ctx, &plan.PlanPrice{
			ID:        "price_" + id,
			PlanID:    id,
			Currency:  "usd",
			Amount:    decimal.RequireFromString(fee),
			BaseModel: types.GetDefaultBaseModel(ctx),
		}))
	}
	return p
}

func (s *billingFixtures) createMetric(code string, agg types.AggregationType, field string) *meter.BillableMetric {
	m := &meter.BillableMetric{
		ID:              "bm_" + code,
		Code:            code,
		Name:            code,
		AggregationType: agg,
		FieldName:       field,
		BaseModel:       types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().MeterRepo.Create(s.GetContext(), m))
	return m
}

func (s *billingFixtures) createCharge(id, planID, metricID string, model types.ChargeModel, props types.Properties, ranges plan.Ranges) *plan.Charge {
	c := &plan.Charge{
		ID:              id,
		PlanID:          planID,
		MetricID:        metricID,
		ChargeModel:     model,
		Properties:      props,
		GraduatedRanges: ranges,
		BaseModel:       types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().PlanRepo.CreateCharge(s.GetContext(), c))
	return c
}

func (s *billingFixtures) createSubscription(id, planID string, mutate ...func(*subscription.Subscription)) *subscription.Subscription {
	sub := &subscription.Subscription{
		ID:                 id,
		CustomerID:         s.customer.ID,
		PlanID:             planID,
		SubscriptionStatus: types.SubscriptionStatusActive,
		Currency:           "usd",
		BillingTiming:      types.BillingTimingInArrears,
		BillingPeriod:      types.BILLING_PERIOD_MONTHLY,
		BillingPeriodCount: 1,
		BillingAnchor:      s.periodStart,
		CurrentPeriodStart: s.periodStart,
		CurrentPeriodEnd:   s.periodEnd,
		BaseModel:          types.GetDefaultBaseModel(s.GetContext()),
	}
	for _, fn := range mutate {
		fn(sub)
	}
	s.NoError(s.GetStores().SubRepo.Create(s.GetContext(), sub))
	return sub
}

func (s *billingFixtures) createTax(id, rate string, byDefault bool) *tax.Tax {
	t := &tax.Tax{
		ID:               id,
		Name:             "Tax " + id,
		Code:             id,
		Rate:             decimal.RequireFromString(rate),
		AppliedByDefault: byDefault,
		BaseModel:        types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().TaxRepo.CreateTax(s.GetContext(), t))
	return t
}

func (s *billingFixtures) assignTax(taxID string, scope types.TaxScope, entityID string) {
	s.NoError(s.GetStores().TaxRepo.CreateAssignment(s.GetContext(), &tax.Assignment{
		ID:        fmt.Sprintf("ta_%s_%s", taxID, entityID),
		TaxID:     taxID,
		Scope:     scope,
		EntityID:  entityID,
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}))
}

// recordUsage stores n events for the metric, one hour apart from at
func (s *billingFixtures) recordUsage(subID, code string, at time.Time, n int, props types.Properties) {
	for i := 0; i < n; i++ {
		_, _, err := s.GetStores().EventRepo.InsertIfAbsent(s.GetContext(), &events.UsageEvent{
			ID:             fmt.Sprintf("evt_%s_%s_%d_%d", subID, code, at.Unix(), i),
			TenantID:       testutil.TestTenantID,
			TransactionID:  fmt.Sprintf("txn_%s_%s_%d_%d", subID, code, at.Unix(), i),
			SubscriptionID: subID,
			MetricCode:     code,
			Timestamp:      at.Add(time.Duration(i) * time.Hour),
			Properties:     props,
			CreatedAt:      at,
		})
		s.NoError(err)
	}
}

// periodRequest rates the fixture period in arrears
func (s *billingFixtures) periodRequest(subID string) RateRequest {
	return RateRequest{
		SubscriptionID: subID,
		Kind:           types.InvoiceKindSubscription,
		PeriodStart:    s.periodStart,
		PeriodEnd:      s.periodEnd,
		UsageStart:     s.periodStart,
		UsageEnd:       s.periodEnd,
		Now:            s.GetNow(),
	}
}

func rng(from string, to *string, perUnit, flat string) plan.GraduatedRange {
	r := plan.GraduatedRange{
		FromValue:     decimal.RequireFromString(from),
		PerUnitAmount: decimal.RequireFromString(perUnit),
		FlatAmount:    decimal.RequireFromString(flat),
	}
	if to != nil {
		r.ToValue = lo.ToPtr(decimal.RequireFromString(*to))
	}
	return r
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
