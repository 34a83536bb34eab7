package service

import (
	"testing"

	"github.com/flexprice/billingcore/internal/domain/plan"
	"github.com/flexprice/billingcore/internal/domain/settings"
	"github.com/flexprice/billingcore/internal/jobs"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type InvoiceServiceSuite struct {
	billingFixtures
	service InvoiceService
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.billingFixtures.SetupTest()
	s.service = NewInvoiceService(s.params)
}

func (s *InvoiceServiceSuite) TestGracePeriodSweepThenFinalize() {
	s.createPlan("plan_grace", "49.00", func(p *plan.Plan) {
		p.GracePeriodDays = lo.ToPtr(3)
	})
	s.createSubscription("sub_grace", "plan_grace", withSavedMethod)
	s.NoError(s.GetStores().SettingsRepo.Upsert(s.GetContext(), &settings.BillingSettings{
		GracePeriodDays:    0,
		NetTermDays:        14,
		DunningMaxAttempts: 3,
		BaseModel:          types.GetDefaultBaseModel(s.GetContext()),
	}))

	draft, _, err := NewBillingService(s.params).RateSubscription(s.GetContext(), s.periodRequest("sub_grace"))
	s.NoError(err)
	s.Equal(types.InvoiceStatusDraft, draft.InvoiceStatus)

	enqueued, err := s.service.SweepGracePeriods(s.GetContext(), s.GetNow().AddDate(0, 0, 2))
	s.NoError(err)
	s.Zero(enqueued)

	closesAt := s.GetNow().AddDate(0, 0, 3)
	enqueued, err = s.service.SweepGracePeriods(s.GetContext(), closesAt)
	s.NoError(err)
	s.Equal(1, enqueued)
	s.Equal([]jobs.Job{jobs.FinalizeInvoice{InvoiceID: draft.ID}}, s.GetQueue().Jobs(s.GetConfig().Jobs.FinalizeTopic))

	inv, err := s.service.FinalizeInvoice(s.GetContext(), draft.ID, closesAt)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPending, inv.InvoiceStatus)
	s.Equal(closesAt, *inv.FinalizedAt)
	s.Equal(closesAt.AddDate(0, 0, 14), *inv.DueDate)
	s.Contains(s.GetWebhooks().Names(), types.WebhookEventInvoiceFinalized)
	s.Equal([]types.NotificationTemplate{types.NotificationInvoiceIssued}, s.GetNotifier().Templates())
	s.Len(s.GetQueue().Jobs(s.GetConfig().Jobs.ChargeTopic), 1)

	// finalizing twice changes nothing
	again, err := s.service.FinalizeInvoice(s.GetContext(), draft.ID, closesAt.AddDate(0, 0, 1))
	s.NoError(err)
	s.Equal(closesAt, *again.FinalizedAt)
	s.Len(s.GetNotifier().Templates(), 1)
	s.Len(s.GetQueue().Jobs(s.GetConfig().Jobs.ChargeTopic), 1)

	enqueued, err = s.service.SweepGracePeriods(s.GetContext(), closesAt.AddDate(0, 0, 1))
	s.NoError(err)
	s.Zero(enqueued)
}

func (s *InvoiceServiceSuite) TestTenantGraceAppliesWhenPlanHasNone() {
	s.createPlan("plan_basic", "49.00")
	s.createSubscription("sub_basic", "plan_basic")
	s.NoError(s.GetStores().SettingsRepo.Upsert(s.GetContext(), &settings.BillingSettings{
		GracePeriodDays: 5,
		BaseModel:       types.GetDefaultBaseModel(s.GetContext()),
	}))

	inv, _, err := NewBillingService(s.params).RateSubscription(s.GetContext(), s.periodRequest("sub_basic"))
	s.NoError(err)
	s.Equal(types.InvoiceStatusDraft, inv.InvoiceStatus)
	s.Equal(s.GetNow().AddDate(0, 0, 5), *inv.GracePeriodEndsAt)
}

func (s *InvoiceServiceSuite) TestFinalizeZeroDraftIsPaid() {
	s.createPlan("plan_free", "0", func(p *plan.Plan) {
		p.GracePeriodDays = lo.ToPtr(1)
	})
	s.createSubscription("sub_free", "plan_free")

	draft, _, err := NewBillingService(s.params).RateSubscription(s.GetContext(), s.periodRequest("sub_free"))
	s.NoError(err)
	s.Equal(types.InvoiceStatusDraft, draft.InvoiceStatus)

	inv, err := s.service.FinalizeInvoice(s.GetContext(), draft.ID, s.GetNow().AddDate(0, 0, 1))
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.InvoiceStatus)
	s.NotNil(inv.PaidAt)
	s.Contains(s.GetWebhooks().Names(), types.WebhookEventInvoicePaid)
}
