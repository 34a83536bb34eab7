package service

import (
	"testing"
	"time"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/domain/subscription"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/jobs"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type SubscriptionServiceSuite struct {
	billingFixtures
	service SubscriptionService
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.billingFixtures.SetupTest()
	s.service = NewSubscriptionService(s.params)
	s.createPlan("plan_basic", "49.00")
	s.createPlan("plan_pro", "99.00")
}

func (s *SubscriptionServiceSuite) rateJobs() []jobs.RateSubscription {
	return lo.Map(s.GetQueue().Jobs(s.GetConfig().Jobs.RateTopic), func(j jobs.Job, _ int) jobs.RateSubscription {
		return j.(jobs.RateSubscription)
	})
}

func (s *SubscriptionServiceSuite) reload(id string) *subscription.Subscription {
	sub, err := s.service.GetSubscription(s.GetContext(), id)
	s.Require().NoError(err)
	return sub
}

func (s *SubscriptionServiceSuite) TestRenewalInArrearsBillsClosedPeriod() {
	s.createSubscription("sub_arrears", "plan_basic")
	s.createSubscription("sub_later", "plan_basic", func(sub *subscription.Subscription) {
		sub.CurrentPeriodStart = s.periodEnd
		sub.CurrentPeriodEnd = s.periodEnd.AddDate(0, 1, 0)
	})

	processed, err := s.service.ProcessLifecycle(s.GetContext(), s.GetNow())
	s.NoError(err)
	s.Equal(1, processed)

	sub := s.reload("sub_arrears")
	s.Equal(s.periodEnd, sub.CurrentPeriodStart)
	s.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), sub.CurrentPeriodEnd)

	queued := s.rateJobs()
	s.Require().Len(queued, 1)
	s.Equal(jobs.RateSubscription{
		SubscriptionID: "sub_arrears",
		PlanID:         "plan_basic",
		Kind:           types.InvoiceKindSubscription,
		PeriodStart:    s.periodStart,
		PeriodEnd:      s.periodEnd,
		UsageStart:     s.periodStart,
		UsageEnd:       s.periodEnd,
	}, queued[0])
	s.Contains(s.GetWebhooks().Names(), types.WebhookEventSubscriptionRenewed)

	// a second sweep at the same instant finds nothing due
	processed, err = s.service.ProcessLifecycle(s.GetContext(), s.GetNow())
	s.NoError(err)
	s.Zero(processed)
	s.Len(s.rateJobs(), 1)
}

func (s *SubscriptionServiceSuite) TestScheduledChangeAppliesAtBoundary() {
	s.createSubscription("sub_advance", "plan_basic", func(sub *subscription.Subscription) {
		sub.BillingTiming = types.BillingTimingInAdvance
	})
	m := s.createMetric("api_calls", types.AggregationCount, "")
	s.createCharge("chg_basic_api", "plan_basic", m.ID, types.ChargeModelStandard,
		types.Properties{types.ChargePropertyAmount: "1"}, nil)
	s.createCharge("chg_pro_api", "plan_pro", m.ID, types.ChargeModelStandard,
		types.Properties{types.ChargePropertyAmount: "0.1"}, nil)
	s.recordUsage("sub_advance", "api_calls", s.periodStart.Add(time.Hour), 10, nil)

	first, err := s.service.ScheduleChange(s.GetContext(), &dto.ScheduleChangeRequest{
		SubscriptionID: "sub_advance",
		TargetPlanID:   "plan_pro",
	})
	s.NoError(err)
	s.Equal(s.periodEnd, first.DueAt)

	// rescheduling replaces the pending change
	change, err := s.service.ScheduleChange(s.GetContext(), &dto.ScheduleChangeRequest{
		SubscriptionID: "sub_advance",
		TargetPlanID:   "plan_pro",
	})
	s.NoError(err)
	s.NotEqual(first.ID, change.ID)

	s.NoError(s.service.ProcessSubscription(s.GetContext(), "sub_advance", s.GetNow()))

	sub := s.reload("sub_advance")
	s.Equal("plan_pro", sub.PlanID)
	s.Equal("plan_basic", lo.FromPtr(sub.PreviousPlanID))
	s.Subset(s.GetWebhooks().Names(), []string{
		types.WebhookEventSubscriptionPlanChanged,
		types.WebhookEventSubscriptionRenewed,
	})

	queued := s.rateJobs()
	s.Require().Len(queued, 1)
	job := queued[0]
	s.Equal("plan_pro", job.PlanID)
	s.Equal("plan_basic", job.UsagePlanID)
	s.Equal(s.periodEnd, job.PeriodStart)
	s.Equal(s.periodStart, job.UsageStart)
	s.Equal(s.periodEnd, job.UsageEnd)

	inv, _, err := NewBillingService(s.params).RateSubscription(s.GetContext(), RateRequest{
		SubscriptionID: job.SubscriptionID,
		PlanID:         job.PlanID,
		UsagePlanID:    job.UsagePlanID,
		Kind:           job.Kind,
		PeriodStart:    job.PeriodStart,
		PeriodEnd:      job.PeriodEnd,
		UsageStart:     job.UsageStart,
		UsageEnd:       job.UsageEnd,
		Now:            s.GetNow(),
	})
	s.NoError(err)
	// the new plan's fee plus the closed period's usage on the old plan's rates
	s.True(dec("109").Equal(inv.Amount), "got %s", inv.Amount)
}

func (s *SubscriptionServiceSuite) TestScheduleChangeValidation() {
	s.createSubscription("sub_basic", "plan_basic")

	_, err := s.service.ScheduleChange(s.GetContext(), &dto.ScheduleChangeRequest{
		SubscriptionID: "sub_basic",
		TargetPlanID:   "plan_basic",
	})
	s.True(ierr.Is(err, ierr.ErrValidation))

	_, err = s.service.ScheduleChange(s.GetContext(), &dto.ScheduleChangeRequest{
		SubscriptionID: "sub_basic",
		TargetPlanID:   "plan_missing",
	})
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestTrialEndActivatesAndBillsInAdvance() {
	s.createSubscription("sub_trial", "plan_basic", func(sub *subscription.Subscription) {
		sub.SubscriptionStatus = types.SubscriptionStatusTrialing
		sub.BillingTiming = types.BillingTimingInAdvance
		sub.TrialStart = lo.ToPtr(s.periodStart)
		sub.TrialEnd = lo.ToPtr(s.periodEnd)
	})

	s.NoError(s.service.ProcessSubscription(s.GetContext(), "sub_trial", s.periodEnd.Add(-time.Hour)))
	s.Equal(types.SubscriptionStatusTrialing, s.reload("sub_trial").SubscriptionStatus)
	s.Empty(s.rateJobs())

	s.NoError(s.service.ProcessSubscription(s.GetContext(), "sub_trial", s.GetNow()))

	sub := s.reload("sub_trial")
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
	s.Equal(s.GetNow(), sub.CurrentPeriodStart)
	s.Contains(s.GetWebhooks().Names(), types.WebhookEventSubscriptionActivated)

	queued := s.rateJobs()
	s.Require().Len(queued, 1)
	s.Equal(s.GetNow(), queued[0].PeriodStart)
	s.Equal(sub.CurrentPeriodEnd, queued[0].PeriodEnd)
	s.Equal(queued[0].UsageStart, queued[0].UsageEnd)
}

func (s *SubscriptionServiceSuite) TestScheduledCancellationBillsFinalPeriod() {
	s.createSubscription("sub_basic", "plan_basic")

	at := time.Now().UTC().Add(48 * time.Hour)
	sub, err := s.service.CancelSubscription(s.GetContext(), "sub_basic", &at)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
	s.Equal(at, *sub.CancelAt)
	s.NotContains(s.GetWebhooks().Names(), types.WebhookEventSubscriptionCanceled)

	s.NoError(s.service.ProcessSubscription(s.GetContext(), "sub_basic", at))

	sub = s.reload("sub_basic")
	s.Equal(types.SubscriptionStatusCanceled, sub.SubscriptionStatus)
	s.Require().NotNil(sub.CanceledAt)
	s.Len(s.rateJobs(), 1)
	s.Contains(s.GetNotifier().Templates(), types.NotificationSubscriptionCanceled)
}

func (s *SubscriptionServiceSuite) TestPendingCancellationBlocksRenewal() {
	cancelAt := s.GetNow().AddDate(0, 0, 10)
	s.createSubscription("sub_advance", "plan_basic", func(sub *subscription.Subscription) {
		sub.BillingTiming = types.BillingTimingInAdvance
		sub.CancelAt = lo.ToPtr(cancelAt)
	})
	s.createSubscription("sub_arrears", "plan_basic", func(sub *subscription.Subscription) {
		sub.CancelAt = lo.ToPtr(cancelAt)
	})

	processed, err := s.service.ProcessLifecycle(s.GetContext(), s.GetNow())
	s.NoError(err)
	s.Zero(processed)

	// a direct pass is a no-op as well
	s.NoError(s.service.ProcessSubscription(s.GetContext(), "sub_advance", s.GetNow()))

	for _, id := range []string{"sub_advance", "sub_arrears"} {
		sub := s.reload(id)
		s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
		s.Equal(s.periodStart, sub.CurrentPeriodStart)
		s.Equal(s.periodEnd, sub.CurrentPeriodEnd)
	}
	s.Empty(s.rateJobs())
	s.NotContains(s.GetWebhooks().Names(), types.WebhookEventSubscriptionRenewed)

	processed, err = s.service.ProcessLifecycle(s.GetContext(), cancelAt)
	s.NoError(err)
	s.Equal(2, processed)
	s.Equal(types.SubscriptionStatusCanceled, s.reload("sub_advance").SubscriptionStatus)
	s.Equal(types.SubscriptionStatusCanceled, s.reload("sub_arrears").SubscriptionStatus)

	// only the in-arrears subscription owes the closed period
	queued := s.rateJobs()
	s.Require().Len(queued, 1)
	s.Equal("sub_arrears", queued[0].SubscriptionID)
	s.Equal(s.periodStart, queued[0].PeriodStart)
	s.Equal(s.periodEnd, queued[0].PeriodEnd)
}

func (s *SubscriptionServiceSuite) TestPastDueDoesNotRenew() {
	s.createSubscription("sub_past_due", "plan_basic", func(sub *subscription.Subscription) {
		sub.SubscriptionStatus = types.SubscriptionStatusPastDue
		sub.BillingTiming = types.BillingTimingInAdvance
	})

	processed, err := s.service.ProcessLifecycle(s.GetContext(), s.GetNow())
	s.NoError(err)
	s.Zero(processed)

	s.NoError(s.service.ProcessSubscription(s.GetContext(), "sub_past_due", s.GetNow()))
	sub := s.reload("sub_past_due")
	s.Equal(types.SubscriptionStatusPastDue, sub.SubscriptionStatus)
	s.Equal(s.periodEnd, sub.CurrentPeriodEnd)
	s.Empty(s.rateJobs())

	// a due cancellation still applies
	at := time.Now().UTC().Add(time.Hour)
	_, err = s.service.CancelSubscription(s.GetContext(), "sub_past_due", &at)
	s.NoError(err)
	processed, err = s.service.ProcessLifecycle(s.GetContext(), at)
	s.NoError(err)
	s.Equal(1, processed)
	s.Equal(types.SubscriptionStatusCanceled, s.reload("sub_past_due").SubscriptionStatus)
	s.Empty(s.rateJobs())
}

func (s *SubscriptionServiceSuite) TestImmediateCancellation() {
	s.createSubscription("sub_basic", "plan_basic")

	sub, err := s.service.CancelSubscription(s.GetContext(), "sub_basic", nil)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, sub.SubscriptionStatus)
	s.Contains(s.GetWebhooks().Names(), types.WebhookEventSubscriptionCanceled)

	_, err = s.service.CancelSubscription(s.GetContext(), "sub_basic", nil)
	s.True(ierr.Is(err, ierr.ErrInvalidOperation))

	// canceled subscriptions never renew
	s.NoError(s.service.ProcessSubscription(s.GetContext(), "sub_basic", s.GetNow()))
	s.Empty(s.rateJobs())
}

func (s *SubscriptionServiceSuite) TestPauseAndResume() {
	s.createSubscription("sub_basic", "plan_basic")

	sub, err := s.service.Pause(s.GetContext(), "sub_basic")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPaused, sub.SubscriptionStatus)

	s.NoError(s.service.ProcessSubscription(s.GetContext(), "sub_basic", s.GetNow()))
	s.Empty(s.rateJobs())

	_, err = s.service.Pause(s.GetContext(), "sub_basic")
	s.True(ierr.Is(err, ierr.ErrInvalidOperation))

	sub, err = s.service.Resume(s.GetContext(), "sub_basic")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
	s.Subset(s.GetWebhooks().Names(), []string{
		types.WebhookEventSubscriptionPaused,
		types.WebhookEventSubscriptionResumed,
	})
}
