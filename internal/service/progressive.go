package service

import (
	"context"
	"time"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/jobs"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
)

// ProgressiveBillingService issues mid-period draws once uninvoiced usage crosses
// the plan's threshold. A draw is an advance against the period invoice, which
// nets it out again.
type ProgressiveBillingService interface {
	// Check enqueues a progressive rating pass when the usage cost of the current
	// period, less what earlier draws invoiced, reaches the threshold
	Check(ctx context.Context, subscriptionID string, now time.Time) (bool, error)
}

type progressiveBillingService struct {
	ServiceParams
}

func NewProgressiveBillingService(params ServiceParams) ProgressiveBillingService {
	return &progressiveBillingService{ServiceParams: params}
}

func (s *progressiveBillingService) Check(ctx context.Context, subscriptionID string, now time.Time) (bool, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return false, err
	}
	if !sub.SubscriptionStatus.IsBillable() {
		return false, nil
	}

	pl, err := s.getPlan(ctx, sub.PlanID)
	if err != nil {
		return false, err
	}
	if pl.ProgressiveBillingThreshold == nil || !pl.ProgressiveBillingThreshold.IsPositive() {
		return false, nil
	}

	ov, err := s.OverrideRepo.GetByCustomerAndPlan(ctx, sub.CustomerID, sub.PlanID)
	if err != nil {
		return false, err
	}

	periodStart := sub.CurrentPeriodStart
	usage, err := NewBillingService(s.ServiceParams).CalculateUsage(ctx, sub, sub.PlanID, ov, periodStart, now)
	if err != nil {
		return false, err
	}
	invoiced, err := s.InvoiceRepo.SumProgressiveUsage(ctx, sub.ID, periodStart, now)
	if err != nil {
		return false, err
	}

	uninvoiced := usage.Total.Sub(invoiced)
	if uninvoiced.LessThan(*pl.ProgressiveBillingThreshold) {
		return false, nil
	}

	sub.LastProgressiveBillingAt = lo.ToPtr(now)
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		if ierr.IsVersionConflict(err) {
			// a concurrent check recorded the trigger first
			return false, nil
		}
		return false, err
	}

	err = s.Jobs.Enqueue(ctx, s.Config.Jobs.RateTopic, jobs.RateSubscription{
		SubscriptionID: sub.ID,
		PlanID:         sub.PlanID,
		Kind:           types.InvoiceKindProgressive,
		PeriodStart:    periodStart,
		PeriodEnd:      now,
		UsageStart:     periodStart,
		UsageEnd:       now,
	})
	if err != nil {
		return false, err
	}

	s.Logger.Infow("progressive billing threshold reached",
		"subscription_id", sub.ID,
		"uninvoiced", uninvoiced,
		"threshold", pl.ProgressiveBillingThreshold)

	return true, nil
}
