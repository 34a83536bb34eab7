package service

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/domain/subscription"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/jobs"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
)

// SubscriptionService advances subscriptions through their lifecycle
type SubscriptionService interface {
	GetSubscription(ctx context.Context, id string) (*subscription.Subscription, error)

	// ProcessLifecycle applies at most one transition to every subscription that is
	// due at now and returns how many were processed
	ProcessLifecycle(ctx context.Context, now time.Time) (int, error)

	// ProcessSubscription applies the transition due for one subscription, if any
	ProcessSubscription(ctx context.Context, id string, now time.Time) error

	// ScheduleChange defers a plan change to the end of the current period,
	// replacing any change still pending
	ScheduleChange(ctx context.Context, req *dto.ScheduleChangeRequest) (*subscription.ScheduledChange, error)

	Pause(ctx context.Context, id string) (*subscription.Subscription, error)
	Resume(ctx context.Context, id string) (*subscription.Subscription, error)

	// CancelSubscription cancels immediately when at is nil, otherwise records
	// the cancellation for the lifecycle sweep to apply
	CancelSubscription(ctx context.Context, id string, at *time.Time) (*subscription.Subscription, error)
}

type subscriptionService struct {
	ServiceParams
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{ServiceParams: params}
}

// transition is what one lifecycle pass decided; webhooks go out after commit
type transition struct {
	events []string
	rating []jobs.RateSubscription
}

func (s *subscriptionService) GetSubscription(ctx context.Context, id string) (*subscription.Subscription, error) {
	return s.SubRepo.Get(ctx, id)
}

func (s *subscriptionService) ProcessLifecycle(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.SubRepo.ListDueForLifecycle(ctx, now, s.Config.Billing.SweepBatchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, id := range ids {
		if err := s.ProcessSubscription(ctx, id, now); err != nil {
			s.Logger.Errorw("failed to process subscription lifecycle",
				"subscription_id", id,
				"error", err)
			continue
		}
		processed++
	}

	s.Logger.Debugw("processed subscription lifecycle", "due", len(ids), "processed", processed)
	return processed, nil
}

func (s *subscriptionService) ProcessSubscription(ctx context.Context, id string, now time.Time) error {
	var sub *subscription.Subscription
	var t transition

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		sub, err = s.SubRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		t, err = s.nextTransition(ctx, sub, now)
		if err != nil {
			return err
		}
		if len(t.events) == 0 {
			return nil
		}

		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}

		// enqueued before commit: a rolled back pass is re-run by the next sweep and
		// rating is idempotent per period, so a stray job never double-bills
		for _, job := range t.rating {
			if err := s.Jobs.Enqueue(ctx, s.Config.Jobs.RateTopic, job); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, event := range t.events {
		s.publishWebhook(ctx, event, sub)
	}
	if sub.SubscriptionStatus == types.SubscriptionStatusCanceled && len(t.events) > 0 {
		s.notifyCustomer(ctx, sub.CustomerID, types.NotificationSubscriptionCanceled, map[string]interface{}{
			"subscription_id": sub.ID,
			"canceled_at":     sub.CanceledAt,
		})
	}
	return nil
}

// nextTransition mutates sub in memory for the first transition that applies.
// Cancellation wins over trial expiry, which wins over renewal. An expired period
// with a cancellation still pending is left alone until the cancellation is due.
func (s *subscriptionService) nextTransition(ctx context.Context, sub *subscription.Subscription, now time.Time) (transition, error) {
	var t transition

	switch sub.SubscriptionStatus {
	case types.SubscriptionStatusCanceled, types.SubscriptionStatusPaused:
		return t, nil
	}

	if sub.CancelAt != nil && !sub.CancelAt.After(now) {
		// a cancellation at the period boundary still bills the closed period in arrears
		if sub.BillingTiming == types.BillingTimingInArrears && !sub.CancelAt.Before(sub.CurrentPeriodEnd) {
			t.rating = append(t.rating, jobs.RateSubscription{
				SubscriptionID: sub.ID,
				PlanID:         sub.PlanID,
				Kind:           types.InvoiceKindSubscription,
				PeriodStart:    sub.CurrentPeriodStart,
				PeriodEnd:      sub.CurrentPeriodEnd,
				UsageStart:     sub.CurrentPeriodStart,
				UsageEnd:       sub.CurrentPeriodEnd,
			})
		}
		markCanceled(sub, now)
		t.events = append(t.events, types.WebhookEventSubscriptionCanceled)
		return t, nil
	}

	if sub.SubscriptionStatus == types.SubscriptionStatusTrialing {
		if sub.TrialEnd == nil || sub.TrialEnd.After(now) {
			return t, nil
		}
		end, err := sub.NextPeriodEnd(now)
		if err != nil {
			return t, ierr.WithError(err).
				WithHint("Subscription billing period is invalid").
				Mark(ierr.ErrValidation)
		}
		sub.SubscriptionStatus = types.SubscriptionStatusActive
		sub.CurrentPeriodStart = now
		sub.CurrentPeriodEnd = end
		t.events = append(t.events, types.WebhookEventSubscriptionActivated)

		if sub.BillingTiming == types.BillingTimingInAdvance {
			t.rating = append(t.rating, jobs.RateSubscription{
				SubscriptionID: sub.ID,
				PlanID:         sub.PlanID,
				Kind:           types.InvoiceKindSubscription,
				PeriodStart:    now,
				PeriodEnd:      end,
				UsageStart:     now,
				UsageEnd:       now,
			})
		}
		return t, nil
	}

	if sub.CurrentPeriodEnd.After(now) {
		return t, nil
	}

	// only ACTIVE renews. PAST_DUE waits for dunning to restore or cancel it, and a
	// pending cancellation bills the closed period through the cancel branch above
	if sub.SubscriptionStatus != types.SubscriptionStatusActive || sub.CancelAt != nil {
		return t, nil
	}

	// renew from the previous end, never from now, so periods do not drift
	prevStart, prevEnd, prevPlanID := sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.PlanID
	nextEnd, err := sub.NextPeriodEnd(prevEnd)
	if err != nil {
		return t, ierr.WithError(err).
			WithHint("Subscription billing period is invalid").
			Mark(ierr.ErrValidation)
	}

	change, err := s.SubRepo.GetPendingScheduledChange(ctx, sub.ID)
	if err != nil {
		return t, err
	}
	if change != nil && change.IsDue(prevEnd) {
		sub.PreviousPlanID = lo.ToPtr(prevPlanID)
		sub.PlanID = change.TargetPlanID
		change.ChangeStatus = types.ScheduledChangeStatusApplied
		change.AppliedAt = lo.ToPtr(now)
		if err := s.SubRepo.UpdateScheduledChange(ctx, change); err != nil {
			return t, err
		}
		t.events = append(t.events, types.WebhookEventSubscriptionPlanChanged)
	}

	sub.CurrentPeriodStart = prevEnd
	sub.CurrentPeriodEnd = nextEnd
	sub.LastProgressiveBillingAt = nil
	t.events = append(t.events, types.WebhookEventSubscriptionRenewed)

	if sub.BillingTiming == types.BillingTimingInArrears {
		t.rating = append(t.rating, jobs.RateSubscription{
			SubscriptionID: sub.ID,
			PlanID:         prevPlanID,
			Kind:           types.InvoiceKindSubscription,
			PeriodStart:    prevStart,
			PeriodEnd:      prevEnd,
			UsageStart:     prevStart,
			UsageEnd:       prevEnd,
		})
	} else {
		// the new period's fee on the new plan, the closed period's usage on the old one
		t.rating = append(t.rating, jobs.RateSubscription{
			SubscriptionID: sub.ID,
			PlanID:         sub.PlanID,
			UsagePlanID:    prevPlanID,
			Kind:           types.InvoiceKindSubscription,
			PeriodStart:    prevEnd,
			PeriodEnd:      nextEnd,
			UsageStart:     prevStart,
			UsageEnd:       prevEnd,
		})
	}
	return t, nil
}

func (s *subscriptionService) ScheduleChange(ctx context.Context, req *dto.ScheduleChangeRequest) (*subscription.ScheduledChange, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.getPlan(ctx, req.TargetPlanID); err != nil {
		return nil, err
	}

	var change *subscription.ScheduledChange
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		sub, err := s.SubRepo.GetForUpdate(ctx, req.SubscriptionID)
		if err != nil {
			return err
		}
		if sub.SubscriptionStatus == types.SubscriptionStatusCanceled {
			return ierr.NewError("subscription is canceled").
				WithHint("A canceled subscription cannot change plan").
				WithReportableDetails(map[string]any{"subscription_id": sub.ID}).
				Mark(ierr.ErrInvalidOperation)
		}
		if sub.PlanID == req.TargetPlanID {
			return ierr.NewError("subscription is already on the target plan").
				WithHint("Choose a different plan").
				WithReportableDetails(map[string]any{"plan_id": req.TargetPlanID}).
				Mark(ierr.ErrValidation)
		}

		pending, err := s.SubRepo.GetPendingScheduledChange(ctx, sub.ID)
		if err != nil {
			return err
		}
		if pending != nil {
			pending.ChangeStatus = types.ScheduledChangeStatusCanceled
			if err := s.SubRepo.UpdateScheduledChange(ctx, pending); err != nil {
				return err
			}
		}

		change = &subscription.ScheduledChange{
			ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SCHEDULED_CHANGE),
			SubscriptionID: sub.ID,
			ChangeType:     types.ScheduledChangeTypePlanChange,
			TargetPlanID:   req.TargetPlanID,
			DueAt:          sub.CurrentPeriodEnd,
			ChangeStatus:   types.ScheduledChangeStatusPending,
			BaseModel:      types.GetDefaultBaseModel(ctx),
		}
		return s.SubRepo.CreateScheduledChange(ctx, change)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("scheduled plan change",
		"subscription_id", change.SubscriptionID,
		"target_plan_id", change.TargetPlanID,
		"due_at", change.DueAt)
	return change, nil
}

func (s *subscriptionService) Pause(ctx context.Context, id string) (*subscription.Subscription, error) {
	return s.setStatus(ctx, id, types.SubscriptionStatusActive, types.SubscriptionStatusPaused, types.WebhookEventSubscriptionPaused)
}

func (s *subscriptionService) Resume(ctx context.Context, id string) (*subscription.Subscription, error) {
	return s.setStatus(ctx, id, types.SubscriptionStatusPaused, types.SubscriptionStatusActive, types.WebhookEventSubscriptionResumed)
}

func (s *subscriptionService) setStatus(ctx context.Context, id string, from, to types.SubscriptionStatus, event string) (*subscription.Subscription, error) {
	var sub *subscription.Subscription
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		sub, err = s.SubRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if sub.SubscriptionStatus != from {
			return ierr.NewError("invalid subscription status transition").
				WithHintf("Only a %s subscription can become %s", from, to).
				WithReportableDetails(map[string]any{
					"subscription_id": id,
					"status":          sub.SubscriptionStatus,
				}).
				Mark(ierr.ErrInvalidOperation)
		}
		sub.SubscriptionStatus = to
		return s.SubRepo.Update(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.publishWebhook(ctx, event, sub)
	return sub, nil
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, id string, at *time.Time) (*subscription.Subscription, error) {
	now := time.Now().UTC()
	var sub *subscription.Subscription
	var canceled bool

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		sub, err = s.SubRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if sub.SubscriptionStatus == types.SubscriptionStatusCanceled {
			return ierr.NewError("subscription already canceled").
				WithHint("The subscription is already canceled").
				WithReportableDetails(map[string]any{"subscription_id": id}).
				Mark(ierr.ErrInvalidOperation)
		}
		if at != nil && at.After(now) {
			sub.CancelAt = at
		} else {
			markCanceled(sub, now)
			canceled = true
		}
		return s.SubRepo.Update(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	if canceled {
		s.publishWebhook(ctx, types.WebhookEventSubscriptionCanceled, sub)
		s.notifyCustomer(ctx, sub.CustomerID, types.NotificationSubscriptionCanceled, map[string]interface{}{
			"subscription_id": sub.ID,
			"canceled_at":     sub.CanceledAt,
		})
	}
	return sub, nil
}

func markCanceled(sub *subscription.Subscription, now time.Time) {
	sub.SubscriptionStatus = types.SubscriptionStatusCanceled
	sub.CanceledAt = lo.ToPtr(now)
	if sub.CancelAt == nil {
		sub.CancelAt = lo.ToPtr(now)
	}
}
