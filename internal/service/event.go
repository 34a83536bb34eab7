package service

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/cache"
	"github.com/flexprice/billingcore/internal/domain/events"
	"github.com/flexprice/billingcore/internal/domain/meter"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/jobs"
)

// EventService records usage events
type EventService interface {
	// Ingest stores the event unless its transaction id was already recorded, in which
	// case the stored event is returned with created false and nothing else happens
	Ingest(ctx context.Context, req *dto.IngestEventRequest) (*events.UsageEvent, bool, error)
	// GetUsage returns the events of one metric for a subscription in [from, to)
	GetUsage(ctx context.Context, subscriptionID, metricCode string, from, to time.Time) ([]*events.UsageEvent, error)
}

type eventService struct {
	ServiceParams
}

func NewEventService(params ServiceParams) EventService {
	return &eventService{ServiceParams: params}
}

func (s *eventService) Ingest(ctx context.Context, req *dto.IngestEventRequest) (*events.UsageEvent, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	// duplicates are detected before any lookup that could fail or enqueue work
	existing, err := s.EventRepo.GetByTransactionID(ctx, req.TransactionID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, false, err
	}
	if existing != nil {
		s.Metrics.EventIngested(true)
		return existing, false, nil
	}

	event := req.ToUsageEvent(ctx)
	if err := event.Validate(); err != nil {
		return nil, false, err
	}

	if _, err := s.getMeterByCode(ctx, event.MetricCode); err != nil {
		return nil, false, err
	}

	sub, err := s.SubRepo.Get(ctx, event.SubscriptionID)
	if err != nil {
		return nil, false, err
	}
	if !sub.SubscriptionStatus.IsBillable() {
		return nil, false, ierr.NewError("subscription is not billable").
			WithHintf("Usage cannot be recorded against a %s subscription", sub.SubscriptionStatus).
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
				"status":          sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	stored, created, err := s.EventRepo.InsertIfAbsent(ctx, event)
	if err != nil {
		return nil, false, err
	}
	s.Metrics.EventIngested(!created)
	if !created {
		// lost a race with a concurrent submission of the same transaction id
		return stored, false, nil
	}

	pl, err := s.getPlan(ctx, sub.PlanID)
	if err != nil {
		s.Logger.Errorw("failed to load plan for progressive billing check",
			"subscription_id", sub.ID,
			"plan_id", sub.PlanID,
			"error", err)
		return stored, true, nil
	}
	if pl.ProgressiveBillingThreshold != nil && pl.ProgressiveBillingThreshold.IsPositive() {
		if err := s.Jobs.Enqueue(ctx, s.Config.Jobs.ProgressiveTopic, jobs.ProgressiveCheck{
			SubscriptionID: sub.ID,
		}); err != nil {
			s.Logger.Errorw("failed to enqueue progressive billing check",
				"subscription_id", sub.ID,
				"error", err)
		}
	}

	s.Logger.Debugw("usage event recorded",
		"event_id", stored.ID,
		"transaction_id", stored.TransactionID,
		"metric_code", stored.MetricCode)

	return stored, true, nil
}

func (s *eventService) GetUsage(ctx context.Context, subscriptionID, metricCode string, from, to time.Time) ([]*events.UsageEvent, error) {
	return s.EventRepo.List(ctx, &events.UsageFilter{
		SubscriptionID: subscriptionID,
		MetricCode:     metricCode,
		From:           from,
		To:             to,
	})
}

func (s *eventService) getMeterByCode(ctx context.Context, code string) (*meter.BillableMetric, error) {
	return cache.Fetch(ctx, s.Cache, cache.TenantKey(ctx, cache.PrefixMeter, "code", code),
		func(ctx context.Context) (*meter.BillableMetric, error) {
			return s.MeterRepo.GetByCode(ctx, code)
		})
}
