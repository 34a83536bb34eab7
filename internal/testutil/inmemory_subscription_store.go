package testutil

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/domain/subscription"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
	changes *InMemoryStore[*subscription.ScheduledChange]
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore(copyOf[subscription.Subscription]),
		changes:       NewInMemoryStore(copyOf[subscription.ScheduledChange]),
	}
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub.Version == 0 {
		sub.Version = 1
	}
	return s.InMemoryStore.Create(ctx, sub.ID, sub)
}

func (s *InMemorySubscriptionStore) GetForUpdate(ctx context.Context, id string) (*subscription.Subscription, error) {
	return s.Get(ctx, id)
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	stored, err := s.Get(ctx, sub.ID)
	if err != nil {
		return err
	}
	if stored.Version != sub.Version {
		return ierr.NewError("subscription was modified concurrently").
			WithReportableDetails(map[string]any{"subscription_id": sub.ID}).
			Mark(ierr.ErrVersionConflict)
	}
	sub.Version++
	sub.UpdatedAt = time.Now().UTC()
	return s.InMemoryStore.Update(ctx, sub.ID, sub)
}

func (s *InMemorySubscriptionStore) ListDueForLifecycle(ctx context.Context, now time.Time, limit int) ([]string, error) {
	due := s.List(ctx, func(sub *subscription.Subscription) bool {
		switch sub.SubscriptionStatus {
		case types.SubscriptionStatusTrialing:
			return (sub.CancelAt != nil && !sub.CancelAt.After(now)) ||
				(sub.TrialEnd != nil && !sub.TrialEnd.After(now))
		case types.SubscriptionStatusActive:
			if sub.CancelAt != nil {
				return !sub.CancelAt.After(now)
			}
			return !sub.CurrentPeriodEnd.After(now)
		case types.SubscriptionStatusPastDue:
			return sub.CancelAt != nil && !sub.CancelAt.After(now)
		}
		return false
	})
	ids := make([]string, 0, len(due))
	for i, sub := range due {
		if limit > 0 && i >= limit {
			break
		}
		ids = append(ids, sub.ID)
	}
	return ids, nil
}

func (s *InMemorySubscriptionStore) CreateScheduledChange(ctx context.Context, c *subscription.ScheduledChange) error {
	return s.changes.Create(ctx, c.ID, c)
}

func (s *InMemorySubscriptionStore) GetPendingScheduledChange(ctx context.Context, subscriptionID string) (*subscription.ScheduledChange, error) {
	found := s.changes.List(ctx, func(c *subscription.ScheduledChange) bool {
		return c.SubscriptionID == subscriptionID && c.ChangeStatus == types.ScheduledChangeStatusPending
	})
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (s *InMemorySubscriptionStore) UpdateScheduledChange(ctx context.Context, c *subscription.ScheduledChange) error {
	return s.changes.Update(ctx, c.ID, c)
}

func (s *InMemorySubscriptionStore) Clear() {
	s.InMemoryStore.Clear()
	s.changes.Clear()
}
