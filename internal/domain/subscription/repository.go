package subscription

import (
	"context"
	"time"
)

// Repository defines the interface for subscription persistence
type Repository interface {
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	// GetForUpdate row-locks the subscription for the enclosing transaction
	GetForUpdate(ctx context.Context, id string) (*Subscription, error)
	// Update persists s when its version matches, then bumps the version.
	// A stale version fails with ErrVersionConflict.
	Update(ctx context.Context, s *Subscription) error
	// ListDueForLifecycle returns ids of subscriptions with a trial end, period end
	// or cancellation at or before now
	ListDueForLifecycle(ctx context.Context, now time.Time, limit int) ([]string, error)

	CreateScheduledChange(ctx context.Context, c *ScheduledChange) error
	// GetPendingScheduledChange returns nil, nil when the subscription has none
	GetPendingScheduledChange(ctx context.Context, subscriptionID string) (*ScheduledChange, error)
	UpdateScheduledChange(ctx context.Context, c *ScheduledChange) error
}
