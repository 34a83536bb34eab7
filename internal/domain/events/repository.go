package events

import "context"

// Repository defines the interface for usage event persistence
type Repository interface {
	// InsertIfAbsent stores e unless an event with the same transaction id exists.
	// It returns the stored event and whether this call created it.
	InsertIfAbsent(ctx context.Context, e *UsageEvent) (*UsageEvent, bool, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*UsageEvent, error)
	// List returns the matching events ordered by timestamp, then insertion order
	List(ctx context.Context, filter *UsageFilter) ([]*UsageEvent, error)
}
