package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/flexprice/billingcore/internal/domain/events"
	ierr "github.com/flexprice/billingcore/internal/errors"
)

// InMemoryEventStore implements events.Repository, keyed by transaction id
type InMemoryEventStore struct {
	*InMemoryStore[*events.UsageEvent]
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{NewInMemoryStore(copyOf[events.UsageEvent])}
}

func (s *InMemoryEventStore) InsertIfAbsent(ctx context.Context, e *events.UsageEvent) (*events.UsageEvent, bool, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if err := s.Create(ctx, e.TransactionID, e); err != nil {
		if !ierr.IsAlreadyExists(err) {
			return nil, false, err
		}
		existing, err := s.Get(ctx, e.TransactionID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return e, true, nil
}

func (s *InMemoryEventStore) GetByTransactionID(ctx context.Context, transactionID string) (*events.UsageEvent, error) {
	return s.Get(ctx, transactionID)
}

func (s *InMemoryEventStore) List(ctx context.Context, filter *events.UsageFilter) ([]*events.UsageEvent, error) {
	out := s.InMemoryStore.List(ctx, func(e *events.UsageEvent) bool {
		return e.SubscriptionID == filter.SubscriptionID &&
			e.MetricCode == filter.MetricCode &&
			!e.Timestamp.Before(filter.From) &&
			e.Timestamp.Before(filter.To)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}
