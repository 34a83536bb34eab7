package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
)

// FilterFunc is a generic filter function type
type FilterFunc[T any] func(item T) bool

// InMemoryStore is a tenant-scoped map store. Items are copied on the way in
// and out so callers cannot mutate stored state without an Update.
type InMemoryStore[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	order map[string]int
	seq   int
	clone func(T) T
}

// NewInMemoryStore creates a new InMemoryStore
func NewInMemoryStore[T any](clone func(T) T) *InMemoryStore[T] {
	return &InMemoryStore[T]{
		items: make(map[string]T),
		order: make(map[string]int),
		clone: clone,
	}
}

func copyOf[T any](p *T) *T {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func scopedKey(ctx context.Context, id string) string {
	return types.GetTenantID(ctx) + "/" + id
}

func (s *InMemoryStore[T]) Create(ctx context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scopedKey(ctx, id)
	if _, exists := s.items[key]; exists {
		return ierr.NewError("item already exists").
			WithReportableDetails(map[string]any{"id": id}).
			Mark(ierr.ErrAlreadyExists)
	}
	s.seq++
	s.items[key] = s.clone(item)
	s.order[key] = s.seq
	return nil
}

func (s *InMemoryStore[T]) Get(ctx context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, exists := s.items[scopedKey(ctx, id)]; exists {
		return s.clone(item), nil
	}
	var zero T
	return zero, ierr.NewError("item not found").
		WithReportableDetails(map[string]any{"id": id}).
		Mark(ierr.ErrNotFound)
}

// List returns the tenant's items matching filterFn in insertion order
func (s *InMemoryStore[T]) List(ctx context.Context, filterFn FilterFunc[T]) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := types.GetTenantID(ctx) + "/"
	keys := make([]string, 0, len(s.items))
	for key, item := range s.items {
		if strings.HasPrefix(key, prefix) && (filterFn == nil || filterFn(item)) {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return s.order[keys[i]] < s.order[keys[j]] })

	out := make([]T, 0, len(keys))
	for _, key := range keys {
		out = append(out, s.clone(s.items[key]))
	}
	return out
}

func (s *InMemoryStore[T]) Update(ctx context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scopedKey(ctx, id)
	if _, exists := s.items[key]; !exists {
		return ierr.NewError("item not found").
			WithReportableDetails(map[string]any{"id": id}).
			Mark(ierr.ErrNotFound)
	}
	s.items[key] = s.clone(item)
	return nil
}

func (s *InMemoryStore[T]) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scopedKey(ctx, id)
	if _, exists := s.items[key]; !exists {
		return ierr.NewError("item not found").
			WithReportableDetails(map[string]any{"id": id}).
			Mark(ierr.ErrNotFound)
	}
	delete(s.items, key)
	delete(s.order, key)
	return nil
}

// Clear removes all items from the store
func (s *InMemoryStore[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T)
	s.order = make(map[string]int)
}
