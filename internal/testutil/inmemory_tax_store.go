package testutil

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/settings"
	"github.com/flexprice/billingcore/internal/domain/tax"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
)

// InMemoryTaxStore implements tax.Repository
type InMemoryTaxStore struct {
	taxes       *InMemoryStore[*tax.Tax]
	assignments *InMemoryStore[*tax.Assignment]
}

func NewInMemoryTaxStore() *InMemoryTaxStore {
	return &InMemoryTaxStore{
		taxes:       NewInMemoryStore(copyOf[tax.Tax]),
		assignments: NewInMemoryStore(copyOf[tax.Assignment]),
	}
}

func (s *InMemoryTaxStore) CreateTax(ctx context.Context, t *tax.Tax) error {
	return s.taxes.Create(ctx, t.ID, t)
}

func (s *InMemoryTaxStore) CreateAssignment(ctx context.Context, a *tax.Assignment) error {
	return s.assignments.Create(ctx, a.ID, a)
}

func (s *InMemoryTaxStore) ListAssigned(ctx context.Context, scope types.TaxScope, entityID string) ([]*tax.Tax, error) {
	assigned := s.assignments.List(ctx, func(a *tax.Assignment) bool {
		return a.Scope == scope && a.EntityID == entityID
	})
	taxIDs := lo.Map(assigned, func(a *tax.Assignment, _ int) string { return a.TaxID })
	return s.taxes.List(ctx, func(t *tax.Tax) bool { return lo.Contains(taxIDs, t.ID) }), nil
}

func (s *InMemoryTaxStore) ListDefaults(ctx context.Context) ([]*tax.Tax, error) {
	return s.taxes.List(ctx, func(t *tax.Tax) bool { return t.AppliedByDefault }), nil
}

func (s *InMemoryTaxStore) Clear() {
	s.taxes.Clear()
	s.assignments.Clear()
}

// InMemorySettingsStore implements settings.Repository, one record per tenant
type InMemorySettingsStore struct {
	*InMemoryStore[*settings.BillingSettings]
}

func NewInMemorySettingsStore() *InMemorySettingsStore {
	return &InMemorySettingsStore{NewInMemoryStore(copyOf[settings.BillingSettings])}
}

const settingsKey = "billing"

func (s *InMemorySettingsStore) Get(ctx context.Context) (*settings.BillingSettings, error) {
	found := s.List(ctx, nil)
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (s *InMemorySettingsStore) Upsert(ctx context.Context, bs *settings.BillingSettings) error {
	if err := s.InMemoryStore.Update(ctx, settingsKey, bs); err == nil {
		return nil
	}
	return s.InMemoryStore.Create(ctx, settingsKey, bs)
}
