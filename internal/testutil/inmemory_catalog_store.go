package testutil

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/customer"
	"github.com/flexprice/billingcore/internal/domain/meter"
	"github.com/flexprice/billingcore/internal/domain/override"
	"github.com/flexprice/billingcore/internal/domain/plan"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
)

// InMemoryMeterStore implements meter.Repository
type InMemoryMeterStore struct {
	*InMemoryStore[*meter.BillableMetric]
}

func NewInMemoryMeterStore() *InMemoryMeterStore {
	return &InMemoryMeterStore{NewInMemoryStore(copyOf[meter.BillableMetric])}
}

func (s *InMemoryMeterStore) Create(ctx context.Context, m *meter.BillableMetric) error {
	if existing := s.List(ctx, func(x *meter.BillableMetric) bool { return x.Code == m.Code }); len(existing) > 0 {
		return ierr.NewError("metric code already exists").Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, m.ID, m)
}

func (s *InMemoryMeterStore) GetByCode(ctx context.Context, code string) (*meter.BillableMetric, error) {
	found := s.List(ctx, func(x *meter.BillableMetric) bool { return x.Code == code })
	if len(found) == 0 {
		return nil, ierr.NewError("metric not found").
			WithHintf("Billable metric %s not found", code).
			Mark(ierr.ErrNotFound)
	}
	return found[0], nil
}

// InMemoryCustomerStore implements customer.Repository
type InMemoryCustomerStore struct {
	*InMemoryStore[*customer.Customer]
}

func NewInMemoryCustomerStore() *InMemoryCustomerStore {
	return &InMemoryCustomerStore{NewInMemoryStore(copyOf[customer.Customer])}
}

func (s *InMemoryCustomerStore) Create(ctx context.Context, c *customer.Customer) error {
	return s.InMemoryStore.Create(ctx, c.ID, c)
}

// InMemoryPlanStore implements plan.Repository
type InMemoryPlanStore struct {
	plans   *InMemoryStore[*plan.Plan]
	prices  *InMemoryStore[*plan.PlanPrice]
	charges *InMemoryStore[*plan.Charge]
}

func NewInMemoryPlanStore() *InMemoryPlanStore {
	return &InMemoryPlanStore{
		plans:   NewInMemoryStore(copyOf[plan.Plan]),
		prices:  NewInMemoryStore(copyOf[plan.PlanPrice]),
		charges: NewInMemoryStore(copyOf[plan.Charge]),
	}
}

func (s *InMemoryPlanStore) CreatePlan(ctx context.Context, p *plan.Plan) error {
	return s.plans.Create(ctx, p.ID, p)
}

func (s *InMemoryPlanStore) GetPlan(ctx context.Context, id string) (*plan.Plan, error) {
	return s.plans.Get(ctx, id)
}

func (s *InMemoryPlanStore) CreatePrice(ctx context.Context, p *plan.PlanPrice) error {
	return s.prices.Create(ctx, p.ID, p)
}

func (s *InMemoryPlanStore) GetPrice(ctx context.Context, planID, currency string) (*plan.PlanPrice, error) {
	found := s.prices.List(ctx, func(p *plan.PlanPrice) bool {
		return p.PlanID == planID && types.IsCurrencyEqual(p.Currency, currency)
	})
	if len(found) == 0 {
		return nil, ierr.NewError("plan price not found").Mark(ierr.ErrNotFound)
	}
	return found[0], nil
}

func (s *InMemoryPlanStore) CreateCharge(ctx context.Context, c *plan.Charge) error {
	return s.charges.Create(ctx, c.ID, c)
}

func (s *InMemoryPlanStore) ListCharges(ctx context.Context, planID string) ([]*plan.Charge, error) {
	return s.charges.List(ctx, func(c *plan.Charge) bool { return c.PlanID == planID }), nil
}

func (s *InMemoryPlanStore) Clear() {
	s.plans.Clear()
	s.prices.Clear()
	s.charges.Clear()
}

// InMemoryOverrideStore implements override.Repository
type InMemoryOverrideStore struct {
	*InMemoryStore[*override.PlanOverride]
}

func NewInMemoryOverrideStore() *InMemoryOverrideStore {
	return &InMemoryOverrideStore{NewInMemoryStore(copyOf[override.PlanOverride])}
}

func (s *InMemoryOverrideStore) Create(ctx context.Context, o *override.PlanOverride) error {
	existing, _ := s.GetByCustomerAndPlan(ctx, o.CustomerID, o.PlanID)
	if existing != nil {
		return ierr.NewError("override already exists").Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, o.ID, o)
}

func (s *InMemoryOverrideStore) GetByCustomerAndPlan(ctx context.Context, customerID, planID string) (*override.PlanOverride, error) {
	found := s.List(ctx, func(o *override.PlanOverride) bool {
		return o.CustomerID == customerID && o.PlanID == planID
	})
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}
