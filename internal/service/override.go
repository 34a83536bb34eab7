package service

import (
	"context"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/domain/override"
	"github.com/flexprice/billingcore/internal/domain/plan"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

// OverrideService resolves customer specific plan terms. An override always
// replaces the plan's value, it is never combined with it.
type OverrideService interface {
	CreateOverride(ctx context.Context, req *dto.CreateOverrideRequest) (*override.PlanOverride, error)
	// GetOverride returns nil, nil when the customer has no override for the plan
	GetOverride(ctx context.Context, customerID, planID string) (*override.PlanOverride, error)
	// ResolvePlanPrice returns the fixed fee in currency and whether the plan charges one
	ResolvePlanPrice(ctx context.Context, ov *override.PlanOverride, planID, currency string) (decimal.Decimal, bool, error)
	ResolveMinimumCommitment(ov *override.PlanOverride, pl *plan.Plan) *decimal.Decimal
	// ResolveCharge returns the charge with overridden properties and ranges applied
	ResolveCharge(ov *override.PlanOverride, c *plan.Charge) *plan.Charge
}

type overrideService struct {
	ServiceParams
}

func NewOverrideService(params ServiceParams) OverrideService {
	return &overrideService{ServiceParams: params}
}

func (s *overrideService) CreateOverride(ctx context.Context, req *dto.CreateOverrideRequest) (*override.PlanOverride, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.CustomerRepo.Get(ctx, req.CustomerID); err != nil {
		return nil, err
	}
	if _, err := s.getPlan(ctx, req.PlanID); err != nil {
		return nil, err
	}

	existing, err := s.OverrideRepo.GetByCustomerAndPlan(ctx, req.CustomerID, req.PlanID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ierr.NewError("override already exists").
			WithHint("This customer already has an override for the plan").
			WithReportableDetails(map[string]any{
				"customer_id": req.CustomerID,
				"plan_id":     req.PlanID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	ov := req.ToPlanOverride(ctx)
	if err := s.OverrideRepo.Create(ctx, ov); err != nil {
		return nil, err
	}
	return ov, nil
}

func (s *overrideService) GetOverride(ctx context.Context, customerID, planID string) (*override.PlanOverride, error) {
	return s.OverrideRepo.GetByCustomerAndPlan(ctx, customerID, planID)
}

func (s *overrideService) ResolvePlanPrice(ctx context.Context, ov *override.PlanOverride, planID, currency string) (decimal.Decimal, bool, error) {
	if amount, ok := ov.Price(currency); ok {
		return amount, true, nil
	}

	price, err := s.PlanRepo.GetPrice(ctx, planID, types.NormalizeCurrency(currency))
	if err != nil {
		if ierr.IsNotFound(err) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	return price.Amount, true, nil
}

func (s *overrideService) ResolveMinimumCommitment(ov *override.PlanOverride, pl *plan.Plan) *decimal.Decimal {
	if ov != nil && ov.MinimumCommitment != nil {
		return ov.MinimumCommitment
	}
	return pl.MinimumCommitment
}

func (s *overrideService) ResolveCharge(ov *override.PlanOverride, c *plan.Charge) *plan.Charge {
	co, ok := ov.Charge(c.ID)
	if !ok {
		return c
	}
	resolved := *c
	if len(co.Properties) > 0 {
		resolved.Properties = co.Properties
	}
	if len(co.GraduatedRanges) > 0 {
		resolved.GraduatedRanges = co.GraduatedRanges
	}
	return &resolved
}
