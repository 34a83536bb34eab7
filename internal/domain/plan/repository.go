package plan

import "context"

// Repository defines the interface for plan, plan price and charge persistence
type Repository interface {
	CreatePlan(ctx context.Context, p *Plan) error
	GetPlan(ctx context.Context, id string) (*Plan, error)

	CreatePrice(ctx context.Context, p *PlanPrice) error
	// GetPrice returns the plan's fee in currency, ErrNotFound when none is configured
	GetPrice(ctx context.Context, planID, currency string) (*PlanPrice, error)

	CreateCharge(ctx context.Context, c *Charge) error
	ListCharges(ctx context.Context, planID string) ([]*Charge, error)
}
