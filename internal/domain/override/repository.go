package override

import "context"

type Repository interface {
	// Create fails with ErrAlreadyExists when the (customer, plan) pair already has an override
	Create(ctx context.Context, o *PlanOverride) error
	// GetByCustomerAndPlan returns nil, nil when no override exists
	GetByCustomerAndPlan(ctx context.Context, customerID, planID string) (*PlanOverride, error)
}
