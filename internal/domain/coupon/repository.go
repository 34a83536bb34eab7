package coupon

import "context"

type Repository interface {
	CreateCoupon(ctx context.Context, c *Coupon) error
	GetCoupon(ctx context.Context, id string) (*Coupon, error)
	GetCouponForUpdate(ctx context.Context, id string) (*Coupon, error)
	UpdateCoupon(ctx context.Context, c *Coupon) error

	CreateApplied(ctx context.Context, a *AppliedCoupon) error
	// FindApplied returns nil, nil when the coupon is not applied at that scope
	FindApplied(ctx context.Context, couponID, customerID string, subscriptionID *string) (*AppliedCoupon, error)
	// ListAppliedForUpdate row-locks the customer's global applications and those
	// scoped to subscriptionID, ordered by creation
	ListAppliedForUpdate(ctx context.Context, customerID, subscriptionID string) ([]*AppliedCoupon, error)
	UpdateApplied(ctx context.Context, a *AppliedCoupon) error
	DeleteApplied(ctx context.Context, id string) error
}
