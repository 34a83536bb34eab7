package dto

import "github.com/flexprice/billingcore/internal/validator"

// ApplyCouponRequest attaches a coupon to a customer. A nil SubscriptionID applies
// it to every subscription of the customer.
type ApplyCouponRequest struct {
	CouponID       string  `json:"coupon_id" validate:"required"`
	CustomerID     string  `json:"customer_id" validate:"required"`
	SubscriptionID *string `json:"subscription_id,omitempty"`
}

func (r *ApplyCouponRequest) Validate() error {
	return validator.ValidateRequest(r)
}
