package coupon

import (
	"time"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

// Coupon is a reusable discount definition. Value is a percentage for
// PERCENTAGE coupons and an amount for FIXED_AMOUNT coupons.
type Coupon struct {
	ID             string             `db:"id" json:"id"`
	Code           string             `db:"code" json:"code"`
	Name           string             `db:"name" json:"name"`
	DiscountType   types.DiscountType `db:"discount_type" json:"discount_type"`
	Value          decimal.Decimal    `db:"value" json:"value"`
	Currency       *string            `db:"currency" json:"currency,omitempty"`
	MaxRedemptions *int               `db:"max_redemptions" json:"max_redemptions,omitempty"`
	TimesRedeemed  int                `db:"times_redeemed" json:"times_redeemed"`
	// UsesPerApplication is copied into AppliedCoupon.UsesRemaining; nil is unlimited
	UsesPerApplication *int               `db:"uses_per_application" json:"uses_per_application,omitempty"`
	ExpiresAt          *time.Time         `db:"expires_at" json:"expires_at,omitempty"`
	CouponStatus       types.CouponStatus `db:"coupon_status" json:"coupon_status"`
	types.BaseModel
}

func (c *Coupon) Validate() error {
	if c.Value.IsNegative() || c.Value.IsZero() {
		return ierr.NewError("coupon value must be positive").
			WithHint("Coupon value must be greater than zero").
			Mark(ierr.ErrValidation)
	}
	switch c.DiscountType {
	case types.DiscountTypePercentage:
		if c.Value.GreaterThan(decimal.NewFromInt(100)) {
			return ierr.NewError("percentage above 100").
				WithHint("Percentage coupons cannot exceed 100").
				Mark(ierr.ErrValidation)
		}
	case types.DiscountTypeFixedAmount:
	default:
		return ierr.NewError("invalid discount type").
			WithHintf("Unsupported discount type %s", c.DiscountType).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsRedeemable reports whether the coupon can still be attached to a customer
func (c *Coupon) IsRedeemable(now time.Time) bool {
	if c.CouponStatus != types.CouponStatusActive {
		return false
	}
	if c.IsExpired(now) {
		return false
	}
	return c.MaxRedemptions == nil || c.TimesRedeemed < *c.MaxRedemptions
}

func (c *Coupon) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// Discount computes the discount against base. FIXED_AMOUNT coupons in another
// currency yield zero.
func (c *Coupon) Discount(base decimal.Decimal, currency string) decimal.Decimal {
	switch c.DiscountType {
	case types.DiscountTypePercentage:
		return base.Mul(c.Value).Div(decimal.NewFromInt(100))
	case types.DiscountTypeFixedAmount:
		if c.Currency != nil && *c.Currency != "" && !types.IsCurrencyEqual(*c.Currency, currency) {
			return decimal.Zero
		}
		return c.Value
	}
	return decimal.Zero
}

// AppliedCoupon attaches a coupon to a customer, optionally scoped to one subscription
type AppliedCoupon struct {
	ID             string  `db:"id" json:"id"`
	CouponID       string  `db:"coupon_id" json:"coupon_id"`
	CustomerID     string  `db:"customer_id" json:"customer_id"`
	SubscriptionID *string `db:"subscription_id" json:"subscription_id,omitempty"`
	// UsesRemaining is decremented once per discounted invoice; nil is unlimited
	UsesRemaining *int `db:"uses_remaining" json:"uses_remaining,omitempty"`
	types.BaseModel
}

// HasUsesRemaining reports whether the application can discount another invoice
func (a *AppliedCoupon) HasUsesRemaining() bool {
	return a.UsesRemaining == nil || *a.UsesRemaining > 0
}
