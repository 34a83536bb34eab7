package types

type DiscountType string

const (
	DiscountTypePercentage  DiscountType = "PERCENTAGE"
	DiscountTypeFixedAmount DiscountType = "FIXED_AMOUNT"
)

type CouponStatus string

const (
	CouponStatusActive     CouponStatus = "ACTIVE"
	CouponStatusTerminated CouponStatus = "TERMINATED"
)
