package service

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/domain/coupon"
	"github.com/flexprice/billingcore/internal/domain/invoice"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// CouponService attaches coupons to customers and redeems them on invoices
type CouponService interface {
	ApplyCouponToCustomer(ctx context.Context, req *dto.ApplyCouponRequest) (*coupon.AppliedCoupon, error)
	// ApplyToInvoice computes the coupon lines for an invoice whose running total is
	// base and consumes one use of every coupon that produced a discount. It must run
	// inside the caller's transaction.
	ApplyToInvoice(ctx context.Context, customerID, subscriptionID string, base decimal.Decimal, currency string, now time.Time) ([]*invoice.LineItem, error)
}

type couponService struct {
	ServiceParams
}

func NewCouponService(params ServiceParams) CouponService {
	return &couponService{ServiceParams: params}
}

func (s *couponService) ApplyCouponToCustomer(ctx context.Context, req *dto.ApplyCouponRequest) (*coupon.AppliedCoupon, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.CustomerRepo.Get(ctx, req.CustomerID); err != nil {
		return nil, err
	}
	if req.SubscriptionID != nil {
		sub, err := s.SubRepo.Get(ctx, *req.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if sub.CustomerID != req.CustomerID {
			return nil, ierr.NewError("subscription belongs to another customer").
				WithHint("The coupon can only be scoped to one of the customer's subscriptions").
				WithReportableDetails(map[string]any{
					"subscription_id": sub.ID,
					"customer_id":     req.CustomerID,
				}).
				Mark(ierr.ErrValidation)
		}
	}

	var applied *coupon.AppliedCoupon
	now := time.Now().UTC()

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		// the coupon row lock serialises concurrent redemptions against max_redemptions
		c, err := s.CouponRepo.GetCouponForUpdate(ctx, req.CouponID)
		if err != nil {
			return err
		}

		if c.CouponStatus != types.CouponStatusActive || c.IsExpired(now) {
			return ierr.NewError("coupon is not active").
				WithHint("The coupon has expired or was terminated").
				WithReportableDetails(map[string]any{"coupon_id": c.ID}).
				Mark(ierr.ErrInvalidOperation)
		}
		if !c.IsRedeemable(now) {
			return ierr.NewError("coupon redemption limit reached").
				WithHint("The coupon has no redemptions left").
				WithReportableDetails(map[string]any{
					"coupon_id":       c.ID,
					"max_redemptions": lo.FromPtr(c.MaxRedemptions),
				}).
				Mark(ierr.ErrAlreadyExists)
		}

		existing, err := s.CouponRepo.FindApplied(ctx, c.ID, req.CustomerID, req.SubscriptionID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ierr.NewError("coupon already applied").
				WithHint("The coupon is already applied to this customer").
				WithReportableDetails(map[string]any{"applied_coupon_id": existing.ID}).
				Mark(ierr.ErrAlreadyExists)
		}

		applied = &coupon.AppliedCoupon{
			ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_APPLIED_COUPON),
			CouponID:       c.ID,
			CustomerID:     req.CustomerID,
			SubscriptionID: req.SubscriptionID,
			BaseModel:      types.GetDefaultBaseModel(ctx),
		}
		if c.UsesPerApplication != nil {
			applied.UsesRemaining = lo.ToPtr(*c.UsesPerApplication)
		}
		if err := s.CouponRepo.CreateApplied(ctx, applied); err != nil {
			return err
		}

		c.TimesRedeemed++
		return s.CouponRepo.UpdateCoupon(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("coupon applied to customer",
		"coupon_id", applied.CouponID,
		"customer_id", applied.CustomerID,
		"applied_coupon_id", applied.ID)

	return applied, nil
}

func (s *couponService) ApplyToInvoice(
	ctx context.Context,
	customerID, subscriptionID string,
	base decimal.Decimal,
	currency string,
	now time.Time,
) ([]*invoice.LineItem, error) {
	if !base.IsPositive() {
		return nil, nil
	}

	applications, err := s.CouponRepo.ListAppliedForUpdate(ctx, customerID, subscriptionID)
	if err != nil {
		return nil, err
	}

	var lines []*invoice.LineItem
	remaining := base

	for _, ac := range applications {
		if !ac.HasUsesRemaining() {
			continue
		}
		c, err := s.CouponRepo.GetCoupon(ctx, ac.CouponID)
		if err != nil {
			return nil, err
		}
		if c.CouponStatus != types.CouponStatusActive || c.IsExpired(now) {
			continue
		}

		// every coupon discounts the same pre-coupon base; the sum never exceeds it
		discount := types.RoundToCurrencyPrecision(c.Discount(base, currency), currency)
		discount = decimal.Min(discount, remaining)
		if !discount.IsPositive() {
			continue
		}
		remaining = remaining.Sub(discount)

		if err := s.consumeUse(ctx, ac); err != nil {
			return nil, err
		}

		name := c.Name
		if name == "" {
			name = c.Code
		}
		lines = append(lines, newLineItem(ctx, types.LineItemTypeCoupon, c.ID, name,
			decimal.NewFromInt(1), discount.Neg(), currency, nil, nil))
	}

	return lines, nil
}

// consumeUse decrements a limited application and removes it at zero
func (s *couponService) consumeUse(ctx context.Context, ac *coupon.AppliedCoupon) error {
	if ac.UsesRemaining == nil {
		return nil
	}
	left := *ac.UsesRemaining - 1
	if left <= 0 {
		return s.CouponRepo.DeleteApplied(ctx, ac.ID)
	}
	ac.UsesRemaining = &left
	return s.CouponRepo.UpdateApplied(ctx, ac)
}
