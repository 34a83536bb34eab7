package service

import (
	"context"
	"testing"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/domain/coupon"
	"github.com/flexprice/billingcore/internal/domain/customer"
	"github.com/flexprice/billingcore/internal/domain/invoice"
	"github.com/flexprice/billingcore/internal/domain/subscription"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type CouponServiceSuite struct {
	billingFixtures
	service CouponService
}

func TestCouponService(t *testing.T) {
	suite.Run(t, new(CouponServiceSuite))
}

func (s *CouponServiceSuite) SetupTest() {
	s.billingFixtures.SetupTest()
	s.service = NewCouponService(s.params)
	s.NoError(s.GetStores().CouponRepo.CreateCoupon(s.GetContext(), &coupon.Coupon{
		ID:             "cpn_launch",
		Code:           "LAUNCH",
		DiscountType:   types.DiscountTypeFixedAmount,
		Value:          dec("30"),
		Currency:       lo.ToPtr("usd"),
		MaxRedemptions: lo.ToPtr(1),
		CouponStatus:   types.CouponStatusActive,
		BaseModel:      types.GetDefaultBaseModel(s.GetContext()),
	}))
	s.NoError(s.GetStores().CouponRepo.CreateCoupon(s.GetContext(), &coupon.Coupon{
		ID:           "cpn_half",
		Code:         "HALF",
		DiscountType: types.DiscountTypePercentage,
		Value:        dec("50"),
		CouponStatus: types.CouponStatusActive,
		BaseModel:    types.GetDefaultBaseModel(s.GetContext()),
	}))
}

func (s *CouponServiceSuite) apply(couponID, customerID string) error {
	_, err := s.service.ApplyCouponToCustomer(s.GetContext(), &dto.ApplyCouponRequest{
		CouponID:   couponID,
		CustomerID: customerID,
	})
	return err
}

func (s *CouponServiceSuite) TestRedemptionLimit() {
	other := &customer.Customer{
		ID:        "cust_other",
		Email:     "ops@other.test",
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().CustomerRepo.Create(s.GetContext(), other))

	s.NoError(s.apply("cpn_launch", s.customer.ID))
	s.True(ierr.IsAlreadyExists(s.apply("cpn_launch", s.customer.ID)))
	s.True(ierr.IsAlreadyExists(s.apply("cpn_launch", other.ID)))

	c, err := s.GetStores().CouponRepo.GetCoupon(s.GetContext(), "cpn_launch")
	s.NoError(err)
	s.Equal(1, c.TimesRedeemed)
}

func (s *CouponServiceSuite) TestScopedToAnotherCustomersSubscription() {
	s.createPlan("plan_basic", "49.00")
	s.createSubscription("sub_basic", "plan_basic", func(sub *subscription.Subscription) {
		sub.CustomerID = "cust_someone_else"
	})

	_, err := s.service.ApplyCouponToCustomer(s.GetContext(), &dto.ApplyCouponRequest{
		CouponID:       "cpn_half",
		CustomerID:     s.customer.ID,
		SubscriptionID: lo.ToPtr("sub_basic"),
	})
	s.True(ierr.Is(err, ierr.ErrValidation))
}

func (s *CouponServiceSuite) TestDiscountsNeverExceedBase() {
	s.NoError(s.apply("cpn_launch", s.customer.ID))
	s.NoError(s.apply("cpn_half", s.customer.ID))

	var lines []string
	err := s.GetDB().WithTx(s.GetContext(), func(ctx context.Context) error {
		items, err := s.service.ApplyToInvoice(ctx, s.customer.ID, "sub_basic", dec("40"), "usd", s.GetNow())
		lines = lo.Map(items, func(li *invoice.LineItem, _ int) string {
			return li.ReferenceID + ":" + li.Amount.String()
		})
		return err
	})
	s.NoError(err)
	// both discount the same base of 40, the second is capped at what is left
	s.Equal([]string{"cpn_launch:-30", "cpn_half:-10"}, lines)

	items, err := s.service.ApplyToInvoice(s.GetContext(), s.customer.ID, "sub_basic", dec("40"), "eur", s.GetNow())
	s.NoError(err)
	s.Require().Len(items, 1)
	s.Equal("cpn_half", items[0].ReferenceID)
}
