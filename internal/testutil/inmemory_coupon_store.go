package testutil

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/addon"
	"github.com/flexprice/billingcore/internal/domain/coupon"
	"github.com/samber/lo"
)

// InMemoryCouponStore implements coupon.Repository
type InMemoryCouponStore struct {
	coupons *InMemoryStore[*coupon.Coupon]
	applied *InMemoryStore[*coupon.AppliedCoupon]
}

func NewInMemoryCouponStore() *InMemoryCouponStore {
	return &InMemoryCouponStore{
		coupons: NewInMemoryStore(copyOf[coupon.Coupon]),
		applied: NewInMemoryStore(copyApplied),
	}
}

func copyApplied(a *coupon.AppliedCoupon) *coupon.AppliedCoupon {
	c := *a
	if a.UsesRemaining != nil {
		c.UsesRemaining = lo.ToPtr(*a.UsesRemaining)
	}
	return &c
}

func (s *InMemoryCouponStore) CreateCoupon(ctx context.Context, c *coupon.Coupon) error {
	return s.coupons.Create(ctx, c.ID, c)
}

func (s *InMemoryCouponStore) GetCoupon(ctx context.Context, id string) (*coupon.Coupon, error) {
	return s.coupons.Get(ctx, id)
}

func (s *InMemoryCouponStore) GetCouponForUpdate(ctx context.Context, id string) (*coupon.Coupon, error) {
	return s.coupons.Get(ctx, id)
}

func (s *InMemoryCouponStore) UpdateCoupon(ctx context.Context, c *coupon.Coupon) error {
	return s.coupons.Update(ctx, c.ID, c)
}

func (s *InMemoryCouponStore) CreateApplied(ctx context.Context, a *coupon.AppliedCoupon) error {
	return s.applied.Create(ctx, a.ID, a)
}

func (s *InMemoryCouponStore) FindApplied(ctx context.Context, couponID, customerID string, subscriptionID *string) (*coupon.AppliedCoupon, error) {
	found := s.applied.List(ctx, func(a *coupon.AppliedCoupon) bool {
		return a.CouponID == couponID && a.CustomerID == customerID &&
			lo.FromPtr(a.SubscriptionID) == lo.FromPtr(subscriptionID)
	})
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (s *InMemoryCouponStore) ListAppliedForUpdate(ctx context.Context, customerID, subscriptionID string) ([]*coupon.AppliedCoupon, error) {
	return s.applied.List(ctx, func(a *coupon.AppliedCoupon) bool {
		return a.CustomerID == customerID &&
			(a.SubscriptionID == nil || *a.SubscriptionID == subscriptionID)
	}), nil
}

func (s *InMemoryCouponStore) UpdateApplied(ctx context.Context, a *coupon.AppliedCoupon) error {
	return s.applied.Update(ctx, a.ID, a)
}

func (s *InMemoryCouponStore) DeleteApplied(ctx context.Context, id string) error {
	return s.applied.Delete(ctx, id)
}

// Applied returns every application of the tenant
func (s *InMemoryCouponStore) Applied(ctx context.Context) []*coupon.AppliedCoupon {
	return s.applied.List(ctx, nil)
}

func (s *InMemoryCouponStore) Clear() {
	s.coupons.Clear()
	s.applied.Clear()
}

// InMemoryAddOnStore implements addon.Repository
type InMemoryAddOnStore struct {
	*InMemoryStore[*addon.AddOnCharge]
}

func NewInMemoryAddOnStore() *InMemoryAddOnStore {
	return &InMemoryAddOnStore{NewInMemoryStore(copyOf[addon.AddOnCharge])}
}

func (s *InMemoryAddOnStore) Create(ctx context.Context, a *addon.AddOnCharge) error {
	return s.InMemoryStore.Create(ctx, a.ID, a)
}

func (s *InMemoryAddOnStore) ListUnbilledForUpdate(ctx context.Context, subscriptionID, currency string) ([]*addon.AddOnCharge, error) {
	return s.List(ctx, func(a *addon.AddOnCharge) bool {
		return a.SubscriptionID == subscriptionID && a.Currency == currency && a.InvoiceID == nil
	}), nil
}

func (s *InMemoryAddOnStore) MarkInvoiced(ctx context.Context, ids []string, invoiceID string) error {
	for _, id := range ids {
		a, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		a.InvoiceID = lo.ToPtr(invoiceID)
		if err := s.Update(ctx, id, a); err != nil {
			return err
		}
	}
	return nil
}
