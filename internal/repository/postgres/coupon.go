package postgres

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/domain/coupon"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
)

const (
	couponColumns = `id, code, name, discount_type, value, currency, max_redemptions, times_redeemed,
	uses_per_application, expires_at, coupon_status,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

	appliedCouponColumns = `id, coupon_id, customer_id, subscription_id, uses_remaining,
	tenant_id, status, created_at, updated_at, created_by, updated_by`
)

type couponRepository struct {
	base
}

func NewCouponRepository(db postgres.IClient, logger *logger.Logger) coupon.Repository {
	return &couponRepository{base{db: db, logger: logger}}
}

func (r *couponRepository) CreateCoupon(ctx context.Context, c *coupon.Coupon) error {
	query := `INSERT INTO coupons (` + couponColumns + `) VALUES (
		:id, :code, :name, :discount_type, :value, :currency, :max_redemptions, :times_redeemed,
		:uses_per_application, :expires_at, :coupon_status,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.namedExec(ctx, query, c); err != nil {
		return writeError(err, "coupon")
	}
	return nil
}

func (r *couponRepository) GetCoupon(ctx context.Context, id string) (*coupon.Coupon, error) {
	return r.loadCoupon(ctx, id, "")
}

func (r *couponRepository) GetCouponForUpdate(ctx context.Context, id string) (*coupon.Coupon, error) {
	return r.loadCoupon(ctx, id, " FOR UPDATE")
}

func (r *couponRepository) loadCoupon(ctx context.Context, id, lock string) (*coupon.Coupon, error) {
	var c coupon.Coupon
	query := `SELECT ` + couponColumns + ` FROM coupons
		WHERE id = $1 AND tenant_id = $2 AND status = $3` + lock
	if err := r.get(ctx, &c, query, id, types.GetTenantID(ctx), types.StatusPublished); err != nil {
		return nil, lookupError(err, "coupon", id)
	}
	return &c, nil
}

func (r *couponRepository) UpdateCoupon(ctx context.Context, c *coupon.Coupon) error {
	c.UpdatedAt = time.Now().UTC()
	query := `UPDATE coupons SET
			times_redeemed = :times_redeemed,
			coupon_status = :coupon_status,
			updated_at = :updated_at
		WHERE id = :id AND tenant_id = :tenant_id`
	res, err := r.namedExec(ctx, query, c)
	if err != nil {
		return writeError(err, "coupon")
	}
	return expectFound(res, "coupon", c.ID)
}

func (r *couponRepository) CreateApplied(ctx context.Context, a *coupon.AppliedCoupon) error {
	query := `INSERT INTO applied_coupons (` + appliedCouponColumns + `) VALUES (
		:id, :coupon_id, :customer_id, :subscription_id, :uses_remaining,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.namedExec(ctx, query, a); err != nil {
		return writeError(err, "applied_coupon")
	}
	return nil
}

func (r *couponRepository) FindApplied(ctx context.Context, couponID, customerID string, subscriptionID *string) (*coupon.AppliedCoupon, error) {
	var a coupon.AppliedCoupon
	query := `SELECT ` + appliedCouponColumns + ` FROM applied_coupons
		WHERE coupon_id = $1 AND customer_id = $2
		AND subscription_id IS NOT DISTINCT FROM $3
		AND tenant_id = $4 AND status = $5`
	err := r.get(ctx, &a, query, couponID, customerID, subscriptionID, types.GetTenantID(ctx), types.StatusPublished)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, lookupError(err, "applied_coupon", couponID)
	}
	return &a, nil
}

func (r *couponRepository) ListAppliedForUpdate(ctx context.Context, customerID, subscriptionID string) ([]*coupon.AppliedCoupon, error) {
	var out []*coupon.AppliedCoupon
	query := `SELECT ` + appliedCouponColumns + ` FROM applied_coupons
		WHERE customer_id = $1
		AND (subscription_id IS NULL OR subscription_id = $2)
		AND tenant_id = $3 AND status = $4
		ORDER BY created_at, id
		FOR UPDATE`
	if err := r.selectAll(ctx, &out, query, customerID, subscriptionID, types.GetTenantID(ctx), types.StatusPublished); err != nil {
		return nil, listError(err, "applied_coupons")
	}
	return out, nil
}

func (r *couponRepository) UpdateApplied(ctx context.Context, a *coupon.AppliedCoupon) error {
	a.UpdatedAt = time.Now().UTC()
	query := `UPDATE applied_coupons SET
			uses_remaining = :uses_remaining,
			updated_at = :updated_at
		WHERE id = :id AND tenant_id = :tenant_id`
	res, err := r.namedExec(ctx, query, a)
	if err != nil {
		return writeError(err, "applied_coupon")
	}
	return expectFound(res, "applied_coupon", a.ID)
}

func (r *couponRepository) DeleteApplied(ctx context.Context, id string) error {
	res, err := r.exec(ctx, `DELETE FROM applied_coupons WHERE id = $1 AND tenant_id = $2`, id, types.GetTenantID(ctx))
	if err != nil {
		return writeError(err, "applied_coupon")
	}
	return expectFound(res, "applied_coupon", id)
}
