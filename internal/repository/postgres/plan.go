package postgres

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/plan"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
)

const (
	planColumns = `id, name, billing_period, billing_period_count, grace_period_days,
	minimum_commitment, progressive_billing_threshold,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

	planPriceColumns = `id, plan_id, currency, amount,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

	chargeColumns = `id, plan_id, metric_id, charge_model, properties, graduated_ranges,
	min_amount, invoice_display_name,
	tenant_id, status, created_at, updated_at, created_by, updated_by`
)

type planRepository struct {
	base
}

func NewPlanRepository(db postgres.IClient, logger *logger.Logger) plan.Repository {
	return &planRepository{base{db: db, logger: logger}}
}

func (r *planRepository) CreatePlan(ctx context.Context, p *plan.Plan) error {
	query := `INSERT INTO plans (` + planColumns + `) VALUES (
		:id, :name, :billing_period, :billing_period_count, :grace_period_days,
		:minimum_commitment, :progressive_billing_threshold,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.namedExec(ctx, query, p); err != nil {
		return writeError(err, "plan")
	}
	return nil
}

func (r *planRepository) GetPlan(ctx context.Context, id string) (*plan.Plan, error) {
	var p plan.Plan
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1 AND tenant_id = $2 AND status = $3`
	if err := r.get(ctx, &p, query, id, types.GetTenantID(ctx), types.StatusPublished); err != nil {
		return nil, lookupError(err, "plan", id)
	}
	return &p, nil
}

func (r *planRepository) CreatePrice(ctx context.Context, p *plan.PlanPrice) error {
	query := `INSERT INTO plan_prices (` + planPriceColumns + `) VALUES (
		:id, :plan_id, :currency, :amount,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.namedExec(ctx, query, p); err != nil {
		return writeError(err, "plan_price")
	}
	return nil
}

func (r *planRepository) GetPrice(ctx context.Context, planID, currency string) (*plan.PlanPrice, error) {
	var p plan.PlanPrice
	query := `SELECT ` + planPriceColumns + ` FROM plan_prices
		WHERE plan_id = $1 AND currency = $2 AND tenant_id = $3 AND status = $4`
	err := r.get(ctx, &p, query, planID, types.NormalizeCurrency(currency), types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		return nil, lookupError(err, "plan_price", planID)
	}
	return &p, nil
}

func (r *planRepository) CreateCharge(ctx context.Context, c *plan.Charge) error {
	query := `INSERT INTO charges (` + chargeColumns + `) VALUES (
		:id, :plan_id, :metric_id, :charge_model, :properties, :graduated_ranges,
		:min_amount, :invoice_display_name,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.namedExec(ctx, query, c); err != nil {
		return writeError(err, "charge")
	}
	return nil
}

func (r *planRepository) ListCharges(ctx context.Context, planID string) ([]*plan.Charge, error) {
	var out []*plan.Charge
	query := `SELECT ` + chargeColumns + ` FROM charges
		WHERE plan_id = $1 AND tenant_id = $2 AND status = $3
		ORDER BY created_at, id`
	if err := r.selectAll(ctx, &out, query, planID, types.GetTenantID(ctx), types.StatusPublished); err != nil {
		return nil, listError(err, "charges")
	}
	return out, nil
}
