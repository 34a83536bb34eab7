package postgres

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/override"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
)

const overrideColumns = `id, customer_id, plan_id, prices, minimum_commitment, charges,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

type overrideRepository struct {
	base
}

func NewOverrideRepository(db postgres.IClient, logger *logger.Logger) override.Repository {
	return &overrideRepository{base{db: db, logger: logger}}
}

func (r *overrideRepository) Create(ctx context.Context, o *override.PlanOverride) error {
	query := `INSERT INTO plan_overrides (` + overrideColumns + `) VALUES (
		:id, :customer_id, :plan_id, :prices, :minimum_commitment, :charges,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.namedExec(ctx, query, o); err != nil {
		return writeError(err, "plan_override")
	}
	return nil
}

func (r *overrideRepository) GetByCustomerAndPlan(ctx context.Context, customerID, planID string) (*override.PlanOverride, error) {
	var o override.PlanOverride
	query := `SELECT ` + overrideColumns + ` FROM plan_overrides
		WHERE customer_id = $1 AND plan_id = $2 AND tenant_id = $3 AND status = $4`
	err := r.get(ctx, &o, query, customerID, planID, types.GetTenantID(ctx), types.StatusPublished)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, lookupError(err, "plan_override", customerID)
	}
	return &o, nil
}
