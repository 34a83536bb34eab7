package postgres

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/meter"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
)

const meterColumns = `id, code, name, aggregation_type, field_name,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

type meterRepository struct {
	base
}

func NewMeterRepository(db postgres.IClient, logger *logger.Logger) meter.Repository {
	return &meterRepository{base{db: db, logger: logger}}
}

func (r *meterRepository) Create(ctx context.Context, m *meter.BillableMetric) error {
	query := `INSERT INTO billable_metrics (` + meterColumns + `) VALUES (
		:id, :code, :name, :aggregation_type, :field_name,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`

	if _, err := r.namedExec(ctx, query, m); err != nil {
		return writeError(err, "billable_metric")
	}
	return nil
}

func (r *meterRepository) Get(ctx context.Context, id string) (*meter.BillableMetric, error) {
	var m meter.BillableMetric
	query := `SELECT ` + meterColumns + ` FROM billable_metrics
		WHERE id = $1 AND tenant_id = $2 AND status = $3`
	if err := r.get(ctx, &m, query, id, types.GetTenantID(ctx), types.StatusPublished); err != nil {
		return nil, lookupError(err, "billable_metric", id)
	}
	return &m, nil
}

func (r *meterRepository) GetByCode(ctx context.Context, code string) (*meter.BillableMetric, error) {
	var m meter.BillableMetric
	query := `SELECT ` + meterColumns + ` FROM billable_metrics
		WHERE code = $1 AND tenant_id = $2 AND status = $3`
	if err := r.get(ctx, &m, query, code, types.GetTenantID(ctx), types.StatusPublished); err != nil {
		return nil, lookupError(err, "billable_metric", code)
	}
	return &m, nil
}
