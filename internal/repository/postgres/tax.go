package postgres

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/tax"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
)

const (
	taxColumns = `id, name, code, rate, applied_by_default,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

	taxAssignmentColumns = `id, tax_id, scope, entity_id,
	tenant_id, status, created_at, updated_at, created_by, updated_by`
)

type taxRepository struct {
	base
}

func NewTaxRepository(db postgres.IClient, logger *logger.Logger) tax.Repository {
	return &taxRepository{base{db: db, logger: logger}}
}

func (r *taxRepository) CreateTax(ctx context.Context, t *tax.Tax) error {
	query := `INSERT INTO taxes (` + taxColumns + `) VALUES (
		:id, :name, :code, :rate, :applied_by_default,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.namedExec(ctx, query, t); err != nil {
		return writeError(err, "tax")
	}
	return nil
}

func (r *taxRepository) CreateAssignment(ctx context.Context, a *tax.Assignment) error {
	query := `INSERT INTO tax_assignments (` + taxAssignmentColumns + `) VALUES (
		:id, :tax_id, :scope, :entity_id,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.namedExec(ctx, query, a); err != nil {
		return writeError(err, "tax_assignment")
	}
	return nil
}

func (r *taxRepository) ListAssigned(ctx context.Context, scope types.TaxScope, entityID string) ([]*tax.Tax, error) {
	var out []*tax.Tax
	query := `SELECT t.id, t.name, t.code, t.rate, t.applied_by_default,
			t.tenant_id, t.status, t.created_at, t.updated_at, t.created_by, t.updated_by
		FROM taxes t
		JOIN tax_assignments a ON a.tax_id = t.id AND a.tenant_id = t.tenant_id
		WHERE a.scope = $1 AND a.entity_id = $2
		AND t.tenant_id = $3 AND t.status = $4 AND a.status = $4
		ORDER BY t.code`
	if err := r.selectAll(ctx, &out, query, scope, entityID, types.GetTenantID(ctx), types.StatusPublished); err != nil {
		return nil, listError(err, "taxes")
	}
	return out, nil
}

func (r *taxRepository) ListDefaults(ctx context.Context) ([]*tax.Tax, error) {
	var out []*tax.Tax
	query := `SELECT ` + taxColumns + ` FROM taxes
		WHERE applied_by_default AND tenant_id = $1 AND status = $2
		ORDER BY code`
	if err := r.selectAll(ctx, &out, query, types.GetTenantID(ctx), types.StatusPublished); err != nil {
		return nil, listError(err, "taxes")
	}
	return out, nil
}
