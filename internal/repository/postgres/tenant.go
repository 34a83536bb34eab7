package postgres

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/tenant"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
)

// tenantRepository reads the central directory, never a tenant schema
type tenantRepository struct {
	base
}

func NewTenantRepository(central *postgres.DB, logger *logger.Logger) tenant.Repository {
	return &tenantRepository{base{db: central, logger: logger}}
}

func (r *tenantRepository) Get(ctx context.Context, id string) (*tenant.Tenant, error) {
	var t tenant.Tenant
	query := `SELECT id, name, schema_name, status, created_at FROM tenants WHERE id = $1`
	if err := r.get(ctx, &t, query, id); err != nil {
		return nil, lookupError(err, "tenant", id)
	}
	return &t, nil
}

func (r *tenantRepository) ListActive(ctx context.Context) ([]*tenant.Tenant, error) {
	var out []*tenant.Tenant
	query := `SELECT id, name, schema_name, status, created_at FROM tenants
		WHERE status = $1 ORDER BY created_at`
	if err := r.selectAll(ctx, &out, query, types.StatusPublished); err != nil {
		return nil, listError(err, "tenants")
	}
	return out, nil
}
