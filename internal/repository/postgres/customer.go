package postgres

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/customer"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
)

const customerColumns = `id, external_id, name, email, provider_customer_ref, metadata,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

type customerRepository struct {
	base
}

func NewCustomerRepository(db postgres.IClient, logger *logger.Logger) customer.Repository {
	return &customerRepository{base{db: db, logger: logger}}
}

func (r *customerRepository) Create(ctx context.Context, c *customer.Customer) error {
	query := `INSERT INTO customers (` + customerColumns + `) VALUES (
		:id, :external_id, :name, :email, :provider_customer_ref, :metadata,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`

	if _, err := r.namedExec(ctx, query, c); err != nil {
		return writeError(err, "customer")
	}
	return nil
}

func (r *customerRepository) Get(ctx context.Context, id string) (*customer.Customer, error) {
	var c customer.Customer
	query := `SELECT ` + customerColumns + ` FROM customers
		WHERE id = $1 AND tenant_id = $2 AND status = $3`
	if err := r.get(ctx, &c, query, id, types.GetTenantID(ctx), types.StatusPublished); err != nil {
		return nil, lookupError(err, "customer", id)
	}
	return &c, nil
}
