package postgres

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/connection"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
)

const connectionColumns = `id, provider, encrypted_secret_key, encrypted_webhook_secret, active,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

type connectionRepository struct {
	base
}

func NewConnectionRepository(db postgres.IClient, logger *logger.Logger) connection.Repository {
	return &connectionRepository{base{db: db, logger: logger}}
}

func (r *connectionRepository) Create(ctx context.Context, c *connection.ProviderConnection) error {
	query := `INSERT INTO provider_connections (` + connectionColumns + `) VALUES (
		:id, :provider, :encrypted_secret_key, :encrypted_webhook_secret, :active,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.namedExec(ctx, query, c); err != nil {
		return writeError(err, "provider_connection")
	}
	return nil
}

func (r *connectionRepository) GetActive(ctx context.Context, provider types.ProviderType) (*connection.ProviderConnection, error) {
	var c connection.ProviderConnection
	query := `SELECT ` + connectionColumns + ` FROM provider_connections
		WHERE provider = $1 AND active AND tenant_id = $2 AND status = $3`
	err := r.get(ctx, &c, query, provider, types.GetTenantID(ctx), types.StatusPublished)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, lookupError(err, "provider_connection", string(provider))
	}
	return &c, nil
}
