package postgres

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/domain/settings"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
)

const settingsColumns = `grace_period_days, net_term_days, dunning_max_attempts, billing_email,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

type settingsRepository struct {
	base
}

func NewSettingsRepository(db postgres.IClient, logger *logger.Logger) settings.Repository {
	return &settingsRepository{base{db: db, logger: logger}}
}

func (r *settingsRepository) Get(ctx context.Context) (*settings.BillingSettings, error) {
	var s settings.BillingSettings
	query := `SELECT ` + settingsColumns + ` FROM billing_settings WHERE tenant_id = $1 AND status = $2`
	err := r.get(ctx, &s, query, types.GetTenantID(ctx), types.StatusPublished)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, lookupError(err, "billing_settings", types.GetTenantID(ctx))
	}
	return &s, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, s *settings.BillingSettings) error {
	s.UpdatedAt = time.Now().UTC()
	query := `INSERT INTO billing_settings (` + settingsColumns + `) VALUES (
		:grace_period_days, :net_term_days, :dunning_max_attempts, :billing_email,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)
		ON CONFLICT (tenant_id) DO UPDATE SET
			grace_period_days = EXCLUDED.grace_period_days,
			net_term_days = EXCLUDED.net_term_days,
			dunning_max_attempts = EXCLUDED.dunning_max_attempts,
			billing_email = EXCLUDED.billing_email,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by`
	if _, err := r.namedExec(ctx, query, s); err != nil {
		return writeError(err, "billing_settings")
	}
	return nil
}
