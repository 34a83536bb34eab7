package postgres

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/addon"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/lib/pq"
)

const addonColumns = `id, customer_id, subscription_id, name, amount, currency, invoice_id,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

type addonRepository struct {
	base
}

func NewAddonRepository(db postgres.IClient, logger *logger.Logger) addon.Repository {
	return &addonRepository{base{db: db, logger: logger}}
}

func (r *addonRepository) Create(ctx context.Context, a *addon.AddOnCharge) error {
	query := `INSERT INTO addon_charges (` + addonColumns + `) VALUES (
		:id, :customer_id, :subscription_id, :name, :amount, :currency, :invoice_id,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.namedExec(ctx, query, a); err != nil {
		return writeError(err, "addon_charge")
	}
	return nil
}

func (r *addonRepository) ListUnbilledForUpdate(ctx context.Context, subscriptionID, currency string) ([]*addon.AddOnCharge, error) {
	var out []*addon.AddOnCharge
	query := `SELECT ` + addonColumns + ` FROM addon_charges
		WHERE subscription_id = $1 AND currency = $2 AND invoice_id IS NULL
		AND tenant_id = $3 AND status = $4
		ORDER BY created_at, id
		FOR UPDATE`
	err := r.selectAll(ctx, &out, query, subscriptionID, types.NormalizeCurrency(currency),
		types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		return nil, listError(err, "addon_charges")
	}
	return out, nil
}

func (r *addonRepository) MarkInvoiced(ctx context.Context, ids []string, invoiceID string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE addon_charges SET invoice_id = $1, updated_at = NOW()
		WHERE id = ANY($2) AND tenant_id = $3 AND invoice_id IS NULL`
	res, err := r.exec(ctx, query, invoiceID, pq.Array(ids), types.GetTenantID(ctx))
	if err != nil {
		return writeError(err, "addon_charge")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return writeError(err, "addon_charge")
	}
	if int(n) != len(ids) {
		return ierr.NewError("add-on charges were invoiced concurrently").
			WithHint("Reload and retry the operation").
			WithReportableDetails(map[string]interface{}{
				"invoice_id": invoiceID,
				"expected":   len(ids),
				"updated":    n,
			}).
			Mark(ierr.ErrVersionConflict)
	}
	return nil
}
