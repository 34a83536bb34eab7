package postgres

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/domain/invoice"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

const (
	invoiceColumns = `id, customer_id, subscription_id, invoice_number, invoice_kind, invoice_status,
	currency, amount, period_start, period_end, due_date, grace_period_ends_at, finalized_at, paid_at,
	idempotency_key, version,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

	lineItemColumns = `id, invoice_id, line_type, reference_id, display_name, units, quantity,
	unit_amount, amount, currency, period_start, period_end,
	tenant_id, status, created_at, updated_at, created_by, updated_by`
)

type invoiceRepository struct {
	base
}

func NewInvoiceRepository(db postgres.IClient, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{base{db: db, logger: logger}}
}

// Create stores the invoice and its line items in one transaction
func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	if inv.Version == 0 {
		inv.Version = 1
	}
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		query := `INSERT INTO invoices (` + invoiceColumns + `) VALUES (
			:id, :customer_id, :subscription_id, :invoice_number, :invoice_kind, :invoice_status,
			:currency, :amount, :period_start, :period_end, :due_date, :grace_period_ends_at, :finalized_at, :paid_at,
			:idempotency_key, :version,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`
		if _, err := r.namedExec(ctx, query, inv); err != nil {
			return writeError(err, "invoice")
		}
		return r.insertLineItems(ctx, inv.ID, inv.LineItems)
	})
}

func (r *invoiceRepository) insertLineItems(ctx context.Context, invoiceID string, items []*invoice.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	for _, li := range items {
		li.InvoiceID = invoiceID
	}
	query := `INSERT INTO invoice_line_items (` + lineItemColumns + `) VALUES (
		:id, :invoice_id, :line_type, :reference_id, :display_name, :units, :quantity,
		:unit_amount, :amount, :currency, :period_start, :period_end,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.namedExec(ctx, query, items); err != nil {
		return writeError(err, "invoice_line_item")
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.load(ctx, id, "")
}

func (r *invoiceRepository) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.load(ctx, id, " FOR UPDATE")
}

func (r *invoiceRepository) load(ctx context.Context, id, lock string) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	query := `SELECT ` + invoiceColumns + ` FROM invoices
		WHERE id = $1 AND tenant_id = $2 AND status = $3` + lock
	if err := r.get(ctx, &inv, query, id, types.GetTenantID(ctx), types.StatusPublished); err != nil {
		return nil, lookupError(err, "invoice", id)
	}
	if err := r.loadLineItems(ctx, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepository) loadLineItems(ctx context.Context, inv *invoice.Invoice) error {
	var items []*invoice.LineItem
	query := `SELECT ` + lineItemColumns + ` FROM invoice_line_items
		WHERE invoice_id = $1 AND tenant_id = $2 AND status = $3
		ORDER BY created_at, id`
	if err := r.selectAll(ctx, &items, query, inv.ID, types.GetTenantID(ctx), types.StatusPublished); err != nil {
		return listError(err, "invoice_line_items")
	}
	inv.LineItems = items
	return nil
}

func (r *invoiceRepository) GetByIdempotencyKey(ctx context.Context, key string) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE idempotency_key = $1 AND tenant_id = $2`
	err := r.get(ctx, &inv, query, key, types.GetTenantID(ctx))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, lookupError(err, "invoice", key)
	}
	if err := r.loadLineItems(ctx, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	inv.UpdatedAt = time.Now().UTC()
	inv.UpdatedBy = types.GetActor(ctx)

	query := `UPDATE invoices SET
			invoice_status = :invoice_status,
			amount = :amount,
			due_date = :due_date,
			grace_period_ends_at = :grace_period_ends_at,
			finalized_at = :finalized_at,
			paid_at = :paid_at,
			version = version + 1,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id AND version = :version`
	res, err := r.namedExec(ctx, query, inv)
	if err != nil {
		return writeError(err, "invoice")
	}
	if err := expectOneRow(res, "invoice", inv.ID); err != nil {
		return err
	}
	inv.Version++
	return nil
}

func (r *invoiceRepository) AddLineItems(ctx context.Context, invoiceID string, items []*invoice.LineItem) error {
	return r.insertLineItems(ctx, invoiceID, items)
}

func (r *invoiceRepository) ListDraftsPastGrace(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	query := `SELECT id FROM invoices
		WHERE tenant_id = $1 AND status = $2 AND invoice_status = $3 AND grace_period_ends_at <= $4
		ORDER BY grace_period_ends_at
		LIMIT $5`
	err := r.selectAll(ctx, &ids, query,
		types.GetTenantID(ctx), types.StatusPublished, types.InvoiceStatusDraft, now, limit)
	if err != nil {
		return nil, listError(err, "invoices")
	}
	return ids, nil
}

func (r *invoiceRepository) SumProgressiveUsage(ctx context.Context, subscriptionID string, periodStart, periodEnd time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `SELECT COALESCE(SUM(li.amount), 0) FROM invoice_line_items li
		JOIN invoices i ON i.id = li.invoice_id
		WHERE i.tenant_id = $1
		AND i.subscription_id = $2
		AND i.invoice_kind = $3
		AND i.invoice_status <> $4
		AND i.period_start >= $5
		AND i.period_start < $6
		AND li.line_type = $7
		AND li.status = $8`
	err := r.get(ctx, &total, query,
		types.GetTenantID(ctx),
		subscriptionID,
		types.InvoiceKindProgressive,
		types.InvoiceStatusCanceled,
		periodStart,
		periodEnd,
		types.LineItemTypeUsage,
		types.StatusPublished,
	)
	if err != nil {
		return decimal.Zero, lookupError(err, "invoice", subscriptionID)
	}
	return total, nil
}
