package postgres

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/domain/payment"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
)

const (
	paymentColumns = `id, invoice_id, customer_id, amount, currency, payment_status, provider,
	provider_txn_id, payment_method_id, failure_reason, refunded_amount,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

	paymentRetryColumns = `id, invoice_id, subscription_id, attempt_number, max_attempts,
	next_retry_at, retry_status, last_error,
	tenant_id, status, created_at, updated_at, created_by, updated_by`
)

type paymentRepository struct {
	base
}

func NewPaymentRepository(db postgres.IClient, logger *logger.Logger) payment.Repository {
	return &paymentRepository{base{db: db, logger: logger}}
}

func (r *paymentRepository) CreatePayment(ctx context.Context, p *payment.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `) VALUES (
		:id, :invoice_id, :customer_id, :amount, :currency, :payment_status, :provider,
		:provider_txn_id, :payment_method_id, :failure_reason, :refunded_amount,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.namedExec(ctx, query, p); err != nil {
		return writeError(err, "payment")
	}
	return nil
}

func (r *paymentRepository) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	var p payment.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 AND tenant_id = $2 AND status = $3`
	if err := r.get(ctx, &p, query, id, types.GetTenantID(ctx), types.StatusPublished); err != nil {
		return nil, lookupError(err, "payment", id)
	}
	return &p, nil
}

func (r *paymentRepository) GetByProviderTxnID(ctx context.Context, providerTxnID string) (*payment.Payment, error) {
	var p payment.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE provider_txn_id = $1 AND tenant_id = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1`
	err := r.get(ctx, &p, query, providerTxnID, types.GetTenantID(ctx), types.StatusPublished)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, lookupError(err, "payment", providerTxnID)
	}
	return &p, nil
}

func (r *paymentRepository) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	p.UpdatedAt = time.Now().UTC()
	query := `UPDATE payments SET
			payment_status = :payment_status,
			provider_txn_id = :provider_txn_id,
			failure_reason = :failure_reason,
			refunded_amount = :refunded_amount,
			updated_at = :updated_at
		WHERE id = :id AND tenant_id = :tenant_id`
	res, err := r.namedExec(ctx, query, p)
	if err != nil {
		return writeError(err, "payment")
	}
	return expectFound(res, "payment", p.ID)
}

func (r *paymentRepository) CreateRetry(ctx context.Context, pr *payment.PaymentRetry) error {
	query := `INSERT INTO payment_retries (` + paymentRetryColumns + `) VALUES (
		:id, :invoice_id, :subscription_id, :attempt_number, :max_attempts,
		:next_retry_at, :retry_status, :last_error,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.namedExec(ctx, query, pr); err != nil {
		return writeError(err, "payment_retry")
	}
	return nil
}

func (r *paymentRepository) GetRetry(ctx context.Context, id string) (*payment.PaymentRetry, error) {
	var pr payment.PaymentRetry
	query := `SELECT ` + paymentRetryColumns + ` FROM payment_retries WHERE id = $1 AND tenant_id = $2 AND status = $3`
	if err := r.get(ctx, &pr, query, id, types.GetTenantID(ctx), types.StatusPublished); err != nil {
		return nil, lookupError(err, "payment_retry", id)
	}
	return &pr, nil
}

func (r *paymentRepository) GetActiveRetryForInvoice(ctx context.Context, invoiceID string) (*payment.PaymentRetry, error) {
	var pr payment.PaymentRetry
	query := `SELECT ` + paymentRetryColumns + ` FROM payment_retries
		WHERE invoice_id = $1 AND retry_status = $2 AND tenant_id = $3 AND status = $4`
	err := r.get(ctx, &pr, query, invoiceID, types.PaymentRetryStatusPending, types.GetTenantID(ctx), types.StatusPublished)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, lookupError(err, "payment_retry", invoiceID)
	}
	return &pr, nil
}

func (r *paymentRepository) UpdateRetry(ctx context.Context, pr *payment.PaymentRetry, expectedAttempt int) error {
	pr.UpdatedAt = time.Now().UTC()
	query := `UPDATE payment_retries SET
			attempt_number = $1,
			next_retry_at = $2,
			retry_status = $3,
			last_error = $4,
			updated_at = $5
		WHERE id = $6 AND tenant_id = $7 AND attempt_number = $8 AND retry_status = $9`
	res, err := r.exec(ctx, query,
		pr.AttemptNumber, pr.NextRetryAt, pr.RetryStatus, pr.LastError, pr.UpdatedAt,
		pr.ID, types.GetTenantID(ctx), expectedAttempt, types.PaymentRetryStatusPending)
	if err != nil {
		return writeError(err, "payment_retry")
	}
	return expectOneRow(res, "payment_retry", pr.ID)
}

func (r *paymentRepository) ListDueRetryIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	query := `SELECT id FROM payment_retries
		WHERE retry_status = $1 AND next_retry_at <= $2
		AND tenant_id = $3 AND status = $4
		ORDER BY next_retry_at
		LIMIT $5`
	err := r.selectAll(ctx, &ids, query, types.PaymentRetryStatusPending, now,
		types.GetTenantID(ctx), types.StatusPublished, limit)
	if err != nil {
		return nil, listError(err, "payment_retries")
	}
	return ids, nil
}
