package postgres

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/domain/wallet"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

const (
	walletColumns = `id, customer_id, currency, name, wallet_status, credits_balance, balance,
	rate_amount, expiration_at,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

	walletTransactionColumns = `id, wallet_id, type, transaction_status, amount, credit_amount,
	balance_after, invoice_id, description,
	tenant_id, status, created_at, updated_at, created_by, updated_by`
)

type walletRepository struct {
	base
}

func NewWalletRepository(db postgres.IClient, logger *logger.Logger) wallet.Repository {
	return &walletRepository{base{db: db, logger: logger}}
}

func (r *walletRepository) CreateWallet(ctx context.Context, w *wallet.Wallet) error {
	query := `INSERT INTO wallets (` + walletColumns + `) VALUES (
		:id, :customer_id, :currency, :name, :wallet_status, :credits_balance, :balance,
		:rate_amount, :expiration_at,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.namedExec(ctx, query, w); err != nil {
		return writeError(err, "wallet")
	}
	return nil
}

func (r *walletRepository) GetWalletByID(ctx context.Context, id string) (*wallet.Wallet, error) {
	return r.load(ctx, id, "")
}

func (r *walletRepository) GetWalletForUpdate(ctx context.Context, id string) (*wallet.Wallet, error) {
	return r.load(ctx, id, " FOR UPDATE")
}

func (r *walletRepository) load(ctx context.Context, id, lock string) (*wallet.Wallet, error) {
	var w wallet.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets
		WHERE id = $1 AND tenant_id = $2 AND status = $3` + lock

	r.logger.Debugw("getting wallet by id", "wallet_id", id, "tenant_id", types.GetTenantID(ctx))
	if err := r.get(ctx, &w, query, id, types.GetTenantID(ctx), types.StatusPublished); err != nil {
		return nil, lookupError(err, "wallet", id)
	}
	return &w, nil
}

func (r *walletRepository) ListActiveForUpdate(ctx context.Context, customerID, currency string) ([]*wallet.Wallet, error) {
	var out []*wallet.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets
		WHERE customer_id = $1 AND currency = $2 AND wallet_status = $3
		AND tenant_id = $4 AND status = $5
		ORDER BY created_at, id
		FOR UPDATE`
	err := r.selectAll(ctx, &out, query, customerID, types.NormalizeCurrency(currency),
		types.WalletStatusActive, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		return nil, listError(err, "wallets")
	}
	return out, nil
}

func (r *walletRepository) ListExpiredIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	query := `SELECT id FROM wallets
		WHERE wallet_status = $1 AND expiration_at <= $2
		AND tenant_id = $3 AND status = $4
		ORDER BY expiration_at
		LIMIT $5`
	err := r.selectAll(ctx, &ids, query, types.WalletStatusActive, now,
		types.GetTenantID(ctx), types.StatusPublished, limit)
	if err != nil {
		return nil, listError(err, "wallets")
	}
	return ids, nil
}

func (r *walletRepository) UpdateWalletBalance(ctx context.Context, walletID string, balance, creditsBalance decimal.Decimal) error {
	query := `UPDATE wallets SET
			balance = $1,
			credits_balance = $2,
			updated_at = NOW(),
			updated_by = $3
		WHERE id = $4 AND tenant_id = $5 AND status = $6`

	r.logger.Debugw("updating wallet balance",
		"wallet_id", walletID,
		"balance", balance,
		"credits_balance", creditsBalance,
	)
	res, err := r.exec(ctx, query, balance, creditsBalance, types.GetActor(ctx),
		walletID, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		return writeError(err, "wallet")
	}
	return expectFound(res, "wallet", walletID)
}

func (r *walletRepository) UpdateWalletStatus(ctx context.Context, walletID string, status types.WalletStatus) error {
	query := `UPDATE wallets SET
			wallet_status = $1,
			updated_at = NOW(),
			updated_by = $2
		WHERE id = $3 AND tenant_id = $4 AND status = $5`
	res, err := r.exec(ctx, query, status, types.GetActor(ctx), walletID, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		return writeError(err, "wallet")
	}
	return expectFound(res, "wallet", walletID)
}

func (r *walletRepository) CreateTransaction(ctx context.Context, tx *wallet.Transaction) error {
	query := `INSERT INTO wallet_transactions (` + walletTransactionColumns + `) VALUES (
		:id, :wallet_id, :type, :transaction_status, :amount, :credit_amount,
		:balance_after, :invoice_id, :description,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.namedExec(ctx, query, tx); err != nil {
		return writeError(err, "wallet_transaction")
	}
	return nil
}

func (r *walletRepository) ListTransactions(ctx context.Context, walletID string) ([]*wallet.Transaction, error) {
	var out []*wallet.Transaction
	query := `SELECT ` + walletTransactionColumns + ` FROM wallet_transactions
		WHERE wallet_id = $1 AND tenant_id = $2 AND status = $3
		ORDER BY created_at, id`
	if err := r.selectAll(ctx, &out, query, walletID, types.GetTenantID(ctx), types.StatusPublished); err != nil {
		return nil, listError(err, "wallet_transactions")
	}
	return out, nil
}
