package wallet

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

// Repository defines the interface for wallet persistence operations
type Repository interface {
	CreateWallet(ctx context.Context, w *Wallet) error
	GetWalletByID(ctx context.Context, id string) (*Wallet, error)
	// GetWalletForUpdate row-locks the wallet for the enclosing transaction
	GetWalletForUpdate(ctx context.Context, id string) (*Wallet, error)
	// ListActiveForUpdate row-locks the customer's ACTIVE wallets in currency,
	// oldest created first
	ListActiveForUpdate(ctx context.Context, customerID, currency string) ([]*Wallet, error)
	// ListExpiredIDs returns ACTIVE wallets whose expiration is at or before now
	ListExpiredIDs(ctx context.Context, now time.Time, limit int) ([]string, error)
	UpdateWalletBalance(ctx context.Context, walletID string, balance, creditsBalance decimal.Decimal) error
	UpdateWalletStatus(ctx context.Context, walletID string, status types.WalletStatus) error

	CreateTransaction(ctx context.Context, tx *Transaction) error
	ListTransactions(ctx context.Context, walletID string) ([]*Transaction, error)
}
