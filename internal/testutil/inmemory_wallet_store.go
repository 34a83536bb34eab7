package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/flexprice/billingcore/internal/domain/wallet"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

// InMemoryWalletStore implements wallet.Repository
type InMemoryWalletStore struct {
	wallets      *InMemoryStore[*wallet.Wallet]
	transactions *InMemoryStore[*wallet.Transaction]
}

func NewInMemoryWalletStore() *InMemoryWalletStore {
	return &InMemoryWalletStore{
		wallets:      NewInMemoryStore(copyOf[wallet.Wallet]),
		transactions: NewInMemoryStore(copyOf[wallet.Transaction]),
	}
}

func (s *InMemoryWalletStore) CreateWallet(ctx context.Context, w *wallet.Wallet) error {
	return s.wallets.Create(ctx, w.ID, w)
}

func (s *InMemoryWalletStore) GetWalletByID(ctx context.Context, id string) (*wallet.Wallet, error) {
	return s.wallets.Get(ctx, id)
}

func (s *InMemoryWalletStore) GetWalletForUpdate(ctx context.Context, id string) (*wallet.Wallet, error) {
	return s.wallets.Get(ctx, id)
}

func (s *InMemoryWalletStore) ListActiveForUpdate(ctx context.Context, customerID, currency string) ([]*wallet.Wallet, error) {
	out := s.wallets.List(ctx, func(w *wallet.Wallet) bool {
		return w.CustomerID == customerID &&
			w.WalletStatus == types.WalletStatusActive &&
			types.IsCurrencyEqual(w.Currency, currency)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryWalletStore) ListExpiredIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	expired := s.wallets.List(ctx, func(w *wallet.Wallet) bool {
		return w.WalletStatus == types.WalletStatusActive &&
			w.ExpirationAt != nil && !w.ExpirationAt.After(now)
	})
	ids := make([]string, 0, len(expired))
	for i, w := range expired {
		if limit > 0 && i >= limit {
			break
		}
		ids = append(ids, w.ID)
	}
	return ids, nil
}

func (s *InMemoryWalletStore) UpdateWalletBalance(ctx context.Context, walletID string, balance, creditsBalance decimal.Decimal) error {
	w, err := s.wallets.Get(ctx, walletID)
	if err != nil {
		return err
	}
	w.Balance = balance
	w.CreditsBalance = creditsBalance
	w.UpdatedAt = time.Now().UTC()
	return s.wallets.Update(ctx, walletID, w)
}

func (s *InMemoryWalletStore) UpdateWalletStatus(ctx context.Context, walletID string, status types.WalletStatus) error {
	w, err := s.wallets.Get(ctx, walletID)
	if err != nil {
		return err
	}
	w.WalletStatus = status
	w.UpdatedAt = time.Now().UTC()
	return s.wallets.Update(ctx, walletID, w)
}

func (s *InMemoryWalletStore) CreateTransaction(ctx context.Context, tx *wallet.Transaction) error {
	return s.transactions.Create(ctx, tx.ID, tx)
}

func (s *InMemoryWalletStore) ListTransactions(ctx context.Context, walletID string) ([]*wallet.Transaction, error) {
	return s.transactions.List(ctx, func(t *wallet.Transaction) bool { return t.WalletID == walletID }), nil
}

func (s *InMemoryWalletStore) Clear() {
	s.wallets.Clear()
	s.transactions.Clear()
}
