package service

import (
	"context"
	"fmt"
	"time"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/domain/wallet"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// WalletService defines the interface for wallet operations. Every balance change
// is written together with the ledger transaction that explains it.
type WalletService interface {
	// CreateWallet creates an empty active wallet for a customer
	CreateWallet(ctx context.Context, req *dto.CreateWalletRequest) (*wallet.Wallet, error)

	GetWallet(ctx context.Context, id string) (*wallet.Wallet, error)

	// TopUp credits the wallet with an INBOUND transaction
	TopUp(ctx context.Context, req *dto.TopUpWalletRequest) (*wallet.Transaction, error)

	// ApplyToInvoice drains the customer's usable wallets in currency, oldest first,
	// until amount is covered or the wallets are empty. It runs inside the caller's
	// transaction and returns the OUTBOUND transactions it wrote.
	// Each debit is truncated to whole minor units of currency, so with fractional
	// balances the total applied can fall short of min(amount, sum of balances) by
	// less than one minor unit per wallet.
	ApplyToInvoice(ctx context.Context, customerID, currency, invoiceID string, amount decimal.Decimal, now time.Time) ([]*wallet.Transaction, error)

	// ExpireWallets voids the residual balance of wallets past their expiration and
	// terminates them. It returns the number of wallets terminated.
	ExpireWallets(ctx context.Context, now time.Time) (int, error)

	// Terminate voids the remaining balance and closes the wallet
	Terminate(ctx context.Context, walletID string) error

	// VerifyBalance checks the stored balance against the signed ledger sum
	VerifyBalance(ctx context.Context, walletID string) error
}

type walletService struct {
	ServiceParams
}

func NewWalletService(params ServiceParams) WalletService {
	return &walletService{ServiceParams: params}
}

func (s *walletService) CreateWallet(ctx context.Context, req *dto.CreateWalletRequest) (*wallet.Wallet, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.CustomerRepo.Get(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	w := req.ToWallet(ctx)
	if err := w.Validate(); err != nil {
		return nil, err
	}

	if err := s.WalletRepo.CreateWallet(ctx, w); err != nil {
		return nil, err
	}

	s.Logger.Debugw("created wallet",
		"wallet_id", w.ID,
		"customer_id", w.CustomerID,
		"currency", w.Currency,
		"rate_amount", w.RateAmount)

	return w, nil
}

func (s *walletService) GetWallet(ctx context.Context, id string) (*wallet.Wallet, error) {
	return s.WalletRepo.GetWalletByID(ctx, id)
}

func (s *walletService) TopUp(ctx context.Context, req *dto.TopUpWalletRequest) (*wallet.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var txn *wallet.Transaction
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		w, err := s.WalletRepo.GetWalletForUpdate(ctx, req.WalletID)
		if err != nil {
			return err
		}
		if w.WalletStatus != types.WalletStatusActive {
			return ierr.NewError("wallet is not active").
				WithHint("Only active wallets can be topped up").
				WithReportableDetails(map[string]any{
					"wallet_id": w.ID,
					"status":    w.WalletStatus,
				}).
				Mark(ierr.ErrInvalidOperation)
		}

		amount := req.Credits.Mul(w.RateAmount)
		newBalance := w.Balance.Add(amount)
		if err := w.SetBalance(newBalance); err != nil {
			return err
		}

		description := req.Description
		if description == "" {
			description = fmt.Sprintf("Wallet top up (%s)", req.TransactionStatus)
		}

		txn = &wallet.Transaction{
			ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WALLET_TRANSACTION),
			WalletID:          w.ID,
			Type:              types.TransactionTypeInbound,
			TransactionStatus: req.TransactionStatus,
			Amount:            amount,
			CreditAmount:      req.Credits,
			BalanceAfter:      newBalance,
			Description:       description,
			BaseModel:         types.GetDefaultBaseModel(ctx),
		}
		if err := s.WalletRepo.CreateTransaction(ctx, txn); err != nil {
			return err
		}
		return s.WalletRepo.UpdateWalletBalance(ctx, w.ID, w.Balance, w.CreditsBalance)
	})
	if err != nil {
		return nil, err
	}

	s.publishWebhook(ctx, types.WebhookEventWalletTransactionCreated, txn)
	return txn, nil
}

func (s *walletService) ApplyToInvoice(
	ctx context.Context,
	customerID, currency, invoiceID string,
	amount decimal.Decimal,
	now time.Time,
) ([]*wallet.Transaction, error) {
	if !amount.IsPositive() {
		return nil, nil
	}

	wallets, err := s.WalletRepo.ListActiveForUpdate(ctx, customerID, currency)
	if err != nil {
		return nil, err
	}

	precision := types.GetCurrencyPrecision(currency)
	need := amount
	var txns []*wallet.Transaction

	for _, w := range wallets {
		if !need.IsPositive() {
			break
		}
		if !w.IsUsable(currency, now) {
			continue
		}

		// only whole minor units leave a wallet so the invoice line stays rounded
		take := decimal.Min(w.Balance, need).Truncate(precision)
		if !take.IsPositive() {
			continue
		}

		prevCredits := w.CreditsBalance
		newBalance := w.Balance.Sub(take)
		if err := w.SetBalance(newBalance); err != nil {
			return nil, err
		}
		credits := prevCredits.Sub(w.CreditsBalance)

		txn := &wallet.Transaction{
			ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WALLET_TRANSACTION),
			WalletID:          w.ID,
			Type:              types.TransactionTypeOutbound,
			TransactionStatus: types.TransactionStatusInvoiced,
			Amount:            take,
			CreditAmount:      credits,
			BalanceAfter:      newBalance,
			InvoiceID:         lo.ToPtr(invoiceID),
			Description:       "Applied to invoice " + invoiceID,
			BaseModel:         types.GetDefaultBaseModel(ctx),
		}
		if err := s.WalletRepo.CreateTransaction(ctx, txn); err != nil {
			return nil, err
		}
		if err := s.WalletRepo.UpdateWalletBalance(ctx, w.ID, w.Balance, w.CreditsBalance); err != nil {
			return nil, err
		}

		need = need.Sub(take)
		txns = append(txns, txn)
	}

	return txns, nil
}

func (s *walletService) ExpireWallets(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.WalletRepo.ListExpiredIDs(ctx, now, s.Config.Billing.SweepBatchSize)
	if err != nil {
		return 0, err
	}

	terminated := 0
	for _, id := range ids {
		// each wallet in its own transaction so one failure does not hold back the rest
		var done bool
		err := s.DB.WithTx(ctx, func(ctx context.Context) error {
			w, err := s.WalletRepo.GetWalletForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if w.WalletStatus != types.WalletStatusActive || w.ExpirationAt == nil || now.Before(*w.ExpirationAt) {
				return nil
			}
			done = true
			return s.closeWallet(ctx, w, "Wallet expired")
		})
		if err != nil {
			s.Logger.Errorw("failed to expire wallet", "wallet_id", id, "error", err)
			continue
		}
		if done {
			terminated++
			s.publishWebhook(ctx, types.WebhookEventWalletTerminated, map[string]string{"wallet_id": id})
		}
	}

	return terminated, nil
}

func (s *walletService) Terminate(ctx context.Context, walletID string) error {
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		w, err := s.WalletRepo.GetWalletForUpdate(ctx, walletID)
		if err != nil {
			return err
		}
		if w.WalletStatus == types.WalletStatusTerminated {
			return ierr.NewError("wallet already terminated").
				WithHint("The wallet is already terminated").
				WithReportableDetails(map[string]any{"wallet_id": walletID}).
				Mark(ierr.ErrInvalidOperation)
		}
		return s.closeWallet(ctx, w, "Wallet terminated")
	})
	if err != nil {
		return err
	}

	s.publishWebhook(ctx, types.WebhookEventWalletTerminated, map[string]string{"wallet_id": walletID})
	return nil
}

// closeWallet voids any residual balance through the ledger, then terminates
func (s *walletService) closeWallet(ctx context.Context, w *wallet.Wallet, description string) error {
	if w.Balance.IsPositive() {
		txn := &wallet.Transaction{
			ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WALLET_TRANSACTION),
			WalletID:          w.ID,
			Type:              types.TransactionTypeOutbound,
			TransactionStatus: types.TransactionStatusVoided,
			Amount:            w.Balance,
			CreditAmount:      w.CreditsBalance,
			BalanceAfter:      decimal.Zero,
			Description:       description,
			BaseModel:         types.GetDefaultBaseModel(ctx),
		}
		if err := s.WalletRepo.CreateTransaction(ctx, txn); err != nil {
			return err
		}
		if err := s.WalletRepo.UpdateWalletBalance(ctx, w.ID, decimal.Zero, decimal.Zero); err != nil {
			return err
		}
	}

	if err := s.WalletRepo.UpdateWalletStatus(ctx, w.ID, types.WalletStatusTerminated); err != nil {
		return err
	}

	s.Logger.Infow("wallet terminated",
		"wallet_id", w.ID,
		"customer_id", w.CustomerID,
		"voided_balance", w.Balance)
	return nil
}

func (s *walletService) VerifyBalance(ctx context.Context, walletID string) error {
	w, err := s.WalletRepo.GetWalletByID(ctx, walletID)
	if err != nil {
		return err
	}
	txns, err := s.WalletRepo.ListTransactions(ctx, walletID)
	if err != nil {
		return err
	}

	ledger := wallet.LedgerBalance(txns)
	if !ledger.Equal(w.Balance) {
		return ierr.NewError("wallet balance does not match its ledger").
			WithHint("Wallet balance is inconsistent with its transactions").
			WithReportableDetails(map[string]any{
				"wallet_id": walletID,
				"balance":   w.Balance,
				"ledger":    ledger,
			}).
			Mark(ierr.ErrSystem)
	}
	return nil
}
