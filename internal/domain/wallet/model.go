package wallet

import (
	"time"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// CreditScale is the number of decimal places credits are kept to
const CreditScale int32 = 15

// Wallet represents a prepaid credit wallet for a customer.
// CreditsBalance is always Balance / RateAmount rounded to CreditScale, and
// Balance always equals the signed sum of the wallet's transactions.
type Wallet struct {
	ID             string             `db:"id" json:"id"`
	CustomerID     string             `db:"customer_id" json:"customer_id"`
	Currency       string             `db:"currency" json:"currency"`
	Name           string             `db:"name" json:"name,omitempty"`
	WalletStatus   types.WalletStatus `db:"wallet_status" json:"wallet_status"`
	CreditsBalance decimal.Decimal    `db:"credits_balance" json:"credits_balance"`
	Balance        decimal.Decimal    `db:"balance" json:"balance"`
	RateAmount     decimal.Decimal    `db:"rate_amount" json:"rate_amount"`
	ExpirationAt   *time.Time         `db:"expiration_at" json:"expiration_at,omitempty"`
	types.BaseModel
}

func (w *Wallet) Validate() error {
	if w.RateAmount.LessThanOrEqual(decimal.Zero) {
		return ierr.NewError("rate amount must be greater than 0").
			WithHint("Wallet rate amount must be a positive value").
			WithReportableDetails(map[string]interface{}{
				"rate_amount": w.RateAmount,
			}).
			Mark(ierr.ErrValidation)
	}
	if !w.CreditsBalance.Equal(w.CreditsFor(w.Balance)) {
		return ierr.NewError("balance and credit balance do not match").
			WithHint("Wallet credits balance must equal balance divided by rate amount").
			WithReportableDetails(map[string]interface{}{
				"balance":         w.Balance,
				"credits_balance": w.CreditsBalance,
				"rate_amount":     w.RateAmount,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SetBalance moves the wallet to balance and derives its credits from it
func (w *Wallet) SetBalance(balance decimal.Decimal) error {
	if balance.IsNegative() {
		return ierr.NewError("wallet balance cannot go negative").
			WithHint("Insufficient wallet balance").
			WithReportableDetails(map[string]interface{}{
				"wallet_id": w.ID,
				"balance":   balance,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	next := *w
	next.Balance = balance
	next.CreditsBalance = w.CreditsFor(balance)
	if err := next.Validate(); err != nil {
		return err
	}
	*w = next
	return nil
}

// IsUsable reports whether the wallet can fund an invoice in currency at now
func (w *Wallet) IsUsable(currency string, now time.Time) bool {
	if w.WalletStatus != types.WalletStatusActive || !types.IsCurrencyEqual(w.Currency, currency) {
		return false
	}
	if w.ExpirationAt != nil && !now.Before(*w.ExpirationAt) {
		return false
	}
	return w.Balance.IsPositive()
}

// CreditsFor converts a currency amount into wallet credits
func (w *Wallet) CreditsFor(amount decimal.Decimal) decimal.Decimal {
	return amount.DivRound(w.RateAmount, CreditScale)
}

// Transaction is an immutable ledger entry. Amount is in the wallet currency and
// always positive; Type gives its sign.
type Transaction struct {
	ID                string                  `db:"id" json:"id"`
	WalletID          string                  `db:"wallet_id" json:"wallet_id"`
	Type              types.TransactionType   `db:"type" json:"type"`
	TransactionStatus types.TransactionStatus `db:"transaction_status" json:"transaction_status"`
	Amount            decimal.Decimal         `db:"amount" json:"amount"`
	CreditAmount      decimal.Decimal         `db:"credit_amount" json:"credit_amount"`
	BalanceAfter      decimal.Decimal         `db:"balance_after" json:"balance_after"`
	InvoiceID         *string                 `db:"invoice_id" json:"invoice_id,omitempty"`
	Description       string                  `db:"description" json:"description"`
	types.BaseModel
}

// Signed returns the transaction amount with the ledger sign applied
func (t *Transaction) Signed() decimal.Decimal {
	if t.Type == types.TransactionTypeOutbound {
		return t.Amount.Neg()
	}
	return t.Amount
}

// LedgerBalance sums transactions with their sign
func LedgerBalance(txns []*Transaction) decimal.Decimal {
	return lo.Reduce(txns, func(acc decimal.Decimal, t *Transaction, _ int) decimal.Decimal {
		return acc.Add(t.Signed())
	}, decimal.Zero)
}
