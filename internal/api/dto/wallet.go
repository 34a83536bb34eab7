package dto

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/domain/wallet"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/flexprice/billingcore/internal/validator"
	"github.com/shopspring/decimal"
)

type CreateWalletRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
	Currency   string `json:"currency" validate:"required,currency"`
	Name       string `json:"name"`
	// RateAmount is the currency value of one credit, 1 when omitted
	RateAmount   decimal.Decimal `json:"rate_amount" validate:"nonneg_decimal"`
	ExpirationAt *time.Time      `json:"expiration_at,omitempty"`
}

func (r *CreateWalletRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *CreateWalletRequest) ToWallet(ctx context.Context) *wallet.Wallet {
	rate := r.RateAmount
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	return &wallet.Wallet{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WALLET),
		CustomerID:     r.CustomerID,
		Currency:       types.NormalizeCurrency(r.Currency),
		Name:           r.Name,
		WalletStatus:   types.WalletStatusActive,
		CreditsBalance: decimal.Zero,
		Balance:        decimal.Zero,
		RateAmount:     rate,
		ExpirationAt:   r.ExpirationAt,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
}

type TopUpWalletRequest struct {
	WalletID string `json:"wallet_id" validate:"required"`
	// Credits are converted to currency at the wallet's rate
	Credits decimal.Decimal `json:"credits" validate:"required"`
	// TransactionStatus is PURCHASED for paid credits and GRANTED for free ones
	TransactionStatus types.TransactionStatus `json:"transaction_status" validate:"required,oneof=PURCHASED GRANTED"`
	Description       string                  `json:"description"`
}

func (r *TopUpWalletRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if !r.Credits.IsPositive() {
		return ierr.NewError("top up credits must be positive").
			WithHint("Top up credits must be greater than zero").
			WithReportableDetails(map[string]any{"credits": r.Credits}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
