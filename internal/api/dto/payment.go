package dto

import (
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/validator"
	"github.com/shopspring/decimal"
)

// RefundRequest refunds Amount of a payment, or all of it when Amount is nil
type RefundRequest struct {
	PaymentID string           `json:"payment_id" validate:"required"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
}

func (r *RefundRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.Amount != nil && !r.Amount.IsPositive() {
		return ierr.NewError("refund amount must be positive").
			WithHint("Refund amount must be greater than zero").
			Mark(ierr.ErrValidation)
	}
	return nil
}
