package dto

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/override"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/flexprice/billingcore/internal/validator"
	"github.com/shopspring/decimal"
)

type CreateOverrideRequest struct {
	CustomerID        string                     `json:"customer_id" validate:"required"`
	PlanID            string                     `json:"plan_id" validate:"required"`
	Prices            map[string]decimal.Decimal `json:"prices,omitempty"`
	MinimumCommitment *decimal.Decimal           `json:"minimum_commitment,omitempty"`
	Charges           []override.ChargeOverride  `json:"charges,omitempty" validate:"omitempty,dive"`
}

func (r *CreateOverrideRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	for currency, amount := range r.Prices {
		if err := types.ValidateCurrencyCode(currency); err != nil {
			return err
		}
		if amount.IsNegative() {
			return ierr.NewError("override price must not be negative").
				WithHintf("Price override for %s must not be negative", currency).
				Mark(ierr.ErrValidation)
		}
	}
	if r.MinimumCommitment != nil && r.MinimumCommitment.IsNegative() {
		return ierr.NewError("minimum commitment must not be negative").
			WithHint("Minimum commitment must not be negative").
			Mark(ierr.ErrValidation)
	}
	for _, c := range r.Charges {
		if c.ChargeID == "" {
			return ierr.NewError("charge override without charge id").
				WithHint("Every charge override must name its charge").
				Mark(ierr.ErrValidation)
		}
		if err := c.GraduatedRanges.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (r *CreateOverrideRequest) ToPlanOverride(ctx context.Context) *override.PlanOverride {
	prices := make(override.PriceOverrides, len(r.Prices))
	for currency, amount := range r.Prices {
		prices[types.NormalizeCurrency(currency)] = amount
	}
	return &override.PlanOverride{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN_OVERRIDE),
		CustomerID:        r.CustomerID,
		PlanID:            r.PlanID,
		Prices:            prices,
		MinimumCommitment: r.MinimumCommitment,
		Charges:           override.ChargeOverrides(r.Charges),
		BaseModel:         types.GetDefaultBaseModel(ctx),
	}
}
