package tax

import (
	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

// Tax is a named percentage rate
type Tax struct {
	ID               string          `db:"id" json:"id"`
	Name             string          `db:"name" json:"name"`
	Code             string          `db:"code" json:"code"`
	Rate             decimal.Decimal `db:"rate" json:"rate"`
	AppliedByDefault bool            `db:"applied_by_default" json:"applied_by_default"`
	types.BaseModel
}

// Assignment attaches a tax to a charge, plan or customer
type Assignment struct {
	ID       string         `db:"id" json:"id"`
	TaxID    string         `db:"tax_id" json:"tax_id"`
	Scope    types.TaxScope `db:"scope" json:"scope"`
	EntityID string         `db:"entity_id" json:"entity_id"`
	types.BaseModel
}
