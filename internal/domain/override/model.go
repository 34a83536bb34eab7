package override

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/flexprice/billingcore/internal/domain/plan"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

// PlanOverride holds customer specific terms for one plan. At most one exists per
// (customer, plan).
type PlanOverride struct {
	ID                string           `db:"id" json:"id"`
	CustomerID        string           `db:"customer_id" json:"customer_id"`
	PlanID            string           `db:"plan_id" json:"plan_id"`
	Prices            PriceOverrides   `db:"prices" json:"prices"`
	MinimumCommitment *decimal.Decimal `db:"minimum_commitment" json:"minimum_commitment,omitempty"`
	Charges           ChargeOverrides  `db:"charges" json:"charges"`
	types.BaseModel
}

// Price returns the overridden fee for currency
func (o *PlanOverride) Price(currency string) (decimal.Decimal, bool) {
	if o == nil {
		return decimal.Zero, false
	}
	amount, ok := o.Prices[types.NormalizeCurrency(currency)]
	return amount, ok
}

// Charge returns the override for chargeID
func (o *PlanOverride) Charge(chargeID string) (*ChargeOverride, bool) {
	if o == nil {
		return nil, false
	}
	for i := range o.Charges {
		if o.Charges[i].ChargeID == chargeID {
			return &o.Charges[i], true
		}
	}
	return nil, false
}

// ChargeOverride replaces the properties and/or ranges of a single charge
type ChargeOverride struct {
	ChargeID        string           `json:"charge_id"`
	Properties      types.Properties `json:"properties,omitempty"`
	GraduatedRanges plan.Ranges      `json:"graduated_ranges,omitempty"`
}

// PriceOverrides maps a lower-case currency to the overridden fee
type PriceOverrides map[string]decimal.Decimal

type ChargeOverrides []ChargeOverride

func (p *PriceOverrides) Scan(value interface{}) error { return scanJSON(value, p) }

func (p PriceOverrides) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]decimal.Decimal(p))
}

func (c *ChargeOverrides) Scan(value interface{}) error { return scanJSON(value, c) }

func (c ChargeOverrides) Value() (driver.Value, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]ChargeOverride(c))
}

func scanJSON(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	}
	return fmt.Errorf("failed to unmarshal JSONB value: %v", value)
}
