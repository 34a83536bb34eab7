package plan

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

// Plan is the commercial template a subscription bills against
type Plan struct {
	ID                 string              `db:"id" json:"id"`
	Name               string              `db:"name" json:"name"`
	BillingPeriod      types.BillingPeriod `db:"billing_period" json:"billing_period"`
	BillingPeriodCount int                 `db:"billing_period_count" json:"billing_period_count"`
	// GracePeriodDays overrides the tenant default when set
	GracePeriodDays *int `db:"grace_period_days" json:"grace_period_days,omitempty"`
	// MinimumCommitment is expressed in the subscription currency
	MinimumCommitment *decimal.Decimal `db:"minimum_commitment" json:"minimum_commitment,omitempty"`
	// ProgressiveBillingThreshold enables mid-period invoicing once uninvoiced usage reaches it
	ProgressiveBillingThreshold *decimal.Decimal `db:"progressive_billing_threshold" json:"progressive_billing_threshold,omitempty"`
	types.BaseModel
}

// PlanPrice is the fixed recurring fee of a plan in one currency
type PlanPrice struct {
	ID       string          `db:"id" json:"id"`
	PlanID   string          `db:"plan_id" json:"plan_id"`
	Currency string          `db:"currency" json:"currency"`
	Amount   decimal.Decimal `db:"amount" json:"amount"`
	types.BaseModel
}

// Charge is a usage based fee on a plan
type Charge struct {
	ID                 string            `db:"id" json:"id"`
	PlanID             string            `db:"plan_id" json:"plan_id"`
	MetricID           string            `db:"metric_id" json:"metric_id"`
	ChargeModel        types.ChargeModel `db:"charge_model" json:"charge_model"`
	Properties         types.Properties  `db:"properties" json:"properties"`
	GraduatedRanges    Ranges            `db:"graduated_ranges" json:"graduated_ranges,omitempty"`
	MinAmount          *decimal.Decimal  `db:"min_amount" json:"min_amount,omitempty"`
	InvoiceDisplayName string            `db:"invoice_display_name" json:"invoice_display_name"`
	types.BaseModel
}

func (c *Charge) Validate() error {
	if err := c.ChargeModel.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Unsupported charge model").
			WithReportableDetails(map[string]any{"charge_model": c.ChargeModel}).
			Mark(ierr.ErrValidation)
	}
	if c.ChargeModel.UsesRanges() {
		return c.GraduatedRanges.Validate()
	}
	return nil
}

// GraduatedRange is one tier of a GRADUATED or VOLUME charge. Bounds are inclusive
// unit counts; a nil ToValue is open ended.
type GraduatedRange struct {
	FromValue     decimal.Decimal  `json:"from_value"`
	ToValue       *decimal.Decimal `json:"to_value"`
	PerUnitAmount decimal.Decimal  `json:"per_unit_amount"`
	FlatAmount    decimal.Decimal  `json:"flat_amount"`
}

// Ranges is stored as JSONB
type Ranges []GraduatedRange

// Sorted returns a copy ordered by ascending FromValue
func (r Ranges) Sorted() Ranges {
	out := make(Ranges, len(r))
	copy(out, r)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FromValue.LessThan(out[j].FromValue)
	})
	return out
}

func (r Ranges) Validate() error {
	sorted := r.Sorted()
	for i, rg := range sorted {
		if rg.ToValue != nil && rg.ToValue.LessThan(rg.FromValue) {
			return ierr.NewError("range upper bound is below its lower bound").
				WithHint("Each range's to_value must be at least its from_value").
				WithReportableDetails(map[string]any{"index": i}).
				Mark(ierr.ErrValidation)
		}
		if rg.ToValue == nil && i != len(sorted)-1 {
			return ierr.NewError("only the last range may be open ended").
				WithHint("Only the last range may omit to_value").
				WithReportableDetails(map[string]any{"index": i}).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

func (r *Ranges) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal ranges: %v", value)
	}
	return json.Unmarshal(raw, r)
}

func (r Ranges) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]GraduatedRange(r))
}
