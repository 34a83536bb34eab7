// Package pricing converts a billable quantity into an amount. Each charge model
// is a pure function selected by a closed switch; nothing here rounds, rounding
// happens when the amount lands on an invoice line.
package pricing

import (
	"github.com/flexprice/billingcore/internal/domain/plan"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Input is everything a charge model needs to price a quantity
type Input struct {
	Model      types.ChargeModel
	Units      decimal.Decimal
	Properties types.Properties
	Ranges     plan.Ranges
}

// Calculate prices in.Units under in.Model. Zero or negative units cost nothing.
// A misconfigured charge returns a validation error; callers treat that as zero.
func Calculate(in Input) (decimal.Decimal, error) {
	if !in.Units.IsPositive() {
		return decimal.Zero, nil
	}

	switch in.Model {
	case types.ChargeModelStandard:
		return standard(in.Units, in.Properties)
	case types.ChargeModelGraduated:
		return graduated(in.Units, in.Ranges)
	case types.ChargeModelVolume:
		return volume(in.Units, in.Ranges)
	case types.ChargeModelPackage:
		return pack(in.Units, in.Properties)
	case types.ChargeModelPercentage:
		return percentage(in.Units, in.Properties)
	}

	return decimal.Zero, ierr.NewError("unsupported charge model").
		WithHintf("Charge model %s is not supported", in.Model).
		WithReportableDetails(map[string]any{"charge_model": in.Model}).
		Mark(ierr.ErrValidation)
}

func standard(units decimal.Decimal, props types.Properties) (decimal.Decimal, error) {
	amount, err := requiredProperty(props, types.ChargePropertyAmount)
	if err != nil {
		return decimal.Zero, err
	}
	return units.Mul(amount), nil
}

// graduated walks ranges in ascending order, pricing each slice at its own rate.
// Bounds are inclusive so a range [from, to] holds to-from+1 units.
func graduated(units decimal.Decimal, ranges plan.Ranges) (decimal.Decimal, error) {
	if len(ranges) == 0 {
		return decimal.Zero, errNoRanges(types.ChargeModelGraduated)
	}

	cost := decimal.Zero
	remaining := units
	for _, rg := range ranges.Sorted() {
		if !remaining.IsPositive() {
			break
		}

		consumed := remaining
		if rg.ToValue != nil {
			size := rg.ToValue.Sub(rg.FromValue).Add(decimal.NewFromInt(1))
			consumed = decimal.Min(remaining, size)
		}

		cost = cost.Add(consumed.Mul(rg.PerUnitAmount)).Add(rg.FlatAmount)
		remaining = remaining.Sub(consumed)
	}

	return cost, nil
}

// volume prices every unit at the rate of the range containing the total
func volume(units decimal.Decimal, ranges plan.Ranges) (decimal.Decimal, error) {
	if len(ranges) == 0 {
		return decimal.Zero, errNoRanges(types.ChargeModelVolume)
	}

	sorted := ranges.Sorted()
	selected := sorted[len(sorted)-1]
	for _, rg := range sorted {
		if rg.ToValue == nil || units.LessThanOrEqual(*rg.ToValue) {
			selected = rg
			break
		}
	}

	return units.Mul(selected.PerUnitAmount).Add(selected.FlatAmount), nil
}

// pack bills whole packages, a started package is a full one
func pack(units decimal.Decimal, props types.Properties) (decimal.Decimal, error) {
	amount, err := requiredProperty(props, types.ChargePropertyAmount)
	if err != nil {
		return decimal.Zero, err
	}
	size, err := requiredProperty(props, types.ChargePropertyPackageSize)
	if err != nil {
		return decimal.Zero, err
	}
	if !size.IsPositive() {
		return decimal.Zero, ierr.NewError("package size must be positive").
			WithHint("Package charges need a package_size greater than zero").
			WithReportableDetails(map[string]any{"package_size": size}).
			Mark(ierr.ErrValidation)
	}

	packages := units.Div(size).Ceil()
	return packages.Mul(amount), nil
}

// percentage bills rate percent of the units above the free allowance, plus a
// fixed fee whenever anything is billable
func percentage(units decimal.Decimal, props types.Properties) (decimal.Decimal, error) {
	rate, err := requiredProperty(props, types.ChargePropertyRate)
	if err != nil {
		return decimal.Zero, err
	}
	freeUnits := props.DecimalOr(types.ChargePropertyFreeUnits, decimal.Zero)
	fixed := props.DecimalOr(types.ChargePropertyFixedAmount, decimal.Zero)

	billable := decimal.Max(decimal.Zero, units.Sub(freeUnits))
	cost := billable.Mul(rate).Div(hundred)
	if billable.IsPositive() {
		cost = cost.Add(fixed)
	}
	return cost, nil
}

func requiredProperty(props types.Properties, key string) (decimal.Decimal, error) {
	v, ok := props.Decimal(key)
	if !ok {
		return decimal.Zero, ierr.NewError("charge property missing").
			WithHintf("Charge property %s is required and must be numeric", key).
			WithReportableDetails(map[string]any{"property": key}).
			Mark(ierr.ErrValidation)
	}
	return v, nil
}

func errNoRanges(model types.ChargeModel) error {
	return ierr.NewError("charge has no ranges").
		WithHintf("%s charges need at least one range", model).
		Mark(ierr.ErrValidation)
}
