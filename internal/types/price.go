package types

import "fmt"

// ChargeModel selects the pricing function applied to a charge's billable quantity
type ChargeModel string

const (
	ChargeModelStandard   ChargeModel = "STANDARD"
	ChargeModelGraduated  ChargeModel = "GRADUATED"
	ChargeModelVolume     ChargeModel = "VOLUME"
	ChargeModelPackage    ChargeModel = "PACKAGE"
	ChargeModelPercentage ChargeModel = "PERCENTAGE"
)

func (m ChargeModel) Validate() error {
	switch m {
	case ChargeModelStandard, ChargeModelGraduated, ChargeModelVolume,
		ChargeModelPackage, ChargeModelPercentage:
		return nil
	}
	return fmt.Errorf("invalid charge model: %s", m)
}

// UsesRanges reports whether the model is priced from ordered ranges
func (m ChargeModel) UsesRanges() bool {
	return m == ChargeModelGraduated || m == ChargeModelVolume
}

// Charge property keys
const (
	ChargePropertyAmount      = "amount"
	ChargePropertyPackageSize = "package_size"
	ChargePropertyRate        = "rate"
	ChargePropertyFreeUnits   = "free_units"
	ChargePropertyFixedAmount = "fixed_amount"
)
