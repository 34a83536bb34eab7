package types

// TaxScope is the level a tax assignment is attached to
type TaxScope string

const (
	TaxScopeCharge   TaxScope = "CHARGE"
	TaxScopePlan     TaxScope = "PLAN"
	TaxScopeCustomer TaxScope = "CUSTOMER"
)
