package types

type InvoiceStatus string

const (
	InvoiceStatusDraft    InvoiceStatus = "DRAFT"
	InvoiceStatusPending  InvoiceStatus = "PENDING"
	InvoiceStatusPaid     InvoiceStatus = "PAID"
	InvoiceStatusFailed   InvoiceStatus = "FAILED"
	InvoiceStatusCanceled InvoiceStatus = "CANCELED"
)

// IsCollectible reports whether a payment may still settle the invoice
func (s InvoiceStatus) IsCollectible() bool {
	return s == InvoiceStatusPending || s == InvoiceStatusFailed
}

// InvoiceKind distinguishes the trigger that produced an invoice
type InvoiceKind string

const (
	InvoiceKindSubscription InvoiceKind = "SUBSCRIPTION"
	InvoiceKindProgressive  InvoiceKind = "PROGRESSIVE"
)

type LineItemType string

const (
	LineItemTypePlan              LineItemType = "plan"
	LineItemTypeUsage             LineItemType = "usage"
	LineItemTypeMinimumCommitment LineItemType = "minimum_commitment"
	LineItemTypeCoupon            LineItemType = "coupon"
	LineItemTypeAddOn             LineItemType = "add_on"
	LineItemTypeTax               LineItemType = "tax"
	LineItemTypeWalletCredit      LineItemType = "wallet_credit"
)
