package invoice

import (
	"time"

	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Invoice is a priced bill for one subscription period, or one progressive draw
type Invoice struct {
	ID                string              `db:"id" json:"id"`
	CustomerID        string              `db:"customer_id" json:"customer_id"`
	SubscriptionID    string              `db:"subscription_id" json:"subscription_id"`
	InvoiceNumber     string              `db:"invoice_number" json:"invoice_number"`
	InvoiceKind       types.InvoiceKind   `db:"invoice_kind" json:"invoice_kind"`
	InvoiceStatus     types.InvoiceStatus `db:"invoice_status" json:"invoice_status"`
	Currency          string              `db:"currency" json:"currency"`
	Amount            decimal.Decimal     `db:"amount" json:"amount"`
	PeriodStart       time.Time           `db:"period_start" json:"period_start"`
	PeriodEnd         time.Time           `db:"period_end" json:"period_end"`
	DueDate           *time.Time          `db:"due_date" json:"due_date,omitempty"`
	GracePeriodEndsAt *time.Time          `db:"grace_period_ends_at" json:"grace_period_ends_at,omitempty"`
	FinalizedAt       *time.Time          `db:"finalized_at" json:"finalized_at,omitempty"`
	PaidAt            *time.Time          `db:"paid_at" json:"paid_at,omitempty"`
	IdempotencyKey    string              `db:"idempotency_key" json:"idempotency_key"`
	Version           int                 `db:"version" json:"version"`
	LineItems         []*LineItem         `db:"-" json:"line_items"`
	types.BaseModel
}

// LineItem is one priced row. Quantity and UnitAmount are stored so that
// Amount == UnitAmount x Quantity holds exactly; Units keeps the metered quantity
// the amount was priced from.
type LineItem struct {
	ID          string             `db:"id" json:"id"`
	InvoiceID   string             `db:"invoice_id" json:"invoice_id"`
	LineType    types.LineItemType `db:"line_type" json:"line_type"`
	ReferenceID string             `db:"reference_id" json:"reference_id,omitempty"`
	DisplayName string             `db:"display_name" json:"display_name"`
	Units       decimal.Decimal    `db:"units" json:"units"`
	Quantity    decimal.Decimal    `db:"quantity" json:"quantity"`
	UnitAmount  decimal.Decimal    `db:"unit_amount" json:"unit_amount"`
	Amount      decimal.Decimal    `db:"amount" json:"amount"`
	Currency    string             `db:"currency" json:"currency"`
	PeriodStart *time.Time         `db:"period_start" json:"period_start,omitempty"`
	PeriodEnd   *time.Time         `db:"period_end" json:"period_end,omitempty"`
	types.BaseModel
}

// LineItemsTotal returns the sum of UnitAmount x Quantity over the line items
func (inv *Invoice) LineItemsTotal() decimal.Decimal {
	return lo.Reduce(inv.LineItems, func(acc decimal.Decimal, li *LineItem, _ int) decimal.Decimal {
		return acc.Add(li.UnitAmount.Mul(li.Quantity))
	}, decimal.Zero)
}

// LineItemsOfType returns the line items of one type
func (inv *Invoice) LineItemsOfType(t types.LineItemType) []*LineItem {
	return lo.Filter(inv.LineItems, func(li *LineItem, _ int) bool {
		return li.LineType == t
	})
}

// IsDraft reports whether the invoice is still inside its grace period
func (inv *Invoice) IsDraft() bool {
	return inv.InvoiceStatus == types.InvoiceStatusDraft
}
