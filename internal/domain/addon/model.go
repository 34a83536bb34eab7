package addon

import (
	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

// AddOnCharge is a one-off fee billed on the subscription's next invoice
type AddOnCharge struct {
	ID             string          `db:"id" json:"id"`
	CustomerID     string          `db:"customer_id" json:"customer_id"`
	SubscriptionID string          `db:"subscription_id" json:"subscription_id"`
	Name           string          `db:"name" json:"name"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Currency       string          `db:"currency" json:"currency"`
	InvoiceID      *string         `db:"invoice_id" json:"invoice_id,omitempty"`
	types.BaseModel
}
