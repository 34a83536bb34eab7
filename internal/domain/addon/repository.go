package addon

import "context"

type Repository interface {
	Create(ctx context.Context, a *AddOnCharge) error
	// ListUnbilledForUpdate row-locks the subscription's add-ons with no invoice in currency
	ListUnbilledForUpdate(ctx context.Context, subscriptionID, currency string) ([]*AddOnCharge, error)
	MarkInvoiced(ctx context.Context, ids []string, invoiceID string) error
}
