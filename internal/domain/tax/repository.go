package tax

import (
	"context"

	"github.com/flexprice/billingcore/internal/types"
)

type Repository interface {
	CreateTax(ctx context.Context, t *Tax) error
	CreateAssignment(ctx context.Context, a *Assignment) error
	// ListAssigned returns the taxes assigned at scope to entityID
	ListAssigned(ctx context.Context, scope types.TaxScope, entityID string) ([]*Tax, error)
	ListDefaults(ctx context.Context) ([]*Tax, error)
}
