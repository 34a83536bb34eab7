package connection

import (
	"context"

	"github.com/flexprice/billingcore/internal/types"
)

type Repository interface {
	Create(ctx context.Context, c *ProviderConnection) error
	// GetActive returns nil, nil when the tenant has no active connection for provider
	GetActive(ctx context.Context, provider types.ProviderType) (*ProviderConnection, error)
}
