package settings

import "context"

type Repository interface {
	// Get returns nil, nil when the tenant kept the platform defaults
	Get(ctx context.Context) (*BillingSettings, error)
	Upsert(ctx context.Context, s *BillingSettings) error
}
