package tenant

import "context"

type Repository interface {
	Get(ctx context.Context, id string) (*Tenant, error)
	ListActive(ctx context.Context) ([]*Tenant, error)
}
