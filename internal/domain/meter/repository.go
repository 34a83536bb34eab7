package meter

import "context"

// Repository defines the interface for billable metric persistence
type Repository interface {
	Create(ctx context.Context, m *BillableMetric) error
	Get(ctx context.Context, id string) (*BillableMetric, error)
	GetByCode(ctx context.Context, code string) (*BillableMetric, error)
}
