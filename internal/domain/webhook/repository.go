package webhook

import "context"

type Repository interface {
	// GetEndpoint returns nil, nil when the tenant has not configured one
	GetEndpoint(ctx context.Context) (*Endpoint, error)
	CreateEndpoint(ctx context.Context, e *Endpoint) error
	CreateLog(ctx context.Context, l *Log) error
	CountAttempts(ctx context.Context, eventID string) (int, error)
	ListLogs(ctx context.Context, eventID string) ([]*Log, error)
}
