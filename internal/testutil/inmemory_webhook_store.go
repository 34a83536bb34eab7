package testutil

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/connection"
	"github.com/flexprice/billingcore/internal/domain/webhook"
	"github.com/flexprice/billingcore/internal/types"
)

// InMemoryWebhookStore implements webhook.Repository
type InMemoryWebhookStore struct {
	endpoints *InMemoryStore[*webhook.Endpoint]
	logs      *InMemoryStore[*webhook.Log]
}

func NewInMemoryWebhookStore() *InMemoryWebhookStore {
	return &InMemoryWebhookStore{
		endpoints: NewInMemoryStore(copyOf[webhook.Endpoint]),
		logs:      NewInMemoryStore(copyOf[webhook.Log]),
	}
}

func (s *InMemoryWebhookStore) GetEndpoint(ctx context.Context) (*webhook.Endpoint, error) {
	found := s.endpoints.List(ctx, nil)
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (s *InMemoryWebhookStore) CreateEndpoint(ctx context.Context, e *webhook.Endpoint) error {
	return s.endpoints.Create(ctx, e.ID, e)
}

func (s *InMemoryWebhookStore) CreateLog(ctx context.Context, l *webhook.Log) error {
	if l.ID == "" {
		l.ID = types.GenerateUUID()
	}
	return s.logs.Create(ctx, l.ID, l)
}

func (s *InMemoryWebhookStore) CountAttempts(ctx context.Context, eventID string) (int, error) {
	logs, _ := s.ListLogs(ctx, eventID)
	return len(logs), nil
}

func (s *InMemoryWebhookStore) ListLogs(ctx context.Context, eventID string) ([]*webhook.Log, error) {
	return s.logs.List(ctx, func(l *webhook.Log) bool { return l.EventID == eventID }), nil
}

// InMemoryConnectionStore implements connection.Repository
type InMemoryConnectionStore struct {
	*InMemoryStore[*connection.ProviderConnection]
}

func NewInMemoryConnectionStore() *InMemoryConnectionStore {
	return &InMemoryConnectionStore{NewInMemoryStore(copyOf[connection.ProviderConnection])}
}

func (s *InMemoryConnectionStore) Create(ctx context.Context, c *connection.ProviderConnection) error {
	return s.InMemoryStore.Create(ctx, c.ID, c)
}

func (s *InMemoryConnectionStore) GetActive(ctx context.Context, provider types.ProviderType) (*connection.ProviderConnection, error) {
	found := s.List(ctx, func(c *connection.ProviderConnection) bool {
		return c.Provider == provider && c.Active
	})
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}
