package testutil

import (
	"context"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/postgres"
)

var _ postgres.IClient = (*MockPostgresClient)(nil)

// MockPostgresClient runs transactional closures inline. The in-memory stores do
// not roll back, so tests assert on committed paths only.
type MockPostgresClient struct {
	// Transactions counts the outermost WithTx calls
	Transactions int
}

func NewMockPostgresClient() *MockPostgresClient {
	return &MockPostgresClient{}
}

type mockTxKey struct{}

func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if ctx.Value(mockTxKey{}) != nil {
		return fn(ctx)
	}
	c.Transactions++
	return fn(context.WithValue(ctx, mockTxKey{}, true))
}

func (c *MockPostgresClient) Querier(ctx context.Context) (postgres.Querier, error) {
	return nil, ierr.NewError("mock client has no database").Mark(ierr.ErrDatabase)
}
