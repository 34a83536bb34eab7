package integration

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/connection"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/integration/stripe"
	"github.com/flexprice/billingcore/internal/interfaces"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/types"
)

// Factory builds the payment provider adapter of the tenant in context from its
// stored connection
type Factory struct {
	connectionRepo connection.Repository
	codec          interfaces.SecretsCodec
	logger         *logger.Logger
}

var _ interfaces.ProviderResolver = (*Factory)(nil)

func NewFactory(
	connectionRepo connection.Repository,
	codec interfaces.SecretsCodec,
	logger *logger.Logger,
) *Factory {
	return &Factory{
		connectionRepo: connectionRepo,
		codec:          codec,
		logger:         logger,
	}
}

// Resolve returns the tenant's active provider. Stripe is the only adapter today.
func (f *Factory) Resolve(ctx context.Context) (interfaces.PaymentProvider, error) {
	return f.ResolveByType(ctx, types.ProviderStripe)
}

// ResolveByType returns the adapter for provider, failing with ErrConfiguration
// when the tenant has no active connection for it
func (f *Factory) ResolveByType(ctx context.Context, provider types.ProviderType) (interfaces.PaymentProvider, error) {
	conn, err := f.connectionRepo.GetActive(ctx, provider)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, ierr.NewError("no active payment provider").
			WithHintf("No active %s connection is configured", provider).
			WithReportableDetails(map[string]any{
				"provider":  provider,
				"tenant_id": types.GetTenantID(ctx),
			}).
			Mark(ierr.ErrConfiguration)
	}

	switch provider {
	case types.ProviderStripe:
		return stripe.NewProviderFromConnection(conn, f.codec, f.logger)
	}

	return nil, ierr.NewError("unsupported payment provider").
		WithHintf("Payment provider %s is not supported", provider).
		Mark(ierr.ErrConfiguration)
}
