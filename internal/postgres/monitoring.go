package postgres

import (
	"context"

	"github.com/flexprice/billingcore/internal/logger"
	sentryService "github.com/flexprice/billingcore/internal/sentry"
	"github.com/flexprice/billingcore/internal/types"
)

// SentryClient opens a span per outermost transaction. Nested WithTx calls
// become savepoints and share the outer span.
type SentryClient struct {
	client IClient
	sentry *sentryService.Service
	logger *logger.Logger
}

func NewSentryClient(client IClient, sentry *sentryService.Service, logger *logger.Logger) IClient {
	return &SentryClient{client: client, sentry: sentry, logger: logger}
}

func (c *SentryClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if _, nested := GetTx(ctx); nested {
		return c.client.WithTx(ctx, fn)
	}

	span, spanCtx := c.sentry.StartDBSpan(ctx, "postgres.transaction", map[string]interface{}{
		"tenant_id":  types.GetTenantID(ctx),
		"request_id": types.GetRequestID(ctx),
	})
	err := c.client.WithTx(spanCtx, fn)
	sentryService.FinishSpanWithError(span, err)
	return err
}

func (c *SentryClient) Querier(ctx context.Context) (Querier, error) {
	return c.client.Querier(ctx)
}
