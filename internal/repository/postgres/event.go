package postgres

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/events"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
)

const eventColumns = `id, tenant_id, transaction_id, subscription_id, metric_code, timestamp, properties, created_at`

type eventRepository struct {
	base
}

func NewEventRepository(db postgres.IClient, logger *logger.Logger) events.Repository {
	return &eventRepository{base{db: db, logger: logger}}
}

func (r *eventRepository) InsertIfAbsent(ctx context.Context, e *events.UsageEvent) (*events.UsageEvent, bool, error) {
	query := `INSERT INTO usage_events (` + eventColumns + `) VALUES (
		:id, :tenant_id, :transaction_id, :subscription_id, :metric_code, :timestamp, :properties, :created_at)
		ON CONFLICT (tenant_id, transaction_id) DO NOTHING`

	res, err := r.namedExec(ctx, query, e)
	if err != nil {
		return nil, false, writeError(err, "usage_event")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, writeError(err, "usage_event")
	}
	if n == 1 {
		return e, true, nil
	}

	r.logger.Debugw("usage event already recorded",
		"transaction_id", e.TransactionID,
		"tenant_id", e.TenantID,
	)
	existing, err := r.GetByTransactionID(ctx, e.TransactionID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *eventRepository) GetByTransactionID(ctx context.Context, transactionID string) (*events.UsageEvent, error) {
	var e events.UsageEvent
	query := `SELECT ` + eventColumns + ` FROM usage_events WHERE tenant_id = $1 AND transaction_id = $2`
	if err := r.get(ctx, &e, query, types.GetTenantID(ctx), transactionID); err != nil {
		return nil, lookupError(err, "usage_event", transactionID)
	}
	return &e, nil
}

func (r *eventRepository) List(ctx context.Context, filter *events.UsageFilter) ([]*events.UsageEvent, error) {
	var out []*events.UsageEvent
	query := `SELECT ` + eventColumns + ` FROM usage_events
		WHERE tenant_id = $1
		AND subscription_id = $2
		AND metric_code = $3
		AND timestamp >= $4
		AND timestamp < $5
		ORDER BY timestamp, seq`
	err := r.selectAll(ctx, &out, query,
		types.GetTenantID(ctx), filter.SubscriptionID, filter.MetricCode, filter.From, filter.To)
	if err != nil {
		return nil, listError(err, "usage_events")
	}
	return out, nil
}
