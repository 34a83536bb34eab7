package postgres

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/webhook"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
)

const (
	webhookEndpointColumns = `id, url, secret, enabled, excluded_events,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

	webhookLogColumns = `id, tenant_id, event_id, event_name, endpoint_url, status_code, success,
	attempt_count, response_body, error, created_at`
)

type webhookRepository struct {
	base
}

func NewWebhookRepository(db postgres.IClient, logger *logger.Logger) webhook.Repository {
	return &webhookRepository{base{db: db, logger: logger}}
}

func (r *webhookRepository) GetEndpoint(ctx context.Context) (*webhook.Endpoint, error) {
	var e webhook.Endpoint
	query := `SELECT ` + webhookEndpointColumns + ` FROM webhook_endpoints
		WHERE tenant_id = $1 AND status = $2 AND enabled
		ORDER BY created_at DESC
		LIMIT 1`
	err := r.get(ctx, &e, query, types.GetTenantID(ctx), types.StatusPublished)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, lookupError(err, "webhook_endpoint", types.GetTenantID(ctx))
	}
	return &e, nil
}

func (r *webhookRepository) CreateEndpoint(ctx context.Context, e *webhook.Endpoint) error {
	query := `INSERT INTO webhook_endpoints (` + webhookEndpointColumns + `) VALUES (
		:id, :url, :secret, :enabled, :excluded_events,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.namedExec(ctx, query, e); err != nil {
		return writeError(err, "webhook_endpoint")
	}
	return nil
}

func (r *webhookRepository) CreateLog(ctx context.Context, l *webhook.Log) error {
	query := `INSERT INTO webhook_logs (` + webhookLogColumns + `) VALUES (
		:id, :tenant_id, :event_id, :event_name, :endpoint_url, :status_code, :success,
		:attempt_count, :response_body, :error, :created_at)`
	if _, err := r.namedExec(ctx, query, l); err != nil {
		return writeError(err, "webhook_log")
	}
	return nil
}

func (r *webhookRepository) CountAttempts(ctx context.Context, eventID string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM webhook_logs WHERE tenant_id = $1 AND event_id = $2`
	if err := r.get(ctx, &n, query, types.GetTenantID(ctx), eventID); err != nil {
		return 0, lookupError(err, "webhook_log", eventID)
	}
	return n, nil
}

func (r *webhookRepository) ListLogs(ctx context.Context, eventID string) ([]*webhook.Log, error) {
	var out []*webhook.Log
	query := `SELECT ` + webhookLogColumns + ` FROM webhook_logs
		WHERE tenant_id = $1 AND event_id = $2
		ORDER BY attempt_count`
	if err := r.selectAll(ctx, &out, query, types.GetTenantID(ctx), eventID); err != nil {
		return nil, listError(err, "webhook_logs")
	}
	return out, nil
}
