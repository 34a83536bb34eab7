package postgres

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/domain/subscription"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
)

const (
	subscriptionColumns = `id, customer_id, plan_id, previous_plan_id, subscription_status, currency,
	billing_timing, billing_period, billing_period_count, billing_anchor,
	current_period_start, current_period_end, trial_start, trial_end, cancel_at, canceled_at,
	payment_method_id, last_progressive_billing_at, version,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

	scheduledChangeColumns = `id, subscription_id, change_type, target_plan_id, due_at, change_status, applied_at,
	tenant_id, status, created_at, updated_at, created_by, updated_by`
)

type subscriptionRepository struct {
	base
}

func NewSubscriptionRepository(db postgres.IClient, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{base{db: db, logger: logger}}
}

func (r *subscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	if s.Version == 0 {
		s.Version = 1
	}
	query := `INSERT INTO subscriptions (` + subscriptionColumns + `) VALUES (
		:id, :customer_id, :plan_id, :previous_plan_id, :subscription_status, :currency,
		:billing_timing, :billing_period, :billing_period_count, :billing_anchor,
		:current_period_start, :current_period_end, :trial_start, :trial_end, :cancel_at, :canceled_at,
		:payment_method_id, :last_progressive_billing_at, :version,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.namedExec(ctx, query, s); err != nil {
		return writeError(err, "subscription")
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	return r.load(ctx, id, "")
}

func (r *subscriptionRepository) GetForUpdate(ctx context.Context, id string) (*subscription.Subscription, error) {
	return r.load(ctx, id, " FOR UPDATE")
}

func (r *subscriptionRepository) load(ctx context.Context, id, lock string) (*subscription.Subscription, error) {
	var s subscription.Subscription
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE id = $1 AND tenant_id = $2 AND status = $3` + lock
	if err := r.get(ctx, &s, query, id, types.GetTenantID(ctx), types.StatusPublished); err != nil {
		return nil, lookupError(err, "subscription", id)
	}
	return &s, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, s *subscription.Subscription) error {
	s.UpdatedAt = time.Now().UTC()
	s.UpdatedBy = types.GetActor(ctx)

	query := `UPDATE subscriptions SET
			plan_id = :plan_id,
			previous_plan_id = :previous_plan_id,
			subscription_status = :subscription_status,
			current_period_start = :current_period_start,
			current_period_end = :current_period_end,
			trial_start = :trial_start,
			trial_end = :trial_end,
			cancel_at = :cancel_at,
			canceled_at = :canceled_at,
			payment_method_id = :payment_method_id,
			last_progressive_billing_at = :last_progressive_billing_at,
			version = version + 1,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id AND version = :version`

	res, err := r.namedExec(ctx, query, s)
	if err != nil {
		return writeError(err, "subscription")
	}
	if err := expectOneRow(res, "subscription", s.ID); err != nil {
		return err
	}
	s.Version++
	return nil
}

func (r *subscriptionRepository) ListDueForLifecycle(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	query := `SELECT id FROM subscriptions
		WHERE tenant_id = $1
		AND status = $2
		AND subscription_status IN ($3, $4, $5)
		AND (
			cancel_at <= $6
			OR (subscription_status = $3 AND trial_end <= $6)
			OR (subscription_status = $4 AND cancel_at IS NULL AND current_period_end <= $6)
		)
		ORDER BY current_period_end
		LIMIT $7`
	err := r.selectAll(ctx, &ids, query,
		types.GetTenantID(ctx),
		types.StatusPublished,
		types.SubscriptionStatusTrialing,
		types.SubscriptionStatusActive,
		types.SubscriptionStatusPastDue,
		now,
		limit,
	)
	if err != nil {
		return nil, listError(err, "subscriptions")
	}
	return ids, nil
}

func (r *subscriptionRepository) CreateScheduledChange(ctx context.Context, c *subscription.ScheduledChange) error {
	query := `INSERT INTO scheduled_changes (` + scheduledChangeColumns + `) VALUES (
		:id, :subscription_id, :change_type, :target_plan_id, :due_at, :change_status, :applied_at,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.namedExec(ctx, query, c); err != nil {
		return writeError(err, "scheduled_change")
	}
	return nil
}

func (r *subscriptionRepository) GetPendingScheduledChange(ctx context.Context, subscriptionID string) (*subscription.ScheduledChange, error) {
	var c subscription.ScheduledChange
	query := `SELECT ` + scheduledChangeColumns + ` FROM scheduled_changes
		WHERE subscription_id = $1 AND tenant_id = $2 AND change_status = $3 AND status = $4`
	err := r.get(ctx, &c, query, subscriptionID, types.GetTenantID(ctx),
		types.ScheduledChangeStatusPending, types.StatusPublished)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, lookupError(err, "scheduled_change", subscriptionID)
	}
	return &c, nil
}

func (r *subscriptionRepository) UpdateScheduledChange(ctx context.Context, c *subscription.ScheduledChange) error {
	c.UpdatedAt = time.Now().UTC()
	query := `UPDATE scheduled_changes SET
			change_status = :change_status,
			applied_at = :applied_at,
			updated_at = :updated_at
		WHERE id = :id AND tenant_id = :tenant_id`
	res, err := r.namedExec(ctx, query, c)
	if err != nil {
		return writeError(err, "scheduled_change")
	}
	return expectFound(res, "scheduled_change", c.ID)
}
