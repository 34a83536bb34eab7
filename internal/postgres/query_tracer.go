package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/flexprice/billingcore/internal/logger"
	"github.com/jmoiron/sqlx"
)

// slowQuery is the duration above which a successful statement is logged at warn
const slowQuery = 500 * time.Millisecond

// TracedQuerier logs every statement with its tenant, transaction and duration.
// Arguments are never logged; they may carry customer data.
type TracedQuerier struct {
	Querier
	logger   *logger.Logger
	tenantID string
	txID     string
}

func NewTracedQuerier(q Querier, logger *logger.Logger, tenantID, txID string) *TracedQuerier {
	return &TracedQuerier{
		Querier:  q,
		logger:   logger,
		tenantID: tenantID,
		txID:     txID,
	}
}

// trace returns the callback that records one statement's outcome.
// A lookup miss is reported as sql.ErrNoRows and is not a failure.
func (tq *TracedQuerier) trace(ctx context.Context, query string, args int) func(error) {
	start := time.Now()
	return func(err error) {
		elapsed := time.Since(start)
		fields := []interface{}{
			"duration_ms", elapsed.Milliseconds(),
			"query", query,
			"args", args,
		}
		if tq.tenantID != "" {
			fields = append(fields, "tenant_id", tq.tenantID)
		}
		if tq.txID != "" {
			fields = append(fields, "tx_id", tq.txID)
		}

		log := tq.logger.WithContext(ctx)
		switch {
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			log.Errorw("database query failed", append(fields, "error", err.Error())...)
		case elapsed > slowQuery:
			log.Warnw("slow database query", fields...)
		default:
			log.Debugw("database query completed", fields...)
		}
	}
}

func (tq *TracedQuerier) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	done := tq.trace(ctx, query, len(args))
	result, err := tq.Querier.ExecContext(ctx, query, args...)
	done(err)
	return result, err
}

func (tq *TracedQuerier) NamedExec(query string, arg interface{}) (sql.Result, error) {
	done := tq.trace(context.Background(), query, 1)
	result, err := tq.Querier.NamedExec(query, arg)
	done(err)
	return result, err
}

func (tq *TracedQuerier) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	done := tq.trace(ctx, query, len(args))
	rows, err := tq.Querier.QueryContext(ctx, query, args...)
	done(err)
	return rows, err
}

func (tq *TracedQuerier) NamedQuery(query string, arg interface{}) (*sqlx.Rows, error) {
	done := tq.trace(context.Background(), query, 1)
	rows, err := tq.Querier.NamedQuery(query, arg)
	done(err)
	return rows, err
}

func (tq *TracedQuerier) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	done := tq.trace(ctx, query, len(args))
	err := tq.Querier.GetContext(ctx, dest, query, args...)
	done(err)
	return err
}

func (tq *TracedQuerier) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	done := tq.trace(ctx, query, len(args))
	err := tq.Querier.SelectContext(ctx, dest, query, args...)
	done(err)
	return err
}
