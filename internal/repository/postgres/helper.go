package postgres

import (
	"context"
	"database/sql"
	"errors"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/lib/pq"
)

// pgUniqueViolation is the SQLSTATE of a unique constraint violation
const pgUniqueViolation = "23505"

type base struct {
	db     postgres.IClient
	logger *logger.Logger
}

func (b *base) querier(ctx context.Context) (postgres.Querier, error) {
	return b.db.Querier(ctx)
}

// namedExec binds arg into query and runs it on the transaction in ctx, if any
func (b *base) namedExec(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	q, err := b.querier(ctx)
	if err != nil {
		return nil, err
	}
	return q.NamedExec(query, arg)
}

func (b *base) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	q, err := b.querier(ctx)
	if err != nil {
		return err
	}
	return q.GetContext(ctx, dest, query, args...)
}

func (b *base) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	q, err := b.querier(ctx)
	if err != nil {
		return err
	}
	return q.SelectContext(ctx, dest, query, args...)
}

func (b *base) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	q, err := b.querier(ctx)
	if err != nil {
		return nil, err
	}
	return q.ExecContext(ctx, query, args...)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// lookupError maps a single-row lookup failure onto the error taxonomy
func lookupError(err error, entity, id string) error {
	if isNoRows(err) {
		return ierr.WithError(err).
			WithHintf("%s not found", entity).
			WithReportableDetails(map[string]interface{}{entity + "_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return ierr.WithError(err).
		WithHintf("failed to load %s", entity).
		Mark(ierr.ErrDatabase)
}

// writeError maps an insert or update failure onto the error taxonomy
func writeError(err error, entity string) error {
	if isUniqueViolation(err) {
		return ierr.WithError(err).
			WithHintf("%s already exists", entity).
			Mark(ierr.ErrAlreadyExists)
	}
	return ierr.WithError(err).
		WithHintf("failed to write %s", entity).
		Mark(ierr.ErrDatabase)
}

func listError(err error, entity string) error {
	return ierr.WithError(err).
		WithHintf("failed to list %s", entity).
		Mark(ierr.ErrDatabase)
}

// expectOneRow turns an update that matched nothing into a version conflict
func expectOneRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	if n == 0 {
		return ierr.NewError(entity + " was modified concurrently").
			WithHint("Reload and retry the operation").
			WithReportableDetails(map[string]interface{}{entity + "_id": id}).
			Mark(ierr.ErrVersionConflict)
	}
	return nil
}

// expectFound turns an update that matched nothing into not found
func expectFound(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	if n == 0 {
		return ierr.NewError(entity+" not found").
			WithReportableDetails(map[string]interface{}{entity + "_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
