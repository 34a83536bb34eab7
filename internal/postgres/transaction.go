package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// pgSerializationFailure is raised when a concurrent write invalidates the
// snapshot a transaction read from.
const pgSerializationFailure = "40001"

type txKey struct{}

// Tx is the transaction carried in a context. WithTx calls made while a Tx is
// in the context run inside a savepoint of the same Tx.
type Tx struct {
	*sqlx.Tx
	ID       string
	tenantID string
	depth    int
}

// GetTx returns the transaction carried by ctx
func GetTx(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*Tx)
	return tx, ok
}

// WithTx runs fn in a transaction. The transaction commits when fn returns nil
// and rolls back on error or panic. Nested calls roll back only their own work.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := GetTx(ctx); ok {
		if tx.tenantID != db.tenantID {
			return ierr.NewError("transaction belongs to another tenant").
				WithReportableDetails(map[string]interface{}{
					"tx_tenant_id": tx.tenantID,
					"db_tenant_id": db.tenantID,
				}).
				Mark(ierr.ErrInvalidOperation)
		}
		return db.withSavepoint(ctx, tx, fn)
	}

	sqlxTx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return ierr.WithError(err).WithHint("Failed to begin transaction").Mark(ierr.ErrDatabase)
	}
	tx := &Tx{Tx: sqlxTx, ID: types.GenerateUUID(), tenantID: db.tenantID}
	log := db.logger.WithContext(ctx).With("tx_id", tx.ID)
	log.Debugw("transaction started", "actor", types.GetActor(ctx))

	if err := run(context.WithValue(ctx, txKey{}, tx), fn, func() error { return tx.Rollback() }); err != nil {
		log.Debugw("transaction rolled back", "error", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		return txError(err, "Failed to commit transaction")
	}
	log.Debugw("transaction committed")
	return nil
}

func (db *DB) withSavepoint(ctx context.Context, tx *Tx, fn func(ctx context.Context) error) error {
	tx.depth++
	defer func() { tx.depth-- }()

	name := fmt.Sprintf("sp_%d", tx.depth)
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return txError(err, "Failed to create savepoint")
	}

	rollback := func() error {
		_, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
		return err
	}
	if err := run(ctx, fn, rollback); err != nil {
		db.logger.Debugw("savepoint rolled back", "tx_id", tx.ID, "savepoint", name, "error", err)
		return err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return txError(err, "Failed to release savepoint")
	}
	return nil
}

// run calls fn and undoes its work through rollback when it fails or panics.
func run(ctx context.Context, fn func(ctx context.Context) error, rollback func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			_ = rollback()
			panic(r)
		}
	}()

	if err = fn(ctx); err == nil {
		return nil
	}
	if rbErr := rollback(); rbErr != nil {
		return ierr.Join(err, txError(rbErr, "Failed to roll back transaction"))
	}
	return err
}

// txError classifies a transaction control failure. Serialization failures
// surface as version conflicts so the caller can retry the whole unit.
func txError(err error, hint string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgSerializationFailure {
		return ierr.WithError(err).
			WithHint("Concurrent update detected, retry the operation").
			Mark(ierr.ErrVersionConflict)
	}
	return ierr.WithError(err).WithHint(hint).Mark(ierr.ErrDatabase)
}
