package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flexprice/billingcore/internal/config"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// IClient is the tenant data store accessor handed to repositories
type IClient interface {
	// WithTx runs fn in a transaction, nesting with savepoints when ctx already carries one
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Querier returns the transaction from ctx or a pooled handle
	Querier(ctx context.Context) (Querier, error)
}

// DB wraps sqlx.DB to provide transaction management
type DB struct {
	*sqlx.DB
	logger *logger.Logger
	// tenantID is empty for the central store
	tenantID string
}

// Querier interface defines all database operations
// Both *sqlx.DB and *sqlx.Tx implement these methods
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExec(query string, arg interface{}) (sql.Result, error)
	NamedQuery(query string, arg interface{}) (*sqlx.Rows, error)
	PrepareNamed(query string) (*sqlx.NamedStmt, error)
	Preparex(query string) (*sqlx.Stmt, error)
}

// NewDB connects to the central schema, retrying with exponential backoff for
// up to postgres.connect_timeout so the process can start alongside its database.
func NewDB(cfg *config.Configuration, logger *logger.Logger) (*DB, error) {
	var db *DB
	connect := func() error {
		var err error
		db, err = open(cfg.Postgres.GetDSN(), cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns,
			time.Duration(cfg.Postgres.ConnMaxLifetimeMinutes)*time.Minute, logger, "")
		if err != nil {
			logger.Warnw("central database not reachable", "host", cfg.Postgres.Host, "error", err)
		}
		return err
	}

	if err := backoff.Retry(connect, connectBackOff(cfg.Postgres.ConnectTimeout)); err != nil {
		return nil, err
	}
	return db, nil
}

func connectBackOff(timeout time.Duration) backoff.BackOff {
	if timeout <= 0 {
		return &backoff.StopBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = timeout
	return b
}

// NewFromSQLX wraps an existing handle. Used by tests running against sqlmock.
func NewFromSQLX(db *sqlx.DB, logger *logger.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

func open(dsn string, maxOpen, maxIdle int, lifetime time.Duration, logger *logger.Logger, tenantID string) (*DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Could not connect to the database").
			WithReportableDetails(map[string]interface{}{"tenant_id": tenantID}).
			Mark(ierr.ErrDatabase)
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	if lifetime > 0 {
		db.SetConnMaxLifetime(lifetime)
	}

	return &DB{DB: db, logger: logger, tenantID: tenantID}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if err := db.DB.Close(); err != nil {
		db.logger.Errorw("error closing database", "tenant_id", db.tenantID, "error", err)
	}
}

// GetQuerier returns either the transaction from context or the base DB.
// A transaction opened on another pool is ignored.
func (db *DB) GetQuerier(ctx context.Context) Querier {
	if tx, ok := GetTx(ctx); ok && tx.tenantID == db.tenantID {
		return NewTracedQuerier(tx.Tx, db.logger, db.tenantID, tx.ID)
	}
	return NewTracedQuerier(db.DB, db.logger, db.tenantID, "")
}

func (db *DB) Querier(ctx context.Context) (Querier, error) {
	return db.GetQuerier(ctx), nil
}

// NamedExecContext is a helper method that wraps NamedExec with context
func (db *DB) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	return db.GetQuerier(ctx).NamedExec(query, arg)
}

// NamedQueryContext is a helper method that wraps NamedQuery with context
func (db *DB) NamedQueryContext(ctx context.Context, query string, arg interface{}) (*sqlx.Rows, error) {
	return db.GetQuerier(ctx).NamedQuery(query, arg)
}
