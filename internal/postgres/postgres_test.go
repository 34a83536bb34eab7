package postgres

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cenkalti/backoff/v4"
	"github.com/flexprice/billingcore/internal/domain/tenant"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T, tenantID string) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	db := NewFromSQLX(sqlx.NewDb(conn, "postgres"), logger.NewNoopLogger())
	db.tenantID = tenantID
	return db, mock
}

func TestWithTxCommits(t *testing.T) {
	db, mock := newMockDB(t, "tenant_a")
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.WithTx(context.Background(), func(ctx context.Context) error {
		_, err := db.GetQuerier(ctx).ExecContext(ctx, "UPDATE wallets SET balance = 0")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t, "tenant_a")
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := db.WithTx(context.Background(), func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNestedWithTxUsesSavepoint(t *testing.T) {
	db, mock := newMockDB(t, "tenant_a")
	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT sp_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT sp_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := db.WithTx(context.Background(), func(ctx context.Context) error {
		inner := db.WithTx(ctx, func(ctx context.Context) error {
			return errors.New("inner failure")
		})
		assert.Error(t, inner)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type staticTenants map[string]*tenant.Tenant

func (s staticTenants) Get(_ context.Context, id string) (*tenant.Tenant, error) {
	t, ok := s[id]
	if !ok {
		return nil, ierr.NewError("tenant not found").Mark(ierr.ErrNotFound)
	}
	return t, nil
}

func (s staticTenants) ListActive(context.Context) ([]*tenant.Tenant, error) {
	out := make([]*tenant.Tenant, 0, len(s))
	for _, t := range s {
		out = append(out, t)
	}
	return out, nil
}

func TestTenantRegistryCachesPools(t *testing.T) {
	tenants := staticTenants{
		"tenant_a": {ID: "tenant_a", Schema: "t_a", Status: types.StatusPublished},
		"tenant_b": {ID: "tenant_b", Schema: "t_b", Status: types.StatusArchived},
	}
	var opened atomic.Int32
	opener := func(_ context.Context, tn *tenant.Tenant) (*DB, error) {
		opened.Add(1)
		db, _ := newMockDB(t, tn.ID)
		return db, nil
	}
	reg := NewTenantRegistryWithOpener(4, time.Hour, tenants, opener, logger.NewNoopLogger(), nil)
	defer reg.Close()

	ctx := types.WithTenant(context.Background(), "tenant_a")
	first, err := reg.ForContext(ctx)
	require.NoError(t, err)
	second, err := reg.ForTenant(ctx, "tenant_a")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.EqualValues(t, 1, opened.Load())

	_, err = reg.ForTenant(ctx, "tenant_b")
	assert.True(t, ierr.IsPermissionDenied(err))

	_, err = reg.ForTenant(ctx, "missing")
	assert.True(t, ierr.IsNotFound(err))

	_, err = reg.ForTenant(ctx, "")
	assert.True(t, ierr.IsValidation(err))
}

func TestRouterRejectsCrossTenantTransaction(t *testing.T) {
	tenants := staticTenants{
		"tenant_a": {ID: "tenant_a", Schema: "t_a", Status: types.StatusPublished},
		"tenant_b": {ID: "tenant_b", Schema: "t_b", Status: types.StatusPublished},
	}
	mocks := map[string]sqlmock.Sqlmock{}
	opener := func(_ context.Context, tn *tenant.Tenant) (*DB, error) {
		db, mock := newMockDB(t, tn.ID)
		mocks[tn.ID] = mock
		return db, nil
	}
	router := NewRouter(NewTenantRegistryWithOpener(4, time.Hour, tenants, opener, logger.NewNoopLogger(), nil))

	ctxA := types.WithTenant(context.Background(), "tenant_a")
	_, err := router.Querier(ctxA)
	require.NoError(t, err)
	mocks["tenant_a"].ExpectBegin()
	mocks["tenant_a"].ExpectRollback()

	err = router.WithTx(ctxA, func(txCtx context.Context) error {
		_, err := router.Querier(types.WithTenant(txCtx, "tenant_b"))
		return err
	})
	assert.True(t, ierr.IsInvalidOperation(err))
}

func TestSerializationFailureOnCommitIsVersionConflict(t *testing.T) {
	db, mock := newMockDB(t, "tenant_a")
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&pq.Error{Code: pgSerializationFailure})

	err := db.WithTx(context.Background(), func(ctx context.Context) error { return nil })
	assert.True(t, ierr.IsVersionConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailedRollbackKeepsOriginalError(t *testing.T) {
	db, mock := newMockDB(t, "tenant_a")
	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("connection reset"))

	boom := errors.New("boom")
	err := db.WithTx(context.Background(), func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSequentialSavepointsReuseDepthName(t *testing.T) {
	db, mock := newMockDB(t, "tenant_a")
	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT sp_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("RELEASE SAVEPOINT sp_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SAVEPOINT sp_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SAVEPOINT sp_2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("RELEASE SAVEPOINT sp_2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("RELEASE SAVEPOINT sp_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	noop := func(ctx context.Context) error { return nil }
	err := db.WithTx(context.Background(), func(ctx context.Context) error {
		require.NoError(t, db.WithTx(ctx, noop))
		return db.WithTx(ctx, func(ctx context.Context) error {
			return db.WithTx(ctx, noop)
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectBackOff(t *testing.T) {
	assert.Equal(t, backoff.Stop, connectBackOff(0).NextBackOff())

	b := connectBackOff(time.Minute)
	first := b.NextBackOff()
	assert.NotEqual(t, backoff.Stop, first)
	assert.LessOrEqual(t, first, 5*time.Second)
}
