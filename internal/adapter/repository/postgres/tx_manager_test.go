package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()

	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func assertExpectations(t *testing.T, pool pgxmock.PgxPoolIface) {
	t.Helper()
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestBeginUsesReadCommitted(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	pool.ExpectCommit()

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Commit(context.Background()))

	assertExpectations(t, pool)
}

func TestBeginErrorIsWrapped(t *testing.T) {
	pool := newMockPool(t)
	beginErr := errors.New("too many connections")
	pool.ExpectBeginTx(moneyTxOptions).WillReturnError(beginErr)

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	require.ErrorIs(t, err, beginErr)
	assert.Nil(t, tx)
}

func TestRollbackAfterCommitIsNoop(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBeginTx(moneyTxOptions)
	pool.ExpectCommit()

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Commit(context.Background()))
	require.NoError(t, tx.Rollback(context.Background()))

	assertExpectations(t, pool)
}

func TestRollbackRunsOnce(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBeginTx(moneyTxOptions)
	pool.ExpectRollback()

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(context.Background()))
	require.NoError(t, tx.Rollback(context.Background()))

	assertExpectations(t, pool)
}

func TestConnPicksTransaction(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBeginTx(moneyTxOptions)

	assert.Equal(t, DBTX(pool), conn(pool, nil))

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, DBTX(pool), conn(pool, tx))
}
