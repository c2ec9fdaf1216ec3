package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, maxFails int) (*PG, pgxmock.PgxPoolIface, time.Time) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewPG(mock, 5*time.Minute, maxFails, 10*time.Minute)
	l.now = func() time.Time { return now }
	return l, mock, now
}

func TestAllow_NoRow_Allows(t *testing.T) {
	l, mock, _ := newLimiter(t, 5)
	mock.ExpectQuery(`SELECT blocked_until FROM auth_limiter`).
		WithArgs("alice", []byte("h")).
		WillReturnError(pgx.ErrNoRows)

	ok, wait, err := l.Allow(context.Background(), " Alice ", []byte("h"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, wait)
}

func TestAllow_Locked(t *testing.T) {
	l, mock, now := newLimiter(t, 5)
	mock.ExpectQuery(`SELECT blocked_until`).
		WithArgs("alice", []byte("h")).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(3 * time.Minute)))

	ok, wait, err := l.Allow(context.Background(), "alice", []byte("h"))
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 3*time.Minute, wait)
}

func TestAllow_ExpiredLock_Allows(t *testing.T) {
	l, mock, now := newLimiter(t, 5)
	mock.ExpectQuery(`SELECT blocked_until`).
		WithArgs("alice", []byte("h")).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(-time.Second)))

	ok, _, err := l.Allow(context.Background(), "alice", []byte("h"))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAllow_DBError(t *testing.T) {
	l, mock, _ := newLimiter(t, 5)
	mock.ExpectQuery(`SELECT blocked_until`).WillReturnError(errors.New("db down"))

	ok, _, err := l.Allow(context.Background(), "alice", []byte("h"))
	require.Error(t, err)
	require.False(t, ok)
}

func TestSuccess_Resets(t *testing.T) {
	l, mock, _ := newLimiter(t, 5)
	mock.ExpectExec(`INSERT INTO auth_limiter`).
		WithArgs("alice", []byte("h")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, l.Success(context.Background(), "alice", []byte("h")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure_BelowThreshold(t *testing.T) {
	l, mock, _ := newLimiter(t, 5)
	mock.ExpectQuery(`RETURNING fail_count`).
		WithArgs("alice", []byte("h"), 5*time.Minute).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(2))

	locked, wait, err := l.Failure(context.Background(), "alice", []byte("h"))
	require.NoError(t, err)
	require.False(t, locked)
	require.Zero(t, wait)
}

func TestFailure_LocksAtThreshold(t *testing.T) {
	l, mock, now := newLimiter(t, 3)
	mock.ExpectQuery(`RETURNING fail_count`).
		WithArgs("alice", []byte("h"), 5*time.Minute).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(3))
	mock.ExpectExec(`UPDATE auth_limiter SET blocked_until`).
		WithArgs("alice", []byte("h"), now.Add(10*time.Minute)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	locked, wait, err := l.Failure(context.Background(), "alice", []byte("h"))
	require.NoError(t, err)
	require.True(t, locked)
	require.Equal(t, 10*time.Minute, wait)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHashIP(t *testing.T) {
	a, b, c := HashIP("1.2.3.4"), HashIP("1.2.3.4"), HashIP("5.6.7.8")
	require.Len(t, a, 32)
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestNop(t *testing.T) {
	var l Limiter = Nop{}
	ok, _, err := l.Allow(context.Background(), "x", nil)
	require.NoError(t, err)
	require.True(t, ok)
}
