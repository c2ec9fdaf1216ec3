package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/and161185/authgate/internal/model"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func TestSecurityLogRepo_Record(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSecurityLogRepo(db)

	mock.ExpectExec(`INSERT INTO user_security_logs`).
		WithArgs(int64(3), model.EventPasswordReset, "1.2.3.4", "curl", `{"reset_method":"email_token"}`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	err := r.Record(context.Background(), model.SecurityEvent{
		UserID:    3,
		Type:      model.EventPasswordReset,
		IP:        "1.2.3.4",
		UserAgent: "curl",
		Metadata:  map[string]any{"reset_method": "email_token"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSystemRepo_Ping(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSystemRepo(db)

	mock.ExpectQuery(`SELECT 1`).WillReturnRows(pgxmock.NewRows([]string{"health_check"}).AddRow(1))
	require.NoError(t, r.Ping(context.Background()))

	mock.ExpectQuery(`SELECT 1`).WillReturnError(errors.New("conn refused"))
	require.Error(t, r.Ping(context.Background()))
}

func TestSystemRepo_Columns(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSystemRepo(db)
	def := "now()"

	mock.ExpectQuery(`FROM information_schema.columns`).
		WithArgs("public").
		WillReturnRows(pgxmock.NewRows([]string{
			"table_schema", "table_name", "column_name", "data_type", "udt_name", "column_default", "is_nullable", "ordinal_position",
		}).
			AddRow("public", "users", "id", "bigint", "int8", nil, "NO", 1).
			AddRow("public", "users", "created_at", "timestamp with time zone", "timestamptz", &def, "YES", 2))

	cols, err := r.Columns(context.Background(), "public")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	require.False(t, cols[0].IsNullable)
	require.Nil(t, cols[0].ColumnDefault)
	require.True(t, cols[1].IsNullable)
	require.Equal(t, "now()", *cols[1].ColumnDefault)
	require.Equal(t, 2, cols[1].OrdinalPosition)
}
