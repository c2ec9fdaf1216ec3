package repository

import (
	"context"

	"github.com/and161185/authgate/internal/model"
)

// SecurityLogRepository appends audit rows for sensitive account changes.
type SecurityLogRepository interface {
	Record(ctx context.Context, ev model.SecurityEvent) error
}

// Column describes one column from information_schema.columns.
type Column struct {
	TableSchema     string
	TableName       string
	ColumnName      string
	DataType        string
	ColumnType      string
	ColumnDefault   *string
	IsNullable      bool
	OrdinalPosition int
}

// SystemRepository exposes database-level checks used by health and
// introspection endpoints.
type SystemRepository interface {
	// Ping runs a trivial query.
	Ping(ctx context.Context) error
	// Columns lists columns of every table in schema ordered by table and position.
	Columns(ctx context.Context, schema string) ([]Column, error)
}
