package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/and161185/authgate/internal/model"
	"github.com/and161185/authgate/internal/repository"
)

// SecurityLogRepo writes user_security_logs rows.
type SecurityLogRepo struct{ db *DB }

// NewSecurityLogRepo constructs a security log repository.
func NewSecurityLogRepo(db *DB) *SecurityLogRepo { return &SecurityLogRepo{db: db} }

// Record inserts one event; metadata is stored as jsonb.
func (r *SecurityLogRepo) Record(ctx context.Context, ev model.SecurityEvent) error {
	meta, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	const q = `
INSERT INTO user_security_logs (user_id, event_type, ip_address, user_agent, metadata, created_at)
VALUES ($1, $2, $3, $4, $5::jsonb, now())`
	_, err = r.db.Pool.Exec(ctx, q, ev.UserID, ev.Type, ev.IP, ev.UserAgent, string(meta))
	return err
}

// SystemRepo implements health and introspection queries.
type SystemRepo struct{ db *DB }

// NewSystemRepo constructs a system repository.
func NewSystemRepo(db *DB) *SystemRepo { return &SystemRepo{db: db} }

// Ping runs SELECT 1.
func (r *SystemRepo) Ping(ctx context.Context) error {
	var one int
	return r.db.Pool.QueryRow(ctx, `SELECT 1 AS health_check`).Scan(&one)
}

// Columns lists columns of every table in schema.
func (r *SystemRepo) Columns(ctx context.Context, schema string) ([]repository.Column, error) {
	const q = `
SELECT table_schema, table_name, column_name, data_type, udt_name, column_default, is_nullable, ordinal_position
FROM information_schema.columns
WHERE table_schema = $1
ORDER BY table_name, ordinal_position`
	rows, err := r.db.Pool.Query(ctx, q, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.Column
	for rows.Next() {
		var (
			c        repository.Column
			nullable string
		)
		if err := rows.Scan(&c.TableSchema, &c.TableName, &c.ColumnName, &c.DataType, &c.ColumnType,
			&c.ColumnDefault, &nullable, &c.OrdinalPosition); err != nil {
			return nil, err
		}
		c.IsNullable = nullable == "YES"
		out = append(out, c)
	}
	return out, rows.Err()
}
