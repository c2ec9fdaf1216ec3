package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/and161185/authgate/internal/repository"
	"go.uber.org/zap"
)

const pingTimeout = 2 * time.Second

// HealthReport is the outcome of one health probe.
type HealthReport struct {
	Healthy      bool
	Database     string
	Version      string
	ResponseTime time.Duration
	Timestamp    time.Time
}

// Status is "healthy" or "degraded".
func (h HealthReport) Status() string {
	if h.Healthy {
		return "healthy"
	}
	return "degraded"
}

// SchemaColumn describes a column in the schema overview.
type SchemaColumn struct {
	Name            string  `json:"name"`
	DataType        string  `json:"dataType"`
	ColumnType      string  `json:"columnType"`
	IsNullable      bool    `json:"isNullable"`
	DefaultValue    *string `json:"defaultValue"`
	OrdinalPosition int     `json:"ordinalPosition"`
}

// SchemaTable groups the columns of one table.
type SchemaTable struct {
	Name    string         `json:"name"`
	Schema  string         `json:"schema"`
	Columns []SchemaColumn `json:"columns"`
}

// SchemaOverview is the database layout served to tooling.
type SchemaOverview struct {
	GeneratedAt time.Time     `json:"generatedAt"`
	Database    string        `json:"database"`
	TableCount  int           `json:"tableCount"`
	Tables      []SchemaTable `json:"tables"`
}

// SystemService answers health and schema introspection requests.
type SystemService struct {
	repo    repository.SystemRepository
	version string
	schema  string
	outPath string
	log     *zap.Logger
	now     func() time.Time
}

// NewSystemService builds the service. outPath, when set, receives a JSON copy
// of every generated schema overview.
func NewSystemService(repo repository.SystemRepository, version, schema, outPath string, log *zap.Logger) *SystemService {
	if log == nil {
		log = zap.NewNop()
	}
	if schema == "" {
		schema = "public"
	}
	return &SystemService{repo: repo, version: version, schema: schema, outPath: outPath, log: log, now: time.Now}
}

// Version is the build version reported by health checks.
func (s *SystemService) Version() string { return s.version }

// Health pings the database.
func (s *SystemService) Health(ctx context.Context) HealthReport {
	start := s.now()
	rep := HealthReport{Healthy: true, Database: "operational", Version: s.version, Timestamp: start.UTC()}

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.repo.Ping(pctx); err != nil {
		s.log.Error("health check: database unreachable", zap.Error(err))
		rep.Healthy = false
		rep.Database = "degraded"
	}
	rep.ResponseTime = s.now().Sub(start)
	return rep
}

// DescribeSchema lists every table of the configured schema with its columns
// in ordinal order. It returns the path the overview was saved to, if any.
func (s *SystemService) DescribeSchema(ctx context.Context) (*SchemaOverview, string, error) {
	cols, err := s.repo.Columns(ctx, s.schema)
	if err != nil {
		return nil, "", fmt.Errorf("list columns: %w", err)
	}

	byTable := map[string]*SchemaTable{}
	var order []string
	for _, c := range cols {
		t, ok := byTable[c.TableName]
		if !ok {
			t = &SchemaTable{Name: c.TableName, Schema: c.TableSchema}
			byTable[c.TableName] = t
			order = append(order, c.TableName)
		}
		t.Columns = append(t.Columns, SchemaColumn{
			Name:            c.ColumnName,
			DataType:        c.DataType,
			ColumnType:      c.ColumnType,
			IsNullable:      c.IsNullable,
			DefaultValue:    c.ColumnDefault,
			OrdinalPosition: c.OrdinalPosition,
		})
	}
	sort.Strings(order)

	ov := &SchemaOverview{GeneratedAt: s.now().UTC(), Database: s.schema, TableCount: len(order)}
	for _, name := range order {
		t := byTable[name]
		sort.SliceStable(t.Columns, func(i, j int) bool { return t.Columns[i].OrdinalPosition < t.Columns[j].OrdinalPosition })
		ov.Tables = append(ov.Tables, *t)
	}

	if s.outPath == "" {
		return ov, "", nil
	}
	if err := persistJSON(s.outPath, ov); err != nil {
		s.log.Warn("schema overview not saved", zap.String("path", s.outPath), zap.Error(err))
		return ov, "", nil
	}
	return ov, s.outPath, nil
}

func persistJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
