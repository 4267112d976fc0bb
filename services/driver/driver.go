// Package driver owns connections to target databases: one pool per
// physical database and credentials, keyed by the config fingerprint.
package driver

import (
	"context"
	"time"

	"dbautorest/models"
	"dbautorest/services/dialect"
)

// Row is one record as returned to callers.
type Row = map[string]any

// Column is a live column as reported by the database.
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"dataType"`
}

// Table is a table, view or collection found by discovery.
type Table struct {
	Schema string `json:"schema,omitempty"`
	Name   string `json:"name"`
	Kind   string `json:"kind"` // models.KindTable, KindView or KindCollection
}

// Executor runs built plans against one database.
type Executor interface {
	Kind() dialect.Kind
	Columns(ctx context.Context, t dialect.TableRef) ([]Column, error)
	Tables(ctx context.Context) ([]Table, error)
	Query(ctx context.Context, plan *dialect.Plan) ([]Row, error)
	Count(ctx context.Context, plan *dialect.Plan) (int64, error)
	Close() error
}

// PoolOptions tune the pools created by the manager.
type PoolOptions struct {
	MaxOpen      int
	MaxIdle      int
	ConnLifetime time.Duration
	DialTimeout  time.Duration
}

// Opener creates an executor for a config.
type Opener func(ctx context.Context, cfg models.ConnectionConfig, opts PoolOptions) (Executor, error)

// Open is the default Opener.
func Open(ctx context.Context, cfg models.ConnectionConfig, opts PoolOptions) (Executor, error) {
	kind, err := dialect.ParseKind(cfg.Type)
	if err != nil {
		return nil, err
	}
	switch kind {
	case dialect.Postgres:
		return openPostgres(ctx, cfg, opts)
	case dialect.MySQL:
		return openMySQL(ctx, cfg, opts)
	case dialect.MSSQL:
		return openMSSQL(ctx, cfg, opts)
	case dialect.MongoDB:
		return openMongo(ctx, cfg, opts)
	}
	return nil, err
}

// ColumnNames returns just the names.
func ColumnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
