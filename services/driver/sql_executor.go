package driver

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"dbautorest/models"
	"dbautorest/services/dialect"
)

type sqlExecutor struct {
	db      *sql.DB
	builder dialect.SQLBuilder
}

// NewSQLExecutor wraps an open *sql.DB for kind.
func NewSQLExecutor(db *sql.DB, kind dialect.Kind) (Executor, error) {
	b, err := dialect.For(kind)
	if err != nil {
		return nil, err
	}
	sb, ok := b.(dialect.SQLBuilder)
	if !ok {
		return nil, fmt.Errorf("%s is not a SQL dialect", kind)
	}
	return &sqlExecutor{db: db, builder: sb}, nil
}

func openSQL(ctx context.Context, db *sql.DB, kind dialect.Kind, opts PoolOptions) (Executor, error) {
	if opts.MaxOpen > 0 {
		db.SetMaxOpenConns(opts.MaxOpen)
	}
	if opts.MaxIdle > 0 {
		db.SetMaxIdleConns(opts.MaxIdle)
	}
	if opts.ConnLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnLifetime)
	}
	pingCtx := ctx
	if opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewSQLExecutor(db, kind)
}

func (e *sqlExecutor) Kind() dialect.Kind { return e.builder.Kind() }

func (e *sqlExecutor) Columns(ctx context.Context, t dialect.TableRef) ([]Column, error) {
	query, args := e.builder.ColumnsQuery(t)
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect columns of %s: %w", t.Name, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.DataType); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		c.DataType = strings.ToLower(c.DataType)
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (e *sqlExecutor) Tables(ctx context.Context) ([]Table, error) {
	query, args := e.builder.TablesQuery()
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var schema, name, typ sql.NullString
		if err := rows.Scan(&schema, &name, &typ); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		kind := models.KindTable
		if strings.Contains(strings.ToUpper(typ.String), "VIEW") {
			kind = models.KindView
		}
		tables = append(tables, Table{Schema: schema.String, Name: name.String, Kind: kind})
	}
	return tables, rows.Err()
}

func (e *sqlExecutor) Query(ctx context.Context, plan *dialect.Plan) ([]Row, error) {
	rows, err := e.db.QueryContext(ctx, plan.SQL, plan.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

func (e *sqlExecutor) Count(ctx context.Context, plan *dialect.Plan) (int64, error) {
	var total int64
	if err := e.db.QueryRowContext(ctx, plan.CountSQL, plan.CountArgs...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (e *sqlExecutor) Close() error {
	return e.db.Close()
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	out := []Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c.Name()] = normalizeValue(values[i], c.DatabaseTypeName())
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// normalizeValue converts driver byte slices into typed values using the
// column's database type, so text-protocol drivers return numbers as numbers.
func normalizeValue(v any, dbType string) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	s := string(b)
	switch t := strings.ToUpper(dbType); {
	case strings.Contains(t, "INT") || t == "YEAR":
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return u
		}
	case strings.Contains(t, "FLOAT") || strings.Contains(t, "DOUBLE") || t == "REAL" ||
		strings.Contains(t, "DECIMAL") || strings.Contains(t, "NUMERIC") || t == "MONEY":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case t == "BOOL" || t == "BOOLEAN" || t == "BIT":
		if bv, err := strconv.ParseBool(s); err == nil {
			return bv
		}
	case strings.Contains(t, "BLOB") || strings.Contains(t, "BINARY") || t == "BYTEA" || t == "IMAGE":
		return b
	}
	return s
}
