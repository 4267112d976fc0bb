package dialect

import (
	"database/sql"
	"strconv"
)

// NewMSSQL returns the builder for SQL Server. Parameters are named
// @param1..@paramN across the WHERE clause and pagination, and are passed as
// sql.NamedArg so the same list is valid for the driver.
func NewMSSQL() SQLBuilder {
	return &sqlBuilder{style: sqlStyle{
		kind:         MSSQL,
		quote:        func(name string) string { return quoteWith("[", "]", name) },
		bind:         func(n int) string { return "@param" + strconv.Itoa(n) },
		arg:          func(n int, v any) any { return sql.Named("param"+strconv.Itoa(n), v) },
		falseExpr:    "1=0",
		ilike:        likeLower,
		requireOrder: true,
		paginate: func(b *bindings, limit, offset int) string {
			o := b.add(offset)
			l := b.add(limit)
			return " OFFSET " + o + " ROWS FETCH NEXT " + l + " ROWS ONLY"
		},
	}}
}

func (s *sqlBuilder) columnsQueryMSSQL(t TableRef) (string, []any) {
	schema := t.Schema
	if schema == "" {
		schema = "dbo"
	}
	query := "SELECT COLUMN_NAME, DATA_TYPE FROM INFORMATION_SCHEMA.COLUMNS " +
		"WHERE TABLE_SCHEMA = @param1 AND TABLE_NAME = @param2 ORDER BY ORDINAL_POSITION"
	return query, []any{sql.Named("param1", schema), sql.Named("param2", t.Name)}
}

func (s *sqlBuilder) tablesQueryMSSQL() (string, []any) {
	return "SELECT TABLE_SCHEMA, TABLE_NAME, TABLE_TYPE FROM INFORMATION_SCHEMA.TABLES " +
		"ORDER BY TABLE_SCHEMA, TABLE_NAME", nil
}
