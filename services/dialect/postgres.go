package dialect

import "strconv"

// NewPostgres returns the builder for PostgreSQL ($n placeholders).
func NewPostgres() SQLBuilder {
	return &sqlBuilder{style: sqlStyle{
		kind:      Postgres,
		quote:     func(name string) string { return quoteWith(`"`, `"`, name) },
		bind:      func(n int) string { return "$" + strconv.Itoa(n) },
		arg:       func(_ int, v any) any { return v },
		falseExpr: "FALSE",
		ilike:     func(col, param string) string { return col + " ILIKE " + param },
		paginate: func(b *bindings, limit, offset int) string {
			l := b.add(limit)
			o := b.add(offset)
			return " LIMIT " + l + " OFFSET " + o
		},
	}}
}

func (s *sqlBuilder) columnsQueryPostgres(t TableRef) (string, []any) {
	schema := t.Schema
	if schema == "" {
		schema = "public"
	}
	return `SELECT column_name, data_type FROM information_schema.columns ` +
		`WHERE table_schema = $1 AND table_name = $2 ORDER BY ordinal_position`, []any{schema, t.Name}
}

func (s *sqlBuilder) tablesQueryPostgres() (string, []any) {
	return `SELECT table_schema, table_name, table_type FROM information_schema.tables ` +
		`WHERE table_catalog = current_database() ORDER BY table_schema, table_name`, nil
}
