package dialect

// NewMySQL returns the builder for MySQL and MariaDB (? placeholders).
func NewMySQL() SQLBuilder {
	return &sqlBuilder{style: sqlStyle{
		kind:      MySQL,
		quote:     func(name string) string { return quoteWith("`", "`", name) },
		bind:      func(int) string { return "?" },
		arg:       func(_ int, v any) any { return v },
		falseExpr: "1=0",
		ilike:     likeLower,
		paginate: func(b *bindings, limit, offset int) string {
			l := b.add(limit)
			o := b.add(offset)
			return " LIMIT " + l + " OFFSET " + o
		},
	}}
}

func (s *sqlBuilder) columnsQueryMySQL(t TableRef) (string, []any) {
	if t.Schema == "" {
		return "SELECT COLUMN_NAME, DATA_TYPE FROM information_schema.COLUMNS " +
			"WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION", []any{t.Name}
	}
	return "SELECT COLUMN_NAME, DATA_TYPE FROM information_schema.COLUMNS " +
		"WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION", []any{t.Schema, t.Name}
}

func (s *sqlBuilder) tablesQueryMySQL() (string, []any) {
	return "SELECT TABLE_SCHEMA, TABLE_NAME, TABLE_TYPE FROM information_schema.TABLES " +
		"WHERE TABLE_SCHEMA = DATABASE() ORDER BY TABLE_NAME", nil
}
