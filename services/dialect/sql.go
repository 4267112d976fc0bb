package dialect

import (
	"fmt"
	"strings"

	"dbautorest/pkg/apperror"
	"dbautorest/services/filter"
)

// sqlStyle captures what differs between the SQL families.
type sqlStyle struct {
	kind         Kind
	quote        func(name string) string
	bind         func(n int) string // placeholder for the n-th parameter, 1-based
	arg          func(n int, v any) any
	falseExpr    string
	ilike        func(col, param string) string
	requireOrder bool // synthesize ORDER BY when the caller gave none
	paginate     func(b *bindings, limit, offset int) string
}

// bindings accumulates parameters in the order their placeholders appear.
type bindings struct {
	style *sqlStyle
	args  []any
}

func (b *bindings) add(v any) string {
	n := len(b.args) + 1
	b.args = append(b.args, b.style.arg(n, v))
	return b.style.bind(n)
}

type sqlBuilder struct {
	style sqlStyle
}

func (s *sqlBuilder) Kind() Kind { return s.style.kind }

// QuoteIdent quotes a single identifier.
func (s *sqlBuilder) QuoteIdent(name string) string { return s.style.quote(name) }

func (s *sqlBuilder) table(t TableRef) string {
	if t.Schema == "" {
		return s.style.quote(t.Name)
	}
	return s.style.quote(t.Schema) + "." + s.style.quote(t.Name)
}

func (s *sqlBuilder) projection(fields []string) string {
	if len(fields) == 0 {
		return "*"
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = s.style.quote(f)
	}
	return strings.Join(quoted, ", ")
}

func (s *sqlBuilder) orderBy(sort []filter.SortField) string {
	if len(sort) == 0 {
		return ""
	}
	terms := make([]string, len(sort))
	for i, f := range sort {
		dir := "ASC"
		if f.Desc {
			dir = "DESC"
		}
		terms[i] = s.style.quote(f.Field) + " " + dir
	}
	return strings.Join(terms, ", ")
}

// where renders n into a WHERE clause (without the keyword) and its parameters.
func (s *sqlBuilder) where(n *filter.Node) (string, []any, error) {
	if n == nil {
		return "", nil, nil
	}
	b := &bindings{style: &s.style}
	clause, err := s.node(b, n)
	if err != nil {
		return "", nil, err
	}
	return clause, b.args, nil
}

func (s *sqlBuilder) node(b *bindings, n *filter.Node) (string, error) {
	if n.IsCondition() {
		return s.condition(b, n)
	}
	parts := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		p, err := s.node(b, c)
		if err != nil {
			return "", err
		}
		parts = append(parts, p)
	}
	sep := " AND "
	if n.Logic == filter.LogicOr {
		sep = " OR "
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (s *sqlBuilder) condition(b *bindings, n *filter.Node) (string, error) {
	col := s.style.quote(n.Field)
	switch n.Op {
	case filter.OpEq:
		if n.Value == nil {
			return col + " IS NULL", nil
		}
		return col + " = " + b.add(n.Value), nil
	case filter.OpNeq:
		if n.Value == nil {
			return col + " IS NOT NULL", nil
		}
		return col + " <> " + b.add(n.Value), nil
	case filter.OpGt:
		return col + " > " + b.add(n.Value), nil
	case filter.OpGte:
		return col + " >= " + b.add(n.Value), nil
	case filter.OpLt:
		return col + " < " + b.add(n.Value), nil
	case filter.OpLte:
		return col + " <= " + b.add(n.Value), nil
	case filter.OpIn:
		values, _ := n.Value.([]any)
		if len(values) == 0 {
			return s.style.falseExpr, nil
		}
		ph := make([]string, len(values))
		for i, v := range values {
			ph[i] = b.add(v)
		}
		return col + " IN (" + strings.Join(ph, ", ") + ")", nil
	case filter.OpLike:
		return col + " LIKE " + b.add(n.Value), nil
	case filter.OpILike:
		return s.style.ilike(col, b.add(n.Value)), nil
	case filter.OpBetween:
		values, _ := n.Value.([]any)
		if len(values) != 2 {
			return "", apperror.New(apperror.CodeInvalidFilterValue, "between on %q expects two values", n.Field)
		}
		lo := b.add(values[0])
		hi := b.add(values[1])
		return col + " BETWEEN " + lo + " AND " + hi, nil
	case filter.OpIsNull:
		if isNull, _ := n.Value.(bool); !isNull {
			return col + " IS NOT NULL", nil
		}
		return col + " IS NULL", nil
	}
	return "", apperror.New(apperror.CodeInvalidFilterOperator, "unknown filter operator %q", n.Op)
}

func (s *sqlBuilder) BuildList(q ListQuery) (*Plan, error) {
	page, size, offset := Paginate(q.Page, q.PageSize)

	whereSQL, whereArgs, err := s.where(q.Filter)
	if err != nil {
		return nil, err
	}
	from := s.table(q.Table)

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", s.projection(q.Fields), from)
	if whereSQL != "" {
		sb.WriteString(" WHERE " + whereSQL)
	}

	order := s.orderBy(q.Sort)
	if order == "" && s.style.requireOrder {
		order = "(SELECT NULL)"
		if len(q.Fields) > 0 {
			order = s.style.quote(q.Fields[0])
		}
	}
	if order != "" {
		sb.WriteString(" ORDER BY " + order)
	}

	// Pagination placeholders continue the WHERE numbering; the count query
	// only ever sees the WHERE parameters.
	b := &bindings{style: &s.style, args: append([]any(nil), whereArgs...)}
	sb.WriteString(s.style.paginate(b, size, offset))

	count := "SELECT COUNT(*) FROM " + from
	if whereSQL != "" {
		count += " WHERE " + whereSQL
	}

	return &Plan{
		SQL:       sb.String(),
		Args:      b.args,
		CountSQL:  count,
		CountArgs: whereArgs,
		Page:      page,
		PageSize:  size,
		Offset:    offset,
	}, nil
}

func (s *sqlBuilder) BuildByID(q ByIDQuery) (*Plan, error) {
	if q.PrimaryKey == "" {
		return nil, apperror.New(apperror.CodeValidation, "entity has no primary key")
	}
	cond := filter.And(q.Scope, filter.Condition(q.PrimaryKey, filter.OpEq, q.ID))
	whereSQL, args, err := s.where(cond)
	if err != nil {
		return nil, err
	}
	return &Plan{
		SQL:      fmt.Sprintf("SELECT %s FROM %s WHERE %s", s.projection(q.Fields), s.table(q.Table), whereSQL),
		Args:     args,
		Page:     1,
		PageSize: 1,
	}, nil
}

func (s *sqlBuilder) ColumnsQuery(t TableRef) (string, []any) {
	switch s.style.kind {
	case Postgres:
		return s.columnsQueryPostgres(t)
	case MSSQL:
		return s.columnsQueryMSSQL(t)
	default:
		return s.columnsQueryMySQL(t)
	}
}

func (s *sqlBuilder) TablesQuery() (string, []any) {
	switch s.style.kind {
	case Postgres:
		return s.tablesQueryPostgres()
	case MSSQL:
		return s.tablesQueryMSSQL()
	default:
		return s.tablesQueryMySQL()
	}
}
