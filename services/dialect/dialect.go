// Package dialect turns a filter AST, projection, sort and page into
// executable queries for each supported backend family. Builders are pure:
// identifiers are always quoted and values only ever travel as parameters.
package dialect

import (
	"math"
	"strings"

	"dbautorest/pkg/apperror"
	"dbautorest/services/filter"
)

// Kind identifies a backend family.
type Kind string

// Supported backend families.
const (
	Postgres Kind = "postgres"
	MySQL    Kind = "mysql"
	MSSQL    Kind = "mssql"
	MongoDB  Kind = "mongodb"
)

// Pagination bounds.
const (
	MaxPageSize     = 200
	DefaultPageSize = 20
)

// ParseKind maps a connection type string onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "mssql", "sqlserver":
		return MSSQL, nil
	case "mongodb", "mongo":
		return MongoDB, nil
	}
	return "", apperror.New(apperror.CodeUnsupportedDatabaseType, "unsupported database type %q", s)
}

// TableRef addresses a table or collection.
type TableRef struct {
	Schema string
	Name   string
}

// ListQuery is the input of BuildList.
type ListQuery struct {
	Table    TableRef
	Fields   []string // empty selects every column
	Filter   *filter.Node
	Sort     []filter.SortField
	Page     int
	PageSize int
}

// ByIDQuery is the input of BuildByID. Scope, when set, is applied as an
// additional predicate so a row outside the caller's row policy is not found.
type ByIDQuery struct {
	Table      TableRef
	Fields     []string
	PrimaryKey string
	ID         any
	Scope      *filter.Node
}

// Plan is a built query ready for execution.
type Plan struct {
	SQL       string
	Args      []any
	CountSQL  string
	CountArgs []any
	Page      int
	PageSize  int
	Offset    int
	Find      *DocumentFind // set by the document builder instead of SQL
}

// Builder builds list and by-id queries for one backend family.
type Builder interface {
	Kind() Kind
	BuildList(q ListQuery) (*Plan, error)
	BuildByID(q ByIDQuery) (*Plan, error)
}

// SQLBuilder is implemented by the SQL families and adds introspection.
type SQLBuilder interface {
	Builder
	QuoteIdent(name string) string
	// ColumnsQuery lists (column_name, data_type) for a table in ordinal order.
	ColumnsQuery(t TableRef) (string, []any)
	// TablesQuery lists (schema, name, type) for the connected database.
	TablesQuery() (string, []any)
}

// For returns the builder for kind.
func For(kind Kind) (Builder, error) {
	switch kind {
	case Postgres:
		return NewPostgres(), nil
	case MySQL:
		return NewMySQL(), nil
	case MSSQL:
		return NewMSSQL(), nil
	case MongoDB:
		return NewDocument(), nil
	default:
		return nil, apperror.New(apperror.CodeUnsupportedDatabaseType, "unsupported database type %q", kind)
	}
}

// MaxPage keeps (page-1)*MaxPageSize within int.
const MaxPage = math.MaxInt / MaxPageSize

// Paginate clamps page and pageSize and returns the row offset.
func Paginate(page, pageSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize, (page - 1) * pageSize
}

// HasNext reports whether rows exist after the returned page.
func HasNext(page, pageSize, returned int, total int64) bool {
	_, _, offset := Paginate(page, pageSize)
	if returned < 0 {
		returned = 0
	}
	return int64(offset)+int64(returned) < total
}
