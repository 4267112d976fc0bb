package dialect

import (
	"database/sql"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"dbautorest/pkg/apperror"
	"dbautorest/services/filter"
)

func sqlBuilders() map[Kind]SQLBuilder {
	return map[Kind]SQLBuilder{
		Postgres: NewPostgres(),
		MySQL:    NewMySQL(),
		MSSQL:    NewMSSQL(),
	}
}

// unquote parses a single quoted identifier using the dialect's rules.
func unquote(t *testing.T, kind Kind, quoted string) string {
	t.Helper()
	open, close := `"`, `"`
	switch kind {
	case MySQL:
		open, close = "`", "`"
	case MSSQL:
		open, close = "[", "]"
	}
	require.True(t, strings.HasPrefix(quoted, open) && strings.HasSuffix(quoted, close), quoted)
	body := quoted[len(open) : len(quoted)-len(close)]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if strings.HasPrefix(body[i:], close) {
			require.True(t, strings.HasPrefix(body[i+len(close):], close), "unescaped quote in %s", quoted)
			i += len(close)
		}
		b.WriteByte(body[i])
	}
	return b.String()
}

// TestQuoteIdent_RoundTrips tests that identifiers containing quote characters survive quoting.
func TestQuoteIdent_RoundTrips(t *testing.T) {
	names := []string{"plain", `we"ird`, "back`tick", "br]acket", `a"]b`+"`c", "", `""`, "]]", "sp ace;drop"}
	for kind, b := range sqlBuilders() {
		for _, name := range names {
			assert.Equal(t, name, unquote(t, kind, b.QuoteIdent(name)), "%s %q", kind, name)
		}
	}
}

func everyOperator() *filter.Node {
	return &filter.Node{Logic: filter.LogicAnd, Children: []*filter.Node{
		filter.Condition("a", filter.OpEq, "lit_eq_91"),
		filter.Condition("b", filter.OpNeq, int64(424201)),
		filter.Condition("c", filter.OpGt, 424202.5),
		filter.Condition("d", filter.OpGte, int64(424203)),
		filter.Condition("e", filter.OpLt, "lit_lt_92"),
		filter.Condition("f", filter.OpLte, true),
		filter.Condition("g", filter.OpIn, []any{"lit_in_93", int64(424204)}),
		filter.Condition("h", filter.OpLike, "lit_like_94%"),
		{Logic: filter.LogicOr, Children: []*filter.Node{
			filter.Condition("i", filter.OpILike, "lit_ilike_95"),
			filter.Condition("j", filter.OpBetween, []any{int64(424205), int64(424206)}),
			filter.Condition("k", filter.OpIsNull, true),
			filter.Condition("l", filter.OpIsNull, false),
		}},
	}}
}

var literals = []string{"lit_eq_91", "424201", "424202", "424203", "lit_lt_92", "lit_in_93", "424204", "lit_like_94", "lit_ilike_95", "424205", "424206", "'"}

// TestBuildList_NoLiteralsInSQL tests that every value travels as a parameter.
func TestBuildList_NoLiteralsInSQL(t *testing.T) {
	for kind, b := range sqlBuilders() {
		plan, err := b.BuildList(ListQuery{
			Table:    TableRef{Name: "t"},
			Fields:   []string{"a", "b"},
			Filter:   everyOperator(),
			Page:     3,
			PageSize: 7,
		})
		require.NoError(t, err, kind)
		for _, lit := range literals {
			assert.NotContains(t, plan.SQL, lit, "%s list", kind)
			assert.NotContains(t, plan.CountSQL, lit, "%s count", kind)
		}
		// 12 WHERE values (in and between contribute two each) plus limit and offset.
		assert.Len(t, plan.CountArgs, 12, kind)
		assert.Len(t, plan.Args, 14, kind)
		assert.NotContains(t, plan.SQL, " 7", kind)
		assert.NotContains(t, plan.SQL, " 14", kind)
	}
}

// TestBuildList_Postgres tests exact text and numbering for the $n dialect.
func TestBuildList_Postgres(t *testing.T) {
	plan, err := NewPostgres().BuildList(ListQuery{
		Table:    TableRef{Schema: "public", Name: "orders"},
		Fields:   []string{"id", "status"},
		Filter:   filter.Condition("status", filter.OpEq, "shipped"),
		Sort:     []filter.SortField{{Field: "id"}, {Field: "status", Desc: true}},
		Page:     2,
		PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "status" FROM "public"."orders" WHERE "status" = $1 ORDER BY "id" ASC, "status" DESC LIMIT $2 OFFSET $3`, plan.SQL)
	assert.Equal(t, []any{"shipped", 10, 10}, plan.Args)
	assert.Equal(t, `SELECT COUNT(*) FROM "public"."orders" WHERE "status" = $1`, plan.CountSQL)
	assert.Equal(t, []any{"shipped"}, plan.CountArgs)
}

// TestBuildList_MySQL tests the ? dialect and case-insensitive like.
func TestBuildList_MySQL(t *testing.T) {
	plan, err := NewMySQL().BuildList(ListQuery{
		Table:    TableRef{Name: "users"},
		Filter:   filter.Condition("name", filter.OpILike, "jo%"),
		Page:     1,
		PageSize: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE LOWER(`name`) LIKE LOWER(?) LIMIT ? OFFSET ?", plan.SQL)
	assert.Equal(t, []any{"jo%", 5, 0}, plan.Args)
}

// TestBuildList_MSSQL_SynthesizesOrderBy tests OFFSET/FETCH without a caller sort.
func TestBuildList_MSSQL_SynthesizesOrderBy(t *testing.T) {
	b := NewMSSQL()
	plan, err := b.BuildList(ListQuery{
		Table:    TableRef{Schema: "dbo", Name: "events"},
		Fields:   []string{"event_id", "kind"},
		Filter:   filter.Condition("kind", filter.OpIn, []any{"a", "b"}),
		Page:     2,
		PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT [event_id], [kind] FROM [dbo].[events] WHERE [kind] IN (@param1, @param2) ORDER BY [event_id] OFFSET @param3 ROWS FETCH NEXT @param4 ROWS ONLY", plan.SQL)
	assert.Equal(t, []any{
		sql.Named("param1", "a"), sql.Named("param2", "b"),
		sql.Named("param3", 10), sql.Named("param4", 10),
	}, plan.Args)
	assert.Equal(t, "SELECT COUNT(*) FROM [dbo].[events] WHERE [kind] IN (@param1, @param2)", plan.CountSQL)
	assert.Equal(t, []any{sql.Named("param1", "a"), sql.Named("param2", "b")}, plan.CountArgs)

	noFields, err := b.BuildList(ListQuery{Table: TableRef{Name: "events"}, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Contains(t, noFields.SQL, "ORDER BY (SELECT NULL) OFFSET @param1 ROWS FETCH NEXT @param2 ROWS ONLY")
	assert.Empty(t, noFields.CountArgs)
}

// TestBuildList_EmptyIn_MatchesNothing tests the zero-row short circuit for every dialect.
func TestBuildList_EmptyIn_MatchesNothing(t *testing.T) {
	empty := filter.Condition("id", filter.OpIn, []any{})
	want := map[Kind]string{Postgres: "WHERE FALSE", MySQL: "WHERE 1=0", MSSQL: "WHERE 1=0"}
	for kind, b := range sqlBuilders() {
		plan, err := b.BuildList(ListQuery{Table: TableRef{Name: "t"}, Filter: empty, Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Contains(t, plan.SQL, want[kind])
		assert.Contains(t, plan.CountSQL, want[kind])
		assert.Empty(t, plan.CountArgs)
	}

	plan, err := NewDocument().BuildList(ListQuery{Table: TableRef{Name: "t"}, Filter: empty, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"id": bson.M{"$in": bson.A{}}}, plan.Find.Filter)
}

// TestPaginate_Clamps tests page size bounds and offset math.
func TestPaginate_Clamps(t *testing.T) {
	tests := []struct {
		page, size             int
		wantPage, wantSize, wo int
	}{
		{1, 0, 1, 1, 0},
		{1, -5, 1, 1, 0},
		{1, 500, 1, 200, 0},
		{0, 20, 1, 20, 0},
		{-3, 20, 1, 20, 0},
		{4, 25, 4, 25, 75},
		{2, 200, 2, 200, 200},
		{math.MaxInt64 / 100, 200, MaxPage, 200, (MaxPage - 1) * 200},
		{math.MaxInt, 1, MaxPage, 1, MaxPage - 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d", tt.page, tt.size), func(t *testing.T) {
			p, s, o := Paginate(tt.page, tt.size)
			assert.Equal(t, tt.wantPage, p)
			assert.Equal(t, tt.wantSize, s)
			assert.Equal(t, tt.wo, o)
		})
	}
}

// TestHasNext tests the has-next rule against total rows.
func TestHasNext(t *testing.T) {
	assert.True(t, HasNext(1, 2, 2, 5))
	assert.True(t, HasNext(2, 10, 10, 25))
	assert.False(t, HasNext(3, 10, 5, 25))
	assert.False(t, HasNext(1, 10, 0, 0))
	assert.False(t, HasNext(math.MaxInt64/100, 200, 0, 5))
}

// TestBuildList_HugePage_OffsetNeverNegative tests offset clamping for oversized pages.
func TestBuildList_HugePage_OffsetNeverNegative(t *testing.T) {
	plan, err := NewPostgres().BuildList(ListQuery{
		Table: TableRef{Name: "orders"}, Fields: []string{"id"}, Page: math.MaxInt64 / 100, PageSize: 200,
	})
	require.NoError(t, err)
	require.Len(t, plan.Args, 2)
	offset, ok := plan.Args[1].(int)
	require.True(t, ok)
	assert.GreaterOrEqual(t, offset, 0)
	assert.Equal(t, MaxPage, plan.Page)
}

// TestBuildByID_AppliesScope tests that the row policy scopes primary key lookups.
func TestBuildByID_AppliesScope(t *testing.T) {
	scope := filter.Condition("org_id", filter.OpEq, "o1")
	plan, err := NewPostgres().BuildByID(ByIDQuery{
		Table: TableRef{Name: "orders"}, Fields: []string{"id"}, PrimaryKey: "id", ID: "42", Scope: scope,
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id" FROM "orders" WHERE ("org_id" = $1 AND "id" = $2)`, plan.SQL)
	assert.Equal(t, []any{"o1", "42"}, plan.Args)

	plan, err = NewMSSQL().BuildByID(ByIDQuery{Table: TableRef{Name: "orders"}, PrimaryKey: "id", ID: "42"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM [orders] WHERE [id] = @param1", plan.SQL)

	_, err = NewMySQL().BuildByID(ByIDQuery{Table: TableRef{Name: "orders"}, ID: "1"})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}

// TestFor_Dispatch tests the closed set of dialects.
func TestFor_Dispatch(t *testing.T) {
	for _, k := range []Kind{Postgres, MySQL, MSSQL, MongoDB} {
		b, err := For(k)
		require.NoError(t, err)
		assert.Equal(t, k, b.Kind())
	}
	_, err := For("oracle")
	assert.True(t, apperror.Is(err, apperror.CodeUnsupportedDatabaseType))

	k, err := ParseKind("SQLServer")
	require.NoError(t, err)
	assert.Equal(t, MSSQL, k)
	_, err = ParseKind("db2")
	assert.True(t, apperror.Is(err, apperror.CodeUnsupportedDatabaseType))
}

// TestDocument_Operators tests the MongoDB translation of each operator.
func TestDocument_Operators(t *testing.T) {
	doc, err := Document(everyOperator())
	require.NoError(t, err)

	and := doc["$and"].(bson.A)
	require.Len(t, and, 9)
	assert.Equal(t, bson.M{"a": bson.M{"$eq": "lit_eq_91"}}, and[0])
	assert.Equal(t, bson.M{"b": bson.M{"$ne": int64(424201)}}, and[1])
	assert.Equal(t, bson.M{"g": bson.M{"$in": bson.A{"lit_in_93", int64(424204)}}}, and[6])
	assert.Equal(t, bson.M{"h": bson.M{"$regex": "lit.like.94.*"}}, and[7])

	or := and[8].(bson.M)["$or"].(bson.A)
	assert.Equal(t, bson.M{"i": bson.M{"$regex": "lit.ilike.95", "$options": "i"}}, or[0])
	assert.Equal(t, bson.M{"j": bson.M{"$gte": int64(424205), "$lte": int64(424206)}}, or[1])
	assert.Equal(t, bson.M{"k": nil}, or[2])
	assert.Equal(t, bson.M{"l": bson.M{"$ne": nil}}, or[3])
}

// TestLikeToRegex tests escaping of regex metacharacters.
func TestLikeToRegex(t *testing.T) {
	assert.Equal(t, `a\.b.*c.`, LikeToRegex("a.b%c_"))
	assert.Equal(t, `\(x\)\+\$`, LikeToRegex("(x)+$"))
	assert.Equal(t, "", LikeToRegex(""))
}

// TestDocument_BuildList tests projection, sort and pagination of the find.
func TestDocument_BuildList(t *testing.T) {
	plan, err := NewDocument().BuildList(ListQuery{
		Table:    TableRef{Name: "orders"},
		Fields:   []string{"status", "total"},
		Sort:     []filter.SortField{{Field: "total", Desc: true}},
		Page:     3,
		PageSize: 500,
	})
	require.NoError(t, err)
	f := plan.Find
	assert.Equal(t, "orders", f.Collection)
	assert.Equal(t, bson.M{"status": 1, "total": 1, "_id": 0}, f.Projection)
	assert.Equal(t, bson.D{{Key: "total", Value: -1}}, f.Sort)
	assert.Equal(t, int64(400), f.Skip)
	assert.Equal(t, int64(200), f.Limit)
	assert.Equal(t, bson.M{}, f.Filter)

	withID, err := NewDocument().BuildList(ListQuery{Table: TableRef{Name: "orders"}, Fields: []string{"_id", "status"}, Page: 1, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"_id": 1, "status": 1}, withID.Find.Projection)
}

// TestDocument_BuildByID_ObjectID tests hex ids against _id become ObjectIDs.
func TestDocument_BuildByID_ObjectID(t *testing.T) {
	hex := "64b7f0c2a1b2c3d4e5f60718"
	plan, err := NewDocument().BuildByID(ByIDQuery{Table: TableRef{Name: "orders"}, PrimaryKey: "_id", ID: hex})
	require.NoError(t, err)
	oid, _ := primitive.ObjectIDFromHex(hex)
	assert.Equal(t, bson.M{"_id": bson.M{"$eq": oid}}, plan.Find.Filter)
	assert.Equal(t, int64(1), plan.Find.Limit)
}
