package dialect

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"dbautorest/pkg/apperror"
	"dbautorest/services/filter"
)

// DocumentFind is a built MongoDB find (and count) request.
type DocumentFind struct {
	Collection string
	Filter     bson.M
	Projection bson.M // nil returns whole documents
	Sort       bson.D
	Skip       int64
	Limit      int64
}

type documentBuilder struct{}

// NewDocument returns the builder for MongoDB operator documents.
func NewDocument() Builder {
	return documentBuilder{}
}

func (documentBuilder) Kind() Kind { return MongoDB }

func (d documentBuilder) BuildList(q ListQuery) (*Plan, error) {
	page, size, offset := Paginate(q.Page, q.PageSize)
	match, err := Document(q.Filter)
	if err != nil {
		return nil, err
	}
	var sort bson.D
	for _, f := range q.Sort {
		dir := 1
		if f.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: f.Field, Value: dir})
	}
	return &Plan{
		Page:     page,
		PageSize: size,
		Offset:   offset,
		Find: &DocumentFind{
			Collection: q.Table.Name,
			Filter:     match,
			Projection: projection(q.Fields),
			Sort:       sort,
			Skip:       int64(offset),
			Limit:      int64(size),
		},
	}, nil
}

func (d documentBuilder) BuildByID(q ByIDQuery) (*Plan, error) {
	if q.PrimaryKey == "" {
		return nil, apperror.New(apperror.CodeValidation, "entity has no primary key")
	}
	id := q.ID
	if s, ok := id.(string); ok && q.PrimaryKey == "_id" {
		if oid, err := primitive.ObjectIDFromHex(s); err == nil {
			id = oid
		}
	}
	match, err := Document(filter.And(q.Scope, filter.Condition(q.PrimaryKey, filter.OpEq, id)))
	if err != nil {
		return nil, err
	}
	return &Plan{
		Page:     1,
		PageSize: 1,
		Find: &DocumentFind{
			Collection: q.Table.Name,
			Filter:     match,
			Projection: projection(q.Fields),
			Limit:      1,
		},
	}, nil
}

// projection includes the requested fields and hides _id unless requested.
func projection(fields []string) bson.M {
	if len(fields) == 0 {
		return nil
	}
	p := bson.M{}
	for _, f := range fields {
		p[f] = 1
	}
	if _, ok := p["_id"]; !ok {
		p["_id"] = 0
	}
	return p
}

// Document translates a filter into a MongoDB query document.
// A nil filter matches every document.
func Document(n *filter.Node) (bson.M, error) {
	if n == nil {
		return bson.M{}, nil
	}
	if !n.IsCondition() {
		children := make(bson.A, 0, len(n.Children))
		for _, c := range n.Children {
			doc, err := Document(c)
			if err != nil {
				return nil, err
			}
			children = append(children, doc)
		}
		return bson.M{"$" + string(n.Logic): children}, nil
	}

	switch n.Op {
	case filter.OpEq:
		if n.Value == nil {
			return bson.M{n.Field: nil}, nil
		}
		return bson.M{n.Field: bson.M{"$eq": n.Value}}, nil
	case filter.OpNeq:
		return bson.M{n.Field: bson.M{"$ne": n.Value}}, nil
	case filter.OpGt:
		return bson.M{n.Field: bson.M{"$gt": n.Value}}, nil
	case filter.OpGte:
		return bson.M{n.Field: bson.M{"$gte": n.Value}}, nil
	case filter.OpLt:
		return bson.M{n.Field: bson.M{"$lt": n.Value}}, nil
	case filter.OpLte:
		return bson.M{n.Field: bson.M{"$lte": n.Value}}, nil
	case filter.OpIn:
		values, _ := n.Value.([]any)
		return bson.M{n.Field: bson.M{"$in": bson.A(append([]any{}, values...))}}, nil
	case filter.OpLike, filter.OpILike:
		pattern, _ := n.Value.(string)
		cond := bson.M{"$regex": LikeToRegex(pattern)}
		if n.Op == filter.OpILike {
			cond["$options"] = "i"
		}
		return bson.M{n.Field: cond}, nil
	case filter.OpBetween:
		values, _ := n.Value.([]any)
		if len(values) != 2 {
			return nil, apperror.New(apperror.CodeInvalidFilterValue, "between on %q expects two values", n.Field)
		}
		return bson.M{n.Field: bson.M{"$gte": values[0], "$lte": values[1]}}, nil
	case filter.OpIsNull:
		if isNull, _ := n.Value.(bool); !isNull {
			return bson.M{n.Field: bson.M{"$ne": nil}}, nil
		}
		return bson.M{n.Field: nil}, nil
	}
	return nil, apperror.New(apperror.CodeInvalidFilterOperator, "unknown filter operator %q", n.Op)
}

// LikeToRegex converts a SQL LIKE pattern into an unanchored regular expression.
func LikeToRegex(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}
