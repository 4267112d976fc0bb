// Package filter parses caller and policy filter expressions into a typed,
// immutable AST validated against an allow-list of columns.
package filter

import (
	"encoding/json"
)

// Op is a condition operator.
type Op string

// Supported operators.
const (
	OpEq      Op = "eq"
	OpNeq     Op = "neq"
	OpGt      Op = "gt"
	OpGte     Op = "gte"
	OpLt      Op = "lt"
	OpLte     Op = "lte"
	OpIn      Op = "in"
	OpLike    Op = "like"
	OpILike   Op = "ilike"
	OpBetween Op = "between"
	OpIsNull  Op = "isnull"
)

var knownOps = map[Op]bool{
	OpEq: true, OpNeq: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpIn: true, OpLike: true, OpILike: true, OpBetween: true, OpIsNull: true,
}

// Logic is a boolean combinator.
type Logic string

// Combinators.
const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
)

// Node is either a combinator (Logic set, Children non-empty) or a condition
// (Field, Op, Value). Nodes are never mutated after construction.
type Node struct {
	Logic    Logic
	Children []*Node

	Field string
	Op    Op
	// Value is nil, string, bool, int64, float64 or []any of those.
	Value any
}

// IsCondition reports whether n is a leaf condition.
func (n *Node) IsCondition() bool {
	return n != nil && n.Logic == ""
}

// Condition builds a leaf node.
func Condition(field string, op Op, value any) *Node {
	return &Node{Field: field, Op: op, Value: value}
}

// And combines two optional filters. When both are present a new node is
// returned; otherwise the present one (or nil). Inputs are never modified.
func And(a, b *Node) *Node {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return &Node{Logic: LogicAnd, Children: []*Node{a, b}}
}

// MatchNothing returns a filter that no row satisfies.
func MatchNothing(field string) *Node {
	return Condition(field, OpIn, []any{})
}

// Fields returns the distinct field names referenced by n in first-seen order.
func Fields(n *Node) []string {
	seen := map[string]bool{}
	var out []string
	Walk(n, func(c *Node) {
		if !seen[c.Field] {
			seen[c.Field] = true
			out = append(out, c.Field)
		}
	})
	return out
}

// Walk calls fn for every condition in n, depth first.
func Walk(n *Node, fn func(*Node)) {
	if n == nil {
		return
	}
	if n.IsCondition() {
		fn(n)
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// MarshalJSON renders n in the structured filter form accepted by Parse.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n == nil {
		return []byte("null"), nil
	}
	if n.IsCondition() {
		return json.Marshal(struct {
			Field string `json:"field"`
			Op    Op     `json:"op"`
			Value any    `json:"value"`
		}{n.Field, n.Op, n.Value})
	}
	return json.Marshal(map[string][]*Node{string(n.Logic): n.Children})
}
