package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"dbautorest/pkg/apperror"
)

const (
	// MaxDepth bounds combinator nesting.
	MaxDepth = 16
	// MaxConditions bounds the number of leaf conditions in one expression.
	MaxConditions = 100
)

// Parse parses a raw filter expression. Empty input yields a nil filter.
// Input starting with '{' or '[' is the structured JSON form; anything else is
// the textual form: comma separated field:op:value terms joined with and.
func Parse(raw string, allowed []string) (*Node, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if raw[0] == '{' || raw[0] == '[' {
		v, err := decodeJSON(raw)
		if err != nil {
			return nil, apperror.Wrap(apperror.CodeInvalidFilterValue, err, "filter is not valid JSON")
		}
		return ParseValue(v, allowed)
	}
	return parseText(raw, allowed)
}

// ParseValue parses an already decoded structured filter (maps, slices and
// scalars as produced by encoding/json).
func ParseValue(v any, allowed []string) (*Node, error) {
	p := &parser{allowed: toSet(allowed)}
	if arr, ok := v.([]any); ok {
		if len(arr) == 0 {
			return nil, nil
		}
		return p.combinator(LogicAnd, arr, 1)
	}
	if v == nil {
		return nil, nil
	}
	return p.node(v, 1)
}

type parser struct {
	allowed    map[string]bool
	conditions int
}

func (p *parser) node(v any, depth int) (*Node, error) {
	if depth > MaxDepth {
		return nil, apperror.New(apperror.CodeInvalidFilterValue, "filter nesting exceeds %d levels", MaxDepth)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, apperror.New(apperror.CodeInvalidFilterValue, "filter node must be an object")
	}
	if children, ok := obj["and"]; ok {
		if len(obj) != 1 {
			return nil, apperror.New(apperror.CodeInvalidFilterValue, "combinator node must have a single key")
		}
		return p.combinatorValue(LogicAnd, children, depth)
	}
	if children, ok := obj["or"]; ok {
		if len(obj) != 1 {
			return nil, apperror.New(apperror.CodeInvalidFilterValue, "combinator node must have a single key")
		}
		return p.combinatorValue(LogicOr, children, depth)
	}

	field, _ := obj["field"].(string)
	op, _ := obj["op"].(string)
	if field == "" {
		return nil, apperror.New(apperror.CodeInvalidFilterField, "filter condition is missing a field")
	}
	value, hasValue := obj["value"]
	if !hasValue && Op(strings.ToLower(op)) == OpIsNull {
		value = true
	}
	return p.condition(field, op, value)
}

func (p *parser) combinatorValue(logic Logic, v any, depth int) (*Node, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, apperror.New(apperror.CodeInvalidFilterValue, "%s expects an array of conditions", logic)
	}
	return p.combinator(logic, arr, depth)
}

func (p *parser) combinator(logic Logic, items []any, depth int) (*Node, error) {
	if len(items) == 0 {
		return nil, apperror.New(apperror.CodeInvalidFilterValue, "%s expects at least one condition", logic)
	}
	children := make([]*Node, 0, len(items))
	for _, item := range items {
		child, err := p.node(item, depth+1)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return &Node{Logic: logic, Children: children}, nil
}

func (p *parser) condition(field, rawOp string, value any) (*Node, error) {
	p.conditions++
	if p.conditions > MaxConditions {
		return nil, apperror.New(apperror.CodeInvalidFilterValue, "filter has more than %d conditions", MaxConditions)
	}
	if !p.allowed[field] {
		return nil, apperror.New(apperror.CodeInvalidFilterField, "unknown filter field %q", field)
	}
	op := Op(strings.ToLower(strings.TrimSpace(rawOp)))
	if !knownOps[op] {
		return nil, apperror.New(apperror.CodeInvalidFilterOperator, "unknown filter operator %q", rawOp)
	}
	value = normalize(value)
	if err := checkValue(field, op, value); err != nil {
		return nil, err
	}
	return Condition(field, op, value), nil
}

func checkValue(field string, op Op, value any) error {
	switch op {
	case OpEq, OpNeq:
		if !isScalar(value) && value != nil {
			return apperror.New(apperror.CodeInvalidFilterValue, "%s on %q expects a scalar value", op, field)
		}
	case OpGt, OpGte, OpLt, OpLte:
		if !isScalar(value) {
			return apperror.New(apperror.CodeInvalidFilterValue, "%s on %q expects a scalar value", op, field)
		}
	case OpIn:
		arr, ok := value.([]any)
		if !ok {
			return apperror.New(apperror.CodeInvalidFilterValue, "in on %q expects an array", field)
		}
		for _, item := range arr {
			if !isScalar(item) {
				return apperror.New(apperror.CodeInvalidFilterValue, "in on %q expects an array of scalars", field)
			}
		}
	case OpBetween:
		arr, ok := value.([]any)
		if !ok || len(arr) != 2 || !isScalar(arr[0]) || !isScalar(arr[1]) {
			return apperror.New(apperror.CodeInvalidFilterValue, "between on %q expects an array of two scalars", field)
		}
	case OpLike, OpILike:
		if _, ok := value.(string); !ok {
			return apperror.New(apperror.CodeInvalidFilterValue, "%s on %q expects a string pattern", op, field)
		}
	case OpIsNull:
		if _, ok := value.(bool); !ok {
			return apperror.New(apperror.CodeInvalidFilterValue, "isnull on %q expects true or false", field)
		}
	}
	return nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, int64, float64:
		return true
	}
	return false
}

// normalize converts json.Number and other numeric forms to int64/float64.
func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
		return t
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item
		}
		return out
	}
	return v
}

func decodeJSON(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after filter")
	}
	return v, nil
}

func parseText(raw string, allowed []string) (*Node, error) {
	p := &parser{allowed: toSet(allowed)}
	terms := splitTopLevel(raw, ',')
	children := make([]*Node, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		parts := strings.SplitN(term, ":", 3)
		if len(parts) < 2 {
			return nil, apperror.New(apperror.CodeInvalidFilterValue, "filter term %q must be field:op:value", term)
		}
		field := strings.TrimSpace(parts[0])
		op := strings.TrimSpace(parts[1])

		var value any
		switch {
		case len(parts) == 3:
			value = textValue(strings.TrimSpace(parts[2]))
		case Op(strings.ToLower(op)) == OpIsNull:
			value = true
		default:
			return nil, apperror.New(apperror.CodeInvalidFilterValue, "filter term %q is missing a value", term)
		}

		node, err := p.condition(field, op, value)
		if err != nil {
			return nil, err
		}
		children = append(children, node)
	}
	switch len(children) {
	case 0:
		return nil, nil
	case 1:
		return children[0], nil
	}
	return &Node{Logic: LogicAnd, Children: children}, nil
}

// textValue decodes s as JSON when it is valid JSON, otherwise keeps it raw.
func textValue(s string) any {
	if s == "" {
		return s
	}
	if v, err := decodeJSON(s); err == nil {
		return v
	}
	return s
}

// splitTopLevel splits s on sep, ignoring separators inside quotes or brackets.
func splitTopLevel(s string, sep byte) []string {
	var (
		out     []string
		depth   int
		quote   byte
		escaped bool
		start   int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '[', '{', '(':
			depth++
		case ']', '}', ')':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

// Equal reports whether two filters are structurally identical.
func Equal(a, b *Node) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ab, bb)
}
