package policy

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"dbautorest/pkg/apperror"
)

// RenderContext is the request data row policy placeholders resolve against,
// e.g. {"user": {"id": "u1"}, "organization": {"id": "o1"}, "role": {"name": "analyst"}}.
type RenderContext map[string]any

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+(?:\.[A-Za-z0-9_]+)*)\s*\}\}`)

// Render substitutes placeholders in every string leaf of a decoded template.
// A leaf that is exactly one placeholder takes the typed value at that path
// (nil when absent). Placeholders inside longer strings are interpolated and
// must resolve to a scalar. The input is not modified.
func Render(template any, rc RenderContext) (any, error) {
	switch t := template.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			r, err := Render(v, rc)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			r, err := Render(v, rc)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case string:
		return renderString(t, rc)
	default:
		return template, nil
	}
}

func renderString(s string, rc RenderContext) (any, error) {
	if m := placeholder.FindStringSubmatchIndex(s); m != nil && m[0] == 0 && m[1] == len(s) {
		path := s[m[2]:m[3]]
		v, _ := rc.Lookup(path)
		if !isScalar(v) {
			return nil, apperror.New(apperror.CodePolicyTemplateRender, "placeholder %q does not resolve to a scalar", path)
		}
		return v, nil
	}

	var renderErr error
	out := placeholder.ReplaceAllStringFunc(s, func(match string) string {
		path := placeholder.FindStringSubmatch(match)[1]
		v, ok := rc.Lookup(path)
		if !ok || v == nil {
			renderErr = apperror.New(apperror.CodePolicyTemplateRender, "placeholder %q has no value", path)
			return ""
		}
		str, err := scalarString(v)
		if err != nil {
			renderErr = apperror.Wrap(apperror.CodePolicyTemplateRender, err, "placeholder %q", path)
			return ""
		}
		return str
	})
	if renderErr != nil {
		return nil, renderErr
	}
	return out, nil
}

// Lookup resolves a dotted path.
func (rc RenderContext) Lookup(path string) (any, bool) {
	var cur any = map[string]any(rc)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			if ctx, isCtx := cur.(RenderContext); isCtx {
				m = ctx
			} else {
				return nil, false
			}
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, int, int32, int64, uint, uint32, uint64, float32, float64, json.Number:
		return true
	}
	return false
}

func scalarString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case int, int32, int64, uint, uint32, uint64, json.Number:
		return fmt.Sprint(t), nil
	}
	return "", fmt.Errorf("value of type %T cannot be embedded in a string", v)
}

// HasPlaceholders reports whether s contains any placeholder.
func HasPlaceholders(s string) bool {
	return placeholder.MatchString(s)
}
