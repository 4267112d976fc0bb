package filter

import "strings"

// SortField is one ORDER BY term.
type SortField struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc"`
}

// ParseSort parses "col" or "col:asc|desc" terms separated by commas.
// Columns outside allowed are dropped; an unrecognised direction means ascending.
func ParseSort(raw string, allowed []string) []SortField {
	set := toSet(allowed)
	seen := map[string]bool{}
	var out []SortField
	for _, term := range strings.Split(raw, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		field, dir, _ := strings.Cut(term, ":")
		field = strings.TrimSpace(field)
		if !set[field] || seen[field] {
			continue
		}
		seen[field] = true
		out = append(out, SortField{
			Field: field,
			Desc:  strings.EqualFold(strings.TrimSpace(dir), "desc"),
		})
	}
	return out
}
