package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseID parses a positive numeric path parameter.
func ParseID(raw string) (uint, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(n), nil
}

// QueryInt parses an optional integer query parameter. ok is false when
// the parameter is absent; a present but malformed value is an error.
func QueryInt(raw string) (v int, ok bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true, fmt.Errorf("invalid integer %q", raw)
	}
	return n, true, nil
}

// QueryBool parses an optional boolean query parameter; absent means false.
func QueryBool(raw string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && b
}
