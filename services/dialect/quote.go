package dialect

import "strings"

// quoteWith wraps name in open/close, doubling every close character inside it.
func quoteWith(open, close, name string) string {
	return open + strings.ReplaceAll(name, close, close+close) + close
}

func likeLower(col, param string) string {
	return "LOWER(" + col + ") LIKE LOWER(" + param + ")"
}
