// Package strings holds small helpers for cleaning lists of strings.
package strings

import (
	"strings"
)

// Normalize trims each value, applies fn when non-nil, and drops values that
// end up empty or repeat an earlier result. Order is preserved.
func Normalize(values []string, fn func(string) string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if fn != nil {
			v = fn(v)
		}
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// CollapseSpace replaces every run of whitespace with a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
