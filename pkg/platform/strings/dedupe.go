// Package strings carries small string-slice helpers shared across features.
package strings

import "strings"

// DedupeAndTrim trims whitespace, drops empties, and removes duplicates
// while preserving first-seen order. Draft list fields (category picks) run
// through this so repeated selections collapse silently.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		t := strings.TrimSpace(v)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
