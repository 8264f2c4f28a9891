package service

import "strings"

// NormalizeScope collapses whitespace and drops duplicate scope tokens,
// preserving first-seen order.
func NormalizeScope(scope string) string {
	fields := strings.Fields(scope)
	if len(fields) == 0 {
		return ""
	}

	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

// IntersectScopes returns the members of granted that are also requested,
// in granted order. The result is what a token may actually carry: a client
// can narrow its grant but never widen it.
func IntersectScopes(granted, requested string) string {
	want := make(map[string]struct{})
	for _, s := range strings.Fields(requested) {
		want[s] = struct{}{}
	}

	var out []string
	for _, s := range strings.Fields(granted) {
		if _, ok := want[s]; ok {
			out = append(out, s)
		}
	}
	return strings.Join(out, " ")
}
