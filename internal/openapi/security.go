package openapi

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// requirementKey canonicalizes a security requirement so that two
// requirements naming the same schemes with the same scopes produce the same
// key regardless of scheme or scope order.
func requirementKey(req any) string {
	m, ok := asMap(req)
	if !ok {
		return fmt.Sprintf("%T:%v", req, req)
	}
	b := &strings.Builder{}
	for i, scheme := range sortedKeys(m) {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.Quote(scheme))
		b.WriteByte('=')
		scopes := scopeStrings(m[scheme])
		sort.Strings(scopes)
		for j, s := range scopes {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(s))
		}
	}
	return b.String()
}

func scopeStrings(v any) []string {
	list, _ := asSlice(v)
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, fmt.Sprint(s))
	}
	return out
}

// SecurityRequirementsEqual reports whether two security requirements grant
// the same scheme/scope pairs.
func SecurityRequirementsEqual(a, b any) bool {
	return requirementKey(a) == requirementKey(b)
}

// mergeSecurity returns the generated requirements followed by existing
// requirements not equal to any already taken.
func mergeSecurity(existing, generated any) []any {
	seen := make(map[string]struct{})
	out := make([]any, 0)
	for _, list := range []any{generated, existing} {
		reqs, _ := asSlice(list)
		for _, req := range reqs {
			key := requirementKey(req)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, req)
		}
	}
	return out
}

// pruneSecurity keeps the requirements of merged that also appear in generated.
func pruneSecurity(merged, generated any) []any {
	keep := make(map[string]struct{})
	reqs, _ := asSlice(generated)
	for _, req := range reqs {
		keep[requirementKey(req)] = struct{}{}
	}
	current, _ := asSlice(merged)
	out := make([]any, 0, len(current))
	for _, req := range current {
		if _, ok := keep[requirementKey(req)]; ok {
			out = append(out, req)
		}
	}
	return out
}
