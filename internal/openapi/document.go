// Package openapi loads, reconciles and writes API description documents.
//
// A Document is kept as a plain decoded tree: mappings are map[string]any,
// sequences are []any and everything else is a scalar. The reconciler works
// on that tree directly so that fields it does not know about survive a
// round trip untouched.
//
// Reconciliation is two passes. Merge unions the existing and generated
// documents while carrying over extension fields; Prune then removes every
// entry whose identity is absent from the generated document. Reconcile
// runs both on private copies of its inputs.
package openapi

import (
	"sort"
	"strings"
)

// ExtensionPrefix marks vendor extension keys.
const ExtensionPrefix = "x-"

// Document is a decoded API description rooted at a mapping.
type Document map[string]any

// Methods lists the operation keys of a path item in the order they are visited.
var Methods = []string{"get", "post", "put", "delete", "options", "head", "patch", "trace"}

// componentKinds are the component tables that take part in reconciliation.
var componentKinds = []string{"schemas", "parameters", "securitySchemes"}

// IsExtension reports whether key is a vendor extension field.
func IsExtension(key string) bool {
	return strings.HasPrefix(key, ExtensionPrefix)
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneValue(map[string]any(d)).(map[string]any))
}

// PathKeys returns the sorted non-extension keys of the paths table.
func (d Document) PathKeys() []string {
	paths, _ := asMap(d["paths"])
	keys := make([]string, 0, len(paths))
	for k := range paths {
		if IsExtension(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return cloneValue(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = cloneValue(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = cloneValue(child)
		}
		return out
	default:
		return v
	}
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, t != nil
	case Document:
		return map[string]any(t), t != nil
	default:
		return nil, false
	}
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
