package openapi

// Report summarises what a reconciliation changed relative to the existing
// document.
type Report struct {
	// PathsAdded are paths of the generated document the existing one lacked.
	PathsAdded []string
	// PathsRemoved are paths of the existing document that were pruned.
	PathsRemoved []string
	// ExtensionsPreserved counts extension fields carried over from the
	// existing document onto surviving nodes.
	ExtensionsPreserved int
}

// Reconcile merges existing into generated and prunes the result down to the
// surface of generated. Both inputs are left untouched.
func Reconcile(existing, generated Document) (Document, *Report) {
	merged := Merge(existing.Clone(), generated.Clone())
	Prune(merged, generated)

	report := &Report{
		PathsAdded:          difference(generated.PathKeys(), existing.PathKeys()),
		PathsRemoved:        difference(existing.PathKeys(), generated.PathKeys()),
		ExtensionsPreserved: countCarried(map[string]any(merged), map[string]any(generated)),
	}
	return merged, report
}

func difference(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := set[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

// countCarried counts extension keys of merged that generated does not have
// at the same position. Named lists are matched by identity.
func countCarried(merged, generated any) int {
	if mm, ok := asMap(merged); ok {
		gm, _ := asMap(generated)
		n := 0
		for k, v := range mm {
			gv, ok := gm[k]
			if !ok {
				if IsExtension(k) {
					n++
				}
				continue
			}
			n += countCarried(v, gv)
		}
		return n
	}
	ml, ok := asSlice(merged)
	if !ok {
		return 0
	}
	gIndex, _ := indexByIdentity(generated)
	n := 0
	for _, item := range ml {
		id, ok := parameterIdentity(item)
		if !ok {
			continue
		}
		n += countCarried(item, gIndex[id])
	}
	return n
}
