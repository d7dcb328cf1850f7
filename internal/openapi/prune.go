package openapi

// Prune removes from merged every entry whose identity is absent from
// generated: paths, methods, response codes, parameters, security
// requirements, component entries and schema properties. Extension fields
// are never removed. Parameters, security and properties that end up empty
// are dropped.
//
// merged is modified in place and must not share subtrees with generated.
func Prune(merged, generated Document) {
	if mp, ok := asMap(merged["paths"]); ok {
		gp, ok := asMap(generated["paths"])
		if !ok {
			delete(merged, "paths")
		} else {
			for path, item := range mp {
				if IsExtension(path) {
					continue
				}
				gi, ok := gp[path]
				if !ok {
					delete(mp, path)
					continue
				}
				pruneOperations(item, gi)
			}
		}
	}
	if mc, ok := asMap(merged["components"]); ok {
		gc, _ := asMap(generated["components"])
		pruneComponents(mc, gc)
	}
}

func pruneOperations(item, generated any) {
	mi, ok := asMap(item)
	if !ok {
		return
	}
	gi, _ := asMap(generated)
	for _, method := range Methods {
		op, ok := mi[method]
		if !ok {
			continue
		}
		gop, ok := gi[method]
		if !ok {
			delete(mi, method)
			continue
		}
		pruneOperation(op, gop)
	}
}

func pruneOperation(op, generated any) {
	mop, ok := asMap(op)
	if !ok {
		return
	}
	gop, _ := asMap(generated)

	if responses, ok := asMap(mop["responses"]); ok {
		gr, ok := asMap(gop["responses"])
		if !ok {
			delete(mop, "responses")
		} else {
			for code := range responses {
				if IsExtension(code) {
					continue
				}
				if _, ok := gr[code]; !ok {
					delete(responses, code)
				}
			}
		}
	}

	if _, ok := mop["parameters"]; ok {
		keep := make(map[string]struct{})
		_, order := indexByIdentity(gop["parameters"])
		for _, id := range order {
			keep[id] = struct{}{}
		}
		current, _ := asSlice(mop["parameters"])
		params := make([]any, 0, len(current))
		for _, p := range current {
			id, ok := parameterIdentity(p)
			if !ok {
				continue
			}
			if _, ok := keep[id]; ok {
				params = append(params, p)
			}
		}
		if len(params) > 0 {
			mop["parameters"] = params
		} else {
			delete(mop, "parameters")
		}
	}

	if _, ok := mop["security"]; ok {
		if security := pruneSecurity(mop["security"], gop["security"]); len(security) > 0 {
			mop["security"] = security
		} else {
			delete(mop, "security")
		}
	}
}

func pruneComponents(merged, generated map[string]any) {
	for _, kind := range componentKinds {
		table, ok := asMap(merged[kind])
		if !ok {
			continue
		}
		gk, ok := asMap(generated[kind])
		if !ok {
			delete(merged, kind)
			continue
		}
		for name, entry := range table {
			gv, ok := gk[name]
			if !ok {
				delete(table, name)
				continue
			}
			if kind == "schemas" {
				pruneProperties(entry, gv)
			}
		}
	}
}

func pruneProperties(schema, generated any) {
	ms, ok := asMap(schema)
	if !ok {
		return
	}
	props, ok := asMap(ms["properties"])
	if !ok {
		return
	}
	gs, _ := asMap(generated)
	gp, _ := asMap(gs["properties"])
	for name := range props {
		if _, ok := gp[name]; !ok {
			delete(props, name)
		}
	}
	if len(props) == 0 {
		delete(ms, "properties")
	}
}
