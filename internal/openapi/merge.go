package openapi

// entryMerger merges one table entry. Either argument may be nil when the
// entry only exists on the other side.
type entryMerger func(existing, generated any) any

// MergeNode merges two nodes of the same kind. For two mappings the result is
// a copy of generated plus the extension keys of existing that generated does
// not define. In every other case generated wins.
func MergeNode(existing, generated any) any {
	gm, ok := asMap(generated)
	if !ok {
		return generated
	}
	out := copyMap(gm)
	em, ok := asMap(existing)
	if !ok {
		return out
	}
	for k, v := range em {
		if !IsExtension(k) {
			continue
		}
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}

// Merge unions existing into generated. The result has every entry of
// generated, keeps entries that only exist in existing, and carries the
// extension fields of existing onto the nodes both sides share. openapi,
// info and servers are dropped when generated lacks them; security and other
// root fields fall back to existing. It over-includes until Prune is applied.
//
// The result may share subtrees with both inputs; neither input is modified.
func Merge(existing, generated Document) Document {
	if generated == nil {
		generated = Document{}
	}
	// Root fields start from existing and are overlaid by generated, so
	// curated fields such as tags or externalDocs survive.
	merged := Document(copyMap(existing))
	for k, v := range generated {
		merged[k] = v
	}

	for _, field := range []string{"openapi", "info", "servers"} {
		if v, ok := generated[field]; ok {
			merged[field] = MergeNode(existing[field], v)
		} else {
			delete(merged, field)
		}
	}
	if gp, ok := asMap(generated["paths"]); ok {
		ep, _ := asMap(existing["paths"])
		merged["paths"] = mergeTable(ep, gp, mergePathItem, true)
	}
	if gc, ok := asMap(generated["components"]); ok {
		ec, _ := asMap(existing["components"])
		merged["components"] = mergeComponents(ec, gc)
	}
	return merged
}

// mergeTable merges two name-keyed tables over the union of their keys.
// Entries present on one side only are taken as they are. When extensible is
// set, extension keys of the table itself are treated as fields rather than
// entries: generated wins and they never go through merge.
func mergeTable(existing, generated map[string]any, merge entryMerger, extensible bool) map[string]any {
	out := make(map[string]any, len(generated)+len(existing))
	for k, gv := range generated {
		ev, ok := existing[k]
		switch {
		case extensible && IsExtension(k):
			out[k] = gv
		case ok:
			out[k] = merge(ev, gv)
		default:
			out[k] = merge(nil, gv)
		}
	}
	for k, ev := range existing {
		if _, ok := generated[k]; !ok {
			out[k] = ev
		}
	}
	return out
}

// mergeNamedList merges two lists of named items by their identity key.
// Items without a name or $ref are dropped. Generated order comes first,
// followed by items only found in existing.
func mergeNamedList(existing, generated any) []any {
	eIndex, eOrder := indexByIdentity(existing)
	gIndex, gOrder := indexByIdentity(generated)
	out := make([]any, 0, len(gOrder)+len(eOrder))
	for _, id := range gOrder {
		out = append(out, MergeNode(eIndex[id], gIndex[id]))
	}
	for _, id := range eOrder {
		if _, ok := gIndex[id]; ok {
			continue
		}
		out = append(out, eIndex[id])
	}
	return out
}

// indexByIdentity maps each named item to its identity. A later duplicate
// replaces the value of an earlier one but keeps its position.
func indexByIdentity(list any) (map[string]any, []string) {
	items, _ := asSlice(list)
	index := make(map[string]any, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		id, ok := parameterIdentity(item)
		if !ok {
			continue
		}
		if _, seen := index[id]; !seen {
			order = append(order, id)
		}
		index[id] = item
	}
	return index, order
}

// parameterIdentity returns the name of a parameter, or its $ref when it has
// no name.
func parameterIdentity(item any) (string, bool) {
	m, ok := asMap(item)
	if !ok {
		return "", false
	}
	if name, ok := m["name"].(string); ok {
		return name, true
	}
	if ref, ok := m["$ref"].(string); ok {
		return ref, true
	}
	return "", false
}

func mergePathItem(existing, generated any) any {
	gi, ok := asMap(generated)
	if !ok {
		return generated
	}
	ei, _ := asMap(existing)
	merged := MergeNode(ei, gi).(map[string]any)
	for _, method := range Methods {
		eop, eok := ei[method]
		gop, gok := gi[method]
		switch {
		case eok && gok:
			merged[method] = mergeOperation(eop, gop)
		case eok:
			merged[method] = eop
		}
	}
	return merged
}

func mergeOperation(existing, generated any) any {
	gop, ok := asMap(generated)
	if !ok {
		return generated
	}
	eop, _ := asMap(existing)
	merged := MergeNode(eop, gop).(map[string]any)

	er, erOK := asMap(eop["responses"])
	gr, grOK := asMap(gop["responses"])
	if erOK || grOK {
		merged["responses"] = mergeTable(er, gr, MergeNode, true)
	}

	if params := mergeNamedList(eop["parameters"], gop["parameters"]); len(params) > 0 {
		merged["parameters"] = params
	} else {
		delete(merged, "parameters")
	}

	if security := mergeSecurity(eop["security"], gop["security"]); len(security) > 0 {
		merged["security"] = security
	} else {
		delete(merged, "security")
	}
	return merged
}

func mergeComponents(existing, generated map[string]any) map[string]any {
	merged := MergeNode(existing, generated).(map[string]any)
	for _, kind := range componentKinds {
		gk, ok := asMap(generated[kind])
		if !ok {
			continue
		}
		ek, _ := asMap(existing[kind])
		merge := MergeNode
		if kind == "schemas" {
			merge = mergeSchema
		}
		merged[kind] = mergeTable(ek, gk, merge, false)
	}
	return merged
}

func mergeSchema(existing, generated any) any {
	gs, ok := asMap(generated)
	if !ok {
		return generated
	}
	es, _ := asMap(existing)
	merged := MergeNode(es, gs).(map[string]any)
	ep, epOK := asMap(es["properties"])
	gp, gpOK := asMap(gs["properties"])
	if epOK || gpOK {
		merged["properties"] = mergeTable(ep, gp, MergeNode, false)
	}
	return merged
}
