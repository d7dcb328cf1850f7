package openapi

import "fmt"

// CheckShape verifies that the fields the reconciler descends into have the
// kinds it expects. Null fields are treated as absent. It does not validate
// the document against the OpenAPI grammar.
func CheckShape(doc Document) error {
	if doc == nil {
		return &MalformedDocumentError{Message: "document is empty"}
	}
	if v, ok := doc["info"]; ok && v != nil {
		if _, ok := asMap(v); !ok {
			return shapeError("info", "expected a mapping")
		}
	}
	if v, ok := doc["servers"]; ok && v != nil {
		if _, ok := asSlice(v); !ok {
			return shapeError("servers", "expected a sequence")
		}
	}
	if v, ok := doc["security"]; ok && v != nil {
		if err := checkSecurity("security", v); err != nil {
			return err
		}
	}
	if v, ok := doc["paths"]; ok && v != nil {
		if err := checkPaths(v); err != nil {
			return err
		}
	}
	if v, ok := doc["components"]; ok && v != nil {
		if err := checkComponents(v); err != nil {
			return err
		}
	}
	return nil
}

func shapeError(field, msg string) error {
	return &MalformedDocumentError{Field: field, Message: msg}
}

func checkPaths(v any) error {
	paths, ok := asMap(v)
	if !ok {
		return shapeError("paths", "expected a mapping")
	}
	for _, path := range sortedKeys(paths) {
		if IsExtension(path) {
			continue
		}
		field := joinField("paths", path)
		item, ok := asMap(paths[path])
		if !ok {
			return shapeError(field, "path item is not a mapping")
		}
		for _, method := range Methods {
			op, ok := item[method]
			if !ok {
				continue
			}
			if err := checkOperation(joinField(field, method), op); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkOperation(field string, v any) error {
	op, ok := asMap(v)
	if !ok {
		return shapeError(field, "operation is not a mapping")
	}
	if r, ok := op["responses"]; ok && r != nil {
		if _, ok := asMap(r); !ok {
			return shapeError(joinField(field, "responses"), "expected a mapping")
		}
	}
	if p, ok := op["parameters"]; ok && p != nil {
		params, ok := asSlice(p)
		if !ok {
			return shapeError(joinField(field, "parameters"), "expected a sequence")
		}
		for i, param := range params {
			if _, ok := asMap(param); !ok {
				return shapeError(fmt.Sprintf("%s.parameters[%d]", field, i), "parameter is not a mapping")
			}
		}
	}
	if s, ok := op["security"]; ok && s != nil {
		if err := checkSecurity(joinField(field, "security"), s); err != nil {
			return err
		}
	}
	return nil
}

func checkSecurity(field string, v any) error {
	reqs, ok := asSlice(v)
	if !ok {
		return shapeError(field, "expected a sequence of security requirements")
	}
	for i, req := range reqs {
		reqField := fmt.Sprintf("%s[%d]", field, i)
		m, ok := asMap(req)
		if !ok {
			return shapeError(reqField, "security requirement is not a mapping")
		}
		for _, scheme := range sortedKeys(m) {
			scopes, ok := asSlice(m[scheme])
			if !ok {
				return shapeError(joinField(reqField, scheme), "scopes are not a sequence")
			}
			for _, s := range scopes {
				if _, ok := s.(string); !ok {
					return shapeError(joinField(reqField, scheme), "scope is not a string")
				}
			}
		}
	}
	return nil
}

func checkComponents(v any) error {
	components, ok := asMap(v)
	if !ok {
		return shapeError("components", "expected a mapping")
	}
	for _, kind := range componentKinds {
		table, ok := components[kind]
		if !ok || table == nil {
			continue
		}
		field := joinField("components", kind)
		entries, ok := asMap(table)
		if !ok {
			return shapeError(field, "expected a mapping")
		}
		if kind != "schemas" {
			continue
		}
		for _, name := range sortedKeys(entries) {
			schema, ok := asMap(entries[name])
			if !ok {
				// Boolean schemas are allowed.
				continue
			}
			if props, ok := schema["properties"]; ok && props != nil {
				if _, ok := asMap(props); !ok {
					return shapeError(joinField(joinField(field, name), "properties"), "expected a mapping")
				}
			}
		}
	}
	return nil
}
