package generator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/yourorg/specsync/internal/config"
	"github.com/yourorg/specsync/internal/openapi"
	"github.com/yourorg/specsync/pkg/types"
)

// Version is the OpenAPI version generated documents declare.
const Version = "3.1.0"

const (
	schemaRefPrefix    = "#/components/schemas/"
	defaultContentType = "application/json"
)

// Render builds the API description document for routes. Models become
// component schemas and schemes become security schemes.
func Render(svc config.ServiceConfig, routes []types.Route, models []types.Model, schemes []types.SecurityScheme) openapi.Document {
	doc := openapi.Document{
		"openapi": Version,
		"info":    renderInfo(svc),
		"paths":   map[string]any{},
	}
	if len(svc.Servers) > 0 {
		servers := make([]any, 0, len(svc.Servers))
		for _, s := range svc.Servers {
			entry := map[string]any{"url": s.URL}
			if s.Description != "" {
				entry["description"] = s.Description
			}
			servers = append(servers, entry)
		}
		doc["servers"] = servers
	}

	paths := doc["paths"].(map[string]any)
	for _, r := range routes {
		method := strings.ToLower(r.Method)
		pathItem, ok := paths[r.Path].(map[string]any)
		if !ok {
			pathItem = map[string]any{}
			paths[r.Path] = pathItem
		}
		pathItem[method] = renderOperation(r)
	}

	components := map[string]any{}
	if len(models) > 0 {
		schemas := make(map[string]any, len(models))
		for _, m := range models {
			schema := buildObjectSchema(m.Fields)
			if m.Description != "" {
				schema["description"] = m.Description
			}
			schemas[m.Name] = schema
		}
		components["schemas"] = schemas
	}
	if len(schemes) > 0 {
		out := make(map[string]any, len(schemes))
		for _, s := range schemes {
			out[s.Name] = renderSecurityScheme(s)
		}
		components["securitySchemes"] = out
	}
	if len(components) > 0 {
		doc["components"] = components
	}
	return doc
}

func renderInfo(svc config.ServiceConfig) map[string]any {
	info := map[string]any{
		"title":   svc.Title,
		"version": svc.Version,
	}
	if svc.Description != "" {
		info["description"] = svc.Description
	}
	return info
}

func renderOperation(r types.Route) map[string]any {
	op := map[string]any{}
	if r.Summary != "" {
		op["summary"] = r.Summary
	}
	if r.Description != "" {
		op["description"] = r.Description
	}
	if r.OperationID != "" {
		op["operationId"] = r.OperationID
	}
	if len(r.Tags) > 0 {
		op["tags"] = stringList(r.Tags)
	}

	params := make([]any, 0, len(r.PathParams)+len(r.QueryParams))
	for _, p := range r.PathParams {
		params = append(params, paramToOpenAPIParam(p, "path"))
	}
	for _, p := range r.QueryParams {
		params = append(params, paramToOpenAPIParam(p, "query"))
	}
	if len(params) > 0 {
		op["parameters"] = params
	}

	if r.RequestBody != nil {
		ct := r.RequestBody.ContentType
		if ct == "" {
			ct = defaultContentType
		}
		body := map[string]any{
			"content": map[string]any{
				ct: map[string]any{"schema": bodySchema(r.RequestBody.Model, false, r.RequestBody.Fields)},
			},
		}
		if r.RequestBody.Required {
			body["required"] = true
		}
		op["requestBody"] = body
	}

	responses := map[string]any{}
	for _, resp := range r.Responses {
		respObj := map[string]any{"description": resp.Description}
		if resp.Model != "" || len(resp.Fields) > 0 {
			ct := resp.ContentType
			if ct == "" {
				ct = defaultContentType
			}
			respObj["content"] = map[string]any{
				ct: map[string]any{"schema": bodySchema(resp.Model, resp.List, resp.Fields)},
			}
		}
		responses[strconv.Itoa(resp.StatusCode)] = respObj
	}
	op["responses"] = responses

	if len(r.Security) > 0 {
		reqs := make([]any, 0, len(r.Security))
		for _, req := range r.Security {
			reqs = append(reqs, renderRequirement(req))
		}
		op["security"] = reqs
	}
	return op
}

func renderRequirement(req types.SecurityRequirement) map[string]any {
	out := make(map[string]any, len(req))
	for scheme, scopes := range req {
		out[scheme] = stringList(scopes)
	}
	return out
}

func renderSecurityScheme(s types.SecurityScheme) map[string]any {
	out := map[string]any{"type": s.Type}
	switch s.Type {
	case "apiKey":
		in := s.In
		if in == "" {
			in = "header"
		}
		out["in"] = in
		out["name"] = s.Header
	case "http":
		out["scheme"] = s.Scheme
	}
	return out
}

func bodySchema(model string, list bool, fields []types.Param) map[string]any {
	var schema map[string]any
	if model != "" {
		schema = map[string]any{"$ref": schemaRefPrefix + model}
	} else {
		schema = buildObjectSchema(fields)
	}
	if list {
		return map[string]any{"type": "array", "items": schema}
	}
	return schema
}

func stringList(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

func paramToOpenAPIParam(p types.Param, in string) map[string]any {
	param := map[string]any{
		"name":     p.Name,
		"in":       in,
		"required": p.Required || in == "path",
		"schema":   paramToSchema(p),
	}
	if p.Description != "" {
		param["description"] = p.Description
	}
	return param
}

func paramToSchema(p types.Param) map[string]any {
	typeName, format := inferType(p.Type)
	schema := map[string]any{}
	if typeName != "" {
		schema["type"] = typeName
	}
	if format != "" {
		schema["format"] = format
	}
	if p.Description != "" {
		schema["description"] = p.Description
	}
	if len(p.Children) > 0 {
		if typeName == "array" {
			schema["items"] = buildObjectSchema(p.Children)
		} else {
			child := buildObjectSchema(p.Children)
			schema["type"] = "object"
			for k, v := range child {
				schema[k] = v
			}
		}
	}
	return schema
}

func buildObjectSchema(fields []types.Param) map[string]any {
	props := map[string]any{}
	var required []any
	for _, f := range fields {
		props[f.Name] = paramToSchema(f)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func inferType(t string) (string, string) {
	lt := strings.ToLower(t)
	switch {
	case strings.Contains(lt, "uuid"):
		return "string", "uuid"
	case strings.Contains(lt, "datetime"), strings.Contains(lt, "date-time"):
		return "string", "date-time"
	case strings.Contains(lt, "email"):
		return "string", "email"
	case strings.Contains(lt, "int64"):
		return "integer", "int64"
	case strings.Contains(lt, "integer"), lt == "int":
		return "integer", ""
	case strings.Contains(lt, "number"), strings.Contains(lt, "float"):
		return "number", ""
	case strings.Contains(lt, "boolean"), lt == "bool":
		return "boolean", ""
	case strings.Contains(lt, "array"):
		return "array", ""
	case strings.Contains(lt, "object"):
		return "object", ""
	default:
		return "string", ""
	}
}

// Validate performs basic consistency checks on a generated document:
// operations have responses, schema references resolve and security
// requirements name declared schemes.
func Validate(doc openapi.Document) []string {
	var errs []string
	if _, ok := doc["openapi"]; !ok {
		errs = append(errs, "missing openapi field")
	}
	paths, ok := doc["paths"].(map[string]any)
	if !ok || len(paths) == 0 {
		errs = append(errs, "missing or empty paths")
		return errs
	}
	components, _ := doc["components"].(map[string]any)
	schemas, _ := components["schemas"].(map[string]any)
	schemes, _ := components["securitySchemes"].(map[string]any)

	for _, p := range sortedKeys(paths) {
		item, ok := paths[p].(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("invalid path item for %s", p))
			continue
		}
		for _, method := range openapi.Methods {
			op, ok := item[method].(map[string]any)
			if !ok {
				continue
			}
			where := strings.ToUpper(method) + " " + p
			if responses, ok := op["responses"].(map[string]any); !ok || len(responses) == 0 {
				errs = append(errs, fmt.Sprintf("%s has no responses", where))
			}
			for _, ref := range collectRefs(op) {
				name := strings.TrimPrefix(ref, schemaRefPrefix)
				if _, ok := schemas[name]; !ok || name == ref {
					errs = append(errs, fmt.Sprintf("%s references unknown schema %s", where, ref))
				}
			}
			reqs, _ := op["security"].([]any)
			for _, req := range reqs {
				m, _ := req.(map[string]any)
				for _, scheme := range sortedKeys(m) {
					if _, ok := schemes[scheme]; !ok {
						errs = append(errs, fmt.Sprintf("%s requires undeclared security scheme %s", where, scheme))
					}
				}
			}
		}
	}
	return errs
}

func collectRefs(v any) []string {
	var refs []string
	switch t := v.(type) {
	case map[string]any:
		if ref, ok := t["$ref"].(string); ok {
			refs = append(refs, ref)
		}
		for _, k := range sortedKeys(t) {
			refs = append(refs, collectRefs(t[k])...)
		}
	case []any:
		for _, child := range t {
			refs = append(refs, collectRefs(child)...)
		}
	}
	return refs
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
