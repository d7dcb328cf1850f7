package filter

import (
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/yourorg/specsync/internal/config"
)

// SanitizeConfig is an alias of config.SanitizeConfig.
type SanitizeConfig = config.SanitizeConfig

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Request is the part of an HTTP request that gets logged.
type Request struct {
	Method  string
	Path    string
	Headers http.Header
	Query   url.Values
	Body    string
}

// Redactor masks sensitive headers, query params and JSON body fields.
type Redactor struct {
	headers     map[string]struct{}
	fields      map[string]struct{}
	replacement string
}

func NewRedactor(cfg SanitizeConfig) *Redactor {
	return &Redactor{
		headers:     toLowerSet(cfg.Headers),
		fields:      toLowerSet(cfg.BodyFields),
		replacement: cfg.Replacement,
	}
}

// Sanitize returns a copy of req with sensitive values replaced. req is not
// modified.
func (r *Redactor) Sanitize(req Request) Request {
	out := req
	out.Headers = r.redactValues(req.Headers, r.headers)
	out.Query = url.Values(r.redactValues(req.Query, r.fields))
	out.Body = r.redactBody(req.Body)
	return out
}

// Sanitize is a one-shot helper around NewRedactor.
func Sanitize(req Request, cfg SanitizeConfig) Request {
	return NewRedactor(cfg).Sanitize(req)
}

func toLowerSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, v := range items {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}

func (r *Redactor) redactValues(in map[string][]string, set map[string]struct{}) map[string][]string {
	if len(in) == 0 {
		return in
	}
	out := make(map[string][]string, len(in))
	for k, vs := range in {
		if _, ok := set[strings.ToLower(k)]; !ok {
			out[k] = append([]string(nil), vs...)
			continue
		}
		masked := make([]string, len(vs))
		for i := range masked {
			masked[i] = r.replacement
		}
		out[k] = masked
	}
	return out
}

func (r *Redactor) redactBody(body string) string {
	if strings.TrimSpace(body) == "" || len(r.fields) == 0 {
		return body
	}
	var v interface{}
	if err := json.UnmarshalFromString(body, &v); err != nil {
		return body
	}
	out, err := json.MarshalToString(r.redactJSON(v))
	if err != nil {
		return body
	}
	return out
}

func (r *Redactor) redactJSON(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, child := range val {
			if _, ok := r.fields[strings.ToLower(k)]; ok {
				val[k] = r.replacement
				continue
			}
			val[k] = r.redactJSON(child)
		}
		return val
	case []interface{}:
		for i := range val {
			val[i] = r.redactJSON(val[i])
		}
		return val
	default:
		return val
	}
}
