package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/yourorg/specsync/internal/store"
	"github.com/yourorg/specsync/pkg/types"
)

const maxBodyBytes = 1 << 20

func (s *Server) crudHandler(e endpoint) http.HandlerFunc {
	method := strings.ToLower(e.meta.Method)
	return func(w http.ResponseWriter, r *http.Request) {
		q := store.Query{Table: e.table, Method: method}

		vars := mux.Vars(r)
		for _, p := range e.meta.PathParams {
			v, err := convertParam(p, vars[p.Name])
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			if q.PathParams == nil {
				q.PathParams = make(map[string]any, len(e.meta.PathParams))
			}
			q.PathParams[e.column(p.Name)] = v
		}

		query := r.URL.Query()
		for _, p := range e.meta.QueryParams {
			raw := query.Get(p.Name)
			if raw == "" {
				if p.Required {
					writeError(w, http.StatusBadRequest, fmt.Sprintf("query parameter %s is required", p.Name))
					return
				}
				continue
			}
			v, err := convertParam(p, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			if q.QueryParams == nil {
				q.QueryParams = make(map[string]any)
			}
			q.QueryParams[e.column(p.Name)] = v
		}

		if e.meta.RequestBody != nil {
			body, err := decodeBody(r, e.meta.RequestBody)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			q.Body = body
		}

		res, err := s.store.Execute(r.Context(), q)
		switch {
		case err == nil:
		case errors.Is(err, store.ErrNotFound) && e.kind == ModelUserList:
			writeJSON(w, http.StatusOK, []types.User{})
			return
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
			return
		case errors.Is(err, store.ErrBadRequest):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		default:
			s.logger.Error("execute query", "route", e.meta.Name, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		status := statusFor(method)
		if status == http.StatusNoContent {
			w.WriteHeader(status)
			return
		}
		out, err := DecodeModel(e.kind, res.Value())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Error: "+err.Error())
			return
		}
		writeJSON(w, status, out)
	}
}

func (e endpoint) column(param string) string {
	if c, ok := e.columns[param]; ok {
		return c
	}
	return param
}

func convertParam(p types.Param, raw string) (any, error) {
	switch strings.ToLower(p.Type) {
	case "int", "int64", "integer":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %s must be an integer", p.Name)
		}
		return n, nil
	default:
		return raw, nil
	}
}

// decodeBody reads a JSON object restricted to the fields declared on body.
func decodeBody(r *http.Request, body *types.Body) (map[string]any, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxBodyBytes {
		return nil, errors.New("request body too large")
	}
	var in map[string]any
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("invalid json: %v", err)
	}

	declared := make(map[string]types.Param, len(body.Fields))
	for _, f := range body.Fields {
		declared[f.Name] = f
	}
	for k, v := range in {
		if _, ok := declared[k]; !ok {
			return nil, fmt.Errorf("unknown field %s", k)
		}
		if _, isString := v.(string); !isString {
			return nil, fmt.Errorf("field %s must be a string", k)
		}
	}
	for _, f := range body.Fields {
		if _, ok := in[f.Name]; f.Required && !ok {
			return nil, fmt.Errorf("field %s is required", f.Name)
		}
	}
	return in, nil
}

func (s *Server) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	want := []byte(s.cfg.Server.APIKey)
	return func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get(apiKeyHeader))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			writeError(w, http.StatusUnauthorized, "missing or invalid API key")
			return
		}
		next(w, r)
	}
}
