package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yourorg/specsync/internal/config"
	"github.com/yourorg/specsync/internal/generator"
	"github.com/yourorg/specsync/internal/openapi"
	"github.com/yourorg/specsync/internal/store"
	"github.com/yourorg/specsync/pkg/types"
)

func newTestServer(t *testing.T, apiKey string, logger *slog.Logger) (*Server, *store.SQLiteStore) {
	t.Helper()

	tmpDir := t.TempDir()
	cfg := &config.Config{}
	cfg.Server.APIKey = apiKey
	cfg.SetDefaults()

	st, err := store.NewSQLiteStore(filepath.Join(tmpDir, "specsync.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	srv, err := New(cfg, st, Options{Logger: logger})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, st
}

func do(t *testing.T, srv *Server, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewRequiresConfigAndStore(t *testing.T) {
	if _, err := New(nil, nil, Options{}); err == nil {
		t.Fatalf("expected error for nil config")
	}
	cfg := &config.Config{}
	cfg.SetDefaults()
	if _, err := New(cfg, nil, Options{}); err == nil {
		t.Fatalf("expected error for nil store")
	}
}

func TestUserLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	rec := do(t, srv, http.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body.String())
	}
	var created types.User
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == 0 || created.Name != "Ada" || created.Email != "ada@example.com" {
		t.Fatalf("unexpected created user %+v", created)
	}

	rec = do(t, srv, http.MethodGet, "/users/1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got types.User
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if got != created {
		t.Fatalf("expected %+v, got %+v", created, got)
	}

	do(t, srv, http.MethodPost, "/users", `{"name":"Grace"}`, nil)
	rec = do(t, srv, http.MethodGet, "/users", "", nil)
	var all []types.User
	if err := json.NewDecoder(rec.Body).Decode(&all); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if rec.Code != http.StatusOK || len(all) != 2 {
		t.Fatalf("list status = %d users=%v", rec.Code, all)
	}

	rec = do(t, srv, http.MethodGet, "/users?name=Grace", "", nil)
	var filtered []types.User
	if err := json.NewDecoder(rec.Body).Decode(&filtered); err != nil {
		t.Fatalf("decode filtered list: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Name != "Grace" {
		t.Fatalf("unexpected filtered list %v", filtered)
	}

	rec = do(t, srv, http.MethodPut, "/users/1", `{"name":"Ada Lovelace"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d body=%s", rec.Code, rec.Body.String())
	}
	var updated types.User
	if err := json.NewDecoder(rec.Body).Decode(&updated); err != nil {
		t.Fatalf("decode updated: %v", err)
	}
	if updated.Name != "Ada Lovelace" || updated.Email != "ada@example.com" {
		t.Fatalf("unexpected updated user %+v", updated)
	}

	rec = do(t, srv, http.MethodDelete, "/users/1", "", nil)
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("delete status = %d body=%q", rec.Code, rec.Body.String())
	}
	if rec := do(t, srv, http.MethodGet, "/users/1", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodDelete, "/users/1", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting twice, got %d", rec.Code)
	}
}

func TestListUsersEmpty(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	rec := do(t, srv, http.MethodGet, "/users", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %s", rec.Body.String())
	}
}

func TestRequestErrors(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"unknown user", http.MethodGet, "/users/42", "", http.StatusNotFound},
		{"non numeric id", http.MethodGet, "/users/abc", "", http.StatusNotFound},
		{"unknown path", http.MethodGet, "/nope", "", http.StatusNotFound},
		{"method not allowed", http.MethodPatch, "/users/1", "", http.StatusMethodNotAllowed},
		{"invalid json", http.MethodPost, "/users", `{"name":`, http.StatusBadRequest},
		{"missing name", http.MethodPost, "/users", `{"email":"x@example.com"}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/users", `{"name":"a","role":"admin"}`, http.StatusBadRequest},
		{"non string field", http.MethodPost, "/users", `{"name":7}`, http.StatusBadRequest},
		{"empty update", http.MethodPut, "/users/1", `{}`, http.StatusBadRequest},
		{"update missing user", http.MethodPut, "/users/9", `{"name":"x"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.method, tt.target, tt.body, nil)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), `"detail"`) {
				t.Fatalf("expected detail in error body, got %s", rec.Body.String())
			}
		})
	}
}

func TestAPIKeyProtectsMutations(t *testing.T) {
	srv, _ := newTestServer(t, "s3cret", nil)

	if rec := do(t, srv, http.MethodPost, "/users", `{"name":"Ada"}`, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}
	wrong := http.Header{"X-API-Key": {"nope"}}
	if rec := do(t, srv, http.MethodPost, "/users", `{"name":"Ada"}`, wrong); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", rec.Code)
	}
	ok := http.Header{"X-API-Key": {"s3cret"}}
	if rec := do(t, srv, http.MethodPost, "/users", `{"name":"Ada"}`, ok); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 with key, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/users/1", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("reads stay open, got %d", rec.Code)
	}

	doc, err := srv.Generator().Document(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if errs := generator.Validate(doc); len(errs) != 0 {
		t.Fatalf("unexpected validation errors %v", errs)
	}
	post := doc["paths"].(map[string]any)["/users"].(map[string]any)["post"].(map[string]any)
	if _, ok := post["security"]; !ok {
		t.Fatalf("expected security on createUser")
	}
	get := doc["paths"].(map[string]any)["/users"].(map[string]any)["get"].(map[string]any)
	if _, ok := get["security"]; ok {
		t.Fatalf("expected no security on listUsers")
	}
	if _, ok := doc["components"].(map[string]any)["securitySchemes"]; !ok {
		t.Fatalf("expected securitySchemes")
	}
}

func TestOpenAPIJSON(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	rec := do(t, srv, http.MethodGet, "/openapi.json", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %s", ct)
	}
	doc, err := openapi.Decode(rec.Body.Bytes(), "openapi.json")
	if err != nil {
		t.Fatalf("decode document: %v", err)
	}
	keys := doc.PathKeys()
	if len(keys) != 2 || keys[0] != "/users" || keys[1] != "/users/{userId}" {
		t.Fatalf("unexpected paths %v", keys)
	}
	item := doc["paths"].(map[string]any)["/users/{userId}"].(map[string]any)
	for _, m := range []string{"get", "put", "delete"} {
		if _, ok := item[m]; !ok {
			t.Fatalf("missing %s /users/{userId}", m)
		}
	}
	if doc["info"].(map[string]any)["title"] != "User API" {
		t.Fatalf("unexpected info %v", doc["info"])
	}
	schemas := doc["components"].(map[string]any)["schemas"].(map[string]any)
	if _, ok := schemas["User"]; !ok {
		t.Fatalf("expected User schema")
	}
	if _, ok := doc["components"].(map[string]any)["securitySchemes"]; ok {
		t.Fatalf("expected no security schemes without an api key")
	}
}

func TestOpenAPIYAML(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	rec := do(t, srv, http.MethodGet, "/openapi.yaml", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "openapi: 3.1.0\n") {
		t.Fatalf("expected openapi first, got %q", rec.Body.String()[:40])
	}
	doc, err := openapi.Decode(rec.Body.Bytes(), "openapi.yaml")
	if err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if _, ok := doc["paths"].(map[string]any)["/metrics"]; ok {
		t.Fatalf("/metrics should be ignored")
	}
}

func TestMetricsCountRequests(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	do(t, srv, http.MethodPost, "/users", `{"name":"Ada"}`, nil)
	do(t, srv, http.MethodGet, "/users/99", "", nil)

	rec := do(t, srv, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`specsync_http_requests_total{code="201",route="createUser"} 1`,
		`specsync_http_requests_total{code="404",route="getUser"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in metrics output:\n%s", want, body)
		}
	}
}

func TestDebugLogRedacts(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	srv, _ := newTestServer(t, "topsecret", logger)

	hdr := http.Header{"X-API-Key": {"topsecret"}}
	rec := do(t, srv, http.MethodPost, "/users?token=abc123", `{"name":"Ada","password":"hunter2"}`, hdr)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected unknown field rejection, got %d", rec.Code)
	}
	out := buf.String()
	for _, secret := range []string{"topsecret", "abc123", "hunter2"} {
		if strings.Contains(out, secret) {
			t.Fatalf("log leaked %q:\n%s", secret, out)
		}
	}
	if !strings.Contains(out, "***REDACTED***") || !strings.Contains(out, "route=createUser") {
		t.Fatalf("expected redacted request log, got:\n%s", out)
	}
}

func TestDecodeModel(t *testing.T) {
	row := store.Row{"id": int64(3), "name": "Ada", "email": nil}

	v, err := DecodeModel(ModelUser, row)
	if err != nil {
		t.Fatal(err)
	}
	if u := v.(types.User); u.ID != 3 || u.Name != "Ada" || u.Email != "" {
		t.Fatalf("unexpected user %+v", u)
	}

	v, err = DecodeModel(ModelUserList, row)
	if err != nil {
		t.Fatal(err)
	}
	if users := v.([]types.User); len(users) != 1 {
		t.Fatalf("expected single row to decode as list, got %v", users)
	}

	if v, err := DecodeModel(ModelNone, row); err != nil || v != nil {
		t.Fatalf("expected nil model, got %v %v", v, err)
	}

	_, err = DecodeModel("list:order", row)
	var unknown *UnknownModelError
	if !errors.As(err, &unknown) || unknown.Kind != "list:order" {
		t.Fatalf("expected UnknownModelError, got %v", err)
	}

	if _, err := DecodeModel(ModelUser, []store.Row{row, row}); err == nil {
		t.Fatalf("expected error decoding a list as one user")
	}
	if _, err := DecodeModel(ModelUser, store.Row{"id": "x", "name": "Ada"}); err == nil {
		t.Fatalf("expected error for non numeric id")
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[string]int{"get": 200, "post": 201, "put": 200, "delete": 204, "patch": 500}
	for method, want := range tests {
		if got := statusFor(method); got != want {
			t.Fatalf("statusFor(%s) = %d, want %d", method, got, want)
		}
	}
}
