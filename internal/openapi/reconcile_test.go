package openapi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) Document {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	doc, err := Decode(data, name)
	require.NoError(t, err)
	return doc
}

func mustDecode(t *testing.T, src string) Document {
	t.Helper()
	doc, err := Decode([]byte(src), "inline")
	require.NoError(t, err)
	return doc
}

// dig walks nested mappings by key.
func dig(t *testing.T, v any, keys ...string) any {
	t.Helper()
	for _, k := range keys {
		m, ok := asMap(v)
		require.Truef(t, ok, "expected mapping before %q", k)
		v, ok = m[k]
		require.Truef(t, ok, "missing key %q", k)
	}
	return v
}

func keysOf(t *testing.T, v any) []string {
	t.Helper()
	m, ok := asMap(v)
	require.True(t, ok)
	return sortedKeys(m)
}

func paramNames(t *testing.T, v any) []string {
	t.Helper()
	_, order := indexByIdentity(v)
	return order
}

func TestReconcileFixtures(t *testing.T) {
	existing := loadFixture(t, "existing.yaml")
	generated := loadFixture(t, "generated.yaml")

	merged, report := Reconcile(existing, generated)

	t.Run("root", func(t *testing.T) {
		assert.Equal(t, "1.0.0", dig(t, merged, "info", "version"))
		assert.Equal(t, map[string]any{"url": "https://example.com/logo.png"}, dig(t, merged, "info", "x-logo"))
		assert.Equal(t, "platform-team", merged["x-owner"])
		assert.Equal(t, generated["servers"], merged["servers"])
		// generated has no top-level security, so the published one stays.
		assert.Equal(t, []any{map[string]any{"apiKey": []any{}}}, merged["security"])
	})

	t.Run("paths", func(t *testing.T) {
		assert.Equal(t, generated.PathKeys(), merged.PathKeys())
		assert.Equal(t, "curated", dig(t, merged, "paths", "x-paths-note"))
		assert.Equal(t, 100, dig(t, merged, "paths", "/users/{userId}", "x-rate-limit"))
		assert.ElementsMatch(t, []string{"get", "put", "x-rate-limit"}, keysOf(t, dig(t, merged, "paths", "/users/{userId}")))
	})

	t.Run("operation", func(t *testing.T) {
		op := dig(t, merged, "paths", "/users/{userId}", "get")
		assert.Equal(t, "users.get", dig(t, op, "x-codegen-handler"))
		assert.Equal(t, "new", dig(t, op, "x-foo"))
		assert.Equal(t, []string{"200", "422"}, keysOf(t, dig(t, op, "responses")))
		assert.Equal(t, 60, dig(t, op, "responses", "200", "x-cache-ttl"))
		assert.NotNil(t, dig(t, op, "responses", "200", "content"))

		params := dig(t, op, "parameters")
		assert.Equal(t, []string{"userId"}, paramNames(t, params))
		assert.Equal(t, 42, dig(t, params.([]any)[0], "x-example"))

		assert.Equal(t, []any{map[string]any{"apiKey": []any{}}}, dig(t, op, "security"))
	})

	t.Run("components", func(t *testing.T) {
		assert.Equal(t, []string{"User"}, keysOf(t, dig(t, merged, "components", "schemas")))
		user := dig(t, merged, "components", "schemas", "User")
		assert.Equal(t, "users", dig(t, user, "x-table"))
		assert.Equal(t, []string{"email", "id", "name"}, keysOf(t, dig(t, user, "properties")))
		assert.Equal(t, "user_id", dig(t, user, "properties", "id", "x-column"))

		assert.Equal(t, []string{"apiKey"}, keysOf(t, dig(t, merged, "components", "securitySchemes")))
		assert.Equal(t, "secret/api", dig(t, merged, "components", "securitySchemes", "apiKey", "x-vault-path"))
	})

	t.Run("report", func(t *testing.T) {
		assert.Equal(t, []string{"/users"}, report.PathsAdded)
		assert.Equal(t, []string{"/legacy"}, report.PathsRemoved)
		assert.Equal(t, 10, report.ExtensionsPreserved)
	})
}

func TestReconcileLeavesInputsUntouched(t *testing.T) {
	existing := loadFixture(t, "existing.yaml")
	generated := loadFixture(t, "generated.yaml")
	existingBefore := existing.Clone()
	generatedBefore := generated.Clone()

	_, _ = Reconcile(existing, generated)

	assert.Equal(t, existingBefore, existing)
	assert.Equal(t, generatedBefore, generated)
}

func TestReconcileIdempotentUnderNoChange(t *testing.T) {
	for _, name := range []string{"existing.yaml", "generated.yaml"} {
		t.Run(name, func(t *testing.T) {
			doc := loadFixture(t, name)
			merged, report := Reconcile(doc, doc)
			assert.Equal(t, doc, merged)
			assert.Empty(t, report.PathsAdded)
			assert.Empty(t, report.PathsRemoved)
			assert.Zero(t, report.ExtensionsPreserved)
		})
	}
}

func TestReconcileSurfaceEqualsGenerated(t *testing.T) {
	existing := loadFixture(t, "existing.yaml")
	generated := loadFixture(t, "generated.yaml")
	merged, _ := Reconcile(existing, generated)

	for _, path := range generated.PathKeys() {
		gi := dig(t, generated, "paths", path)
		mi := dig(t, merged, "paths", path)
		assert.Equal(t, keysOf(t, gi), withoutExtensions(keysOf(t, mi)), path)
		for _, method := range withoutExtensions(keysOf(t, gi)) {
			gop, _ := asMap(dig(t, gi, method))
			mop, _ := asMap(dig(t, mi, method))
			if gr, ok := gop["responses"]; ok {
				assert.Equal(t, keysOf(t, gr), withoutExtensions(keysOf(t, mop["responses"])))
			}
			assert.Equal(t, paramNames(t, gop["parameters"]), paramNames(t, mop["parameters"]))
		}
	}
	gc, _ := asMap(generated["components"])
	for _, kind := range componentKinds {
		if _, present := gc[kind]; !present {
			continue
		}
		assert.Equal(t, keysOf(t, dig(t, generated, "components", kind)), keysOf(t, dig(t, merged, "components", kind)), kind)
	}
}

func withoutExtensions(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !IsExtension(k) {
			out = append(out, k)
		}
	}
	return out
}

func TestReconcileExtensionRules(t *testing.T) {
	existing := mustDecode(t, `
paths:
  /a:
    get:
      x-foo: 1
      x-bar: keep
      responses:
        "200": {description: OK}
`)
	generated := mustDecode(t, `
paths:
  /a:
    get:
      x-bar: replaced
      responses:
        "200": {description: OK}
`)
	merged, _ := Reconcile(existing, generated)
	op := dig(t, merged, "paths", "/a", "get")
	assert.Equal(t, 1, dig(t, op, "x-foo"), "existing-only extension is preserved")
	assert.Equal(t, "replaced", dig(t, op, "x-bar"), "generated wins on conflict")
}

func TestReconcileStaleRemoval(t *testing.T) {
	existing := mustDecode(t, `
paths:
  /old:
    get:
      x-owner: legacy
  /kept:
    get: {}
`)
	generated := mustDecode(t, `
paths:
  /kept:
    get: {}
`)
	merged, report := Reconcile(existing, generated)
	assert.Equal(t, []string{"/kept"}, merged.PathKeys())
	assert.Equal(t, []string{"/old"}, report.PathsRemoved)
}

func TestReconcileSecurity(t *testing.T) {
	tests := []struct {
		name      string
		existing  string
		generated string
		want      any
		present   bool
	}{
		{
			name:      "dedup and prune",
			existing:  `[{apiKey: []}, {basic: []}]`,
			generated: `[{apiKey: []}]`,
			want:      []any{map[string]any{"apiKey": []any{}}},
			present:   true,
		},
		{
			name:     "generated has no security",
			existing: `[{basic: []}]`,
			present:  false,
		},
		{
			name:      "scope order ignored",
			existing:  `[{oauth: [write, read]}]`,
			generated: `[{oauth: [read, write]}]`,
			want:      []any{map[string]any{"oauth": []any{"read", "write"}}},
			present:   true,
		},
		{
			name:      "scheme order ignored",
			existing:  `[{a: [], b: []}]`,
			generated: `[{b: [], a: []}]`,
			want:      []any{map[string]any{"a": []any{}, "b": []any{}}},
			present:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := mustDecode(t, "paths:\n  /a:\n    get:\n      security: "+tt.existing+"\n")
			gsrc := "paths:\n  /a:\n    get: {}\n"
			if tt.generated != "" {
				gsrc = "paths:\n  /a:\n    get:\n      security: " + tt.generated + "\n"
			}
			merged, _ := Reconcile(existing, mustDecode(t, gsrc))
			op, _ := asMap(dig(t, merged, "paths", "/a", "get"))
			got, ok := op["security"]
			require.Equal(t, tt.present, ok)
			if tt.present {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestReconcileDropsEmptyParameters(t *testing.T) {
	existing := mustDecode(t, `
paths:
  /a:
    get:
      parameters:
        - {name: limit, in: query}
        - {in: query}
`)
	generated := mustDecode(t, `
paths:
  /a:
    get:
      summary: list
`)
	merged, _ := Reconcile(existing, generated)
	op, _ := asMap(dig(t, merged, "paths", "/a", "get"))
	_, ok := op["parameters"]
	assert.False(t, ok)
}

func TestReconcileParameterRefIdentity(t *testing.T) {
	existing := mustDecode(t, `
paths:
  /a:
    get:
      parameters:
        - $ref: '#/components/parameters/Limit'
          x-note: paged
        - $ref: '#/components/parameters/Offset'
`)
	generated := mustDecode(t, `
paths:
  /a:
    get:
      parameters:
        - $ref: '#/components/parameters/Limit'
`)
	merged, _ := Reconcile(existing, generated)
	params := dig(t, merged, "paths", "/a", "get", "parameters").([]any)
	require.Len(t, params, 1)
	assert.Equal(t, "paged", dig(t, params[0], "x-note"))
}

func TestReconcileUserSchemaProperties(t *testing.T) {
	existing := mustDecode(t, `
components:
  schemas:
    User:
      properties:
        id: {type: integer}
        name: {type: string}
        x-internal-note: {type: string}
`)
	generated := mustDecode(t, `
components:
  schemas:
    User:
      properties:
        id: {type: integer}
        name: {type: string}
        email: {type: string}
`)
	merged, _ := Reconcile(existing, generated)
	assert.Equal(t, []string{"email", "id", "name"}, keysOf(t, dig(t, merged, "components", "schemas", "User", "properties")))
}

func TestReconcileRootFields(t *testing.T) {
	existing := mustDecode(t, `
openapi: 3.0.3
info: {title: Old, x-audience: partners}
tags: [{name: legacy}]
security: [{basic: []}]
`)
	generated := mustDecode(t, `
openapi: 3.1.0
info: {title: New}
security: [{apiKey: []}]
`)
	merged, _ := Reconcile(existing, generated)
	assert.Equal(t, "3.1.0", merged["openapi"])
	assert.Equal(t, map[string]any{"title": "New", "x-audience": "partners"}, merged["info"])
	assert.Equal(t, []any{map[string]any{"apiKey": []any{}}}, merged["security"])
	assert.Equal(t, []any{map[string]any{"name": "legacy"}}, merged["tags"], "curated root fields are kept")
	_, ok := merged["servers"]
	assert.False(t, ok)
}

func TestReconcileKeepsCuratedRootFields(t *testing.T) {
	existing := mustDecode(t, `
openapi: 3.1.0
servers: [{url: https://old.example.com}]
tags:
  - {name: users, description: Account management}
externalDocs: {url: https://docs.example.com}
paths: {}
`)
	generated := mustDecode(t, `
openapi: 3.1.0
externalDocs: {url: https://api.example.com/docs}
paths: {}
`)
	merged, _ := Reconcile(existing, generated)
	assert.Equal(t, []any{map[string]any{"name": "users", "description": "Account management"}}, merged["tags"])
	assert.Equal(t, map[string]any{"url": "https://api.example.com/docs"}, merged["externalDocs"], "generated wins when present")
	_, ok := merged["servers"]
	assert.False(t, ok, "servers follow generated")
}
