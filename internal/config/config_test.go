package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSetDefaults(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	if c.Reconcile.Existing != "./openapi.yaml" {
		t.Fatalf("unexpected existing default %s", c.Reconcile.Existing)
	}
	if c.Reconcile.Output != "./regenerated-openapi.yaml" {
		t.Fatalf("unexpected output default %s", c.Reconcile.Output)
	}
	if c.Server.Port != 8080 {
		t.Fatalf("expected port 8080")
	}
	if c.Server.Host != "127.0.0.1" {
		t.Fatalf("expected default host")
	}
	if c.Log.Level != "info" || c.Log.Format != "text" {
		t.Fatalf("expected info/text logging")
	}
	if c.Concurrency != 4 {
		t.Fatalf("expected concurrency 4, got %d", c.Concurrency)
	}
	if c.Service.Title != "User API" || len(c.Service.Servers) != 1 || c.Service.Servers[0].URL != "/" {
		t.Fatalf("unexpected service defaults %+v", c.Service)
	}
	if len(c.Generator.IgnorePaths) != 3 {
		t.Fatalf("expected default ignore paths, got %v", c.Generator.IgnorePaths)
	}
}

func TestSetDefaultsKeepsExplicitEmptyIgnoreList(t *testing.T) {
	c := &Config{Generator: GeneratorConfig{IgnorePaths: []string{}}}
	c.SetDefaults()
	if len(c.Generator.IgnorePaths) != 0 {
		t.Fatalf("expected explicit empty list to stay empty, got %v", c.Generator.IgnorePaths)
	}
}

func TestLoadFromYAML(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	data := []byte(`service:
  title: Billing API
server:
  port: 9090
reconcile:
  existing: ./api/openapi.yaml
targets:
  - name: billing
    existing: ./billing/openapi.yaml
    output: ./billing/out.yaml
    new: ./billing/generated.yaml
`)
	if err := os.WriteFile(cfgPath, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Service.Title != "Billing API" {
		t.Fatalf("unexpected title %s", cfg.Service.Title)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("unexpected port %d", cfg.Server.Port)
	}
	if cfg.Reconcile.Existing != "./api/openapi.yaml" {
		t.Fatalf("unexpected existing %s", cfg.Reconcile.Existing)
	}
	if cfg.Reconcile.Output != "./regenerated-openapi.yaml" {
		t.Fatalf("expected default output, got %s", cfg.Reconcile.Output)
	}
	if len(cfg.Targets) != 1 || cfg.Targets[0].New != "./billing/generated.yaml" {
		t.Fatalf("unexpected targets %+v", cfg.Targets)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected defaults, got port %d", cfg.Server.Port)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("server: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPECSYNC_SERVER_PORT", "7070")
	t.Setenv("SPECSYNC_RECONCILE_FORCE", "true")
	t.Setenv("SPECSYNC_LOG_LEVEL", "debug")
	t.Setenv("SPECSYNC_CONCURRENCY", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected env port, got %d", cfg.Server.Port)
	}
	if !cfg.Reconcile.Force {
		t.Fatalf("expected force from env")
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug level, got %s", cfg.Log.Level)
	}
	if cfg.Concurrency != 4 {
		t.Fatalf("expected invalid env value to be ignored, got %d", cfg.Concurrency)
	}
}

func TestValidate(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	c.Log.Level = "verbose"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected log level validation error")
	}
	c.Log.Level = "info"
	c.Log.Format = "xml"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected log format validation error")
	}
}

func TestValidateTargets(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	if err := c.ValidateTargets(); err == nil {
		t.Fatalf("expected error for empty targets")
	}
	c.Targets = []Target{
		{Name: "a", Existing: "a.yaml", Output: "out.yaml"},
		{Name: "b", Existing: "b.yaml", Output: "out.yaml"},
	}
	if err := c.ValidateTargets(); err == nil {
		t.Fatalf("expected duplicate output error")
	}
	c.Targets[1].Output = "b-out.yaml"
	if err := c.ValidateTargets(); err != nil {
		t.Fatalf("validate targets failed: %v", err)
	}
	c.Targets = append(c.Targets, Target{Name: "", Existing: "c.yaml", Output: "c-out.yaml"})
	if err := c.ValidateTargets(); err == nil {
		t.Fatalf("expected missing name error")
	}
}
