package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultConfigRelPath = ".specsync/config.yaml"
	defaultDBRelPath     = ".specsync/specsync.db"
)

// ServerEntry is one entry of the published servers list.
type ServerEntry struct {
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
}

// ServiceConfig is the metadata the generator publishes under info and servers.
type ServiceConfig struct {
	Name        string        `yaml:"name"`
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	Version     string        `yaml:"version"`
	Servers     []ServerEntry `yaml:"servers"`
}

type ReconcileConfig struct {
	Existing string `yaml:"existing"`
	Output   string `yaml:"output"`
	Force    bool   `yaml:"force"`
}

// Target is one document pair reconciled by reconcile-all. An empty New means
// the live generator supplies the new document.
type Target struct {
	Name     string `yaml:"name"`
	Existing string `yaml:"existing"`
	Output   string `yaml:"output"`
	New      string `yaml:"new"`
}

type GeneratorConfig struct {
	IgnorePaths   []string `yaml:"ignore_paths"`
	IgnoreMethods []string `yaml:"ignore_methods"`
}

type SanitizeConfig struct {
	Headers     []string `yaml:"headers"`
	BodyFields  []string `yaml:"body_fields"`
	Replacement string   `yaml:"replacement"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// APIKey, when set, is required in the X-API-Key header of mutating
	// user requests.
	APIKey string `yaml:"api_key"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Service     ServiceConfig   `yaml:"service"`
	Reconcile   ReconcileConfig `yaml:"reconcile"`
	Targets     []Target        `yaml:"targets"`
	Concurrency int             `yaml:"concurrency"`
	Generator   GeneratorConfig `yaml:"generator"`
	Sanitize    SanitizeConfig  `yaml:"sanitize"`
	Database    DatabaseConfig  `yaml:"database"`
	Server      ServerConfig    `yaml:"server"`
	Log         LogConfig       `yaml:"log"`
}

// DefaultPath returns the config file used when none is given.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, defaultConfigRelPath), nil
}

// Load loads YAML config, then applies env overrides. A missing file yields
// the defaults.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath == "" {
		var err error
		if configPath, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.SetDefaults()
	return cfg, nil
}

func (c *Config) SetDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "user-api"
	}
	if c.Service.Title == "" {
		c.Service.Title = "User API"
	}
	if c.Service.Description == "" {
		c.Service.Description = "A simple API to retrieve user data."
	}
	if c.Service.Version == "" {
		c.Service.Version = "1.0.0"
	}
	if len(c.Service.Servers) == 0 {
		c.Service.Servers = []ServerEntry{{URL: "/", Description: "Root Server"}}
	}
	if c.Reconcile.Existing == "" {
		c.Reconcile.Existing = "./openapi.yaml"
	}
	if c.Reconcile.Output == "" {
		c.Reconcile.Output = "./regenerated-openapi.yaml"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.Generator.IgnorePaths == nil {
		c.Generator.IgnorePaths = []string{"/metrics", "/openapi.json", "/openapi.yaml"}
	}
	if c.Generator.IgnoreMethods == nil {
		c.Generator.IgnoreMethods = []string{"OPTIONS", "HEAD"}
	}
	if len(c.Sanitize.Headers) == 0 {
		c.Sanitize.Headers = []string{"Authorization", "Cookie", "Set-Cookie", "X-Api-Key", "X-Auth-Token"}
	}
	if len(c.Sanitize.BodyFields) == 0 {
		c.Sanitize.BodyFields = []string{"password", "secret", "token", "api_key", "access_token", "refresh_token", "credential"}
	}
	if c.Sanitize.Replacement == "" {
		c.Sanitize.Replacement = "***REDACTED***"
	}
	if c.Database.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Database.Path = filepath.Join(home, defaultDBRelPath)
		} else {
			c.Database.Path = filepath.Base(defaultDBRelPath)
		}
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Reconcile.Existing) == "" {
		return errors.New("reconcile.existing cannot be empty")
	}
	if strings.TrimSpace(c.Reconcile.Output) == "" {
		return errors.New("reconcile.output cannot be empty")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q is not one of text, json", c.Log.Format)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

// ValidateTargets enforces reconcile-all requirements.
func (c *Config) ValidateTargets() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Targets) == 0 {
		return errors.New("targets cannot be empty")
	}
	seen := make(map[string]string, len(c.Targets))
	for i, t := range c.Targets {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("targets[%d].name cannot be empty", i)
		}
		if strings.TrimSpace(t.Existing) == "" || strings.TrimSpace(t.Output) == "" {
			return fmt.Errorf("target %s: existing and output are required", t.Name)
		}
		if prev, ok := seen[t.Output]; ok {
			return fmt.Errorf("target %s: output %s already written by %s", t.Name, t.Output, prev)
		}
		seen[t.Output] = t.Name
	}
	return nil
}

// EnsureDatabaseDir creates the directory holding the database file.
func (c *Config) EnsureDatabaseDir() error {
	dir := filepath.Dir(c.Database.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("database dir not writable: %w", err)
	}
	return nil
}

func applyEnvOverrides(c *Config) {
	setString(&c.Service.Name, "SPECSYNC_SERVICE_NAME")
	setString(&c.Service.Title, "SPECSYNC_SERVICE_TITLE")
	setString(&c.Service.Version, "SPECSYNC_SERVICE_VERSION")
	setString(&c.Reconcile.Existing, "SPECSYNC_RECONCILE_EXISTING")
	setString(&c.Reconcile.Output, "SPECSYNC_RECONCILE_OUTPUT")
	setBool(&c.Reconcile.Force, "SPECSYNC_RECONCILE_FORCE")
	setInt(&c.Concurrency, "SPECSYNC_CONCURRENCY")
	setString(&c.Database.Path, "SPECSYNC_DATABASE_PATH")
	setString(&c.Server.Host, "SPECSYNC_SERVER_HOST")
	setInt(&c.Server.Port, "SPECSYNC_SERVER_PORT")
	setString(&c.Server.APIKey, "SPECSYNC_SERVER_API_KEY")
	setString(&c.Log.Level, "SPECSYNC_LOG_LEVEL")
	setString(&c.Log.Format, "SPECSYNC_LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
