package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/yourorg/specsync/internal/config"
	"github.com/yourorg/specsync/internal/pipeline"
	"github.com/yourorg/specsync/internal/server"
	"github.com/yourorg/specsync/internal/store"
)

type options struct {
	cfgPath string
	verbose bool
	debug   bool
}

// app is what a command runs against: loaded config, logger, store and the
// user API server whose routes feed the generator.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.SQLiteStore
	registry *prometheus.Registry
	metrics  *pipeline.Metrics
	server   *server.Server
}

func (o *options) open(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(o.cfgPath)
	if err != nil {
		return nil, err
	}
	switch {
	case o.debug:
		cfg.Log.Level = "debug"
	case o.verbose && cfg.Log.Level != "debug":
		cfg.Log.Level = "info"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return nil, err
	}

	if err := cfg.EnsureDatabaseDir(); err != nil {
		return nil, err
	}
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	reg := prometheus.NewRegistry()
	srv, err := server.New(cfg, st, server.Options{Logger: logger, Registry: reg})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	logger.Debug("config loaded", "database", cfg.Database.Path, "service", cfg.Service.Name)
	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		registry: reg,
		metrics:  pipeline.NewMetrics(reg),
		server:   srv,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// runner wires the pipeline to the live generator. Metrics land in the app
// registry, which serve exposes on /metrics.
func (a *app) runner(force bool) *pipeline.Runner {
	return &pipeline.Runner{
		Fs:          afero.NewOsFs(),
		Store:       a.store,
		Source:      a.server.Generator(),
		Logger:      a.logger,
		Metrics:     a.metrics,
		Service:     a.cfg.Service.Name,
		Force:       force || a.cfg.Reconcile.Force,
		Concurrency: a.cfg.Concurrency,
	}
}

func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
