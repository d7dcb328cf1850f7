package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yourorg/specsync/internal/config"
	"github.com/yourorg/specsync/internal/filter"
	"github.com/yourorg/specsync/internal/generator"
	"github.com/yourorg/specsync/internal/openapi"
	"github.com/yourorg/specsync/internal/store"
	"github.com/yourorg/specsync/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options carries the optional collaborators of a Server.
type Options struct {
	Logger *slog.Logger
	// Registry receives the server's request metrics and backs /metrics.
	// A private registry is created when nil.
	Registry *prometheus.Registry
}

// Server serves the user API together with its live description document.
type Server struct {
	cfg      *config.Config
	store    store.Store
	router   *mux.Router
	gen      *generator.Generator
	redactor *filter.Redactor
	logger   *slog.Logger
	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

// New constructs a new Server with routes registered.
func New(cfg *config.Config, st store.Store, opts Options) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if st == nil {
		return nil, errors.New("store is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	srv := &Server{
		cfg:      cfg,
		store:    st,
		router:   mux.NewRouter(),
		redactor: filter.NewRedactor(cfg.Sanitize),
		logger:   logger,
		registry: reg,
		requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "specsync_http_requests_total",
			Help: "HTTP requests served, by route name and status code.",
		}, []string{"route", "code"}),
	}
	srv.registerRoutes()
	return srv, nil
}

// Handler returns the http handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Generator returns the generator describing the registered user API.
func (s *Server) Generator() *generator.Generator {
	return s.gen
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- hs.ListenAndServe()
	}()
	s.logger.Info("serving", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.router.Use(s.observe)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	protected := s.cfg.Server.APIKey != ""
	routes := make(map[string]types.Route)
	var schemes []types.SecurityScheme
	if protected {
		schemes = apiKeySchemes()
	}

	for _, e := range userEndpoints() {
		h := s.crudHandler(e)
		if e.mutates && protected {
			e.meta.Security = []types.SecurityRequirement{{apiKeyScheme: {}}}
			e.meta.Responses = append(e.meta.Responses, types.Response{StatusCode: 401, Description: "Missing or invalid API key"})
			h = s.requireAPIKey(h)
		}
		s.router.HandleFunc(e.pattern, h).Methods(e.meta.Method).Name(e.meta.Name)
		routes[e.meta.Name] = e.meta
	}

	s.router.HandleFunc("/openapi.json", s.handleDocument(openapi.FormatJSON)).Methods(http.MethodGet).Name("openapiJSON")
	s.router.HandleFunc("/openapi.yaml", s.handleDocument(openapi.FormatYAML)).Methods(http.MethodGet).Name("openapiYAML")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet).Name("metrics")

	s.gen = &generator.Generator{
		Router:  s.router,
		Routes:  routes,
		Models:  Models(),
		Schemes: schemes,
		Service: s.cfg.Service,
		Filter:  s.cfg.Generator,
		Logger:  s.logger,
	}
}

func (s *Server) handleDocument(format openapi.Format) http.HandlerFunc {
	contentType := "application/yaml"
	if format == openapi.FormatJSON {
		contentType = "application/json"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := s.gen.Document(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		data, err := openapi.Encode(doc, format)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
