package server

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/yourorg/specsync/internal/filter"
)

// maxLoggedBody caps how much of a request body is captured for debug logs.
const maxLoggedBody = 4 << 10

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// observe counts every matched request and, at debug level, logs it with
// sensitive headers, query values and body fields redacted.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		debug := s.logger.Enabled(r.Context(), slog.LevelDebug)

		var body string
		if debug && r.Body != nil {
			data, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1))
			if err == nil {
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(data), r.Body))
				body = string(data)
				if len(data) > maxLoggedBody {
					body = "[truncated]"
				}
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		name := "unnamed"
		if route := mux.CurrentRoute(r); route != nil && route.GetName() != "" {
			name = route.GetName()
		}
		s.requests.WithLabelValues(name, strconv.Itoa(rec.status)).Inc()

		if !debug {
			return
		}
		clean := s.redactor.Sanitize(filter.Request{
			Method:  r.Method,
			Path:    r.URL.Path,
			Headers: r.Header,
			Query:   r.URL.Query(),
			Body:    body,
		})
		s.logger.Debug("request",
			"route", name,
			"method", clean.Method,
			"path", clean.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"headers", clean.Headers,
			"query", clean.Query,
			"body", clean.Body,
		)
	})
}
