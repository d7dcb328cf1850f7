// Package generator renders the live service's routes into an API
// description document.
package generator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/gorilla/mux"

	"github.com/yourorg/specsync/internal/config"
	"github.com/yourorg/specsync/internal/filter"
	"github.com/yourorg/specsync/internal/openapi"
	"github.com/yourorg/specsync/pkg/types"
)

// Generator walks a router and renders the operations registered on it.
type Generator struct {
	Router *mux.Router
	// Routes holds route metadata keyed by router route name.
	Routes  map[string]types.Route
	Models  []types.Model
	Schemes []types.SecurityScheme
	Service config.ServiceConfig
	Filter  config.GeneratorConfig
	Logger  *slog.Logger
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Document renders the current route table.
func (g *Generator) Document(ctx context.Context) (openapi.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	routes, err := g.Collect()
	if err != nil {
		return nil, err
	}
	doc := Render(g.Service, routes, g.Models, g.Schemes)
	g.logger().Debug("generated document", "routes", len(routes), "models", len(g.Models))
	return doc, nil
}

// Collect walks the router in registration order and returns the filtered
// operations. A route without metadata is described by its template and
// methods alone; a route without methods is skipped.
func (g *Generator) Collect() ([]types.Route, error) {
	if g.Router == nil {
		return nil, errors.New("router is nil")
	}
	var routes []types.Route
	err := g.Router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		tpl, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, err := route.GetMethods()
		if err != nil {
			g.logger().Debug("skipping route without methods", "path", tpl)
			return nil
		}
		path, names := openapiPath(tpl)
		meta, known := g.Routes[route.GetName()]
		for _, m := range methods {
			r := meta
			if !known {
				r = bareRoute(names)
			}
			r.Name = route.GetName()
			r.Method = m
			r.Path = path
			routes = append(routes, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return filter.Apply(routes, g.Filter), nil
}

func bareRoute(pathParams []string) types.Route {
	r := types.Route{
		Responses: []types.Response{{StatusCode: 200, Description: "OK"}},
	}
	for _, n := range pathParams {
		r.PathParams = append(r.PathParams, types.Param{Name: n, Type: "string", Required: true})
	}
	return r
}

var templateVarRe = regexp.MustCompile(`\{([^{}:]+)(?::[^{}]*)?\}`)

// openapiPath strips router patterns from a path template, turning
// "/users/{userId:[0-9]+}" into "/users/{userId}", and returns the variable
// names in order.
func openapiPath(tpl string) (string, []string) {
	var names []string
	path := templateVarRe.ReplaceAllStringFunc(tpl, func(v string) string {
		m := templateVarRe.FindStringSubmatch(v)
		name := strings.TrimSpace(m[1])
		names = append(names, name)
		return "{" + name + "}"
	})
	return path, names
}
