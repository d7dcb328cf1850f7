package filter

import (
	"strings"

	"github.com/yourorg/specsync/internal/config"
	"github.com/yourorg/specsync/pkg/types"
)

// GeneratorConfig is an alias of config.GeneratorConfig.
type GeneratorConfig = config.GeneratorConfig

// Apply drops routes whose method or path is ignored and keeps only the first
// of several routes sharing a method and path.
func Apply(routes []types.Route, cfg GeneratorConfig) []types.Route {
	filtered := make([]types.Route, 0, len(routes))
	for _, r := range routes {
		if strings.TrimSpace(r.Method) == "" || strings.TrimSpace(r.Path) == "" {
			continue
		}
		if hasIgnoredMethod(r.Method, cfg.IgnoreMethods) {
			continue
		}
		if hasIgnoredPath(r.Path, cfg.IgnorePaths) {
			continue
		}
		filtered = append(filtered, r)
	}
	return dedupe(filtered)
}

func hasIgnoredMethod(m string, methods []string) bool {
	for _, ignored := range methods {
		if strings.EqualFold(strings.TrimSpace(ignored), m) {
			return true
		}
	}
	return false
}

func hasIgnoredPath(p string, prefixes []string) bool {
	for _, pref := range prefixes {
		pref = strings.TrimSpace(pref)
		if pref == "" {
			continue
		}
		if strings.HasPrefix(p, pref) {
			return true
		}
	}
	return false
}

func dedupe(routes []types.Route) []types.Route {
	out := make([]types.Route, 0, len(routes))
	seen := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		key := routeKey(r.Method, r.Path)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

func routeKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}
