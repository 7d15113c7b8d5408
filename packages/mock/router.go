package mock

import (
	"regexp"
	"strings"

	"github.com/sarathm09/vibranium/packages/core/scenario"
)

// Route is one endpoint served by the mock server.
type Route struct {
	Method      string
	PathPattern string
	PathRegex   *regexp.Regexp
	Ref         scenario.Ref
	Response    *scenario.Mock
}

// Router matches incoming requests to routes in registration order.
type Router struct {
	routes []*Route
}

func NewRouter() *Router {
	return &Router{
		routes: make([]*Route, 0),
	}
}

func (r *Router) AddRoute(route *Route) {
	r.routes = append(r.routes, route)
}

// Routes returns the registered routes.
func (r *Router) Routes() []*Route {
	return r.routes
}

// Match finds the first route for method and path. The returned map holds
// the values captured by {placeholder} segments.
func (r *Router) Match(method, path string) (*Route, map[string]string) {
	path = normalizePath(path)

	for _, route := range r.routes {
		if !strings.EqualFold(route.Method, method) {
			continue
		}
		if params := matchPath(route, path); params != nil {
			return route, params
		}
	}

	return nil, nil
}

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}

func matchPath(route *Route, path string) map[string]string {
	if route.PathRegex != nil {
		matches := route.PathRegex.FindStringSubmatch(path)
		if matches != nil {
			params := make(map[string]string)
			names := route.PathRegex.SubexpNames()
			for i, name := range names {
				if i > 0 && name != "" && i < len(matches) {
					params[name] = matches[i]
				}
			}
			return params
		}
	}

	if route.PathPattern == path {
		return make(map[string]string)
	}

	return nil
}

var segmentPlaceholder = regexp.MustCompile(`\{([A-Za-z_][\w\-.]*)\}`)

// extractPathPattern strips scheme, host and query from an endpoint url.
func extractPathPattern(url string) string {
	if idx := strings.Index(url, "://"); idx != -1 {
		url = url[idx+3:]
		if idx := strings.Index(url, "/"); idx != -1 {
			url = url[idx:]
		} else {
			url = "/"
		}
	}

	if idx := strings.Index(url, "?"); idx != -1 {
		url = url[:idx]
	}

	return normalizePath(url)
}

// createPathRegex turns every segment holding a placeholder into a
// wildcard. A segment with a single placeholder captures its value.
func createPathRegex(pattern string) *regexp.Regexp {
	segments := strings.Split(pattern, "/")
	used := map[string]bool{}
	for i, seg := range segments {
		if !segmentPlaceholder.MatchString(seg) {
			segments[i] = regexp.QuoteMeta(seg)
			continue
		}
		m := segmentPlaceholder.FindStringSubmatch(seg)
		name := captureName(m[1])
		if m[0] == seg && name != "" && !used[name] {
			used[name] = true
			segments[i] = "(?P<" + name + ">[^/]+)"
			continue
		}
		segments[i] = "[^/]+"
	}
	return regexp.MustCompile("^" + strings.Join(segments, "/") + "$")
}

// captureName maps a placeholder to a valid regexp group name.
func captureName(placeholder string) string {
	var b strings.Builder
	for _, r := range placeholder {
		if r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
