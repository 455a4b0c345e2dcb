package httpapi

import (
	"net/http"
	"strings"
)

// segment is one element of a parsed route pattern: either a literal
// path component or a named parameter (e.g. "{volume_id}").
type segment struct {
	literal string
	param   string
}

func parsePattern(pattern string) []segment {
	parts := strings.Split(strings.Trim(pattern, "/"), "/")
	segments := make([]segment, 0, len(parts))
	for _, p := range parts {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			segments = append(segments, segment{param: strings.TrimSuffix(strings.TrimPrefix(p, "{"), "}")})
		} else {
			segments = append(segments, segment{literal: p})
		}
	}
	return segments
}

type route struct {
	method   string
	segments []segment
	handler  HandlerFunc
}

func (rt *route) match(method string, parts []string) (map[string]string, bool) {
	if rt.method != method || len(rt.segments) != len(parts) {
		return nil, false
	}
	var params map[string]string
	for i, seg := range rt.segments {
		if seg.param != "" {
			if params == nil {
				params = make(map[string]string)
			}
			params[seg.param] = parts[i]
			continue
		}
		if seg.literal != parts[i] {
			return nil, false
		}
	}
	return params, true
}

// Router matches an incoming request's method and path against a fixed
// set of registered routes and dispatches to the matching HandlerFunc,
// after running the router's global middleware chain.
type Router struct {
	routes     []*route
	middleware []MiddlewareFunc
	notFound   HandlerFunc
}

// New creates an empty Router. notFound is called when no route matches.
func New(notFound HandlerFunc) *Router {
	if notFound == nil {
		notFound = func(c *Context) { c.NoContent(http.StatusNotFound) }
	}
	return &Router{notFound: notFound}
}

// Use appends global middleware, applied to every route in registration order.
func (r *Router) Use(mw ...MiddlewareFunc) {
	r.middleware = append(r.middleware, mw...)
}

// Handle registers handler for method and pattern. pattern segments
// wrapped in braces (e.g. "/volumes/{volume_id}") are bound as params.
func (r *Router) Handle(method, pattern string, handler HandlerFunc) {
	r.routes = append(r.routes, &route{method: method, segments: parsePattern(pattern), handler: handler})
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	parts := strings.Split(strings.Trim(req.URL.Path, "/"), "/")

	handler := r.notFound
	var params map[string]string
	for _, rt := range r.routes {
		if p, ok := rt.match(req.Method, parts); ok {
			handler, params = rt.handler, p
			break
		}
	}

	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}

	c := &Context{w: &statusWriter{ResponseWriter: w}, r: req, params: params}
	handler(c)
}
