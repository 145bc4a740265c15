package router

import (
	"regexp"
	"sort"

	"github.com/Suhaibinator/SEffect/pkg/common"
	"github.com/Suhaibinator/SEffect/pkg/pathmatch"
	"github.com/julienschmidt/httprouter"
)

// Table is the compiled routing table. Order is significant: resolution stops
// at the first entry whose pattern matches. A Table is read-only after Compile
// and safe for concurrent use.
type Table []Entry

// Entry is one row of the routing table: a path pattern and the route
// declared for each method on it.
type Entry struct {
	Pattern *regexp.Regexp
	Methods map[string]*RouteMethod
}

// RouteMethod is the compiled form of a route for one method.
type RouteMethod struct {
	Template   string            // Full path template, group prefixes included
	Params     []string          // Parameter names, one per capture group of the pattern
	Middleware common.Middleware // Composed group middlewares, nil if none
	Effect     common.Effect
}

// Match is the result of a successful resolution.
type Match struct {
	Route  *RouteMethod
	Params httprouter.Params
}

// RouteInfo describes a declared route.
type RouteInfo struct {
	Method   string
	Template string
}

// Len returns the number of entries in the table.
func (t Table) Len() int {
	return len(t)
}

// Routes lists every declared route in table order, methods sorted within an entry.
func (t Table) Routes() []RouteInfo {
	var routes []RouteInfo
	for _, entry := range t {
		methods := make([]string, 0, len(entry.Methods))
		for m := range entry.Methods {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		for _, m := range methods {
			routes = append(routes, RouteInfo{Method: m, Template: entry.Methods[m].Template})
		}
	}
	return routes
}

// Find resolves a path and method against the table. The first entry whose
// pattern matches the path (query string ignored) is final: if it declares
// neither the method nor MethodAny, Find reports no match without looking at
// later entries.
func (t Table) Find(path, method string) (*Match, bool) {
	path = pathmatch.StripQuery(path)

	for i := range t {
		entry := &t[i]
		match := entry.Pattern.FindStringSubmatch(path)
		if match == nil {
			continue
		}

		route, ok := entry.Methods[method]
		if !ok {
			route, ok = entry.Methods[MethodAny]
		}
		if !ok {
			return nil, false
		}

		return &Match{
			Route:  route,
			Params: pathmatch.DecodeParams(route.Params, match),
		}, true
	}
	return nil, false
}

// Effect returns the routing stage as an effect. On a match it records the
// route template, sets the request's URL parameters and query, runs the route's middleware, then its
// effect. An unmatched request produces no output.
func (t Table) Effect() common.Effect {
	return func(req *common.Request) (*common.Response, error) {
		m, ok := t.Find(req.Path, req.Method)
		if !ok {
			return nil, nil
		}

		req.SetRoute(m.Route.Template)
		req.Params = mergeParams(req.Params, m.Params)
		req.Query = pathmatch.ParseQuery(req.RawQuery)

		if m.Route.Middleware != nil {
			if err := req.Context().Err(); err != nil {
				return nil, err
			}
			var err error
			req, err = m.Route.Middleware(req)
			if err != nil || req == nil {
				return nil, err
			}
		}

		if err := req.Context().Err(); err != nil {
			return nil, err
		}
		return m.Route.Effect(req)
	}
}

// Template returns the template of the route matching path and method, or "".
func (t Table) Template(path, method string) string {
	if m, ok := t.Find(path, method); ok {
		return m.Route.Template
	}
	return ""
}

// mergeParams overlays matched params on existing ones, keeping declaration order.
func mergeParams(existing, matched httprouter.Params) httprouter.Params {
	if len(existing) == 0 {
		return matched
	}
	merged := make(httprouter.Params, 0, len(existing)+len(matched))
	for _, p := range existing {
		if matched.ByName(p.Key) == "" {
			merged = append(merged, p)
		}
	}
	return append(merged, matched...)
}
