// Package router compiles a declarative tree of routes and route groups into a
// flat, ordered routing table and resolves inbound requests against it.
package router

import (
	"net/http"
	"strings"

	"github.com/Suhaibinator/SEffect/pkg/common"
)

// MethodAny is the wildcard method. It matches any method not otherwise
// declared on the same path.
const MethodAny = "*"

// Definition is a node of the route tree: either a Route or a Group.
type Definition interface {
	isDefinition()
}

// Route declares a single effect for a method and path.
// It is a leaf of the route tree and immutable once declared.
type Route struct {
	Path   string        // Route path (prefixed with enclosing group paths)
	Method string        // HTTP method, or MethodAny
	Effect common.Effect // Effect producing the response
}

// Group declares routes sharing a path prefix and middlewares.
// Groups nest: a group's path is prepended to every descendant's path and its
// middlewares run before every descendant's middlewares.
type Group struct {
	Path        string              // Common path prefix for all routes in this group
	Middlewares []common.Middleware // Middlewares applied to all routes in this group
	Routes      []Definition        // Routes and nested groups
}

func (Route) isDefinition() {}
func (Group) isDefinition() {}

// Handle declares a route for method and path.
func Handle(method, path string, effect common.Effect) Route {
	return Route{Path: path, Method: strings.ToUpper(method), Effect: effect}
}

// GET declares a GET route.
func GET(path string, effect common.Effect) Route { return Handle(http.MethodGet, path, effect) }

// POST declares a POST route.
func POST(path string, effect common.Effect) Route { return Handle(http.MethodPost, path, effect) }

// PUT declares a PUT route.
func PUT(path string, effect common.Effect) Route { return Handle(http.MethodPut, path, effect) }

// PATCH declares a PATCH route.
func PATCH(path string, effect common.Effect) Route { return Handle(http.MethodPatch, path, effect) }

// DELETE declares a DELETE route.
func DELETE(path string, effect common.Effect) Route {
	return Handle(http.MethodDelete, path, effect)
}

// HEAD declares a HEAD route.
func HEAD(path string, effect common.Effect) Route { return Handle(http.MethodHead, path, effect) }

// OPTIONS declares an OPTIONS route.
func OPTIONS(path string, effect common.Effect) Route {
	return Handle(http.MethodOptions, path, effect)
}

// Any declares a route matching every method not declared elsewhere on the same path.
func Any(path string, effect common.Effect) Route { return Handle(MethodAny, path, effect) }

// NewGroup groups routes under a path prefix.
func NewGroup(path string, routes ...Definition) Group {
	return Group{Path: path, Middlewares: []common.Middleware{}, Routes: routes}
}

// NewGroupWith groups routes under a path prefix with shared middlewares.
func NewGroupWith(path string, middlewares []common.Middleware, routes ...Definition) Group {
	if middlewares == nil {
		middlewares = []common.Middleware{}
	}
	return Group{Path: path, Middlewares: middlewares, Routes: routes}
}
