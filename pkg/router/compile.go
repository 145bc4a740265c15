package router

import (
	"fmt"
	"strings"

	"github.com/Suhaibinator/SEffect/pkg/common"
	"github.com/Suhaibinator/SEffect/pkg/pathmatch"
)

// DuplicateRouteError is returned by Compile when the same method and path are
// declared twice anywhere in the route tree.
type DuplicateRouteError struct {
	Method string
	Path   string
}

// Error implements the error interface.
func (e *DuplicateRouteError) Error() string {
	return fmt.Sprintf("redefinition of route at %q", e.Method+": "+e.Path)
}

// compiler holds the state of a single Compile pass.
type compiler struct {
	table Table
	index map[string]int // pattern -> entry index
}

// Compile flattens the route tree into a routing table. Routes whose templates
// compile to the same pattern share one entry, in order of first declaration.
func Compile(routes ...Definition) (Table, error) {
	c := &compiler{index: make(map[string]int)}
	if err := c.walk(routes, "/", nil); err != nil {
		return nil, err
	}
	return c.table, nil
}

// MustCompile is like Compile but panics on error. It is meant for route
// trees declared at program start.
func MustCompile(routes ...Definition) Table {
	table, err := Compile(routes...)
	if err != nil {
		panic(err)
	}
	return table
}

func (c *compiler) walk(defs []Definition, prefix string, middlewares common.MiddlewareChain) error {
	for _, def := range defs {
		switch d := def.(type) {
		case Route:
			if err := c.add(d, prefix, middlewares); err != nil {
				return err
			}
		case *Route:
			if d == nil {
				continue
			}
			if err := c.add(*d, prefix, middlewares); err != nil {
				return err
			}
		case Group:
			if err := c.walk(d.Routes, pathmatch.Join(prefix, d.Path), middlewares.Append(d.Middlewares...)); err != nil {
				return err
			}
		case *Group:
			if d == nil {
				continue
			}
			if err := c.walk(d.Routes, pathmatch.Join(prefix, d.Path), middlewares.Append(d.Middlewares...)); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported route definition %T", def)
		}
	}
	return nil
}

func (c *compiler) add(route Route, prefix string, middlewares common.MiddlewareChain) error {
	if route.Effect == nil {
		return fmt.Errorf("route %q has no effect", route.Path)
	}

	template := pathmatch.Join(prefix, route.Path)
	pattern, params, err := pathmatch.Compile(template, "")
	if err != nil {
		return fmt.Errorf("compiling route %q: %w", template, err)
	}

	method := strings.ToUpper(route.Method)
	if method == "" {
		method = MethodAny
	}

	i, ok := c.index[pattern.String()]
	if !ok {
		i = len(c.table)
		c.index[pattern.String()] = i
		c.table = append(c.table, Entry{
			Pattern: pattern,
			Methods: make(map[string]*RouteMethod),
		})
	}

	entry := c.table[i]
	if _, exists := entry.Methods[method]; exists {
		return &DuplicateRouteError{Method: method, Path: template}
	}

	entry.Methods[method] = &RouteMethod{
		Template:   template,
		Params:     params,
		Middleware: middlewares.Compose(),
		Effect:     route.Effect,
	}
	return nil
}
