// Package common provides the shared request, response and transform types
// used across the SEffect packages.
package common

import (
	"context"
	"net/http"
	"sync"

	"github.com/Suhaibinator/SEffect/pkg/pathmatch"
	"github.com/julienschmidt/httprouter"
)

// Request is the per-request context that flows through middlewares and effects.
// It is created once per inbound request by the listener and is owned by that
// request's pipeline for its whole lifetime.
type Request struct {
	// Method is the upper-case HTTP method of the request.
	Method string

	// URL is the original request URI, including the query string.
	URL string

	// Path is URL with the query string removed.
	Path string

	// RawQuery is the part of URL after the first '?'.
	RawQuery string

	// Query holds the parsed query parameters. It is populated on route match.
	Query pathmatch.Query

	// Params holds the URL parameters extracted from the matched route, in
	// declaration order.
	Params httprouter.Params

	// Matchers accumulates the path segments consumed by nested MatchPath operators.
	Matchers []string

	// Header is the inbound request header.
	Header http.Header

	// Body is the parsed request body, set by a body parsing middleware.
	Body any

	// Err is the error attached to the request when the pipeline failed.
	Err error

	raw   *http.Request
	ctx   context.Context
	route *routeSlot
}

// routeSlot is shared by every copy of a request, so the template recorded
// by the routing stage is visible to whoever created the request.
type routeSlot struct {
	mu       sync.Mutex
	template string
}

// NewRequest creates a Request from an inbound *http.Request.
// The request's context becomes the cancellation token of the pipeline.
func NewRequest(r *http.Request) *Request {
	uri := r.RequestURI
	if uri == "" {
		uri = r.URL.RequestURI()
	}
	path, rawQuery := pathmatch.SplitQuery(uri)
	return &Request{
		Method:   r.Method,
		URL:      uri,
		Path:     path,
		RawQuery: rawQuery,
		Query:    pathmatch.Query{},
		Header:   r.Header,
		raw:      r,
		ctx:      r.Context(),
		route:    &routeSlot{},
	}
}

// SetRoute records the template of the route the request was matched to.
// It has no effect on requests not created by NewRequest.
func (r *Request) SetRoute(template string) {
	if r.route == nil {
		return
	}
	r.route.mu.Lock()
	r.route.template = template
	r.route.mu.Unlock()
}

// Route returns the template recorded by SetRoute on this request or any
// copy of it, or "" when no route matched.
func (r *Request) Route() string {
	if r.route == nil {
		return ""
	}
	r.route.mu.Lock()
	defer r.route.mu.Unlock()
	return r.route.template
}

// Context returns the request's context. It is never nil.
func (r *Request) Context() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// WithContext returns a shallow copy of r with its context changed to ctx.
func (r *Request) WithContext(ctx context.Context) *Request {
	if ctx == nil {
		panic("nil context")
	}
	r2 := new(Request)
	*r2 = *r
	r2.ctx = ctx
	return r2
}

// Raw returns the underlying *http.Request. It may be nil for synthetic requests.
func (r *Request) Raw() *http.Request {
	return r.raw
}

// Clone returns a copy of r whose Params, Matchers and Query can be modified
// without affecting r. Body and Header are shared.
func (r *Request) Clone() *Request {
	r2 := new(Request)
	*r2 = *r
	if r.Params != nil {
		r2.Params = append(httprouter.Params(nil), r.Params...)
	}
	if r.Matchers != nil {
		r2.Matchers = append([]string(nil), r.Matchers...)
	}
	if r.Query != nil {
		r2.Query = make(pathmatch.Query, len(r.Query))
		for k, v := range r.Query {
			r2.Query[k] = v
		}
	}
	return r2
}

// Param returns the value of the named URL parameter, or "" if absent.
func (r *Request) Param(name string) string {
	return r.Params.ByName(name)
}

// ParamsMap returns the URL parameters as a map.
func (r *Request) ParamsMap() map[string]string {
	m := make(map[string]string, len(r.Params))
	for _, p := range r.Params {
		m[p.Key] = p.Value
	}
	return m
}

// Response is the terminal value produced by an effect or by the error stage.
// The listener writes it to the client exactly once.
type Response struct {
	Status  int         // HTTP status code; 0 means 200
	Body    any         // Optional body, encoded by the listener
	Headers http.Header // Optional response headers
}

// NewResponse creates a Response with the given status and body.
func NewResponse(status int, body any) *Response {
	return &Response{Status: status, Body: body}
}

// Effect produces the terminal response for a request.
// Returning a nil response and a nil error means the effect produced no output,
// which the listener turns into a 404.
type Effect func(req *Request) (*Response, error)

// Middleware transforms a request before the handler runs.
// Returning a nil request and a nil error filters the request out.
type Middleware func(req *Request) (*Request, error)

// ErrorEffect converts an error raised anywhere in a request's pipeline into
// the response sent to the client.
type ErrorEffect func(req *Request, err error) *Response
