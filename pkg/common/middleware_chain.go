package common

// MiddlewareChain represents a chain of middleware
type MiddlewareChain []Middleware

// NewMiddlewareChain creates a new middleware chain
func NewMiddlewareChain(middlewares ...Middleware) MiddlewareChain {
	return middlewares
}

// Append adds middleware to the end of the chain
func (c MiddlewareChain) Append(middlewares ...Middleware) MiddlewareChain {
	result := make(MiddlewareChain, len(c)+len(middlewares))
	copy(result, c)
	copy(result[len(c):], middlewares)
	return result
}

// Prepend adds middleware to the beginning of the chain
func (c MiddlewareChain) Prepend(middlewares ...Middleware) MiddlewareChain {
	result := make(MiddlewareChain, len(middlewares)+len(c))
	copy(result, middlewares)
	copy(result[len(middlewares):], c)
	return result
}

// Compose folds the chain into a single Middleware that runs each member in
// order, feeding each the output of the previous one. It stops at the first
// error or filtered request. An empty chain composes to nil.
func (c MiddlewareChain) Compose() Middleware {
	if len(c) == 0 {
		return nil
	}
	chain := append(MiddlewareChain(nil), c...)
	return func(req *Request) (*Request, error) {
		var err error
		for _, m := range chain {
			if m == nil {
				continue
			}
			req, err = m(req)
			if err != nil || req == nil {
				return nil, err
			}
		}
		return req, nil
	}
}

// Then applies the middleware chain to an effect
func (c MiddlewareChain) Then(e Effect) Effect {
	mw := c.Compose()
	if mw == nil {
		return e
	}
	return func(req *Request) (*Response, error) {
		req, err := mw(req)
		if err != nil || req == nil {
			return nil, err
		}
		return e(req)
	}
}
