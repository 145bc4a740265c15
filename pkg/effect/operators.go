package effect

import (
	"strings"

	"github.com/Suhaibinator/SEffect/pkg/common"
	"github.com/Suhaibinator/SEffect/pkg/pathmatch"
)

// Operator decorates an effect.
type Operator func(common.Effect) common.Effect

// Pipe applies operators to e. The first operator is the outermost, so
// Pipe(e, MatchPath("/"), MatchType("GET")) checks the path before the method.
func Pipe(e common.Effect, ops ...Operator) common.Effect {
	for i := len(ops) - 1; i >= 0; i-- {
		e = ops[i](e)
	}
	return e
}

type matchOptions struct {
	suffix   string
	combiner bool
}

// MatchOption configures MatchPath.
type MatchOption func(*matchOptions)

// WithSuffix appends suffix to the matched template, e.g. "*" to match a whole subtree.
func WithSuffix(suffix string) MatchOption {
	return func(o *matchOptions) { o.suffix = suffix }
}

// AsCombiner records the matched path on the request so that nested
// MatchPath operators match relative to it.
func AsCombiner() MatchOption {
	return func(o *matchOptions) { o.combiner = true }
}

// MatchPath lets the request through only when its path matches the template,
// prefixed with every path already consumed by enclosing combiners. On match
// it sets the request's URL parameters and query.
func MatchPath(path string, opts ...MatchOption) Operator {
	var o matchOptions
	for _, opt := range opts {
		opt(&o)
	}

	return func(next common.Effect) common.Effect {
		return func(req *common.Request) (*common.Response, error) {
			template := pathmatch.Join(strings.Join(req.Matchers, ""), path)
			re, names, err := pathmatch.Compile(template, o.suffix)
			if err != nil {
				return nil, err
			}

			match := re.FindStringSubmatch(req.Path)
			if match == nil {
				return nil, nil
			}

			req = req.Clone()
			req.Params = pathmatch.DecodeParams(names, match)
			req.Query = pathmatch.ParseQuery(req.RawQuery)
			if o.combiner {
				req.Matchers = append(req.Matchers, path)
			}
			return next(req)
		}
	}
}

// MatchType lets the request through only when its method equals method.
// The wildcard "*" matches every method.
func MatchType(method string) Operator {
	method = strings.ToUpper(method)
	return func(next common.Effect) common.Effect {
		return func(req *common.Request) (*common.Response, error) {
			if method != "*" && req.Method != method {
				return nil, nil
			}
			return next(req)
		}
	}
}

// Use runs mw before the effect. A filtered request produces no output.
func Use(mw common.Middleware) Operator {
	return func(next common.Effect) common.Effect {
		return common.NewMiddlewareChain(mw).Then(next)
	}
}
