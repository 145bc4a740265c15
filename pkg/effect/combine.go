package effect

import (
	"github.com/Suhaibinator/SEffect/pkg/common"
	"golang.org/x/sync/errgroup"
)

// CombineMiddlewares chains middlewares sequentially: each one receives the
// output of the previous one. A nil request or an error stops the chain.
func CombineMiddlewares(middlewares ...common.Middleware) common.Middleware {
	mw := common.NewMiddlewareChain(middlewares...).Compose()
	if mw == nil {
		return func(req *common.Request) (*common.Request, error) { return req, nil }
	}
	return mw
}

// CombineEffects merges effects declared at the same level. Every effect runs
// concurrently on its own clone of the request. The result is the first
// non-nil response in declaration order; branches that produce nothing
// contribute nothing. The first error cancels the other branches' context and
// is returned.
func CombineEffects(effects ...common.Effect) common.Effect {
	return func(req *common.Request) (*common.Response, error) {
		if len(effects) == 0 {
			return nil, nil
		}

		g, ctx := errgroup.WithContext(req.Context())
		results := make([]*common.Response, len(effects))

		for i, e := range effects {
			branch := req.Clone().WithContext(ctx)
			g.Go(func() error {
				res, err := Recover(e)(branch)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, res := range results {
			if res != nil {
				return res, nil
			}
		}
		return nil, nil
	}
}
