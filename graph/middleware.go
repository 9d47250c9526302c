package graph

import "context"

// NodeRequest is what a middleware's OnNode hook sees around a dispatch.
type NodeRequest struct {
	GraphID string
	RunID   string
	NodeID  string
	Kind    NodeKind
}

// NextFunc invokes the remainder of the middleware chain (and eventually
// the node itself). Middleware may inspect or log around the call but
// must not swallow a failure it returns: it may wrap or enrich the
// error, never discard it.
type NextFunc func(ctx context.Context) (NodeOutcome, error)

// Middleware is one link in the chain wrapped around every node dispatch
// and around the run as a whole. Every hook is called; embed
// BaseMiddleware for no-op defaults.
type Middleware interface {
	OnStart(ctx context.Context, runID, graphID string)
	OnNode(ctx context.Context, req NodeRequest, next NextFunc) (NodeOutcome, error)
	OnFinish(ctx context.Context, report RunReport)
}

// BaseMiddleware implements Middleware with no-op hooks; embed it so a
// middleware author only needs to override the hooks it cares about.
type BaseMiddleware struct{}

func (BaseMiddleware) OnStart(context.Context, string, string) {}
func (BaseMiddleware) OnNode(ctx context.Context, _ NodeRequest, next NextFunc) (NodeOutcome, error) {
	return next(ctx)
}
func (BaseMiddleware) OnFinish(context.Context, RunReport) {}

// chain composes middlewares in declared order: the first middleware's
// OnNode wraps all the others, so it observes the dispatch from the
// outermost vantage point.
type chain struct {
	mws []Middleware
}

func newChain(mws []Middleware) *chain {
	return &chain{mws: mws}
}

func (c *chain) onStart(ctx context.Context, runID, graphID string) {
	for _, m := range c.mws {
		m.OnStart(ctx, runID, graphID)
	}
}

func (c *chain) onFinish(ctx context.Context, report RunReport) {
	for i := len(c.mws) - 1; i >= 0; i-- {
		c.mws[i].OnFinish(ctx, report)
	}
}

// dispatch runs req through every middleware's OnNode before finally
// calling terminal, which performs the actual node Execute.
func (c *chain) dispatch(ctx context.Context, req NodeRequest, terminal NextFunc) (NodeOutcome, error) {
	next := terminal
	for i := len(c.mws) - 1; i >= 0; i-- {
		mw := c.mws[i]
		prevNext := next
		next = func(ctx context.Context) (NodeOutcome, error) {
			return mw.OnNode(ctx, req, prevNext)
		}
	}
	return next(ctx)
}
