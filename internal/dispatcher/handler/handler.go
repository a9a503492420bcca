// Package handler provides the handler interface and result types for request dispatch.
package handler

import (
	"github.com/dshills/opdispatch/internal/dispatcher/execctx"
)

// Next is the continuation passed to a handler. Calling it runs the rest of
// the caller's pipeline and returns its result.
type Next func() Result

// Handler processes a request.
//
// A handler decides itself whether to call next: returning without calling
// it ends the pipeline, calling it chains the remaining processing.
type Handler interface {
	Handle(ctx *execctx.RequestContext, next Next) Result
}

// Func is a function adapter for the Handler interface.
type Func func(ctx *execctx.RequestContext, next Next) Result

// Handle implements Handler.
func (f Func) Handle(ctx *execctx.RequestContext, next Next) Result {
	return f(ctx, next)
}

// Continue invokes next, treating a nil continuation as the end of the pipeline.
func Continue(next Next) Result {
	if next == nil {
		return NoOp()
	}
	return next()
}

// Terminal adapts a function that never continues into a Handler.
func Terminal(fn func(ctx *execctx.RequestContext) Result) Handler {
	return Func(func(ctx *execctx.RequestContext, _ Next) Result {
		return fn(ctx)
	})
}
