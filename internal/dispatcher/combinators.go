package dispatcher

import (
	"strconv"
	"strings"

	"github.com/dshills/opdispatch/internal/dispatcher/execctx"
	"github.com/dshills/opdispatch/internal/dispatcher/handler"
)

// ByOperationID returns middleware invoking h when the request's operation
// ID equals id, and passing through otherwise.
func ByOperationID(id string, h handler.Handler) (handler.Handler, error) {
	if id == "" {
		return nil, configErr(id, "operation ID is empty")
	}
	if h == nil {
		return nil, configErr(id, "handler is nil")
	}
	return handler.Func(func(ctx *execctx.RequestContext, next handler.Next) handler.Result {
		if ctx != nil && ctx.OperationID == id {
			return h.Handle(ctx, next)
		}
		return handler.Continue(next)
	}), nil
}

// ByTag returns middleware invoking h when tag appears anywhere in the
// request's tags, and passing through otherwise.
func ByTag(tag string, h handler.Handler) (handler.Handler, error) {
	if tag == "" {
		return nil, configErr(tag, "tag is empty")
	}
	if h == nil {
		return nil, configErr(tag, "handler is nil")
	}
	return handler.Func(func(ctx *execctx.RequestContext, next handler.Next) handler.Result {
		if ctx != nil && ctx.HasTag(tag) {
			return h.Handle(ctx, next)
		}
		return handler.Continue(next)
	}), nil
}

// ByTagAndMethod returns middleware that, when tag appears in the request's
// tags, invokes handlers[operationID] if present, else the entry whose key
// equals the method case-insensitively. Anything else passes through.
//
// handlers is copied. Keys differing only in case are rejected since they
// would make method lookup ambiguous.
func ByTagAndMethod(tag string, handlers map[string]handler.Handler) (handler.Handler, error) {
	if tag == "" {
		return nil, configErr(tag, "tag is empty")
	}
	if len(handlers) == 0 {
		return nil, configErr(tag, "handler map is empty")
	}

	byKey := make(map[string]handler.Handler, len(handlers))
	byMethod := make(map[string]handler.Handler, len(handlers))
	for _, key := range sortedKeys(handlers) {
		h := handlers[key]
		if key == "" {
			return nil, configErr(tag, "handler map has an empty key")
		}
		if h == nil {
			return nil, configErr(tag+"#"+key, "handler is nil")
		}
		lower := strings.ToLower(key)
		if _, dup := byMethod[lower]; dup {
			return nil, configErr(tag+"#"+key, "handler map keys differ only in case")
		}
		byKey[key] = h
		byMethod[lower] = h
	}

	return handler.Func(func(ctx *execctx.RequestContext, next handler.Next) handler.Result {
		if ctx == nil || !ctx.HasTag(tag) {
			return handler.Continue(next)
		}
		if h, ok := byKey[ctx.OperationID]; ok && ctx.OperationID != "" {
			return h.Handle(ctx, next)
		}
		if h, ok := byMethod[ctx.NormalizedMethod()]; ok {
			return h.Handle(ctx, next)
		}
		return handler.Continue(next)
	}), nil
}

// Chain composes handlers so that each one's next invokes the following
// handler and the last one's next is the caller's continuation.
func Chain(handlers ...handler.Handler) (handler.Handler, error) {
	if len(handlers) == 0 {
		return nil, configErr("", "chain has no handlers")
	}
	for i, h := range handlers {
		if h == nil {
			return nil, configErr(chainSubject(i), "handler is nil")
		}
	}
	hs := append([]handler.Handler(nil), handlers...)

	return handler.Func(func(ctx *execctx.RequestContext, next handler.Next) handler.Result {
		var run func(i int) handler.Result
		run = func(i int) handler.Result {
			if i == len(hs) {
				return handler.Continue(next)
			}
			return hs[i].Handle(ctx, func() handler.Result { return run(i + 1) })
		}
		return run(0)
	}), nil
}

func chainSubject(i int) string {
	return "chain[" + strconv.Itoa(i) + "]"
}
