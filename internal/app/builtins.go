package app

import (
	"net/http"

	"github.com/dshills/opdispatch/internal/dispatcher/execctx"
	"github.com/dshills/opdispatch/internal/dispatcher/handler"
	"github.com/dshills/opdispatch/internal/module"
)

// Names of the handlers RegisterBuiltins adds to a catalog.
const (
	BuiltinEcho           = "builtin.echo"
	BuiltinHealth         = "builtin.health"
	BuiltinNotImplemented = "builtin.not_implemented"
	BuiltinPassthrough    = "builtin.passthrough"
)

// RegisterBuiltins adds the built-in Go handlers to c so manifests can
// reference them.
func RegisterBuiltins(c *module.Catalog) error {
	builtins := map[string]handler.Handler{
		BuiltinEcho:           handler.Terminal(echo),
		BuiltinHealth:         handler.Terminal(health),
		BuiltinNotImplemented: handler.Terminal(notImplemented),
		BuiltinPassthrough:    handler.Func(passthrough),
	}
	for _, name := range []string{BuiltinEcho, BuiltinHealth, BuiltinNotImplemented, BuiltinPassthrough} {
		if err := c.Register(name, builtins[name]); err != nil {
			return err
		}
	}
	return nil
}

// echo returns the request as the dispatcher saw it.
func echo(ctx *execctx.RequestContext) handler.Result {
	return handler.SuccessWithBody(map[string]any{
		"operation_id": ctx.OperationID,
		"tags":         ctx.Tags,
		"method":       ctx.Method,
		"path":         ctx.Path,
		"params":       ctx.Params,
		"query":        ctx.Query,
		"request_id":   ctx.RequestID,
		"body":         string(ctx.Body),
	})
}

func passthrough(_ *execctx.RequestContext, next handler.Next) handler.Result {
	return handler.Continue(next)
}

func health(*execctx.RequestContext) handler.Result {
	return handler.SuccessWithBody(map[string]string{"status": "ok"})
}

func notImplemented(ctx *execctx.RequestContext) handler.Result {
	return handler.Result{
		Status:  handler.StatusNoOp,
		Code:    http.StatusNotImplemented,
		Message: "no handler for " + describe(ctx),
	}
}

func describe(ctx *execctx.RequestContext) string {
	if ctx.OperationID != "" {
		return "operation " + ctx.OperationID
	}
	return ctx.NormalizedMethod() + " " + ctx.Path
}
