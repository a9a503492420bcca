package hook

import (
	"github.com/dshills/opdispatch/internal/dispatcher/execctx"
	"github.com/dshills/opdispatch/internal/dispatcher/handler"
)

// Binding identifies the registry entry a request resolved to.
type Binding struct {
	// Kind is "operation", "method" or "wildcard".
	Kind string

	// Namespace is the dot-joined namespace of the module that registered
	// the handler.
	Namespace string

	// Key is the operation ID or method key; empty for wildcards.
	Key string
}

// String renders the binding as kind:namespace[#key].
func (b Binding) String() string {
	switch {
	case b.Kind == "operation":
		return "operation:" + b.Key
	case b.Key != "":
		return b.Kind + ":" + b.Namespace + "#" + b.Key
	default:
		return b.Kind + ":" + b.Namespace
	}
}

// Hook is the base interface for all dispatch hooks.
type Hook interface {
	// Name returns a unique identifier for this hook.
	Name() string

	// Priority returns the hook priority.
	// Higher values run first for pre-hooks, last for post-hooks.
	Priority() int
}

// PreDispatchHook is called after resolution and before the handler runs.
type PreDispatchHook interface {
	Hook

	// PreDispatch may modify the request context.
	// Returns false to cancel the dispatch.
	PreDispatch(ctx *execctx.RequestContext, b Binding) bool
}

// PostDispatchHook is called after the handler returns.
type PostDispatchHook interface {
	Hook

	// PostDispatch may inspect or modify the result.
	PostDispatch(ctx *execctx.RequestContext, b Binding, result *handler.Result)
}

// PreDispatchFunc wraps a function as a PreDispatchHook.
type PreDispatchFunc struct {
	name     string
	priority int
	fn       func(ctx *execctx.RequestContext, b Binding) bool
}

// NewPreDispatchFunc creates a new PreDispatchFunc hook.
func NewPreDispatchFunc(name string, priority int, fn func(ctx *execctx.RequestContext, b Binding) bool) *PreDispatchFunc {
	return &PreDispatchFunc{name: name, priority: priority, fn: fn}
}

// Name implements Hook.
func (f *PreDispatchFunc) Name() string { return f.name }

// Priority implements Hook.
func (f *PreDispatchFunc) Priority() int { return f.priority }

// PreDispatch implements PreDispatchHook.
func (f *PreDispatchFunc) PreDispatch(ctx *execctx.RequestContext, b Binding) bool {
	if f.fn == nil {
		return true
	}
	return f.fn(ctx, b)
}

// PostDispatchFunc wraps a function as a PostDispatchHook.
type PostDispatchFunc struct {
	name     string
	priority int
	fn       func(ctx *execctx.RequestContext, b Binding, result *handler.Result)
}

// NewPostDispatchFunc creates a new PostDispatchFunc hook.
func NewPostDispatchFunc(name string, priority int, fn func(ctx *execctx.RequestContext, b Binding, result *handler.Result)) *PostDispatchFunc {
	return &PostDispatchFunc{name: name, priority: priority, fn: fn}
}

// Name implements Hook.
func (f *PostDispatchFunc) Name() string { return f.name }

// Priority implements Hook.
func (f *PostDispatchFunc) Priority() int { return f.priority }

// PostDispatch implements PostDispatchHook.
func (f *PostDispatchFunc) PostDispatch(ctx *execctx.RequestContext, b Binding, result *handler.Result) {
	if f.fn != nil {
		f.fn(ctx, b, result)
	}
}

// CombinedHook implements both PreDispatchHook and PostDispatchHook.
type CombinedHook interface {
	PreDispatchHook
	PostDispatchHook
}
