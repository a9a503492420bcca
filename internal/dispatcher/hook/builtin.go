package hook

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/opdispatch/internal/dispatcher/execctx"
	"github.com/dshills/opdispatch/internal/dispatcher/handler"
	"github.com/dshills/opdispatch/internal/logging"
)

// Standard hook priorities.
const (
	PriorityRequestID  = 1100 // Runs before anything that logs
	PriorityAudit      = 1000 // Runs first (pre) / last (post)
	PriorityValidation = 800  // Validate before the handler runs
	PriorityUser       = 100
)

// timingStartKey is the Values key holding the dispatch start time.
const timingStartKey = "_timing_start"

// RequestIDHook assigns a random request ID to requests without one.
type RequestIDHook struct{}

// NewRequestIDHook creates a request ID hook.
func NewRequestIDHook() *RequestIDHook {
	return &RequestIDHook{}
}

// Name implements Hook.
func (h *RequestIDHook) Name() string { return "request-id" }

// Priority implements Hook.
func (h *RequestIDHook) Priority() int { return PriorityRequestID }

// PreDispatch sets ctx.RequestID if it is empty.
func (h *RequestIDHook) PreDispatch(ctx *execctx.RequestContext, _ Binding) bool {
	if ctx.RequestID == "" {
		ctx.RequestID = uuid.NewString()
	}
	return true
}

// LoggingHook logs each dispatch and its outcome.
type LoggingHook struct {
	logger logging.Interface
}

// NewLoggingHook creates a logging hook. A nil logger discards output.
func NewLoggingHook(logger logging.Interface) *LoggingHook {
	if logger == nil {
		logger = logging.Nop()
	}
	return &LoggingHook{logger: logger}
}

// Name implements Hook.
func (h *LoggingHook) Name() string { return "logging" }

// Priority implements Hook.
func (h *LoggingHook) Priority() int { return PriorityAudit }

// PreDispatch logs the binding being dispatched.
func (h *LoggingHook) PreDispatch(ctx *execctx.RequestContext, b Binding) bool {
	h.logger.Debug("dispatch %s %s -> %s (request %s)", ctx.Method, ctx.Path, b, ctx.RequestID)
	return true
}

// PostDispatch logs the result; errors are logged at error level.
func (h *LoggingHook) PostDispatch(ctx *execctx.RequestContext, b Binding, result *handler.Result) {
	if result.IsError() {
		h.logger.Error("dispatch %s failed (request %s): %v", b, ctx.RequestID, result.Error)
		return
	}
	h.logger.Debug("dispatch %s -> %s (request %s)", b, result.Status, ctx.RequestID)
}

// TimingHook measures handler execution time.
// Start times are stored on the request context so concurrent dispatches
// do not share state.
type TimingHook struct {
	callback func(b Binding, d time.Duration)
}

// NewTimingHook creates a timing hook.
func NewTimingHook(callback func(b Binding, d time.Duration)) *TimingHook {
	return &TimingHook{callback: callback}
}

// Name implements Hook.
func (h *TimingHook) Name() string { return "timing" }

// Priority implements Hook.
func (h *TimingHook) Priority() int { return PriorityAudit }

// PreDispatch records the start time.
func (h *TimingHook) PreDispatch(ctx *execctx.RequestContext, _ Binding) bool {
	ctx.Set(timingStartKey, time.Now())
	return true
}

// PostDispatch reports the elapsed time.
func (h *TimingHook) PostDispatch(ctx *execctx.RequestContext, b Binding, _ *handler.Result) {
	v, ok := ctx.Get(timingStartKey)
	if !ok {
		return
	}
	if start, ok := v.(time.Time); ok && h.callback != nil {
		h.callback(b, time.Since(start))
	}
}

// ValidationHook cancels dispatches that fail a validation function.
type ValidationHook struct {
	name     string
	priority int
	validate func(ctx *execctx.RequestContext, b Binding) error
}

// NewValidationHook creates a validation hook.
func NewValidationHook(name string, priority int, validate func(*execctx.RequestContext, Binding) error) *ValidationHook {
	return &ValidationHook{name: name, priority: priority, validate: validate}
}

// Name implements Hook.
func (h *ValidationHook) Name() string { return h.name }

// Priority implements Hook.
func (h *ValidationHook) Priority() int { return h.priority }

// PreDispatch validates the request and cancels if invalid.
func (h *ValidationHook) PreDispatch(ctx *execctx.RequestContext, b Binding) bool {
	if h.validate == nil {
		return true
	}
	return h.validate(ctx, b) == nil
}

// MethodFilterHook cancels requests whose method is not in an allow list.
type MethodFilterHook struct {
	allowed []string
}

// NewMethodFilterHook creates a method filter. Methods are compared
// case-insensitively.
func NewMethodFilterHook(allowed ...string) *MethodFilterHook {
	norm := make([]string, len(allowed))
	for i, m := range allowed {
		norm[i] = execctx.NormalizeMethod(m)
	}
	return &MethodFilterHook{allowed: norm}
}

// Name implements Hook.
func (h *MethodFilterHook) Name() string { return "method-filter" }

// Priority implements Hook.
func (h *MethodFilterHook) Priority() int { return PriorityValidation }

// PreDispatch allows only listed methods.
func (h *MethodFilterHook) PreDispatch(ctx *execctx.RequestContext, _ Binding) bool {
	return slices.Contains(h.allowed, ctx.NormalizedMethod())
}

// ResultModifierHook modifies results after execution.
type ResultModifierHook struct {
	name     string
	priority int
	modify   func(ctx *execctx.RequestContext, b Binding, result *handler.Result)
}

// NewResultModifierHook creates a result modifier hook.
func NewResultModifierHook(name string, priority int, modify func(*execctx.RequestContext, Binding, *handler.Result)) *ResultModifierHook {
	return &ResultModifierHook{name: name, priority: priority, modify: modify}
}

// Name implements Hook.
func (h *ResultModifierHook) Name() string { return h.name }

// Priority implements Hook.
func (h *ResultModifierHook) Priority() int { return h.priority }

// PostDispatch modifies the result.
func (h *ResultModifierHook) PostDispatch(ctx *execctx.RequestContext, b Binding, result *handler.Result) {
	if h.modify != nil {
		h.modify(ctx, b, result)
	}
}
