package dispatcher

import (
	"sync/atomic"
	"time"

	"github.com/dshills/opdispatch/internal/dispatcher/execctx"
	"github.com/dshills/opdispatch/internal/dispatcher/handler"
	"github.com/dshills/opdispatch/internal/dispatcher/hook"
	"github.com/dshills/opdispatch/internal/logging"
)

// Dispatcher is middleware that resolves each request against the current
// registry and invokes the selected handler.
type Dispatcher struct {
	registry atomic.Pointer[Registry]

	config  Config
	metrics *Metrics
	hooks   *hook.Manager
	logger  logging.Interface
}

// New creates a dispatcher with an empty registry.
func New(config Config) *Dispatcher {
	d := &Dispatcher{
		config: config,
		hooks:  hook.NewManager(),
		logger: config.Logger,
	}
	if d.logger == nil {
		d.logger = logging.Nop()
	}
	if config.EnableMetrics {
		d.metrics = NewMetrics()
	}
	d.registry.Store(NewRegistry())
	return d
}

// NewWithRegistry creates a dispatcher serving reg.
func NewWithRegistry(config Config, reg *Registry) *Dispatcher {
	d := New(config)
	d.Swap(reg)
	return d
}

// NewWithDefaults creates a new dispatcher with default configuration.
func NewWithDefaults() *Dispatcher {
	return New(DefaultConfig())
}

// Swap installs reg for subsequent requests and returns the previous
// registry. Requests already resolving keep the registry they loaded.
// A nil reg installs an empty registry.
func (d *Dispatcher) Swap(reg *Registry) *Registry {
	if reg == nil {
		reg = NewRegistry()
	}
	return d.registry.Swap(reg)
}

// Registry returns the registry currently in service.
func (d *Dispatcher) Registry() *Registry {
	return d.registry.Load()
}

// Resolve resolves ctx against the current registry without invoking it.
func (d *Dispatcher) Resolve(ctx *execctx.RequestContext) (Match, bool) {
	return Resolve(d.registry.Load(), ctx)
}

// Handle implements handler.Handler. An unresolved request is passed to next
// unchanged. A resolved one runs the pre-dispatch hooks, the handler with
// the same next, then the post-dispatch hooks. The handler's result,
// including any error, is returned as is.
func (d *Dispatcher) Handle(ctx *execctx.RequestContext, next handler.Next) handler.Result {
	result, _ := d.dispatch(ctx, next)
	return result
}

// Dispatch runs the request with no continuation and reports whether a
// handler was resolved. Unresolved requests yield a no-op result.
func (d *Dispatcher) Dispatch(ctx *execctx.RequestContext) (handler.Result, bool) {
	return d.dispatch(ctx, nil)
}

func (d *Dispatcher) dispatch(ctx *execctx.RequestContext, next handler.Next) (handler.Result, bool) {
	m, ok := Resolve(d.registry.Load(), ctx)
	if !ok {
		if d.metrics != nil {
			d.metrics.RecordUnhandled()
		}
		if ctx != nil {
			d.logger.Debug("no handler for operation=%q tags=%v method=%q", ctx.OperationID, ctx.Tags, ctx.Method)
		}
		return handler.Continue(next), false
	}

	startTime := time.Now()
	b := m.Binding()

	if !d.hooks.RunPreDispatch(ctx, b) {
		result := handler.CancelledWithMessage("cancelled by hook")
		d.record(b, startTime, result)
		return result, true
	}

	result := m.Handler.Handle(ctx, next)

	d.hooks.RunPostDispatch(ctx, b, &result)
	d.record(b, startTime, result)
	return result, true
}

func (d *Dispatcher) record(b hook.Binding, start time.Time, result handler.Result) {
	if d.metrics != nil {
		d.metrics.RecordDispatch(b.String(), time.Since(start), result.Status)
	}
}

// Hooks returns the hook manager.
func (d *Dispatcher) Hooks() *hook.Manager {
	return d.hooks
}

// Metrics returns the metrics collector (nil if disabled).
func (d *Dispatcher) Metrics() *Metrics {
	return d.metrics
}

// Config returns the dispatcher configuration.
func (d *Dispatcher) Config() Config {
	return d.config
}
