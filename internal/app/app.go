// Package app wires the dispatcher into an HTTP server: it loads the
// configuration-driven handler tree and route table, serves requests, and
// rebuilds the registry when the tree changes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/dshills/opdispatch/internal/config"
	"github.com/dshills/opdispatch/internal/dispatcher"
	"github.com/dshills/opdispatch/internal/dispatcher/hook"
	"github.com/dshills/opdispatch/internal/logging"
	"github.com/dshills/opdispatch/internal/module"
	"github.com/dshills/opdispatch/internal/plugin/lua"
	"github.com/dshills/opdispatch/internal/vfs"
	"github.com/dshills/opdispatch/internal/watcher"
)

// Options supplies the pieces of an Application that don't come from the
// configuration file.
type Options struct {
	// FS reads the handler tree and route table. Defaults to the OS.
	FS vfs.FS

	// Catalog holds Go handlers for manifests. The built-ins are added to it.
	Catalog *module.Catalog

	// Logger defaults to one built from the [log] section.
	Logger *logging.Logger
}

func (o *Options) setDefaults(cfg config.Config) {
	if o.FS == nil {
		o.FS = vfs.NewOSFS()
	}
	if o.Catalog == nil {
		o.Catalog = module.NewCatalog()
	}
	if o.Logger == nil {
		lc := logging.DefaultConfig()
		lc.Level = cfg.LogLevel()
		lc.Prefix = cfg.Log.Prefix
		o.Logger = logging.New(lc)
	}
}

// Loaders returns the module loaders for cfg: Lua scripts and manifests
// resolved against catalog.
func Loaders(cfg config.Config, fsys vfs.FS, catalog *module.Catalog, logger logging.Interface) *module.Set {
	return module.NewSet(
		lua.NewLoader(fsys, lua.Config{
			ExecutionTimeout: cfg.Lua.ExecutionTimeout.Std(),
			PoolSize:         cfg.Lua.PoolSize,
			Logger:           logger,
		}),
		module.NewManifestLoader(fsys, catalog),
	)
}

// BuildRegistry builds the registry for cfg without starting anything.
func BuildRegistry(cfg config.Config, opts Options) (*dispatcher.Registry, error) {
	opts.setDefaults(cfg)
	if err := registerBuiltins(opts.Catalog); err != nil {
		return nil, &InitError{Component: "catalog", Err: err}
	}
	logger := opts.Logger.WithComponent("registry")
	reg, err := dispatcher.Build(opts.FS, cfg.Handlers.Root,
		Loaders(cfg, opts.FS, opts.Catalog, opts.Logger.WithComponent("lua")),
		dispatcher.WithLogger(logger))
	if err != nil {
		return nil, NewOperationError("build", cfg.Handlers.Root, err)
	}
	return reg, nil
}

// registerBuiltins adds the built-ins unless the catalog already has them.
func registerBuiltins(c *module.Catalog) error {
	if _, ok := c.Get(BuiltinHealth); ok {
		return nil
	}
	return RegisterBuiltins(c)
}

// Application is the running server.
type Application struct {
	cfg    config.Config
	opts   Options
	logger *logging.Logger

	loaders    *module.Set
	dispatcher *dispatcher.Dispatcher
	routes     RouteTable
	handler    http.Handler

	reloadMu sync.Mutex
	reloads  atomic.Int64

	running atomic.Bool
}

// New builds the registry and route table and prepares the HTTP handler.
// A registry that fails to build aborts startup.
func New(cfg config.Config, opts Options) (*Application, error) {
	opts.setDefaults(cfg)
	app := &Application{
		cfg:    cfg,
		opts:   opts,
		logger: opts.Logger,
	}
	if err := app.bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

func (app *Application) bootstrap() error {
	if err := registerBuiltins(app.opts.Catalog); err != nil {
		return &InitError{Component: "catalog", Err: err}
	}
	app.loaders = Loaders(app.cfg, app.opts.FS, app.opts.Catalog, app.logger.WithComponent("lua"))

	dcfg := dispatcher.DefaultConfig().WithLogger(app.logger.WithComponent("dispatcher"))
	if app.cfg.Metrics.Enabled {
		dcfg = dcfg.WithMetrics()
	}
	app.dispatcher = dispatcher.New(dcfg)
	app.dispatcher.Hooks().Register(hook.NewRequestIDHook())
	app.dispatcher.Hooks().Register(hook.NewLoggingHook(app.logger.WithComponent("dispatch")))

	reg, err := app.build()
	if err != nil {
		return &InitError{Component: "registry", Err: err}
	}
	app.dispatcher.Swap(reg)

	if app.cfg.Routes.File != "" {
		routes, err := LoadRoutes(app.opts.FS, app.cfg.Routes.File)
		if err != nil {
			return &InitError{Component: "routes", Err: err}
		}
		app.routes = routes
	}

	h, err := NewHTTPHandler(app.dispatcher, app.routes, app.logger.WithComponent("http"))
	if err != nil {
		return &InitError{Component: "http", Err: err}
	}
	app.handler = h

	app.logger.Info("serving %d routes from %s", len(app.routes.Routes), app.cfg.Handlers.Root)
	return nil
}

func (app *Application) build() (*dispatcher.Registry, error) {
	reg, err := dispatcher.Build(app.opts.FS, app.cfg.Handlers.Root, app.loaders,
		dispatcher.WithLogger(app.logger.WithComponent("registry")))
	if err != nil {
		return nil, NewOperationError("build", app.cfg.Handlers.Root, err)
	}
	return reg, nil
}

// Reload rebuilds the registry and swaps it in. On failure the previous
// registry stays in service and the error is returned.
func (app *Application) Reload() error {
	app.reloadMu.Lock()
	defer app.reloadMu.Unlock()

	reg, err := app.build()
	if err != nil {
		app.logger.Error("reload failed, keeping previous handlers: %v", err)
		return err
	}
	app.dispatcher.Swap(reg)
	n := app.reloads.Add(1)
	app.logger.Info("reloaded handlers (reload %d): %d operations, %d namespaces",
		n, len(reg.OperationIDs()), len(reg.Namespaces()))
	return nil
}

// Reloads returns the number of successful reloads.
func (app *Application) Reloads() int64 {
	return app.reloads.Load()
}

// Run listens on the configured address and serves until ctx is done.
func (app *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", app.cfg.Server.Addr)
	if err != nil {
		return NewOperationError("listen", app.cfg.Server.Addr, err)
	}
	return app.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully within
// the configured shutdown timeout. ln is closed on return.
func (app *Application) Serve(ctx context.Context, ln net.Listener) error {
	if !app.running.CompareAndSwap(false, true) {
		_ = ln.Close()
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if app.cfg.Handlers.Watch {
		w, err := app.startWatcher(ctx)
		if err != nil {
			_ = ln.Close()
			return err
		}
		defer w.Close()
	}

	srv := &http.Server{
		Handler:      app.handler,
		ReadTimeout:  app.cfg.Server.ReadTimeout.Std(),
		WriteTimeout: app.cfg.Server.WriteTimeout.Std(),
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return NewOperationError("serve", ln.Addr().String(), err)
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), app.cfg.Server.ShutdownTimeout.Std())
	defer done()
	app.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrShutdownTimeout, err)
		}
		return NewOperationError("shutdown", ln.Addr().String(), err)
	}
	return nil
}

func (app *Application) startWatcher(ctx context.Context) (*watcher.Watcher, error) {
	w, err := watcher.New(
		watcher.WithDebounceDelay(app.cfg.Handlers.Debounce.Std()),
		watcher.WithExtensions(app.loaders.Extensions()...),
		watcher.WithLogger(app.logger.WithComponent("watcher")),
	)
	if err != nil {
		return nil, NewOperationError("watch", app.cfg.Handlers.Root, err)
	}
	if err := w.WatchRecursive(app.cfg.Handlers.Root); err != nil {
		_ = w.Close()
		return nil, NewOperationError("watch", app.cfg.Handlers.Root, err)
	}

	go func() {
		_ = w.Run(ctx, func(b watcher.Batch) {
			app.logger.Debug("handler tree changed (%s): %v", b.Ops, b.Paths)
			_ = app.Reload()
		})
	}()
	return w, nil
}

// Handler returns the HTTP handler.
func (app *Application) Handler() http.Handler {
	return app.handler
}

// Dispatcher returns the dispatcher.
func (app *Application) Dispatcher() *dispatcher.Dispatcher {
	return app.dispatcher
}

// Routes returns the route table.
func (app *Application) Routes() RouteTable {
	return app.routes
}

// Config returns the configuration.
func (app *Application) Config() config.Config {
	return app.cfg
}

// IsRunning reports whether Serve is active.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}
