package lua

import (
	"bytes"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/dshills/opdispatch/internal/dispatcher/execctx"
	"github.com/dshills/opdispatch/internal/dispatcher/handler"
	"github.com/dshills/opdispatch/internal/logging"
	"github.com/dshills/opdispatch/internal/module"
	"github.com/dshills/opdispatch/internal/vfs"
)

// Config configures script execution.
type Config struct {
	// ExecutionTimeout bounds each handler call.
	ExecutionTimeout time.Duration

	// PoolSize is the number of idle states kept per script.
	PoolSize int

	// Logger receives output from the log module.
	Logger logging.Interface
}

// DefaultConfig returns the default script configuration.
func DefaultConfig() Config {
	return Config{
		ExecutionTimeout: DefaultExecutionTimeout,
		PoolSize:         DefaultPoolSize,
	}
}

// Script is a compiled Lua handler module.
type Script struct {
	path  string
	proto *lua.FunctionProto
	cfg   Config
	pool  *statePool
}

// Compile parses and compiles src. name is used in error messages.
func Compile(name string, src []byte, cfg Config) (*Script, error) {
	chunk, err := parse.Parse(bytes.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", name, err)
	}

	s := &Script{path: name, proto: proto, cfg: cfg}
	s.pool = newStatePool(cfg.PoolSize, s.newState)
	return s, nil
}

// Path returns the script's name.
func (s *Script) Path() string {
	return s.path
}

func (s *Script) newState() (*pooled, error) {
	logger := s.cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	if l, ok := logger.(*logging.Logger); ok {
		logger = l.WithField("script", s.path)
	}

	st, err := NewState(
		WithExecutionTimeout(s.cfg.ExecutionTimeout),
		WithPreload("json", OpenJSON),
		WithPreload("log", OpenLog(logger)),
	)
	if err != nil {
		return nil, err
	}
	export, err := st.DoProto(s.proto)
	if err != nil {
		_ = st.Close()
		return nil, &ScriptError{Path: s.path, Err: err}
	}
	return &pooled{state: st, export: export}, nil
}

// Export runs the chunk and describes what it returned: a function becomes
// a handler export, a table of functions becomes a map export.
func (s *Script) Export() (module.Export, error) {
	e, err := s.pool.get()
	if err != nil {
		return module.Export{}, err
	}
	defer s.pool.put(e)

	switch v := e.export.(type) {
	case *lua.LFunction:
		return module.HandlerExport(&Handler{script: s})

	case *lua.LTable:
		entries := make(map[string]handler.Handler)
		var bad error
		v.ForEach(func(k, val lua.LValue) {
			if bad != nil {
				return
			}
			key, ok := k.(lua.LString)
			if !ok {
				bad = fmt.Errorf("%w: %s has non-string key %s", module.ErrInvalidExport, s.path, k.String())
				return
			}
			if val.Type() != lua.LTFunction {
				bad = fmt.Errorf("%w: %s[%s] is a %s, not a function", module.ErrInvalidExport, s.path, key, val.Type())
				return
			}
			entries[string(key)] = &Handler{script: s, key: string(key)}
		})
		if bad != nil {
			return module.Export{}, bad
		}
		return module.MapExport(entries)

	default:
		return module.Export{}, fmt.Errorf("%w: %s returned %s", module.ErrInvalidExport, s.path, e.export.Type())
	}
}

// Close releases all pooled states.
func (s *Script) Close() {
	s.pool.close()
}

// Handler runs one exported Lua function.
type Handler struct {
	script *Script
	key    string
}

var _ handler.Handler = (*Handler)(nil)

// Key returns the export key, empty for a bare function export.
func (h *Handler) Key() string {
	return h.key
}

// Handle implements handler.Handler.
func (h *Handler) Handle(ctx *execctx.RequestContext, next handler.Next) handler.Result {
	e, err := h.script.pool.get()
	if err != nil {
		return handler.Error(h.wrap(err))
	}

	fn := e.export
	if h.key != "" {
		tbl, ok := e.export.(*lua.LTable)
		if !ok {
			h.script.pool.put(e)
			return handler.Error(h.wrap(ErrNotFunction))
		}
		fn = tbl.RawGetString(h.key)
	}

	L := e.state.LuaState()
	b := NewBridge(L)
	req := b.RequestTable(ctx)
	syncValues := func() {
		if values, ok := req.RawGetString("values").(*lua.LTable); ok {
			b.SyncValues(values, ctx)
		}
	}

	nextFn := L.NewFunction(func(L *lua.LState) int {
		syncValues()
		L.Push(b.ResultValue(handler.Continue(next)))
		return 1
	})

	rets, err := e.state.Call(ctx.Context(), fn, req, nextFn)
	if err != nil {
		h.script.pool.discard(e)
		return handler.Error(h.wrap(err))
	}
	syncValues()

	ret := lua.LValue(lua.LNil)
	if len(rets) > 0 {
		ret = rets[0]
	}
	res, err := b.ToResult(ret)
	h.script.pool.put(e)
	if err != nil {
		return handler.Error(h.wrap(err))
	}
	return res
}

func (h *Handler) wrap(err error) error {
	return &ScriptError{Path: h.script.path, Key: h.key, Err: err}
}

// Loader loads .lua handler modules through a vfs.FS.
type Loader struct {
	fs  vfs.FS
	cfg Config
}

// NewLoader creates a Lua module loader.
func NewLoader(fsys vfs.FS, cfg Config) *Loader {
	return &Loader{fs: fsys, cfg: cfg}
}

var _ module.Loader = (*Loader)(nil)

// Extensions implements module.Loader.
func (l *Loader) Extensions() []string {
	return []string{".lua"}
}

// Load implements module.Loader.
func (l *Loader) Load(path string) (module.Export, error) {
	src, err := l.fs.ReadFile(path)
	if err != nil {
		return module.Export{}, fmt.Errorf("reading %s: %w", path, err)
	}
	script, err := Compile(path, src, l.cfg)
	if err != nil {
		return module.Export{}, err
	}
	return script.Export()
}
