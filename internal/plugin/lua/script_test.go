package lua

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/opdispatch/internal/dispatcher/execctx"
	"github.com/dshills/opdispatch/internal/dispatcher/handler"
	"github.com/dshills/opdispatch/internal/logging"
	"github.com/dshills/opdispatch/internal/module"
	"github.com/dshills/opdispatch/internal/vfs"
)

func loadExport(t *testing.T, src string) module.Export {
	t.Helper()
	fsys := vfs.NewMemFS()
	_ = fsys.AddFile("/h/mod.lua", src)

	e, err := NewLoader(fsys, DefaultConfig()).Load("/h/mod.lua")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return e
}

func TestLoaderExtensions(t *testing.T) {
	exts := NewLoader(vfs.NewMemFS(), DefaultConfig()).Extensions()
	if len(exts) != 1 || exts[0] != ".lua" {
		t.Errorf("Extensions() = %v", exts)
	}
}

func TestLoadFunctionExport(t *testing.T) {
	e := loadExport(t, `return function(ctx, next) return "hello " .. ctx.operation_id end`)
	if e.Kind() != module.ExportHandler {
		t.Fatalf("Kind() = %v, want handler", e.Kind())
	}

	res := e.Handler().Handle(execctx.New("getFoo", nil, "GET"), nil)
	if !res.IsOK() || res.Body != "hello getFoo" {
		t.Errorf("result = %+v", res)
	}
}

func TestLoadTableExport(t *testing.T) {
	e := loadExport(t, `
		return {
			read = function(ctx) return { status = 200, body = ctx.params.id } end,
			Create = function(ctx) return { status = 201 } end,
		}
	`)
	if e.Kind() != module.ExportMap {
		t.Fatalf("Kind() = %v, want map", e.Kind())
	}
	keys := e.Keys()
	if len(keys) != 2 || keys[0] != "Create" || keys[1] != "read" {
		t.Errorf("Keys() = %v", keys)
	}

	h, _ := e.Entry("read")
	ctx := execctx.New("", nil, "GET")
	ctx.Params["id"] = "42"
	res := h.Handle(ctx, nil)
	if res.Code != 200 || res.Body != "42" {
		t.Errorf("result = %+v", res)
	}

	if h.(*Handler).Key() != "read" {
		t.Errorf("Key() = %q", h.(*Handler).Key())
	}
}

func TestLoadInvalidExports(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"number", `return 1`},
		{"nothing", `local x = 1`},
		{"non-function value", `return { read = "nope" }`},
		{"empty table", `return {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := vfs.NewMemFS()
			_ = fsys.AddFile("/h/mod.lua", tt.src)
			_, err := NewLoader(fsys, DefaultConfig()).Load("/h/mod.lua")
			if !errors.Is(err, module.ErrInvalidExport) {
				t.Errorf("Load() error = %v, want ErrInvalidExport", err)
			}
		})
	}
}

func TestLoadSyntaxAndRuntimeErrors(t *testing.T) {
	fsys := vfs.NewMemFS()
	_ = fsys.AddFile("/h/syntax.lua", `return function(`)
	_ = fsys.AddFile("/h/boom.lua", `error("top level")`)
	l := NewLoader(fsys, DefaultConfig())

	if _, err := l.Load("/h/syntax.lua"); err == nil || !strings.Contains(err.Error(), "parsing") {
		t.Errorf("syntax error = %v", err)
	}

	_, err := l.Load("/h/boom.lua")
	var se *ScriptError
	if !errors.As(err, &se) || se.Path != "/h/boom.lua" {
		t.Errorf("runtime error = %v, want *ScriptError", err)
	}

	if _, err := l.Load("/h/missing.lua"); err == nil {
		t.Error("Load(missing) should fail")
	}
}

func TestHandlerNextAndValues(t *testing.T) {
	e := loadExport(t, `
		return function(ctx, next)
			ctx.values.user = "alice"
			local res = next()
			if not res.ok then
				return { error = "downstream failed" }
			end
			return res
		end
	`)

	ctx := execctx.New("", nil, "GET")
	var seen any
	calls := 0
	res := e.Handler().Handle(ctx, func() handler.Result {
		calls++
		seen, _ = ctx.Get("user")
		return handler.SuccessWithMessage("from next")
	})

	if calls != 1 {
		t.Errorf("next called %d times", calls)
	}
	if seen != "alice" {
		t.Errorf("values not synced before next: %v", seen)
	}
	if res.Message != "from next" {
		t.Errorf("result = %+v, want passthrough", res)
	}

	res = e.Handler().Handle(ctx, func() handler.Result { return handler.Errorf("bad") })
	if !res.IsError() || res.Error.Error() != "downstream failed" {
		t.Errorf("result = %+v", res)
	}
}

func TestHandlerNilNext(t *testing.T) {
	e := loadExport(t, `return function(ctx, next) return next() end`)
	res := e.Handler().Handle(execctx.New("", nil, "GET"), nil)
	if res.Status != handler.StatusNoOp {
		t.Errorf("Status = %v, want no-op", res.Status)
	}
}

func TestHandlerRuntimeError(t *testing.T) {
	e := loadExport(t, `return { read = function() error("kaput") end }`)
	h, _ := e.Entry("read")

	res := h.Handle(execctx.New("", nil, "GET"), nil)
	if !res.IsError() {
		t.Fatalf("result = %+v, want error", res)
	}
	var se *ScriptError
	if !errors.As(res.Error, &se) || se.Key != "read" || !strings.Contains(se.Error(), "kaput") {
		t.Errorf("Error = %v", res.Error)
	}

	// The failed state is discarded and the next call still works.
	res = h.Handle(execctx.New("", nil, "GET"), nil)
	if !res.IsError() {
		t.Errorf("second call = %+v", res)
	}
}

func TestHandlerTimeout(t *testing.T) {
	fsys := vfs.NewMemFS()
	_ = fsys.AddFile("/h/spin.lua", `return function() while true do end end`)
	cfg := DefaultConfig()
	cfg.ExecutionTimeout = 50 * time.Millisecond

	e, err := NewLoader(fsys, cfg).Load("/h/spin.lua")
	if err != nil {
		t.Fatal(err)
	}
	res := e.Handler().Handle(execctx.New("", nil, "GET"), nil)
	if !errors.Is(res.Error, ErrExecutionTimeout) {
		t.Errorf("Error = %v, want ErrExecutionTimeout", res.Error)
	}
}

func TestHandlerUnsupportedReturn(t *testing.T) {
	e := loadExport(t, `return function() return 7 end`)
	res := e.Handler().Handle(execctx.New("", nil, "GET"), nil)
	if !errors.Is(res.Error, ErrUnsupportedReturn) {
		t.Errorf("Error = %v, want ErrUnsupportedReturn", res.Error)
	}
}

func TestHandlerConcurrent(t *testing.T) {
	e := loadExport(t, `
		local calls = 0
		return function(ctx)
			calls = calls + 1
			return ctx.params.n
		end
	`)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ctx := execctx.New("", nil, "GET")
			ctx.Params["n"] = string(rune('a' + n%26))
			res := e.Handler().Handle(ctx, nil)
			if res.Body != ctx.Params["n"] {
				t.Errorf("Body = %v, want %s", res.Body, ctx.Params["n"])
			}
		}(i)
	}
	wg.Wait()
}

func TestHandlerReentersOwnScript(t *testing.T) {
	e := loadExport(t, `
		return {
			outer = function(ctx, next) return next() end,
			inner = function(ctx) return "inner" end,
		}
	`)
	outer, _ := e.Entry("outer")
	inner, _ := e.Entry("inner")

	ctx := execctx.New("", nil, "GET")
	res := outer.Handle(ctx, func() handler.Result { return inner.Handle(ctx, nil) })
	if res.Body != "inner" {
		t.Errorf("result = %+v", res)
	}
}

func TestScriptLogModule(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: logging.LevelDebug, Output: &buf, Prefix: "test"})

	fsys := vfs.NewMemFS()
	_ = fsys.AddFile("/h/logs.lua", `
		local log = require("log")
		return function(ctx)
			log.info("handled", { id = 7 })
		end
	`)
	cfg := DefaultConfig()
	cfg.Logger = logger

	e, err := NewLoader(fsys, cfg).Load("/h/logs.lua")
	if err != nil {
		t.Fatal(err)
	}
	e.Handler().Handle(execctx.New("", nil, "GET"), nil)

	out := buf.String()
	if !strings.Contains(out, "handled {id=7}") || !strings.Contains(out, "script=/h/logs.lua") {
		t.Errorf("log output = %q", out)
	}
}

func TestScriptClose(t *testing.T) {
	s, err := Compile("x.lua", []byte(`return function() end`), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Export(); err != nil {
		t.Fatal(err)
	}
	if s.pool.idleCount() != 1 {
		t.Errorf("idleCount() = %d, want 1", s.pool.idleCount())
	}
	s.Close()
	if _, err := s.Export(); !errors.Is(err, ErrStateClosed) {
		t.Errorf("Export() after Close error = %v", err)
	}
}
