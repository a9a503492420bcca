package lua

import (
	"context"
	"errors"
	"testing"
	"time"

	glua "github.com/yuin/gopher-lua"
)

func TestNewState(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	if state.IsClosed() {
		t.Error("NewState() returned closed state")
	}
	if state.LuaState() == nil {
		t.Error("NewState() LuaState() is nil")
	}
}

func TestStateDoString(t *testing.T) {
	state, _ := NewState()
	defer state.Close()

	if err := state.DoString(`x = 1 + 1`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if v := state.GetGlobal("x"); v.String() != "2" {
		t.Errorf("x = %v, want 2", v)
	}

	if err := state.DoString(`error("boom")`); err == nil {
		t.Error("DoString() should fail on error()")
	}
}

func TestStateDoProto(t *testing.T) {
	script, err := Compile("chunk.lua", []byte(`return 40 + 2`), DefaultConfig())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	state, _ := NewState()
	defer state.Close()

	v, err := state.DoProto(script.proto)
	if err != nil {
		t.Fatalf("DoProto() error = %v", err)
	}
	if n, ok := v.(glua.LNumber); !ok || n != 42 {
		t.Errorf("DoProto() = %v, want 42", v)
	}
}

func TestStateCall(t *testing.T) {
	state, _ := NewState()
	defer state.Close()

	if err := state.DoString(`function add(a, b) return a + b, "done" end`); err != nil {
		t.Fatal(err)
	}

	rets, err := state.Call(context.Background(), state.GetGlobal("add"), glua.LNumber(2), glua.LNumber(3))
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(rets) != 2 || rets[0].String() != "5" || rets[1].String() != "done" {
		t.Errorf("Call() = %v", rets)
	}

	if _, err := state.Call(context.Background(), glua.LString("nope")); !errors.Is(err, ErrNotFunction) {
		t.Errorf("Call(non-function) error = %v, want ErrNotFunction", err)
	}
}

func TestStateCallNoReturn(t *testing.T) {
	state, _ := NewState()
	defer state.Close()

	_ = state.DoString(`function noop() end`)
	rets, err := state.Call(context.Background(), state.GetGlobal("noop"))
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if rets == nil || len(rets) != 0 {
		t.Errorf("Call() = %#v, want empty slice", rets)
	}
}

func TestStateCallTimeout(t *testing.T) {
	state, _ := NewState(WithExecutionTimeout(50 * time.Millisecond))
	defer state.Close()

	_ = state.DoString(`function spin() while true do end end`)

	start := time.Now()
	_, err := state.Call(context.Background(), state.GetGlobal("spin"))
	if !errors.Is(err, ErrExecutionTimeout) {
		t.Fatalf("Call() error = %v, want ErrExecutionTimeout", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout took too long")
	}
}

func TestStateCallCancelled(t *testing.T) {
	state, _ := NewState(WithExecutionTimeout(0))
	defer state.Close()

	_ = state.DoString(`function spin() while true do end end`)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := state.Call(ctx, state.GetGlobal("spin"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Call() error = %v, want context.Canceled", err)
	}
}

func TestStateClose(t *testing.T) {
	state, _ := NewState()
	if err := state.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := state.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if !state.IsClosed() {
		t.Error("IsClosed() = false after Close")
	}
	if err := state.DoString("x = 1"); !errors.Is(err, ErrStateClosed) {
		t.Errorf("DoString() after Close error = %v", err)
	}
	if _, err := state.Call(context.Background(), glua.LNil); !errors.Is(err, ErrStateClosed) {
		t.Errorf("Call() after Close error = %v", err)
	}
}
