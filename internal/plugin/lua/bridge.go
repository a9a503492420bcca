package lua

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/opdispatch/internal/dispatcher/execctx"
	"github.com/dshills/opdispatch/internal/dispatcher/handler"
)

// resultTypeName names the metatable of results returned by next.
const resultTypeName = "opdispatch.result"

// descriptorKeys mark a returned table as a response descriptor.
var descriptorKeys = []string{"status", "body", "headers", "message", "error", "data"}

// Bridge converts between Go and Lua values for one LState.
type Bridge struct {
	L *lua.LState
}

// NewBridge creates a new Bridge for the given Lua state.
func NewBridge(L *lua.LState) *Bridge {
	return &Bridge{L: L}
}

// ToGoValue converts a Lua value to a Go value.
// Tables become []any when they are sequences and map[string]any otherwise.
func (b *Bridge) ToGoValue(lv lua.LValue) any {
	return b.toGo(lv, make(map[*lua.LTable]bool))
}

func (b *Bridge) toGo(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case nil, *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		defer delete(visited, v)
		return b.tableToGo(v, visited)
	case *lua.LUserData:
		return v.Value
	default:
		return nil
	}
}

func (b *Bridge) tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	n := t.Len()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })

	if n > 0 && n == count {
		arr := make([]any, n)
		for i := 1; i <= n; i++ {
			arr[i-1] = b.toGo(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = kv.String()
		default:
			key = k.String()
		}
		m[key] = b.toGo(v, visited)
	})
	return m
}

// ToLuaValue converts a Go value to a Lua value.
func (b *Bridge) ToLuaValue(v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case []string:
		t := b.L.NewTable()
		for i, s := range val {
			t.RawSetInt(i+1, lua.LString(s))
		}
		return t
	case []any:
		t := b.L.NewTable()
		for i, e := range val {
			t.RawSetInt(i+1, b.ToLuaValue(e))
		}
		return t
	case map[string]string:
		t := b.L.NewTable()
		for k, s := range val {
			t.RawSetString(k, lua.LString(s))
		}
		return t
	case map[string]any:
		t := b.L.NewTable()
		for k, e := range val {
			t.RawSetString(k, b.ToLuaValue(e))
		}
		return t
	case handler.Result:
		return b.ResultValue(val)
	default:
		return b.reflectToLua(v)
	}
}

// reflectToLua converts values not covered by ToLuaValue's fast paths.
func (b *Bridge) reflectToLua(v any) lua.LValue {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return lua.LNil
		}
		return b.ToLuaValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		t := b.L.NewTable()
		for i := 0; i < rv.Len(); i++ {
			t.RawSetInt(i+1, b.ToLuaValue(rv.Index(i).Interface()))
		}
		return t
	case reflect.Map:
		t := b.L.NewTable()
		iter := rv.MapRange()
		for iter.Next() {
			t.RawSet(b.ToLuaValue(iter.Key().Interface()), b.ToLuaValue(iter.Value().Interface()))
		}
		return t
	case reflect.Int8, reflect.Int16, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return lua.LNumber(rv.Convert(reflect.TypeOf(float64(0))).Float())
	default:
		ud := b.L.NewUserData()
		ud.Value = v
		return ud
	}
}

// RequestTable builds the table handed to a Lua handler.
func (b *Bridge) RequestTable(ctx *execctx.RequestContext) *lua.LTable {
	t := b.L.NewTable()
	t.RawSetString("operation_id", lua.LString(ctx.OperationID))
	t.RawSetString("tags", b.ToLuaValue(ctx.Tags))
	t.RawSetString("method", lua.LString(ctx.NormalizedMethod()))
	t.RawSetString("path", lua.LString(ctx.Path))
	t.RawSetString("params", b.ToLuaValue(ctx.Params))
	t.RawSetString("query", b.firstValues(ctx.Query, false))
	t.RawSetString("headers", b.firstValues(ctx.Header, true))
	t.RawSetString("body", lua.LString(ctx.Body))
	t.RawSetString("request_id", lua.LString(ctx.RequestID))
	t.RawSetString("values", b.ToLuaValue(ctx.Values))
	return t
}

func (b *Bridge) firstValues(src map[string][]string, lowerKeys bool) *lua.LTable {
	t := b.L.NewTable()
	for k, vs := range src {
		if len(vs) == 0 {
			continue
		}
		if lowerKeys {
			k = strings.ToLower(k)
		}
		t.RawSetString(k, lua.LString(vs[0]))
	}
	return t
}

// SyncValues replaces ctx.Values with the contents of a Lua values table.
func (b *Bridge) SyncValues(values *lua.LTable, ctx *execctx.RequestContext) {
	if ctx.Values == nil {
		ctx.Values = make(map[string]any)
	}
	clear(ctx.Values)
	values.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			ctx.Values[string(ks)] = b.ToGoValue(v)
		}
	})
}

// ResultValue wraps a handler result for Lua. Fields are read-only:
// ok, status, code, message, body, error, data.
func (b *Bridge) ResultValue(res handler.Result) lua.LValue {
	ud := b.L.NewUserData()
	ud.Value = res
	b.L.SetMetatable(ud, b.resultMetatable())
	return ud
}

func (b *Bridge) resultMetatable() lua.LValue {
	if mt := b.L.GetTypeMetatable(resultTypeName); mt != lua.LNil {
		return mt
	}
	mt := b.L.NewTypeMetatable(resultTypeName)
	b.L.SetField(mt, "__index", b.L.NewFunction(func(L *lua.LState) int {
		res, ok := L.CheckUserData(1).Value.(handler.Result)
		if !ok {
			L.ArgError(1, "result expected")
			return 0
		}
		field := L.CheckString(2)
		br := NewBridge(L)
		switch field {
		case "ok":
			L.Push(lua.LBool(res.IsOK()))
		case "status":
			L.Push(lua.LString(res.Status.String()))
		case "code":
			L.Push(lua.LNumber(res.Code))
		case "message":
			L.Push(lua.LString(res.Message))
		case "body":
			L.Push(br.ToLuaValue(res.Body))
		case "error":
			if res.Error == nil {
				L.Push(lua.LNil)
			} else {
				L.Push(lua.LString(res.Error.Error()))
			}
		case "data":
			L.Push(br.ToLuaValue(res.Data))
		default:
			L.Push(lua.LNil)
		}
		return 1
	}))
	return mt
}

// ToResult converts a handler's return value into a result.
func (b *Bridge) ToResult(lv lua.LValue) (handler.Result, error) {
	switch v := lv.(type) {
	case nil, *lua.LNilType:
		return handler.Success(), nil
	case lua.LString:
		return handler.SuccessWithBody(string(v)), nil
	case *lua.LUserData:
		if res, ok := v.Value.(handler.Result); ok {
			return res, nil
		}
	case *lua.LTable:
		if !isDescriptor(v) {
			return handler.SuccessWithBody(b.ToGoValue(v)), nil
		}
		return b.descriptorToResult(v)
	}
	return handler.Result{}, fmt.Errorf("%w: %s", ErrUnsupportedReturn, lv.Type())
}

func isDescriptor(t *lua.LTable) bool {
	for _, key := range descriptorKeys {
		if t.RawGetString(key) != lua.LNil {
			return true
		}
	}
	return false
}

func (b *Bridge) descriptorToResult(t *lua.LTable) (handler.Result, error) {
	res := handler.Success()
	if errVal := t.RawGetString("error"); errVal != lua.LNil && errVal != lua.LFalse {
		msg := lua.LVAsString(errVal)
		if msg == "" {
			msg = errVal.String()
		}
		res = handler.Error(errors.New(msg))
	}

	switch status := t.RawGetString("status").(type) {
	case lua.LNumber:
		res = res.WithCode(int(status))
	case *lua.LNilType:
	default:
		return handler.Result{}, fmt.Errorf("%w: status must be a number, got %s", ErrUnsupportedReturn, status.Type())
	}

	if msg, ok := t.RawGetString("message").(lua.LString); ok {
		res = res.WithMessage(string(msg))
	}
	if body := t.RawGetString("body"); body != lua.LNil {
		res.Body = b.ToGoValue(body)
	}
	if headers, ok := t.RawGetString("headers").(*lua.LTable); ok {
		headers.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				res = res.WithHeader(string(ks), lua.LVAsString(v))
			}
		})
	}
	if data, ok := t.RawGetString("data").(*lua.LTable); ok {
		if m, ok := b.ToGoValue(data).(map[string]any); ok {
			for k, v := range m {
				res = res.WithData(k, v)
			}
		}
	}
	return res, nil
}
