package lua

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	lua "github.com/yuin/gopher-lua"
)

// OpenJSON is the loader for the json module.
//
//	json.get(doc, path)        value at a gjson path, or nil
//	json.set(doc, path, value) doc with value set at an sjson path
//	json.delete(doc, path)     doc with path removed
//	json.valid(doc)            whether doc is valid JSON
//	json.decode(doc)           doc as Lua values
//	json.encode(value)         value as a JSON string
//	json.pretty(doc)           doc indented
//
// Functions that can fail return nil and an error message.
func OpenJSON(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"get":    jsonGet,
		"set":    jsonSet,
		"delete": jsonDelete,
		"valid":  jsonValid,
		"decode": jsonDecode,
		"encode": jsonEncode,
		"pretty": jsonPretty,
	})
	L.Push(mod)
	return 1
}

func jsonGet(L *lua.LState) int {
	doc := L.CheckString(1)
	path := L.CheckString(2)

	r := gjson.Get(doc, path)
	if !r.Exists() {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(NewBridge(L).ToLuaValue(r.Value()))
	return 1
}

func jsonSet(L *lua.LState) int {
	doc := L.OptString(1, "")
	path := L.CheckString(2)
	value := NewBridge(L).ToGoValue(L.Get(3))

	out, err := sjson.Set(doc, path, value)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LString(out))
	return 1
}

func jsonDelete(L *lua.LState) int {
	doc := L.CheckString(1)
	path := L.CheckString(2)

	out, err := sjson.Delete(doc, path)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LString(out))
	return 1
}

func jsonValid(L *lua.LState) int {
	L.Push(lua.LBool(gjson.Valid(L.CheckString(1))))
	return 1
}

func jsonDecode(L *lua.LState) int {
	doc := L.CheckString(1)
	if !gjson.Valid(doc) {
		L.Push(lua.LNil)
		L.Push(lua.LString("invalid json"))
		return 2
	}
	L.Push(NewBridge(L).ToLuaValue(gjson.Parse(doc).Value()))
	return 1
}

func jsonEncode(L *lua.LState) int {
	data, err := json.Marshal(NewBridge(L).ToGoValue(L.Get(1)))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LString(data))
	return 1
}

func jsonPretty(L *lua.LState) int {
	L.Push(lua.LString(pretty.Pretty([]byte(L.CheckString(1)))))
	return 1
}
