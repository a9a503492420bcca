// Package lua runs handler modules written in Lua.
//
// A Lua handler module is a chunk that returns either a function or a table
// of functions:
//
//	-- users.lua
//	local json = require("json")
//
//	return {
//	    read = function(ctx, next)
//	        return { status = 200, body = { id = ctx.params.id } }
//	    end,
//	    searchUsers = function(ctx, next)
//	        ctx.values.search = json.get(ctx.body, "query")
//	        return next()
//	    end,
//	}
//
// # Scripts and states
//
// A Script is compiled once. Each call borrows a sandboxed State from the
// script's pool; the chunk has already run in that state, so module-level
// locals persist per state, not per script. States are not shared between
// goroutines while borrowed.
//
// # Handler calls
//
// A handler function receives a request table and a next function. The
// request table carries operation_id, tags, method, path, params, query,
// headers, body, request_id and values. Changes to values are copied back
// to the request context before next runs and after the handler returns.
//
// The return value becomes the handler result:
//   - nil: success with no body
//   - a string: success with that body
//   - the value returned by next: passed through unchanged
//   - a table with any of status, body, headers, message, error, data:
//     a response descriptor; error makes the result a failure
//   - any other table: success with the table as the body
//
// Runtime errors and timeouts become error results carrying a *ScriptError.
//
// # Sandbox
//
// States open only the base, table, string and math libraries. dofile,
// loadfile, load and loadstring are removed and require only resolves the
// preloaded json and log modules.
package lua
