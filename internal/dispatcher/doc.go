// Package dispatcher resolves requests to handlers loaded from a directory
// tree of handler modules.
//
// # Registry
//
// Build scans a handler root breadth-first. Directories contribute
// namespace segments and each handler module contributes its file stem as
// the last segment, so handlers/users/admin.lua lives at "users.admin".
// A module exports either a single handler, which becomes a wildcard leaf
// at its namespace, or a keyed map of handlers. Map keys naming an HTTP
// method (post, put, get, delete, or the aliases create, update, read,
// destroy; compared case-insensitively) are bound at the namespace under
// that method. Every other key is bound as an operation ID.
//
//	handlers/
//	  users.lua        -> return { read = ..., create = ..., searchUsers = ... }
//	  health.yaml      -> handler: builtin.health
//	  admin/
//	    audit.toml     -> operations = { get = "audit.list" }
//
// The resulting Registry is immutable and safe for concurrent use.
//
// # Resolution
//
// Resolve picks a handler for a RequestContext. The first rule that applies
// wins:
//
//  1. The operation ID is bound in the operation map.
//  2. The tags are walked through the tag tree in order, stopping at the
//     first tag with no child; the node reached binds the lowercased method.
//  3. The node reached is a wildcard leaf.
//
// A miss is not an error.
//
// # Dispatcher
//
// Dispatcher implements handler.Handler. Unresolved requests go to next
// untouched. Resolved requests run through the hook manager's pre-dispatch
// hooks, the handler, then the post-dispatch hooks:
//
//	reg, err := dispatcher.Build(vfs.NewOSFS(), "./handlers", loaders)
//	if err != nil {
//	    return err
//	}
//	d := dispatcher.NewWithRegistry(dispatcher.DefaultConfig().WithMetrics(), reg)
//	d.Hooks().Register(hook.NewRequestIDHook())
//
//	result := d.Handle(ctx, func() handler.Result {
//	    return handler.Errorf("not implemented")
//	})
//
// Swap installs a rebuilt registry without interrupting requests in flight.
//
// # Combinators
//
// ByOperationID, ByTag, ByTagAndMethod and Chain build middleware by hand
// for callers that do not use a handler tree. They validate their arguments
// when constructed and return a *ConfigurationError on bad input.
package dispatcher
