// Package hook provides pre/post dispatch hooks for the dispatcher.
//
// Hooks run only when a request resolved to a handler. They receive the
// request context and the Binding that matched, and are ordered by
// priority:
//
//   - Pre-hooks: higher priority runs first. Any pre-hook may cancel.
//   - Post-hooks: lower priority runs first, higher runs last to see the
//     final result.
//
// # Built-in Hooks
//
//   - RequestIDHook: assigns a UUID request ID when none is set
//   - LoggingHook: logs dispatches and failed results
//   - TimingHook: reports handler duration per binding
//   - ValidationHook: cancels requests failing a validation function
//   - MethodFilterHook: cancels requests with methods outside an allow list
//   - ResultModifierHook: rewrites results after the handler returns
package hook
