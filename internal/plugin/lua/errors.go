package lua

import (
	"errors"
	"fmt"
)

// Errors for Lua handler execution.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when a call runs past its deadline.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrNotFunction is returned when a handler key does not hold a function.
	ErrNotFunction = errors.New("lua value is not a function")

	// ErrUnsupportedReturn is returned when a handler returns a value that
	// cannot be converted into a result.
	ErrUnsupportedReturn = errors.New("unsupported lua return value")
)

// ScriptError reports a failure while running a Lua handler.
type ScriptError struct {
	// Path is the script the handler came from.
	Path string

	// Key is the export key, empty for a bare function export.
	Key string

	Err error
}

func (e *ScriptError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("lua %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("lua %s[%s]: %v", e.Path, e.Key, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}
