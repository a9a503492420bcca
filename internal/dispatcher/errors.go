package dispatcher

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched with errors.Is.
var (
	// ErrInvalidPath indicates the handler root or a directory below it
	// could not be listed.
	ErrInvalidPath = errors.New("dispatcher: invalid path")

	// ErrConfiguration indicates malformed registration input.
	ErrConfiguration = errors.New("dispatcher: configuration error")
)

// InvalidPathError reports a missing or unreadable directory in the
// handler tree. No partial registry accompanies it.
type InvalidPathError struct {
	Path string
	Err  error
}

func (e *InvalidPathError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("dispatcher: invalid path %q", e.Path)
	}
	return fmt.Sprintf("dispatcher: invalid path %q: %v", e.Path, e.Err)
}

// Is reports whether target is ErrInvalidPath.
func (e *InvalidPathError) Is(target error) bool {
	return target == ErrInvalidPath
}

func (e *InvalidPathError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports malformed registration input: an empty tag or
// operation ID, a nil handler, an empty handler map, a module that failed to
// load, or conflicting bindings in the handler tree.
type ConfigurationError struct {
	// Subject is what was being configured: a namespace, tag or operation ID.
	Subject string

	// Path is the module file involved, if any.
	Path string

	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("dispatcher: configuration error")
	if e.Subject != "" {
		fmt.Fprintf(&b, " for %q", e.Subject)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configErr(subject, reason string) *ConfigurationError {
	return &ConfigurationError{Subject: subject, Reason: reason}
}
