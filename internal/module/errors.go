package module

import "errors"

// Module loading errors.
var (
	// ErrInvalidExport indicates a module exported something other than a
	// handler or a non-empty mapping of handlers.
	ErrInvalidExport = errors.New("module: invalid export")

	// ErrUnknownHandler indicates a manifest referenced a name missing from the catalog.
	ErrUnknownHandler = errors.New("module: unknown handler")

	// ErrInvalidManifest indicates a manifest is malformed.
	ErrInvalidManifest = errors.New("module: invalid manifest")

	// ErrInvalidRegistration indicates a catalog registration with an empty
	// name or a nil handler.
	ErrInvalidRegistration = errors.New("module: invalid registration")
)
