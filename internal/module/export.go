package module

import (
	"fmt"
	"sort"

	"github.com/dshills/opdispatch/internal/dispatcher/handler"
)

// ExportKind distinguishes the two shapes a module can export.
type ExportKind uint8

const (
	// ExportNone is the zero value and never produced by a loader.
	ExportNone ExportKind = iota
	// ExportHandler is a single handler.
	ExportHandler
	// ExportMap is a keyed mapping of names to handlers.
	ExportMap
)

// String returns the kind name.
func (k ExportKind) String() string {
	switch k {
	case ExportHandler:
		return "handler"
	case ExportMap:
		return "map"
	default:
		return "none"
	}
}

// Export is the value a handler module exports.
type Export struct {
	kind    ExportKind
	handler handler.Handler
	entries map[string]handler.Handler
}

// HandlerExport creates an export holding a single handler.
func HandlerExport(h handler.Handler) (Export, error) {
	if h == nil {
		return Export{}, fmt.Errorf("%w: nil handler", ErrInvalidExport)
	}
	return Export{kind: ExportHandler, handler: h}, nil
}

// MapExport creates an export holding a keyed mapping. The map is copied.
func MapExport(entries map[string]handler.Handler) (Export, error) {
	if len(entries) == 0 {
		return Export{}, fmt.Errorf("%w: empty mapping", ErrInvalidExport)
	}
	copied := make(map[string]handler.Handler, len(entries))
	for k, h := range entries {
		if k == "" {
			return Export{}, fmt.Errorf("%w: empty key", ErrInvalidExport)
		}
		if h == nil {
			return Export{}, fmt.Errorf("%w: key %q is not a handler", ErrInvalidExport, k)
		}
		copied[k] = h
	}
	return Export{kind: ExportMap, entries: copied}, nil
}

// Kind returns the export shape.
func (e Export) Kind() ExportKind { return e.kind }

// Handler returns the single handler of an ExportHandler export.
func (e Export) Handler() handler.Handler { return e.handler }

// Keys returns the mapping keys of an ExportMap export, sorted.
func (e Export) Keys() []string {
	keys := make([]string, 0, len(e.entries))
	for k := range e.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entry returns the handler bound to key in an ExportMap export.
func (e Export) Entry(key string) (handler.Handler, bool) {
	h, ok := e.entries[key]
	return h, ok
}
