package module

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/opdispatch/internal/dispatcher/handler"
)

// Catalog holds Go handlers registered by name so manifests can refer to them.
type Catalog struct {
	mu       sync.RWMutex
	handlers map[string]handler.Handler
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{handlers: make(map[string]handler.Handler)}
}

// Register adds a named handler. Re-registering a name replaces it.
func (c *Catalog) Register(name string, h handler.Handler) error {
	if name == "" {
		return fmt.Errorf("%w: empty handler name", ErrInvalidRegistration)
	}
	if h == nil {
		return fmt.Errorf("%w: handler %q is nil", ErrInvalidRegistration, name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[name] = h
	return nil
}

// RegisterFunc adds a named handler function.
func (c *Catalog) RegisterFunc(name string, fn handler.Func) error {
	if fn == nil {
		return fmt.Errorf("%w: handler %q is nil", ErrInvalidRegistration, name)
	}
	return c.Register(name, fn)
}

// MustRegister is like Register but panics on error.
// Intended for static registration at program start.
func (c *Catalog) MustRegister(name string, h handler.Handler) {
	if err := c.Register(name, h); err != nil {
		panic(err)
	}
}

// Get returns the handler registered under name.
func (c *Catalog) Get(name string) (handler.Handler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[name]
	return h, ok
}

// Names returns all registered names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
