package lua

import (
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// pooled is a state whose chunk has run, together with the chunk's export.
type pooled struct {
	state  *State
	export lua.LValue
}

// statePool keeps up to size idle states for one script. get never blocks:
// when no state is idle a new one is built, so a handler that re-enters its
// own script through next gets a fresh state.
type statePool struct {
	mu     sync.Mutex
	idle   []*pooled
	size   int
	build  func() (*pooled, error)
	closed bool
}

func newStatePool(size int, build func() (*pooled, error)) *statePool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &statePool{size: size, build: build}
}

func (p *statePool) get() (*pooled, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrStateClosed
	}
	if n := len(p.idle); n > 0 {
		e := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return e, nil
	}
	p.mu.Unlock()
	return p.build()
}

// put returns a healthy state. States beyond the pool size are closed.
func (p *statePool) put(e *pooled) {
	p.mu.Lock()
	if p.closed || len(p.idle) >= p.size {
		p.mu.Unlock()
		_ = e.state.Close()
		return
	}
	p.idle = append(p.idle, e)
	p.mu.Unlock()
}

// discard closes a state that failed mid-call.
func (p *statePool) discard(e *pooled) {
	_ = e.state.Close()
}

func (p *statePool) idleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

func (p *statePool) close() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.mu.Unlock()

	for _, e := range idle {
		_ = e.state.Close()
	}
}
