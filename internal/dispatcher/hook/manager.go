package hook

import (
	"sort"
	"sync"

	"github.com/dshills/opdispatch/internal/dispatcher/execctx"
	"github.com/dshills/opdispatch/internal/dispatcher/handler"
)

// Manager manages dispatch hooks with priority-based ordering.
// It is safe for concurrent use; running hooks works on a snapshot.
type Manager struct {
	mu        sync.RWMutex
	preHooks  []PreDispatchHook
	postHooks []PostDispatchHook
}

// NewManager creates a new hook manager.
func NewManager() *Manager {
	return &Manager{}
}

// RegisterPre adds a pre-dispatch hook, replacing one with the same name.
func (m *Manager) RegisterPre(h PreDispatchHook) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.preHooks = replaceOrAppend(m.preHooks, h)
	// Higher priority first.
	sort.SliceStable(m.preHooks, func(i, j int) bool {
		return m.preHooks[i].Priority() > m.preHooks[j].Priority()
	})
}

// RegisterPost adds a post-dispatch hook, replacing one with the same name.
func (m *Manager) RegisterPost(h PostDispatchHook) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.postHooks = replaceOrAppend(m.postHooks, h)
	// Higher priority last, so it sees the final result.
	sort.SliceStable(m.postHooks, func(i, j int) bool {
		return m.postHooks[i].Priority() < m.postHooks[j].Priority()
	})
}

// Register adds a hook to every list whose interface it implements.
func (m *Manager) Register(h Hook) {
	if pre, ok := h.(PreDispatchHook); ok {
		m.RegisterPre(pre)
	}
	if post, ok := h.(PostDispatchHook); ok {
		m.RegisterPost(post)
	}
}

// Unregister removes a hook by name from both lists.
func (m *Manager) Unregister(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed bool
	m.preHooks, removed = removeNamed(m.preHooks, name)
	var removedPost bool
	m.postHooks, removedPost = removeNamed(m.postHooks, name)
	return removed || removedPost
}

// Clear removes all hooks.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preHooks = nil
	m.postHooks = nil
}

// RunPreDispatch runs pre-dispatch hooks in priority order.
// Returns false as soon as one cancels.
func (m *Manager) RunPreDispatch(ctx *execctx.RequestContext, b Binding) bool {
	m.mu.RLock()
	hooks := append([]PreDispatchHook(nil), m.preHooks...)
	m.mu.RUnlock()

	for _, h := range hooks {
		if !h.PreDispatch(ctx, b) {
			return false
		}
	}
	return true
}

// RunPostDispatch runs post-dispatch hooks from lowest to highest priority.
func (m *Manager) RunPostDispatch(ctx *execctx.RequestContext, b Binding, result *handler.Result) {
	m.mu.RLock()
	hooks := append([]PostDispatchHook(nil), m.postHooks...)
	m.mu.RUnlock()

	for _, h := range hooks {
		h.PostDispatch(ctx, b, result)
	}
}

// PreHookNames returns the names of all pre-dispatch hooks in run order.
func (m *Manager) PreHookNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return names(m.preHooks)
}

// PostHookNames returns the names of all post-dispatch hooks in run order.
func (m *Manager) PostHookNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return names(m.postHooks)
}

func replaceOrAppend[H Hook](hooks []H, h H) []H {
	for i, existing := range hooks {
		if existing.Name() == h.Name() {
			hooks[i] = h
			return hooks
		}
	}
	return append(hooks, h)
}

func removeNamed[H Hook](hooks []H, name string) ([]H, bool) {
	for i, h := range hooks {
		if h.Name() == name {
			return append(hooks[:i], hooks[i+1:]...), true
		}
	}
	return hooks, false
}

func names[H Hook](hooks []H) []string {
	out := make([]string, len(hooks))
	for i, h := range hooks {
		out[i] = h.Name()
	}
	return out
}
