package dispatcher

import (
	"sort"
	"sync"
	"time"

	"github.com/dshills/opdispatch/internal/dispatcher/handler"
)

// Metrics collects dispatch statistics.
type Metrics struct {
	mu sync.RWMutex

	// Per-binding metrics, keyed by hook.Binding.String().
	bindingMetrics map[string]*BindingMetrics

	// Global counters
	totalDispatches uint64
	totalErrors     uint64
	totalCancelled  uint64
	totalUnhandled  uint64

	totalDuration time.Duration
}

// BindingMetrics holds metrics for one resolved binding.
type BindingMetrics struct {
	Name          string
	DispatchCount uint64
	ErrorCount    uint64
	TotalDuration time.Duration
	MinDuration   time.Duration
	MaxDuration   time.Duration
	LastStatus    handler.ResultStatus
	LastDispatch  time.Time
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		bindingMetrics: make(map[string]*BindingMetrics),
	}
}

// RecordDispatch records a request that resolved to a handler.
func (m *Metrics) RecordDispatch(name string, duration time.Duration, status handler.ResultStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalDispatches++
	m.totalDuration += duration

	switch status {
	case handler.StatusError:
		m.totalErrors++
	case handler.StatusCancelled:
		m.totalCancelled++
	}

	bm := m.bindingMetrics[name]
	if bm == nil {
		bm = &BindingMetrics{
			Name:        name,
			MinDuration: duration,
			MaxDuration: duration,
		}
		m.bindingMetrics[name] = bm
	}

	bm.DispatchCount++
	bm.TotalDuration += duration
	bm.LastStatus = status
	bm.LastDispatch = time.Now()

	if duration < bm.MinDuration {
		bm.MinDuration = duration
	}
	if duration > bm.MaxDuration {
		bm.MaxDuration = duration
	}

	if status == handler.StatusError {
		bm.ErrorCount++
	}
}

// RecordUnhandled records a request that resolved to nothing.
func (m *Metrics) RecordUnhandled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalUnhandled++
}

// TotalDispatches returns the number of requests that reached a handler.
func (m *Metrics) TotalDispatches() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalDispatches
}

// TotalErrors returns the number of dispatches that ended in an error result.
func (m *Metrics) TotalErrors() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalErrors
}

// TotalCancelled returns the number of dispatches cancelled by a hook.
func (m *Metrics) TotalCancelled() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalCancelled
}

// TotalUnhandled returns the number of requests passed to the fallback.
func (m *Metrics) TotalUnhandled() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalUnhandled
}

// AverageDuration returns the average dispatch duration.
func (m *Metrics) AverageDuration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.totalDispatches == 0 {
		return 0
	}
	return m.totalDuration / time.Duration(m.totalDispatches)
}

// BindingStats returns a copy of the metrics for one binding, or nil.
func (m *Metrics) BindingStats(name string) *BindingMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bm := m.bindingMetrics[name]
	if bm == nil {
		return nil
	}
	cp := *bm
	return &cp
}

// TopBindings returns the n most dispatched bindings.
func (m *Metrics) TopBindings(n int) []*BindingMetrics {
	return m.sorted(n, func(a, b *BindingMetrics) bool {
		if a.DispatchCount != b.DispatchCount {
			return a.DispatchCount > b.DispatchCount
		}
		return a.Name < b.Name
	})
}

// SlowestBindings returns the n slowest bindings by average duration.
func (m *Metrics) SlowestBindings(n int) []*BindingMetrics {
	return m.sorted(n, func(a, b *BindingMetrics) bool {
		return a.AverageDuration() > b.AverageDuration()
	})
}

func (m *Metrics) sorted(n int, less func(a, b *BindingMetrics) bool) []*BindingMetrics {
	m.mu.RLock()
	out := make([]*BindingMetrics, 0, len(m.bindingMetrics))
	for _, bm := range m.bindingMetrics {
		cp := *bm
		out = append(out, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if n < 0 {
		n = 0
	}
	if n > len(out) {
		n = len(out)
	}
	return out[:n]
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bindingMetrics = make(map[string]*BindingMetrics)
	m.totalDispatches = 0
	m.totalErrors = 0
	m.totalCancelled = 0
	m.totalUnhandled = 0
	m.totalDuration = 0
}

// MetricsSnapshot is a point-in-time copy of the global counters.
type MetricsSnapshot struct {
	TotalDispatches uint64
	TotalErrors     uint64
	TotalCancelled  uint64
	TotalUnhandled  uint64
	TotalDuration   time.Duration
	AverageDuration time.Duration
	BindingCount    int
	Timestamp       time.Time
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := MetricsSnapshot{
		TotalDispatches: m.totalDispatches,
		TotalErrors:     m.totalErrors,
		TotalCancelled:  m.totalCancelled,
		TotalUnhandled:  m.totalUnhandled,
		TotalDuration:   m.totalDuration,
		BindingCount:    len(m.bindingMetrics),
		Timestamp:       time.Now(),
	}

	if m.totalDispatches > 0 {
		snapshot.AverageDuration = m.totalDuration / time.Duration(m.totalDispatches)
	}
	return snapshot
}

// AverageDuration returns the average duration for the binding.
func (bm *BindingMetrics) AverageDuration() time.Duration {
	if bm.DispatchCount == 0 {
		return 0
	}
	return bm.TotalDuration / time.Duration(bm.DispatchCount)
}

// ErrorRate returns the error rate as a percentage.
func (bm *BindingMetrics) ErrorRate() float64 {
	if bm.DispatchCount == 0 {
		return 0
	}
	return float64(bm.ErrorCount) / float64(bm.DispatchCount) * 100
}
