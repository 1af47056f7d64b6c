package reactive

import (
	"sync"
	"sync/atomic"
)

// Memo is a cached computation that tracks its dependencies automatically.
// When any dependency changes the memo is invalidated and recomputes on the
// next read. Memos are lazy, and they can be subscribed to like signals, so
// derived values chain (the engine derives CanUndo/CanRedo this way).
type Memo[T any] struct {
	base signalBase

	compute func() T

	value   T
	valueMu sync.RWMutex

	// valid is false when the cached value is stale.
	valid atomic.Bool

	sources   []*signalBase
	sourcesMu sync.Mutex

	equal func(T, T) bool

	// computing guards against recursive self-reads.
	computing atomic.Bool
}

// NewMemo creates a memo. The computation runs lazily on first Get.
func NewMemo[T any](compute func() T) *Memo[T] {
	return &Memo[T]{
		base: signalBase{
			id: nextID(),
		},
		compute: compute,
	}
}

// Get returns the memo's value, recomputing if stale, and subscribes the
// current listener.
func (m *Memo[T]) Get() T {
	if listener := getCurrentListener(); listener != nil {
		m.base.subscribe(listener)

		if tr, ok := listener.(sourceTracker); ok {
			tr.addSource(&m.base)
		}
	}

	if !m.valid.Load() {
		m.recompute()
	}

	m.valueMu.RLock()
	value := m.value
	m.valueMu.RUnlock()
	return value
}

// Peek returns the value without subscribing. Still recomputes when stale.
func (m *Memo[T]) Peek() T {
	if !m.valid.Load() {
		m.recompute()
	}
	m.valueMu.RLock()
	value := m.value
	m.valueMu.RUnlock()
	return value
}

// MarkDirty invalidates the cached value and propagates to subscribers.
// Implements Listener.
func (m *Memo[T]) MarkDirty() {
	// CAS keeps invalidation idempotent.
	if m.valid.CompareAndSwap(true, false) {
		m.base.notifySubscribers()
	}
}

// ID implements Listener.
func (m *Memo[T]) ID() uint64 {
	return m.base.id
}

// addSource implements sourceTracker; signals call it during computation.
func (m *Memo[T]) addSource(source *signalBase) {
	m.sourcesMu.Lock()
	defer m.sourcesMu.Unlock()

	for _, s := range m.sources {
		if s == source {
			return
		}
	}
	m.sources = append(m.sources, source)
}

// WithEquals configures a custom equality function.
func (m *Memo[T]) WithEquals(fn func(T, T) bool) *Memo[T] {
	m.equal = fn
	return m
}

func (m *Memo[T]) recompute() {
	if m.computing.Swap(true) {
		// Already computing: a self-referential read, bail out.
		return
	}
	defer m.computing.Store(false)

	// Re-subscribe from scratch so dropped dependencies stop notifying us.
	m.sourcesMu.Lock()
	for _, source := range m.sources {
		source.unsubscribe(m)
	}
	m.sources = m.sources[:0]
	m.sourcesMu.Unlock()

	old := setCurrentListener(m)
	newValue := m.compute()
	setCurrentListener(old)

	m.valueMu.Lock()
	m.value = newValue
	m.valueMu.Unlock()

	m.valid.Store(true)
}

func (m *Memo[T]) equals(a, b T) bool {
	if m.equal != nil {
		return m.equal(a, b)
	}
	return defaultEquals(a, b)
}

var _ sourceTracker = (*Memo[int])(nil)
