package urlsync

import (
	"net/url"
	"sync"
)

// Memory is an in-process Navigator with real history semantics: Navigate
// pushes or replaces entries silently, Back and Forward move through the
// stack and fire listeners the way popstate does. It drives tests and
// headless engine embeddings.
type Memory struct {
	mu      sync.Mutex
	entries []url.Values
	pos     int

	listeners map[int]func(url.Values)
	nextID    int
}

// NewMemory creates a navigator whose single history entry is initial
// (nil means an empty query).
func NewMemory(initial url.Values) *Memory {
	if initial == nil {
		initial = url.Values{}
	}
	return &Memory{
		entries:   []url.Values{cloneValues(initial)},
		listeners: make(map[int]func(url.Values)),
	}
}

// Query returns a copy of the current entry's parameters.
func (m *Memory) Query() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneValues(m.entries[m.pos])
}

// Navigate records q. ModePush drops any forward entries and appends;
// ModeReplace overwrites in place. Listeners do not fire.
func (m *Memory) Navigate(q url.Values, mode Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := cloneValues(q)
	if mode == ModeReplace {
		m.entries[m.pos] = entry
		return
	}

	m.entries = append(m.entries[:m.pos+1], entry)
	m.pos = len(m.entries) - 1
}

// Listen implements Navigator.
func (m *Memory) Listen(fn func(url.Values)) (remove func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Back moves one entry back and fires listeners. Returns false at the
// oldest entry.
func (m *Memory) Back() bool {
	return m.move(-1)
}

// Forward moves one entry forward and fires listeners. Returns false at
// the newest entry.
func (m *Memory) Forward() bool {
	return m.move(1)
}

func (m *Memory) move(delta int) bool {
	m.mu.Lock()
	next := m.pos + delta
	if next < 0 || next >= len(m.entries) {
		m.mu.Unlock()
		return false
	}
	m.pos = next
	entry := cloneValues(m.entries[m.pos])
	fns := make([]func(url.Values), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(cloneValues(entry))
	}
	return true
}

// Len reports how many history entries exist.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

var _ Navigator = (*Memory)(nil)
