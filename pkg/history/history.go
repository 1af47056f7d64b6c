// Package history tracks undo/redo state as past/present/future snapshot
// stacks. The engine pushes a snapshot for every accepted filter change and
// replays undo/redo results back through its synchronization path, so the
// URL and storage always match the restored snapshot.
package history

import (
	"sync"
	"time"

	"github.com/sift-dev/sift/pkg/reactive"
)

// Snapshot is one recorded state with the time it was created. Undo and
// redo move snapshots between stacks without touching At.
type Snapshot[T any] struct {
	Value T
	At    time.Time
}

// State holds the three stacks. Past is ordered oldest first, Future
// nearest-redo first. Pushing a new snapshot discards Future: a redo
// branch abandoned by a new edit is gone.
type State[T any] struct {
	Past    []Snapshot[T]
	Present Snapshot[T]
	Future  []Snapshot[T]
}

// Tracker is a goroutine-safe undo/redo stack over values of type T.
// The state lives in a signal, so CanUndo/CanRedo are reactive reads:
// an effect that renders undo buttons re-runs when they flip.
type Tracker[T any] struct {
	state *reactive.Signal[State[T]]

	canUndo *reactive.Memo[bool]
	canRedo *reactive.Memo[bool]

	// equal suppresses pushes identical to the present snapshot.
	// nil records every push.
	equal func(a, b T) bool

	// mu serializes read-modify-write transitions on state.
	mu sync.Mutex
}

// NewTracker creates a tracker whose present snapshot is initial.
// equal may be nil.
func NewTracker[T any](initial T, equal func(a, b T) bool) *Tracker[T] {
	t := &Tracker[T]{
		state: reactive.NewSignal(State[T]{
			Present: Snapshot[T]{Value: initial, At: time.Now()},
		}),
		equal: equal,
	}
	t.canUndo = reactive.NewMemo(func() bool {
		return len(t.state.Get().Past) > 0
	})
	t.canRedo = reactive.NewMemo(func() bool {
		return len(t.state.Get().Future) > 0
	})
	return t
}

// Push records v as the new present. The old present moves to the past
// stack and the future stack is cleared. Pushing a value equal to the
// present (per the tracker's equal func) is a no-op.
func (t *Tracker[T]) Push(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.state.Peek()
	if t.equal != nil && t.equal(st.Present.Value, v) {
		return
	}

	past := make([]Snapshot[T], len(st.Past), len(st.Past)+1)
	copy(past, st.Past)
	past = append(past, st.Present)

	t.state.Set(State[T]{
		Past:    past,
		Present: Snapshot[T]{Value: v, At: time.Now()},
	})
}

// Undo moves the most recent past snapshot into present and reports its
// value. Returns the zero value and false when there is nothing to undo.
func (t *Tracker[T]) Undo() (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.state.Peek()
	if len(st.Past) == 0 {
		var zero T
		return zero, false
	}

	restored := st.Past[len(st.Past)-1]

	past := make([]Snapshot[T], len(st.Past)-1)
	copy(past, st.Past[:len(st.Past)-1])

	future := make([]Snapshot[T], 0, len(st.Future)+1)
	future = append(future, st.Present)
	future = append(future, st.Future...)

	t.state.Set(State[T]{
		Past:    past,
		Present: restored,
		Future:  future,
	})
	return restored.Value, true
}

// Redo moves the nearest future snapshot back into present and reports
// its value. Returns the zero value and false when there is nothing to
// redo.
func (t *Tracker[T]) Redo() (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.state.Peek()
	if len(st.Future) == 0 {
		var zero T
		return zero, false
	}

	restored := st.Future[0]

	past := make([]Snapshot[T], len(st.Past), len(st.Past)+1)
	copy(past, st.Past)
	past = append(past, st.Present)

	future := make([]Snapshot[T], len(st.Future)-1)
	copy(future, st.Future[1:])

	t.state.Set(State[T]{
		Past:    past,
		Present: restored,
		Future:  future,
	})
	return restored.Value, true
}

// CanUndo reports whether the past stack is non-empty. Reactive read.
func (t *Tracker[T]) CanUndo() bool {
	return t.canUndo.Get()
}

// CanRedo reports whether the future stack is non-empty. Reactive read.
func (t *Tracker[T]) CanRedo() bool {
	return t.canRedo.Get()
}

// Present returns the current snapshot's value. Reactive read.
func (t *Tracker[T]) Present() T {
	return t.state.Get().Present.Value
}

// State returns the full stacks. The returned slices are shared; callers
// must not mutate them.
func (t *Tracker[T]) State() State[T] {
	return t.state.Get()
}
