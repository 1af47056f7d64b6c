package reactive

import (
	"sync"
	"sync/atomic"
)

// Effect is a reactive side effect that re-runs when its dependencies
// change. Dependencies are whatever signals and memos the function reads
// during execution; they are re-collected on every run. The function may
// return a Cleanup that runs before the next run and on disposal.
//
// The engine's URL/storage writers and its fetch trigger are effects: each
// reads the values signal, so each re-runs when filters change.
type Effect struct {
	id uint64

	fn      func() Cleanup
	cleanup Cleanup

	sources   []*signalBase
	sourcesMu sync.Mutex

	// owner defers re-runs to its pending queue; effects without an owner
	// re-run inline when marked dirty.
	owner *Owner

	pending  atomic.Bool
	disposed atomic.Bool
}

// NewEffect creates the effect and runs it immediately within the current
// owner scope, if any.
func NewEffect(fn func() Cleanup) *Effect {
	owner := getCurrentOwner()

	e := &Effect{
		id:    nextID(),
		fn:    fn,
		owner: owner,
	}

	if owner != nil {
		owner.registerEffect(e)
	}

	e.run()

	return e
}

// MarkDirty schedules the effect to re-run. Implements Listener.
func (e *Effect) MarkDirty() {
	if e.disposed.Load() {
		return
	}

	// CAS so concurrent notifications schedule exactly once.
	if e.pending.CompareAndSwap(false, true) {
		if e.owner != nil {
			e.owner.scheduleEffect(e)
		} else {
			e.run()
		}
	}
}

// ID implements Listener.
func (e *Effect) ID() uint64 {
	return e.id
}

func (e *Effect) run() {
	if e.disposed.Load() {
		return
	}

	e.pending.Store(false)

	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}

	// Dependencies are re-collected each run; unsubscribe from the old set.
	e.sourcesMu.Lock()
	for _, source := range e.sources {
		source.unsubscribe(e)
	}
	e.sources = e.sources[:0]
	e.sourcesMu.Unlock()

	oldListener := setCurrentListener(e)
	e.cleanup = e.fn()
	setCurrentListener(oldListener)
}

// addSource implements sourceTracker; signals call it during the run.
func (e *Effect) addSource(source *signalBase) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()

	for _, s := range e.sources {
		if s == source {
			return
		}
	}
	e.sources = append(e.sources, source)
}

// Dispose stops the effect permanently: future notifications are ignored,
// the pending cleanup runs, and all subscriptions drop. Owned effects are
// disposed with their owner; call this directly only on ownerless effects.
func (e *Effect) Dispose() {
	e.dispose()
}

func (e *Effect) dispose() {
	if e.disposed.Swap(true) {
		return
	}

	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}

	e.sourcesMu.Lock()
	for _, source := range e.sources {
		source.unsubscribe(e)
	}
	e.sources = nil
	e.sourcesMu.Unlock()
}

var _ sourceTracker = (*Effect)(nil)

// OnCleanup registers fn to run when the current owner is disposed.
// Runs fn immediately if there is no current owner.
func OnCleanup(fn func()) {
	owner := getCurrentOwner()
	if owner != nil {
		owner.OnCleanup(fn)
		return
	}
	fn()
}

// OnUpdate creates an effect that skips its callback on the first run.
// deps is always called so dependencies are tracked; callback only fires on
// subsequent runs. The engine's non-auto-fetch trigger is built on this.
func OnUpdate(deps func(), callback func()) *Effect {
	first := true
	return NewEffect(func() Cleanup {
		deps()
		if first {
			first = false
			return nil
		}
		callback()
		return nil
	})
}
