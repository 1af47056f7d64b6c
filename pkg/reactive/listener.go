package reactive

// Listener is anything that can be notified when a dependency changes.
// Memos and effects implement it; the engine's sync and fetch triggers
// are effects under the hood.
type Listener interface {
	// MarkDirty notifies the listener that one of its dependencies changed.
	// For memos this invalidates the cached value; for effects it schedules
	// a re-run.
	MarkDirty()

	// ID returns a unique identifier for this listener.
	// Used for deduplication during batch processing.
	ID() uint64
}

// Cleanup is a function returned by effects to release resources.
// It runs before the effect re-runs and when the effect is disposed.
type Cleanup func()
