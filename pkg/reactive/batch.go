package reactive

// Batch groups multiple signal updates into a single notification phase.
// Updates inside fn queue their notifications; when the outermost batch
// completes, listeners are deduplicated and notified once each. The engine
// wraps every state operation in a Batch so values, provenance and history
// move together.
//
// Batches nest; notifications fire only when the outermost batch completes.
func Batch(fn func()) {
	incrementBatchDepth()

	defer func() {
		if decrementBatchDepth() {
			processPendingUpdates()
		}
	}()

	fn()
}

// processPendingUpdates deduplicates queued listeners by ID and notifies
// each once.
func processPendingUpdates() {
	updates := drainPendingUpdates()
	if len(updates) == 0 {
		return
	}

	seen := make(map[uint64]bool, len(updates))
	unique := make([]Listener, 0, len(updates))

	for _, listener := range updates {
		id := listener.ID()
		if !seen[id] {
			seen[id] = true
			unique = append(unique, listener)
		}
	}

	for _, listener := range unique {
		listener.MarkDirty()
	}
}

// Untracked runs fn without tracking signal reads as dependencies.
// For single reads, Signal.Peek is clearer.
func Untracked(fn func()) {
	old := setCurrentListener(nil)
	defer setCurrentListener(old)
	fn()
}

// UntrackedGet reads a signal without creating a dependency.
func UntrackedGet[T any](s *Signal[T]) T {
	return s.Peek()
}
