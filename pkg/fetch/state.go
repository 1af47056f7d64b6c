package fetch

import "time"

// Reason tells an OnPrevented hook which gate blocked the run.
type Reason string

const (
	// ReasonEmpty means the snapshot was empty and empty fetches are off.
	ReasonEmpty Reason = "empty"

	// ReasonPredicate means the ShouldFetch predicate declined the run.
	ReasonPredicate Reason = "predicate"
)

// State is the bookkeeping record the orchestrator maintains alongside the
// data signal. It changes on every completed or blocked run and is exposed
// as a signal so UIs can render "showing cached results", "3 fetches
// skipped" or "category is required" without polling.
type State struct {
	// InitialFetch is true until the first run completes or is blocked.
	InitialFetch bool

	// LastFetchedAt is when the current data was obtained from the
	// collaborator. Cache hits keep the original fetch time.
	LastFetchedAt time.Time

	// PreventedFetches counts runs blocked by the empty gate or the
	// predicate. Missing required filters do not increment it.
	PreventedFetches int

	// LastPreventedAt is when a gate last blocked a run.
	LastPreventedAt time.Time

	// MissingRequired lists required keys absent from the last snapshot
	// that reached the required check, in declared order. Empty once they
	// are all present again.
	MissingRequired []string
}
