// Package fetch runs the data side of a filter set: it turns a stream of
// filter snapshots into collaborator calls, with debouncing, gating,
// caching, retries and per-field dependency resolution between the two.
//
// The Orchestrator is the entry point. It owns three reactive signals
// (data, error, loading) plus a State record; callers read those from
// effects or memos and feed new snapshots in through Request or Refetch.
package fetch

import (
	"context"

	"github.com/sift-dev/sift/pkg/filter"
)

// Fetcher loads data for a filter snapshot. Implementations must be safe
// for concurrent use; the orchestrator may overlap calls when a stale run
// is still in flight.
type Fetcher[T any] interface {
	Fetch(ctx context.Context, values filter.Values) (T, error)
}

// Func adapts a plain function to the Fetcher interface.
type Func[T any] func(ctx context.Context, values filter.Values) (T, error)

func (f Func[T]) Fetch(ctx context.Context, values filter.Values) (T, error) {
	return f(ctx, values)
}
