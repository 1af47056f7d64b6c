package fetch

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	sifterrors "github.com/sift-dev/sift/internal/errors"
	"github.com/sift-dev/sift/pkg/filter"
	"github.com/sift-dev/sift/pkg/reactive"
)

// DefaultDebounce is the trailing debounce window applied to Request calls
// unless Debounce overrides it.
const DefaultDebounce = 300 * time.Millisecond

// Orchestrator drives a Fetcher from filter snapshots. Every run walks the
// same pipeline:
//
//  1. empty snapshot check (FetchOnEmpty)
//  2. required filters check (Require)
//  3. ShouldFetch predicate; a predicate error counts as false
//  4. BeforeFetch payload transform; an error here fails the run
//  5. cache lookup keyed by the transformed payload
//  6. per-field dependency resolution, merged into the payload
//  7. the collaborator call, under the retry policy
//  8. output transform, cache store, data commit
//
// Runs are generation-numbered. A run that finishes after a newer one
// started discards its result, so out-of-order responses never clobber
// fresher data. The loading flag is cleared only by the newest run.
//
// Configure with the chainable methods before the first Request; they are
// not synchronized against running fetches.
type Orchestrator[T any] struct {
	ctx     context.Context
	schema  *filter.Schema
	fetcher Fetcher[T]

	data    *reactive.Signal[T]
	err     *reactive.Signal[error]
	loading *reactive.BoolSignal
	state   *reactive.Signal[State]

	skipEmpty    bool
	required     []string
	shouldFetch  func(filter.Values) (bool, error)
	beforeFetch  func(context.Context, filter.Values) (filter.Values, error)
	transformOut func(T) T

	onPrevented       func(Reason)
	onMissingRequired func([]string)
	onSuccess         func(T)
	onError           func(error)

	retry Retry
	cache *cache[T]

	debounce   time.Duration
	timerMu    sync.Mutex
	timer      *time.Timer
	pending    runRequest
	hasPending bool

	generation atomic.Uint64
	closed     atomic.Bool

	log     *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

type runRequest struct {
	values    filter.Values
	origin    filter.Origin
	skipCache bool
}

// New creates an orchestrator for the given schema and fetcher. The context
// bounds every collaborator call; cancel it to abort in-flight fetches.
// Caching is off and the debounce window is DefaultDebounce until
// configured otherwise.
func New[T any](ctx context.Context, schema *filter.Schema, fetcher Fetcher[T]) *Orchestrator[T] {
	if fetcher == nil {
		panic("sift/fetch: nil fetcher")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var zero T
	return &Orchestrator[T]{
		ctx:      ctx,
		schema:   schema,
		fetcher:  fetcher,
		data:     reactive.NewSignal(zero),
		err:      reactive.NewSignal[error](nil),
		loading:  reactive.NewBoolSignal(false),
		state:    reactive.NewSignal(State{InitialFetch: true}),
		debounce: DefaultDebounce,
		cache:    newCache[T](0),
		log:      slog.Default(),
	}
}

// Debounce sets the trailing debounce window for Request. Zero or negative
// runs every Request synchronously.
func (o *Orchestrator[T]) Debounce(d time.Duration) *Orchestrator[T] {
	o.debounce = d
	return o
}

// CacheFor enables the result cache with the given TTL. Zero disables it.
func (o *Orchestrator[T]) CacheFor(ttl time.Duration) *Orchestrator[T] {
	o.cache = newCache[T](ttl)
	return o
}

// FetchOnEmpty controls whether an empty snapshot may fetch. It defaults to
// true; pass false to block empty fetches and count them as prevented.
func (o *Orchestrator[T]) FetchOnEmpty(allow bool) *Orchestrator[T] {
	o.skipEmpty = !allow
	return o
}

// Require lists keys that must be present and non-empty before any fetch.
// A run missing one is blocked and the missing keys are published in the
// state, in the order given here.
func (o *Orchestrator[T]) Require(keys ...string) *Orchestrator[T] {
	o.required = append(o.required, keys...)
	return o
}

// ShouldFetch installs a predicate consulted before each fetch. Returning
// false blocks the run; an error is treated as false, not surfaced.
func (o *Orchestrator[T]) ShouldFetch(fn func(filter.Values) (bool, error)) *Orchestrator[T] {
	o.shouldFetch = fn
	return o
}

// BeforeFetch installs a payload transform that runs after the gates and
// before the cache lookup. An error here fails the run; the error signal is
// set and existing data is kept.
func (o *Orchestrator[T]) BeforeFetch(fn func(context.Context, filter.Values) (filter.Values, error)) *Orchestrator[T] {
	o.beforeFetch = fn
	return o
}

// TransformOutput installs a transform applied to every fetched result
// before it is cached and committed.
func (o *Orchestrator[T]) TransformOutput(fn func(T) T) *Orchestrator[T] {
	o.transformOut = fn
	return o
}

// RetryPolicy sets how failing collaborator calls are retried.
func (o *Orchestrator[T]) RetryPolicy(p Retry) *Orchestrator[T] {
	o.retry = p
	return o
}

// OnPrevented is called whenever the empty gate or the predicate blocks a
// run, with the reason.
func (o *Orchestrator[T]) OnPrevented(fn func(Reason)) *Orchestrator[T] {
	o.onPrevented = fn
	return o
}

// OnMissingRequired is called when required filters block a run, with the
// missing keys.
func (o *Orchestrator[T]) OnMissingRequired(fn func([]string)) *Orchestrator[T] {
	o.onMissingRequired = fn
	return o
}

// OnSuccess is called after each successful collaborator call with the
// transformed result. Cache hits do not fire it.
func (o *Orchestrator[T]) OnSuccess(fn func(T)) *Orchestrator[T] {
	o.onSuccess = fn
	return o
}

// OnError is called whenever a run fails.
func (o *Orchestrator[T]) OnError(fn func(error)) *Orchestrator[T] {
	o.onError = fn
	return o
}

// Logger replaces the default slog logger.
func (o *Orchestrator[T]) Logger(l *slog.Logger) *Orchestrator[T] {
	if l != nil {
		o.log = l
	}
	return o
}

// Meter attaches Prometheus instruments. Without it no metrics are
// recorded.
func (o *Orchestrator[T]) Meter(m *Metrics) *Orchestrator[T] {
	o.metrics = m
	return o
}

// Trace enables tracing with a tracer from the global OpenTelemetry
// provider. An empty name uses the sift default.
func (o *Orchestrator[T]) Trace(name string) *Orchestrator[T] {
	if name == "" {
		name = defaultTracerName
	}
	o.tracer = otel.Tracer(name)
	return o
}

// TraceWith enables tracing with an explicit tracer.
func (o *Orchestrator[T]) TraceWith(t trace.Tracer) *Orchestrator[T] {
	o.tracer = t
	return o
}

// Data returns the last committed result and subscribes the current
// listener.
func (o *Orchestrator[T]) Data() T { return o.data.Get() }

// Err returns the last run error, nil after a successful run.
func (o *Orchestrator[T]) Err() error { return o.err.Get() }

// Loading reports whether a collaborator call is in flight.
func (o *Orchestrator[T]) Loading() bool { return o.loading.Get() }

// State returns the bookkeeping record.
func (o *Orchestrator[T]) State() State { return o.state.Get() }

// Signals exposes the raw signals for memo and effect composition.
func (o *Orchestrator[T]) Signals() (data *reactive.Signal[T], err *reactive.Signal[error], loading *reactive.BoolSignal, state *reactive.Signal[State]) {
	return o.data, o.err, o.loading, o.state
}

// Request schedules a run for the snapshot. Calls within the debounce
// window coalesce; only the last snapshot is fetched. With a zero window
// the run happens synchronously before Request returns.
func (o *Orchestrator[T]) Request(values filter.Values, origin filter.Origin) {
	if o.closed.Load() {
		return
	}
	req := runRequest{values: values.Clone(), origin: origin}

	if o.debounce <= 0 {
		o.run(req)
		return
	}

	o.timerMu.Lock()
	o.pending = req
	o.hasPending = true
	if o.timer != nil {
		o.timer.Stop()
	}
	o.timer = time.AfterFunc(o.debounce, o.firePending)
	o.timerMu.Unlock()
}

// Refetch runs immediately, skipping the debounce window and the cache.
// Any pending debounced request is superseded. It blocks until the run
// completes.
func (o *Orchestrator[T]) Refetch(values filter.Values, origin filter.Origin) {
	if o.closed.Load() {
		return
	}
	o.cancelPending()
	o.run(runRequest{values: values.Clone(), origin: origin, skipCache: true})
}

// Flush runs any pending debounced request now instead of waiting out the
// window.
func (o *Orchestrator[T]) Flush() {
	o.timerMu.Lock()
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.timerMu.Unlock()
	o.firePending()
}

// Invalidate drops every cached result and reports how many were held.
func (o *Orchestrator[T]) Invalidate() int {
	return o.cache.clear()
}

// InvalidateMatching drops cached results whose canonical JSON key matches
// the glob pattern, for example `*"category":"books"*`.
func (o *Orchestrator[T]) InvalidateMatching(pattern string) (int, error) {
	return o.cache.clearMatching(pattern)
}

// Close stops the debounce timer and orphans any in-flight run; its result
// will not be committed. Subsequent Request and Refetch calls are ignored.
func (o *Orchestrator[T]) Close() {
	if !o.closed.CompareAndSwap(false, true) {
		return
	}
	o.cancelPending()
	o.generation.Add(1)
}

func (o *Orchestrator[T]) cancelPending() {
	o.timerMu.Lock()
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.hasPending = false
	o.timerMu.Unlock()
}

func (o *Orchestrator[T]) firePending() {
	o.timerMu.Lock()
	req := o.pending
	fire := o.hasPending
	o.hasPending = false
	o.timerMu.Unlock()

	if fire && !o.closed.Load() {
		o.run(req)
	}
}

// run executes one pass of the pipeline. It claims a new generation up
// front, so any older in-flight run becomes stale the moment this one
// starts.
func (o *Orchestrator[T]) run(req runRequest) {
	gen := o.generation.Add(1)
	invocation := uuid.NewString()
	log := o.log.With("invocation", invocation, "origin", req.origin.String())

	ctx, span := o.startSpan(req, invocation)

	if o.skipEmpty && req.values.IsEmpty() {
		o.preventCounted(gen, ReasonEmpty)
		log.Debug("fetch blocked", "reason", ReasonEmpty)
		endSpan(span, "prevented", nil, reasonAttr(ReasonEmpty))
		return
	}

	if missing := o.missingRequired(req.values); len(missing) > 0 {
		o.preventMissing(gen, missing)
		log.Debug("fetch blocked", "missing", missing)
		endSpan(span, "prevented", nil, reasonAttr("missing_required"))
		return
	}

	if o.shouldFetch != nil {
		ok, predErr := o.shouldFetch(req.values)
		if predErr != nil {
			log.Debug("fetch predicate errored", "err", predErr)
			ok = false
		}
		if !ok {
			o.preventCounted(gen, ReasonPredicate)
			log.Debug("fetch blocked", "reason", ReasonPredicate)
			endSpan(span, "prevented", nil, reasonAttr(ReasonPredicate))
			return
		}
	}

	payload := req.values
	if o.beforeFetch != nil {
		transformed, err := o.beforeFetch(ctx, payload)
		if err != nil {
			ferr := sifterrors.FromError(err, "E061")
			o.fail(gen, ferr, 0)
			log.Warn("before-fetch transform failed", "err", err)
			endSpan(span, "error", ferr)
			return
		}
		payload = transformed
	}

	// The cache key is the payload before dependency resolution: two
	// snapshots that agree on the declared filters share an entry even
	// when a dependency derives something volatile.
	key, keyErr := cacheKey(payload)
	if keyErr != nil {
		log.Warn("payload not cacheable", "err", keyErr)
	} else if !req.skipCache {
		if entry, ok := o.cache.get(key); ok {
			o.commitCached(gen, entry)
			log.Debug("cache hit", "stored_at", entry.storedAt)
			endSpan(span, "cache_hit", nil)
			return
		}
	}

	payload, depErr := o.resolveDependencies(ctx, payload)
	if depErr != nil {
		o.fail(gen, depErr, 0)
		log.Warn("dependency resolution failed", "err", depErr)
		endSpan(span, "error", depErr)
		return
	}

	if o.generation.Load() != gen {
		endSpan(span, "superseded", nil)
		return
	}
	o.loading.SetTrue()

	start := time.Now()
	result, attempts, fetchErr := retryFetch(ctx, o.retry, func(ctx context.Context) (T, error) {
		return o.fetcher.Fetch(ctx, payload)
	})
	duration := time.Since(start)
	o.metrics.recordRetries(attempts - 1)

	if fetchErr != nil {
		ferr := sifterrors.FromError(fetchErr, "E060")
		o.fail(gen, ferr, duration)
		log.Warn("fetch failed", "attempts", attempts, "err", fetchErr)
		endSpan(span, "error", ferr, attemptsAttr(attempts))
		return
	}

	if o.transformOut != nil {
		result = o.transformOut(result)
	}
	if keyErr == nil {
		o.cache.put(key, result, req.origin)
	}

	o.commit(gen, result, duration)
	log.Debug("fetch committed", "attempts", attempts, "duration", duration)
	endSpan(span, "success", nil, attemptsAttr(attempts))
}

func (o *Orchestrator[T]) missingRequired(values filter.Values) []string {
	var missing []string
	for _, key := range o.required {
		v, ok := values[key]
		if !ok || v == nil || v == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// resolveDependencies walks declared fields in schema order and runs their
// dependency transforms, keys sorted within each field. Every transform
// sees the payload as merged so far, so later fields can read what earlier
// ones derived; schema construction already rejected cycles.
func (o *Orchestrator[T]) resolveDependencies(ctx context.Context, payload filter.Values) (filter.Values, error) {
	if o.schema == nil {
		return payload, nil
	}

	merged := payload
	cloned := false
	for _, field := range o.schema.Fields() {
		if len(field.Dependencies) == 0 {
			continue
		}
		if !cloned {
			merged = payload.Clone()
			cloned = true
		}

		keys := make([]string, 0, len(field.Dependencies))
		for k := range field.Dependencies {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			v, err := field.Dependencies[k](ctx, merged)
			if err != nil {
				return nil, sifterrors.FromError(err, "E062").
					WithMessagef("dependency %q of field %q failed", k, field.Key)
			}
			merged[k] = v
		}
	}
	return merged, nil
}

// settleLoading clears the loading flag, but only on behalf of the newest
// generation. A stale run leaves the flag to whoever superseded it.
func (o *Orchestrator[T]) settleLoading(gen uint64) {
	if o.generation.Load() == gen {
		o.loading.SetFalse()
	}
}

// preventCounted records a block by the empty gate or the predicate: the
// prevented counter advances and the hook fires.
func (o *Orchestrator[T]) preventCounted(gen uint64, reason Reason) {
	now := time.Now()
	reactive.Batch(func() {
		o.state.Update(func(s State) State {
			s.InitialFetch = false
			s.PreventedFetches++
			s.LastPreventedAt = now
			if reason == ReasonPredicate {
				s.MissingRequired = nil
			}
			return s
		})
		o.settleLoading(gen)
	})
	o.metrics.recordPrevented(string(reason))
	if o.onPrevented != nil {
		o.onPrevented(reason)
	}
}

// preventMissing records a block by the required-filters check. The counter
// does not advance; the missing keys are published instead.
func (o *Orchestrator[T]) preventMissing(gen uint64, missing []string) {
	now := time.Now()
	reactive.Batch(func() {
		o.state.Update(func(s State) State {
			s.InitialFetch = false
			s.LastPreventedAt = now
			s.MissingRequired = missing
			return s
		})
		o.settleLoading(gen)
	})
	o.metrics.recordPrevented("missing_required")
	if o.onMissingRequired != nil {
		o.onMissingRequired(missing)
	}
}

func (o *Orchestrator[T]) fail(gen uint64, err error, duration time.Duration) {
	if o.generation.Load() != gen {
		o.log.Debug("stale failure dropped")
		return
	}
	reactive.Batch(func() {
		o.err.Set(err)
		o.state.Update(func(s State) State {
			s.InitialFetch = false
			s.MissingRequired = nil
			return s
		})
		o.loading.SetFalse()
	})
	o.metrics.recordRun("error", duration)
	o.metrics.recordError(err)
	if o.onError != nil {
		o.onError(err)
	}
}

func (o *Orchestrator[T]) commit(gen uint64, result T, duration time.Duration) {
	if o.generation.Load() != gen {
		o.log.Debug("stale result dropped")
		return
	}
	reactive.Batch(func() {
		o.data.Set(result)
		o.err.Set(nil)
		o.state.Update(func(s State) State {
			s.InitialFetch = false
			s.LastFetchedAt = time.Now()
			s.MissingRequired = nil
			return s
		})
		o.loading.SetFalse()
	})
	o.metrics.recordRun("success", duration)
	if o.onSuccess != nil {
		o.onSuccess(result)
	}
}

// commitCached serves a cache entry. LastFetchedAt keeps the entry's
// original fetch time, and OnSuccess does not fire: no collaborator call
// happened.
func (o *Orchestrator[T]) commitCached(gen uint64, entry cacheEntry[T]) {
	if o.generation.Load() != gen {
		return
	}
	reactive.Batch(func() {
		o.data.Set(entry.data)
		o.err.Set(nil)
		o.state.Update(func(s State) State {
			s.InitialFetch = false
			s.LastFetchedAt = entry.storedAt
			s.MissingRequired = nil
			return s
		})
		o.loading.SetFalse()
	})
	o.metrics.recordRun("cache_hit", 0)
}
