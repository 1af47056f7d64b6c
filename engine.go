package sift

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"

	sifterrors "github.com/sift-dev/sift/internal/errors"
	"github.com/sift-dev/sift/pkg/codec"
	"github.com/sift-dev/sift/pkg/fetch"
	"github.com/sift-dev/sift/pkg/filter"
	"github.com/sift-dev/sift/pkg/history"
	"github.com/sift-dev/sift/pkg/reactive"
	"github.com/sift-dev/sift/pkg/storage"
	"github.com/sift-dev/sift/pkg/urlsync"
)

// ErrClosed is returned by operations on a closed engine.
var ErrClosed = errors.New("sift: engine is closed")

// Engine reconciles filter state across its three sources (URL, storage,
// defaults) and drives fetching from it. One engine owns one filter set:
// its values, their provenance, per-field invalid flags, an undo/redo
// history, and a fetch orchestrator for results of type T.
//
// Every mutation walks the same path: coerce and validate the input, then
// in one reactive batch merge a new immutable snapshot, stamp its origin
// and record history, then flush the engine's effects. The sync effect writes
// the URL and the storage record from that single snapshot; the trigger
// effect hands it to the orchestrator, which debounces, gates, caches and
// retries before committing data or error.
//
// Engines are safe for concurrent use. Operations serialize on an internal
// mutex; reads go through signals and may happen from any goroutine,
// including inside effects and memos, where they subscribe the caller.
type Engine[T any] struct {
	cfg    Config
	schema *filter.Schema
	log    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	owner  *reactive.Owner

	values  *reactive.Signal[filter.Values]
	origin  *reactive.Signal[filter.Origin]
	invalid *reactive.Signal[map[string]bool]
	deps    *reactive.Signal[[]any]

	// baseline is the resolved default state (schema defaults overlaid
	// with Config.Initial); Reset returns to it.
	baseline filter.Values

	history *history.Tracker[filter.Values]
	orch    *fetch.Orchestrator[T]

	params urlsync.Params

	// mu serializes engine operations so the sync and trigger effects
	// always observe one consistent snapshot per change.
	mu sync.Mutex

	// pulling is true while a navigation event is being applied, so the
	// sync effect does not echo the pulled state back out.
	pulling bool

	closed atomic.Bool
}

// New creates an engine. The fetcher is required; configuration problems
// (schema errors, URL sync without a navigator) surface here as coded
// errors, before any engine work happens.
func New[T any](cfg Config, fetcher fetch.Fetcher[T]) (*Engine[T], error) {
	return NewWith(cfg, fetcher, Options[T]{})
}

// NewWith is New with the result-typed options.
func NewWith[T any](cfg Config, fetcher fetch.Fetcher[T], opts Options[T]) (*Engine[T], error) {
	cfg = cfg.normalize()

	if fetcher == nil {
		return nil, sifterrors.New("E005").
			WithDetail("An engine needs a fetcher to drive.").
			WithSuggestion("Pass a fetch.Fetcher, e.g. fetch.Func or a pkg/source fetcher")
	}
	if cfg.URL.Enabled && cfg.URL.Navigator == nil {
		return nil, sifterrors.New("E005").
			WithDetail("URL synchronization is enabled but no navigator is configured.").
			WithSuggestion("Set Config.URL.Navigator (urlsync.NewMemory for tests) or disable Config.URL.Enabled")
	}

	schema, err := filter.NewSchema(cfg.Fields)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine[T]{
		cfg:    cfg,
		schema: schema,
		log:    cfg.Logger,
		ctx:    ctx,
		cancel: cancel,
		owner:  reactive.NewOwner(nil),
	}

	keys := make([]string, 0, schema.Len())
	for _, f := range schema.Fields() {
		keys = append(keys, f.Key)
	}
	e.params = urlsync.Params{
		Param:     cfg.URL.Param,
		Namespace: cfg.URL.Namespace,
		Keys:      keys,
		Encoded:   cfg.URL.Encoded,
	}

	baseline := schema.Defaults().Merge(cfg.Initial)
	baseline, clean := schema.CoerceAll(baseline)
	if !clean {
		e.log.Warn("dropping initial values that do not match their declared kinds")
	}
	e.baseline = baseline

	initial, origin := e.resolveInitial()

	e.values = reactive.NewSignal(initial).WithEquals(filter.Values.Equal)
	e.origin = reactive.NewSignal(origin)
	e.invalid = reactive.NewSignal(map[string]bool{})
	e.deps = reactive.NewSignal[[]any](nil)
	e.history = history.NewTracker(initial, filter.Values.Equal)

	orch := fetch.New(ctx, schema, fetcher).
		FetchOnEmpty(cfg.Fetch.FetchOnEmpty).
		RetryPolicy(cfg.Fetch.Retry).
		Logger(e.log)
	if cfg.Fetch.Debounce < 0 {
		orch.Debounce(0)
	} else {
		orch.Debounce(cfg.Fetch.Debounce)
	}
	if cfg.Fetch.CacheTimeout > 0 {
		orch.CacheFor(cfg.Fetch.CacheTimeout)
	}
	if len(cfg.Fetch.Required) > 0 {
		orch.Require(cfg.Fetch.Required...)
	}
	if cfg.Fetch.ShouldFetch != nil {
		orch.ShouldFetch(cfg.Fetch.ShouldFetch)
	}
	if cfg.Fetch.BeforeFetch != nil {
		orch.BeforeFetch(cfg.Fetch.BeforeFetch)
	}
	if cfg.Fetch.OnPrevented != nil {
		orch.OnPrevented(cfg.Fetch.OnPrevented)
	}
	if cfg.Fetch.OnMissingRequired != nil {
		orch.OnMissingRequired(cfg.Fetch.OnMissingRequired)
	}
	if cfg.Fetch.OnError != nil {
		orch.OnError(cfg.Fetch.OnError)
	}
	if cfg.Fetch.Metrics != nil {
		orch.Meter(cfg.Fetch.Metrics)
	}
	if cfg.Fetch.Tracer != nil {
		orch.TraceWith(cfg.Fetch.Tracer)
	}
	if opts.Transform != nil {
		orch.TransformOutput(opts.Transform)
	}
	if opts.OnSuccess != nil {
		orch.OnSuccess(opts.OnSuccess)
	}
	e.orch = orch

	reactive.WithOwner(e.owner, func() {
		e.startSyncEffect()
		e.startTriggerEffect()
	})

	if cfg.URL.Enabled {
		remove := cfg.URL.Navigator.Listen(func(q url.Values) {
			e.pull(q)
		})
		e.owner.OnCleanup(remove)
	}

	return e, nil
}

// resolveInitial applies the hydration precedence: URL, then storage, then
// the baseline defaults. First non-empty source wins and stamps the origin.
func (e *Engine[T]) resolveInitial() (filter.Values, filter.Origin) {
	if e.cfg.URL.Enabled {
		if payload, ok := e.params.Read(e.cfg.URL.Navigator.Query()); ok {
			vals, err := codec.Decode(payload, e.cfg.URL.Encoded, e.schema)
			if err != nil {
				e.log.Warn("ignoring undecodable URL filter payload", "error", err)
			} else if !vals.IsEmpty() {
				return vals, filter.OriginURL
			}
		}
	}

	if vals, ok := e.loadStored(); ok && !vals.IsEmpty() {
		return vals, filter.OriginStorage
	}

	if !e.baseline.IsEmpty() {
		return e.baseline.Clone(), filter.OriginDefault
	}
	return filter.Values{}, filter.OriginNone
}

// loadStored reads, migrates and decodes the persisted record. The
// adapter's synchronous read is preferred so engine construction does not
// depend on storage latency handling.
func (e *Engine[T]) loadStored() (filter.Values, bool) {
	adapter := e.cfg.Storage.Adapter
	if adapter == nil {
		return nil, false
	}
	key := e.cfg.storageKey()

	var raw string
	var ok bool
	if sa, isSync := adapter.(storage.SyncAdapter); isSync {
		raw, ok = sa.GetItemSync(key)
	} else {
		var err error
		raw, ok, err = adapter.GetItem(e.ctx, key)
		if err != nil {
			e.log.Warn("storage read failed", "key", key, "error", err)
			return nil, false
		}
	}
	if !ok {
		return nil, false
	}

	rec, err := storage.DecodeRecord(raw)
	if err != nil {
		e.log.Warn("ignoring corrupt storage record", "key", key, "error", err)
		return nil, false
	}
	rec = storage.Migrate(rec, e.cfg.Storage.Version, e.cfg.Storage.Migrations)
	return rec.Values(e.schema), true
}

// startSyncEffect installs the push half of the synchronization bridge.
// The first run only establishes tracking: construction already left the
// URL and storage consistent with whichever source won hydration, and
// echoing that state back out would push duplicate history entries.
func (e *Engine[T]) startSyncEffect() {
	first := true
	reactive.NewEffect(func() reactive.Cleanup {
		snapshot := e.values.Get()
		if first {
			first = false
			return nil
		}
		if e.pulling {
			return nil
		}
		origin := e.origin.Peek()
		e.writeURL(snapshot)
		e.writeStorage(snapshot, origin)
		return nil
	})
}

// startTriggerEffect installs the fetch trigger: every values change and
// every change of the external dependency slice schedules a debounced
// orchestrator pass. The first run fires only when AutoFetch is on.
func (e *Engine[T]) startTriggerEffect() {
	first := true
	reactive.NewEffect(func() reactive.Cleanup {
		snapshot := e.values.Get()
		e.deps.Get()
		if first {
			first = false
			if !e.cfg.Fetch.AutoFetch {
				return nil
			}
		}
		e.orch.Request(snapshot, e.origin.Peek())
		return nil
	})
}

// writeURL serializes the snapshot into the navigator's query. An empty
// payload removes the filter parameters instead of writing an empty blob,
// and a write that would not change the query is skipped entirely.
func (e *Engine[T]) writeURL(snapshot filter.Values) {
	if !e.cfg.URL.Enabled {
		return
	}

	payload, err := codec.Encode(snapshot, e.cfg.URL.Encoded)
	if err != nil {
		// Unencodable snapshots clear the URL state rather than fail the
		// operation; the values signal still holds them.
		e.log.Warn("filter snapshot not encodable, clearing URL state", "error", err)
		payload = ""
	}

	current := e.cfg.URL.Navigator.Query()
	base := current
	if !e.cfg.URL.MergeParams {
		base = url.Values{}
	}
	next := e.params.Write(base, payload)
	if next.Encode() == current.Encode() {
		return
	}
	e.cfg.URL.Navigator.Navigate(next, e.cfg.URL.Mode)
}

// writeStorage persists the snapshot. URL-sourced snapshots are skipped:
// the URL owns them, and writing them back would make the two sources
// fight. An empty snapshot removes the record.
func (e *Engine[T]) writeStorage(snapshot filter.Values, origin filter.Origin) {
	adapter := e.cfg.Storage.Adapter
	if adapter == nil || origin == filter.OriginURL {
		return
	}
	key := e.cfg.storageKey()

	if snapshot.IsEmpty() {
		if err := adapter.RemoveItem(e.ctx, key); err != nil {
			e.log.Warn("storage remove failed", "key", key, "error", err)
		}
		return
	}

	rec := storage.NewRecord(snapshot, e.cfg.Storage.Version)
	raw, err := rec.Encode()
	if err != nil {
		e.log.Warn("storage record not encodable", "key", key, "error", err)
		return
	}
	if err := adapter.SetItem(e.ctx, key, raw); err != nil {
		e.log.Warn("storage write failed", "key", key, "error", err)
	}
}

// pull applies an externally triggered navigation: re-derive values from
// the URL when filter state is present, fall back to storage when not,
// and leave state unchanged when neither has anything. The sync effect
// stays quiet for the duration so the pulled state is not echoed back.
func (e *Engine[T]) pull(q url.Values) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return
	}

	var vals filter.Values
	origin := filter.OriginURL

	if payload, ok := e.params.Read(q); ok {
		decoded, err := codec.Decode(payload, e.cfg.URL.Encoded, e.schema)
		if err != nil {
			// Recovered nothing; indistinguishable from genuinely empty.
			e.log.Warn("undecodable URL payload on navigation", "error", err)
			decoded = filter.Values{}
		}
		vals = decoded
	} else if stored, ok := e.loadStored(); ok {
		vals = stored
		origin = filter.OriginStorage
	} else {
		return
	}

	e.pulling = true
	defer func() { e.pulling = false }()

	reactive.Batch(func() {
		e.values.Set(vals)
		e.origin.Set(origin)
		e.history.Push(vals)
	})
	e.owner.Flush()
}

// writeOrigin is the provenance stamped on caller-initiated changes:
// URL when URL sync is on, storage otherwise.
func (e *Engine[T]) writeOrigin() filter.Origin {
	if e.cfg.URL.Enabled {
		return filter.OriginURL
	}
	return filter.OriginStorage
}

// Set updates one filter. The raw value is coerced to the field's declared
// kind (an empty string on a number, bool or date field clears it), vetted
// by the field's validator and rewritten by its transform. A coercion or
// validation failure flags the field invalid, keeps the previous value and
// returns the error. Keys not declared in the schema are stored as given.
func (e *Engine[T]) Set(key string, raw any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return ErrClosed
	}

	value := raw
	if f, declared := e.schema.Field(key); declared {
		coerced, err := filter.Coerce(f, raw)
		if err != nil {
			e.setInvalid(key, true)
			return err
		}
		if coerced != nil && f.Validate != nil {
			if verr := f.Validate(coerced); verr != nil {
				e.setInvalid(key, true)
				return sifterrors.New("E080").
					WithMessagef("field %q rejected the proposed value", key).
					Wrap(verr)
			}
		}
		if coerced != nil && f.Transform != nil {
			coerced = f.Transform(coerced)
		}
		value = coerced
	}

	snapshot := e.values.Peek()
	var next filter.Values
	if value == nil {
		next = snapshot.Without(key)
	} else {
		next = snapshot.With(key, value)
	}

	origin := e.writeOrigin()
	reactive.Batch(func() {
		e.values.Set(next)
		e.origin.Set(origin)
		e.history.Push(next)
		e.setInvalid(key, false)
	})
	e.owner.Flush()
	return nil
}

// Reset recomputes the state from scratch: Config.OnReset when provided,
// otherwise the baseline defaults overlaid with Config.ResetValues. The
// result is stamped with default provenance, so both the URL and storage
// are rewritten, or cleared when the result is empty.
func (e *Engine[T]) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return
	}

	var next filter.Values
	if e.cfg.OnReset != nil {
		next = e.cfg.OnReset()
	} else {
		next = e.baseline.Merge(e.cfg.ResetValues)
	}
	next, _ = e.schema.CoerceAll(next)

	reactive.Batch(func() {
		e.values.Set(next)
		e.origin.Set(filter.OriginDefault)
		e.history.Push(next)
		e.invalid.Set(map[string]bool{})
	})
	e.owner.Flush()
}

// exportPayload is the import/export envelope: the codec string wrapped in
// a stable JSON shape.
type exportPayload struct {
	Filters string `json:"filters"`
}

// Export renders the current snapshot as a portable payload:
// {"filters":"<codec string>"}, encoded per the engine's URL settings.
func (e *Engine[T]) Export() (string, error) {
	payload, err := codec.Encode(e.values.Peek(), e.cfg.URL.Encoded)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(exportPayload{Filters: payload})
	if err != nil {
		return "", sifterrors.FromError(err, "E020")
	}
	return string(raw), nil
}

// Import replaces the current snapshot with a payload produced by Export
// (or by another engine with the same encoding settings). The decoded
// values are applied like a regular update: typed through the schema,
// recorded in history, synchronized out.
func (e *Engine[T]) Import(payload string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return ErrClosed
	}

	var p exportPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return sifterrors.FromError(err, "E021")
	}
	vals, err := codec.Decode(p.Filters, e.cfg.URL.Encoded, e.schema)
	if err != nil {
		return err
	}

	origin := e.writeOrigin()
	reactive.Batch(func() {
		e.values.Set(vals)
		e.origin.Set(origin)
		e.history.Push(vals)
	})
	e.owner.Flush()
	return nil
}

// Undo restores the previous snapshot and replays it through the full
// synchronization path, so the URL and storage match the restored state.
// Returns false when there is nothing to undo.
func (e *Engine[T]) Undo() bool {
	return e.travel(func() (filter.Values, bool) { return e.history.Undo() })
}

// Redo restores the next snapshot after an undo. Returns false when there
// is nothing to redo.
func (e *Engine[T]) Redo() bool {
	return e.travel(func() (filter.Values, bool) { return e.history.Redo() })
}

func (e *Engine[T]) travel(move func() (filter.Values, bool)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return false
	}

	restored, ok := move()
	if !ok {
		return false
	}

	// Default provenance: a restored snapshot belongs to neither the URL
	// nor storage yet, and both writers need to run.
	reactive.Batch(func() {
		e.values.Set(restored)
		e.origin.Set(filter.OriginDefault)
	})
	e.owner.Flush()
	return true
}

// SetDeps replaces the external dependency slice. A deep change schedules
// a debounced fetch exactly like a filter change; setting an equal slice
// is a no-op.
func (e *Engine[T]) SetDeps(deps ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return
	}
	e.deps.Set(deps)
	e.owner.Flush()
}

// Values returns a copy of the current snapshot and subscribes the current
// listener, if any.
func (e *Engine[T]) Values() filter.Values {
	return e.values.Get().Clone()
}

// Value returns one filter's current value.
func (e *Engine[T]) Value(key string) (any, bool) {
	v, ok := e.values.Get()[key]
	return v, ok
}

// Origin reports where the current snapshot most recently came from.
func (e *Engine[T]) Origin() filter.Origin {
	return e.origin.Get()
}

// Invalid reports whether the field's last proposed value was rejected.
// The flag clears on the next accepted value for the key and on Reset.
func (e *Engine[T]) Invalid(key string) bool {
	return e.invalid.Get()[key]
}

// Data returns the last committed fetch result.
func (e *Engine[T]) Data() T { return e.orch.Data() }

// Err returns the last fetch error, nil after a successful run.
func (e *Engine[T]) Err() error { return e.orch.Err() }

// Loading reports whether a fetcher call is in flight.
func (e *Engine[T]) Loading() bool { return e.orch.Loading() }

// FetchState returns the orchestrator's bookkeeping record.
func (e *Engine[T]) FetchState() fetch.State { return e.orch.State() }

// CanUndo reports whether an undo step exists. Reactive read.
func (e *Engine[T]) CanUndo() bool { return e.history.CanUndo() }

// CanRedo reports whether a redo step exists. Reactive read.
func (e *Engine[T]) CanRedo() bool { return e.history.CanRedo() }

// History returns the undo/redo stacks.
func (e *Engine[T]) History() history.State[filter.Values] {
	return e.history.State()
}

// Schema returns the validated schema the engine was built with.
func (e *Engine[T]) Schema() *filter.Schema { return e.schema }

// Refetch fetches now: no debounce window, no cache. Pending debounced
// triggers are superseded.
func (e *Engine[T]) Refetch() {
	if e.closed.Load() {
		return
	}
	e.orch.Refetch(e.values.Peek(), e.origin.Peek())
}

// Flush runs any pending debounced fetch immediately instead of waiting
// out the window.
func (e *Engine[T]) Flush() {
	e.orch.Flush()
}

// Invalidate drops all cached fetch results.
func (e *Engine[T]) Invalidate() int {
	return e.orch.Invalidate()
}

// InvalidateMatching drops cached results whose canonical payload matches
// the glob pattern.
func (e *Engine[T]) InvalidateMatching(pattern string) (int, error) {
	return e.orch.InvalidateMatching(pattern)
}

// Close shuts the engine down: the navigator listener is removed, effects
// and debounce timers are disposed, and in-flight fetches are cancelled;
// results settling afterwards are discarded. Close is idempotent, and all
// operations on a closed engine are no-ops.
func (e *Engine[T]) Close() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.orch.Close()
	e.owner.Dispose()
	e.cancel()
}

// setInvalid updates one field's invalid flag, copy-on-write.
func (e *Engine[T]) setInvalid(key string, invalid bool) {
	e.invalid.Update(func(m map[string]bool) map[string]bool {
		if m[key] == invalid {
			return m
		}
		next := make(map[string]bool, len(m)+1)
		for k, v := range m {
			next[k] = v
		}
		if invalid {
			next[key] = true
		} else {
			delete(next, key)
		}
		return next
	})
}
