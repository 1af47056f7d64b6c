// Package sift provides declarative filter state management: a typed
// filter schema, URL and storage synchronization, debounced fetch
// orchestration and undo/redo history behind one engine.
//
// This is the recommended import for most applications:
//
//	import "github.com/sift-dev/sift"
//
// Usage:
//
//	cfg := sift.DefaultConfig()
//	cfg.Fields = []sift.Field{
//	    {Key: "search", Kind: sift.KindString},
//	    {Key: "category", Kind: sift.KindString, Default: "all"},
//	}
//	cfg.URL.Navigator = nav
//	cfg.URL.Enabled = true
//
//	products, err := sift.New(cfg, sift.FetchFunc[[]Product](loadProducts))
//	if err != nil {
//	    return err
//	}
//	defer products.Close()
//
//	products.Set("search", "laptop")
//	rows := products.Data()
package sift

import (
	"github.com/sift-dev/sift/pkg/codec"
	"github.com/sift-dev/sift/pkg/fetch"
	"github.com/sift-dev/sift/pkg/filter"
	"github.com/sift-dev/sift/pkg/reactive"
	"github.com/sift-dev/sift/pkg/storage"
	"github.com/sift-dev/sift/pkg/urlsync"
)

// =============================================================================
// Filter schema (re-export from pkg/filter)
// =============================================================================

// Values is one immutable filter snapshot, keyed by filter name.
type Values = filter.Values

// Field declares one filter: its key, kind, default, and optional
// validation, transform and dependency hooks.
type Field = filter.Field

// Kind is a filter's declared value type.
type Kind = filter.Kind

// File is the metadata-only representation of file filter values.
type File = filter.File

// Schema is a validated, order-preserving field collection.
type Schema = filter.Schema

// Origin reports which source produced the current filter state.
type Origin = filter.Origin

// DependencyFunc computes a derived value from the full snapshot just
// before it is handed to the fetcher.
type DependencyFunc = filter.DependencyFunc

// Filter kinds.
const (
	KindString = filter.KindString
	KindNumber = filter.KindNumber
	KindBool   = filter.KindBool
	KindDate   = filter.KindDate
	KindFile   = filter.KindFile
)

// Filter state origins.
const (
	OriginNone    = filter.OriginNone
	OriginDefault = filter.OriginDefault
	OriginStorage = filter.OriginStorage
	OriginURL     = filter.OriginURL
)

// NewSchema validates the field declarations, including a cycle check
// over cross-field dependencies.
func NewSchema(fields []Field) (*Schema, error) {
	return filter.NewSchema(fields)
}

// MustSchema is NewSchema that panics on invalid declarations. For
// package-level schemas known correct at compile time.
func MustSchema(fields []Field) *Schema {
	return filter.MustSchema(fields)
}

// KindOf reports the kind a raw value would be stored under.
var KindOf = filter.KindOf

// =============================================================================
// Fetching (re-export from pkg/fetch)
// =============================================================================

// Fetcher loads results for a filter snapshot.
type Fetcher[T any] = fetch.Fetcher[T]

// FetchFunc adapts a plain function to a fetcher.
//
// Example:
//
//	sift.FetchFunc[[]Product](func(ctx context.Context, values sift.Values) ([]Product, error) {
//	    return store.Search(ctx, values)
//	})
type FetchFunc[T any] = fetch.Func[T]

// Retry is the fetch retry policy.
type Retry = fetch.Retry

// Reason says why a fetch was prevented.
type Reason = fetch.Reason

// FetchState is the orchestrator's bookkeeping record.
type FetchState = fetch.State

// Metrics instruments fetch outcomes with Prometheus collectors.
type Metrics = fetch.Metrics

// Fetch prevention reasons.
const (
	ReasonEmpty     = fetch.ReasonEmpty
	ReasonPredicate = fetch.ReasonPredicate
)

// DefaultDebounce is the fetch debounce window used when the
// configuration leaves it zero.
const DefaultDebounce = fetch.DefaultDebounce

// NewMetrics builds fetch metrics collectors.
var NewMetrics = fetch.NewMetrics

// =============================================================================
// URL synchronization (re-export from pkg/urlsync)
// =============================================================================

// Navigator is the history surface URL synchronization writes to.
type Navigator = urlsync.Navigator

// Mode determines how a URL update lands in history.
type Mode = urlsync.Mode

// URL history modes.
const (
	ModePush    = urlsync.ModePush
	ModeReplace = urlsync.ModeReplace
)

// NewMemoryNavigator creates an in-process navigator with its own history
// stack. The standard navigator for tests and headless use.
var NewMemoryNavigator = urlsync.NewMemory

// =============================================================================
// Storage (re-export from pkg/storage)
// =============================================================================

// Adapter persists filter records under string keys.
type Adapter = storage.Adapter

// SyncAdapter is an Adapter with a synchronous read for hydration.
type SyncAdapter = storage.SyncAdapter

// Record is the versioned persistence envelope.
type Record = storage.Record

// Migration upgrades records written by older schema versions.
type Migration = storage.Migration

// NewMemoryStorage creates an in-memory adapter.
var NewMemoryStorage = storage.NewMemory

// =============================================================================
// Serialization (re-export from pkg/codec)
// =============================================================================

// EncodeFilters serializes a snapshot: Base64 JSON when encoded is true,
// a plain query string when false.
var EncodeFilters = codec.Encode

// DecodeFilters parses a payload produced by EncodeFilters. A nil schema
// falls back to heuristic typing.
var DecodeFilters = codec.Decode

// =============================================================================
// Reactive primitives (re-export from pkg/reactive)
// =============================================================================

// Signal is a reactive value container.
type Signal[T any] = reactive.Signal[T]

// Memo is a cached computation over signals.
type Memo[T any] = reactive.Memo[T]

// Effect is a side effect re-run when its tracked signals change.
type Effect = reactive.Effect

// Cleanup runs before an effect re-runs and when it is disposed.
type Cleanup = reactive.Cleanup

// NewSignal creates a reactive signal.
//
// Example:
//
//	page := sift.NewSignal(1)
//	page.Set(2)
//	n := page.Get() // 2
func NewSignal[T any](initial T) *Signal[T] {
	return reactive.NewSignal(initial)
}

// NewMemo creates a computed value that tracks its dependencies.
func NewMemo[T any](compute func() T) *Memo[T] {
	return reactive.NewMemo(compute)
}

// NewEffect registers a side effect that re-runs when the signals it
// reads change.
//
// Example:
//
//	sift.NewEffect(func() sift.Cleanup {
//	    log.Printf("filters: %v", engine.Values())
//	    return nil
//	})
var NewEffect = reactive.NewEffect

// Batch coalesces signal writes so listeners fire once per batch.
var Batch = reactive.Batch

// Untracked runs fn without subscribing the current listener.
var Untracked = reactive.Untracked
