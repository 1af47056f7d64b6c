package sift

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/sift-dev/sift/pkg/fetch"
	"github.com/sift-dev/sift/pkg/filter"
	"github.com/sift-dev/sift/pkg/storage"
	"github.com/sift-dev/sift/pkg/urlsync"
)

// Config is the engine configuration. Start from DefaultConfig and set the
// fields you need:
//
//	cfg := sift.DefaultConfig()
//	cfg.Fields = []sift.Field{
//	    {Key: "search", Kind: sift.KindString},
//	    {Key: "category", Kind: sift.KindString},
//	}
//	cfg.URL.Enabled = true
//	cfg.URL.Navigator = nav
//
// Every collaborator is injected here: navigator, storage adapter, logger,
// metrics and tracer. There are no package-level singletons to configure.
type Config struct {
	// Fields declares the filter schema. Construction validates it:
	// duplicate keys, undeclarable kinds and dependency cycles are fatal.
	Fields []filter.Field

	// Initial overrides the schema defaults for selected keys. Values are
	// coerced to the declared kinds.
	Initial filter.Values

	// ResetValues are overlaid on the initial values by Reset.
	ResetValues filter.Values

	// OnReset, when set, computes the post-reset values itself and
	// ResetValues is ignored.
	OnReset func() filter.Values

	// URL configures query-string synchronization.
	URL URLConfig

	// Storage configures persistence.
	Storage StorageConfig

	// Fetch configures the fetch orchestrator.
	Fetch FetchConfig

	// Logger receives engine diagnostics. nil means slog.Default().
	Logger *slog.Logger
}

// URLConfig configures the URL half of the synchronization bridge.
type URLConfig struct {
	// Enabled turns URL synchronization on. Requires a Navigator.
	Enabled bool

	// Navigator is the history surface the engine reads and writes:
	// urlsync.Memory for tests and headless use, bridge.Bridge for a
	// live browser tab.
	Navigator urlsync.Navigator

	// Param names the query parameter holding the Base64 payload when
	// Encoded is true. Default: "filters".
	Param string

	// Namespace prefixes each filter key in flat mode ("f_search=x").
	// Independent engines sharing one URL should use distinct namespaces;
	// that prefix is the only thing keeping their parameters apart.
	Namespace string

	// Encoded selects the single Base64 JSON parameter over one flat
	// parameter per filter.
	Encoded bool

	// Mode is how writes land in history. ModePush (the default) makes
	// back/forward walk filter states; ModeReplace keeps one entry.
	Mode urlsync.Mode

	// MergeParams keeps unrelated query parameters intact across filter
	// writes. DefaultConfig enables it; when false a write replaces the
	// whole query with just the filter parameters.
	MergeParams bool
}

// StorageConfig configures the persistence half of the bridge.
type StorageConfig struct {
	// Adapter is the persistence capability. nil disables persistence.
	Adapter storage.Adapter

	// Key names the stored record. Default: "filters".
	Key string

	// Prefix namespaces Key, since adapters are process-wide shared
	// resources. Two engines sharing a prefix and key clobber each
	// other's writes; distinct prefixes are the only isolation.
	// Default: "sift:".
	Prefix string

	// Version stamps written records and is the migration target for
	// records written by older releases.
	Version string

	// Migrations upgrade old records at hydration, applied in descending
	// FromVersion order until Version is reached.
	Migrations []storage.Migration
}

// FetchConfig configures when and how the engine fetches. The typed pieces
// of the pipeline (the fetcher itself, result transform, success hook) are
// parameters of New and Options instead, because they carry the result
// type.
type FetchConfig struct {
	// AutoFetch schedules a fetch as soon as the engine starts.
	AutoFetch bool

	// Debounce is the trailing window coalescing fetch triggers.
	// 0 means the 300 ms default; negative disables debouncing, making
	// every trigger fetch synchronously.
	Debounce time.Duration

	// CacheTimeout keeps results for identical payloads this long.
	// 0 disables the cache.
	CacheTimeout time.Duration

	// FetchOnEmpty allows fetching when no filters are set. When false,
	// empty snapshots are blocked and counted as prevented fetches.
	// DefaultConfig enables it.
	FetchOnEmpty bool

	// Required lists filter keys that must be present and non-empty
	// before any fetch happens.
	Required []string

	// ShouldFetch is an extra gate consulted per fetch. Returning false
	// blocks the run; an error counts as false.
	ShouldFetch func(filter.Values) (bool, error)

	// BeforeFetch rewrites the payload sent downstream. An error here
	// fails the fetch.
	BeforeFetch func(context.Context, filter.Values) (filter.Values, error)

	// Retry is the retry policy wrapped around the fetcher.
	Retry fetch.Retry

	// OnPrevented fires when the empty gate or ShouldFetch blocks a run.
	OnPrevented func(fetch.Reason)

	// OnMissingRequired fires when required filters block a run.
	OnMissingRequired func([]string)

	// OnError fires when a run fails (transforms, dependencies, or the
	// fetcher after retries).
	OnError func(error)

	// Metrics attaches Prometheus instruments. nil records nothing.
	Metrics *fetch.Metrics

	// Tracer enables an OpenTelemetry span per fetch run. nil disables
	// tracing.
	Tracer trace.Tracer
}

// Options carries the configuration that depends on the result type.
type Options[T any] struct {
	// Transform is applied to every fetched result before it is cached
	// and committed.
	Transform func(T) T

	// OnSuccess fires after each successful fetcher call with the
	// transformed result. Cache hits do not fire it.
	OnSuccess func(T)
}

// DefaultConfig returns a Config with the defaults most engines want:
// push-mode URL writes under the "filters" parameter that merge with
// foreign query parameters, the "sift:" storage prefix, auto-fetch with a
// 300 ms debounce, and empty fetches allowed.
func DefaultConfig() Config {
	return Config{
		URL: URLConfig{
			Param:       defaultURLParam,
			Mode:        urlsync.ModePush,
			MergeParams: true,
		},
		Storage: StorageConfig{
			Key:    defaultStorageKey,
			Prefix: defaultStoragePrefix,
		},
		Fetch: FetchConfig{
			AutoFetch:    true,
			Debounce:     fetch.DefaultDebounce,
			FetchOnEmpty: true,
		},
	}
}

const (
	defaultURLParam      = "filters"
	defaultStorageKey    = "filters"
	defaultStoragePrefix = "sift:"
)

// normalize fills the zero-value gaps a hand-built Config leaves. Bools
// keep their zero values; DefaultConfig is the way to get the permissive
// defaults.
func (c Config) normalize() Config {
	if c.URL.Param == "" {
		c.URL.Param = defaultURLParam
	}
	if c.Storage.Key == "" {
		c.Storage.Key = defaultStorageKey
	}
	if c.Storage.Prefix == "" {
		c.Storage.Prefix = defaultStoragePrefix
	}
	if c.Fetch.Debounce == 0 {
		c.Fetch.Debounce = fetch.DefaultDebounce
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// storageKey is the namespaced key records are stored under.
func (c Config) storageKey() string {
	return c.Storage.Prefix + c.Storage.Key
}
