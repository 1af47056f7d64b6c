package sift

import (
	"context"
	"net/url"
	"testing"

	"github.com/sift-dev/sift/pkg/storage"
)

func urlConfig(nav Navigator) Config {
	cfg := baseConfig()
	cfg.URL.Enabled = true
	cfg.URL.Encoded = true
	cfg.URL.Navigator = nav
	return cfg
}

func TestEngine_URLSync_WritesEncodedPayload(t *testing.T) {
	nav := NewMemoryNavigator(nil)
	e, _ := newEngine(t, urlConfig(nav))

	if err := e.Set("search", "laptop"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	payload := nav.Query().Get("filters")
	if payload == "" {
		t.Fatal("filters parameter not written")
	}
	decoded, err := DecodeFilters(payload, true, e.Schema())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := decoded["search"]; got != "laptop" {
		t.Fatalf("decoded search = %v, want laptop", got)
	}
}

func TestEngine_URLSync_FlatParams(t *testing.T) {
	nav := NewMemoryNavigator(nil)
	cfg := urlConfig(nav)
	cfg.URL.Encoded = false
	cfg.URL.Namespace = "f"
	e, _ := newEngine(t, cfg)

	if err := e.Set("search", "laptop"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e.Set("count", 3); err != nil {
		t.Fatalf("Set: %v", err)
	}

	q := nav.Query()
	if got := q.Get("f_search"); got != "laptop" {
		t.Fatalf("f_search = %q, want laptop", got)
	}
	if got := q.Get("f_count"); got != "3" {
		t.Fatalf("f_count = %q, want 3", got)
	}
}

func TestEngine_URLSync_MergeKeepsForeignParams(t *testing.T) {
	nav := NewMemoryNavigator(url.Values{"page": {"2"}})
	e, _ := newEngine(t, urlConfig(nav))

	if err := e.Set("search", "laptop"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	q := nav.Query()
	if got := q.Get("page"); got != "2" {
		t.Fatalf("page = %q after filter write, want 2", got)
	}
	if q.Get("filters") == "" {
		t.Fatal("filters parameter not written")
	}
}

func TestEngine_URLSync_ReplacesWholeQueryWhenMergeOff(t *testing.T) {
	nav := NewMemoryNavigator(url.Values{"page": {"2"}})
	cfg := urlConfig(nav)
	cfg.URL.MergeParams = false
	e, _ := newEngine(t, cfg)

	if err := e.Set("search", "laptop"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	q := nav.Query()
	if q.Has("page") {
		t.Fatal("foreign parameter survived a non-merging write")
	}
	if q.Get("filters") == "" {
		t.Fatal("filters parameter not written")
	}
}

func TestEngine_URLSync_PushModeGrowsHistory(t *testing.T) {
	nav := NewMemoryNavigator(nil)
	e, _ := newEngine(t, urlConfig(nav))

	if err := e.Set("search", "a"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e.Set("search", "b"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if nav.Len() != 3 {
		t.Fatalf("history length = %d, want 3", nav.Len())
	}
}

func TestEngine_URLSync_ReplaceModeKeepsOneEntry(t *testing.T) {
	nav := NewMemoryNavigator(nil)
	cfg := urlConfig(nav)
	cfg.URL.Mode = ModeReplace
	e, _ := newEngine(t, cfg)

	if err := e.Set("search", "a"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e.Set("search", "b"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if nav.Len() != 1 {
		t.Fatalf("history length = %d, want 1", nav.Len())
	}
}

func TestEngine_URLSync_UnchangedSnapshotDoesNotNavigate(t *testing.T) {
	nav := NewMemoryNavigator(nil)
	e, _ := newEngine(t, urlConfig(nav))

	if err := e.Set("search", "a"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	before := nav.Len()
	if err := e.Set("search", "a"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if nav.Len() != before {
		t.Fatalf("history length = %d after a no-op Set, want %d", nav.Len(), before)
	}
}

func TestEngine_URLSync_ResetRemovesParameters(t *testing.T) {
	nav := NewMemoryNavigator(url.Values{"page": {"2"}})
	e, _ := newEngine(t, urlConfig(nav))

	if err := e.Set("search", "laptop"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	e.Reset()

	q := nav.Query()
	if q.Has("filters") {
		t.Fatalf("filters parameter survived Reset: %q", q.Get("filters"))
	}
	if got := q.Get("page"); got != "2" {
		t.Fatalf("page = %q after Reset, want 2", got)
	}
}

func TestEngine_StorageSync_PersistsRecord(t *testing.T) {
	adapter := NewMemoryStorage()
	cfg := baseConfig()
	cfg.Storage.Adapter = adapter
	cfg.Storage.Version = "3"
	e, _ := newEngine(t, cfg)

	if err := e.Set("search", "laptop"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	raw, ok := adapter.GetItemSync("sift:filters")
	if !ok {
		t.Fatal("no record written")
	}
	rec, err := storage.DecodeRecord(raw)
	if err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if got := rec.Filters["search"]; got != "laptop" {
		t.Fatalf("stored search = %v, want laptop", got)
	}
	if rec.Version != "3" {
		t.Fatalf("stored version = %q, want 3", rec.Version)
	}
	if rec.Timestamp <= 0 {
		t.Fatalf("stored timestamp = %d, want > 0", rec.Timestamp)
	}
}

func TestEngine_StorageSync_SkippedForURLSourcedState(t *testing.T) {
	adapter := NewMemoryStorage()
	cfg := urlConfig(NewMemoryNavigator(nil))
	cfg.Storage.Adapter = adapter
	e, _ := newEngine(t, cfg)

	if err := e.Set("search", "laptop"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, ok := adapter.GetItemSync("sift:filters"); ok {
		t.Fatal("URL-sourced state was persisted")
	}
}

func TestEngine_StorageSync_EmptySnapshotRemovesRecord(t *testing.T) {
	adapter := NewMemoryStorage()
	cfg := baseConfig()
	cfg.Storage.Adapter = adapter
	e, _ := newEngine(t, cfg)

	if err := e.Set("search", "laptop"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := adapter.GetItemSync("sift:filters"); !ok {
		t.Fatal("no record written")
	}

	e.Reset()
	if _, ok := adapter.GetItemSync("sift:filters"); ok {
		t.Fatal("record survived a reset to empty state")
	}
}

func TestEngine_Pull_BackRestoresFilters(t *testing.T) {
	nav := NewMemoryNavigator(nil)
	e, _ := newEngine(t, urlConfig(nav))

	if err := e.Set("search", "laptop"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e.Set("search", "phone"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if !nav.Back() {
		t.Fatal("Back = false")
	}
	if got := e.Values()["search"]; got != "laptop" {
		t.Fatalf("search = %v after Back, want laptop", got)
	}
	if got := e.Origin(); got != OriginURL {
		t.Fatalf("Origin = %v after Back, want %v", got, OriginURL)
	}
	if nav.Len() != 3 {
		t.Fatalf("history length = %d after Back, want 3 (no echo write)", nav.Len())
	}

	if !nav.Forward() {
		t.Fatal("Forward = false")
	}
	if got := e.Values()["search"]; got != "phone" {
		t.Fatalf("search = %v after Forward, want phone", got)
	}
}

func TestEngine_Pull_FallsBackToStorage(t *testing.T) {
	adapter := NewMemoryStorage()
	seedRecord(t, adapter, "sift:filters", Values{"count": 7}, "")

	nav := NewMemoryNavigator(nil)
	cfg := urlConfig(nav)
	cfg.Storage.Adapter = adapter
	e, _ := newEngine(t, cfg)

	// Storage won hydration; this write is URL-sourced and leaves the
	// stored record alone.
	if err := e.Set("search", "x"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if !nav.Back() {
		t.Fatal("Back = false")
	}
	want := Values{"count": float64(7)}
	if !e.Values().Equal(want) {
		t.Fatalf("Values = %v after Back, want %v", e.Values(), want)
	}
	if got := e.Origin(); got != OriginStorage {
		t.Fatalf("Origin = %v, want %v", got, OriginStorage)
	}
}

func TestEngine_Pull_NoSourcesLeavesStateAlone(t *testing.T) {
	nav := NewMemoryNavigator(nil)
	e, _ := newEngine(t, urlConfig(nav))

	if err := e.Set("search", "laptop"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !nav.Back() {
		t.Fatal("Back = false")
	}
	if got := e.Values()["search"]; got != "laptop" {
		t.Fatalf("search = %v after Back with no sources, want laptop", got)
	}
}

func TestEngine_Hydrate_MigratesOldRecords(t *testing.T) {
	adapter := NewMemoryStorage()
	seedRecord(t, adapter, "sift:filters", Values{"query": "laptop"}, "1")

	cfg := baseConfig()
	cfg.Storage.Adapter = adapter
	cfg.Storage.Version = "2"
	cfg.Storage.Migrations = []Migration{{
		FromVersion: "1",
		Apply: func(filters map[string]any) map[string]any {
			filters["search"] = filters["query"]
			delete(filters, "query")
			return filters
		},
	}}
	e, _ := newEngine(t, cfg)

	if got := e.Values()["search"]; got != "laptop" {
		t.Fatalf("search = %v after migration, want laptop", got)
	}
	if _, ok := e.Value("query"); ok {
		t.Fatal("pre-migration key survived")
	}
}

func TestEngine_Hydrate_CorruptRecordFallsThrough(t *testing.T) {
	adapter := NewMemoryStorage()
	if err := adapter.SetItem(context.Background(), "sift:filters", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cfg := baseConfig()
	cfg.Fields = append(cfg.Fields, Field{Key: "category", Kind: KindString, Default: "all"})
	cfg.Storage.Adapter = adapter
	e, _ := newEngine(t, cfg)

	if got := e.Values()["category"]; got != "all" {
		t.Fatalf("category = %v, want the default all", got)
	}
	if got := e.Origin(); got != OriginDefault {
		t.Fatalf("Origin = %v, want %v", got, OriginDefault)
	}
}

func TestEngine_Undo_ReplaysThroughURL(t *testing.T) {
	nav := NewMemoryNavigator(nil)
	e, _ := newEngine(t, urlConfig(nav))

	if err := e.Set("search", "a"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e.Set("search", "b"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if !e.Undo() {
		t.Fatal("Undo = false")
	}
	decoded, err := DecodeFilters(nav.Query().Get("filters"), true, e.Schema())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := decoded["search"]; got != "a" {
		t.Fatalf("URL search = %v after Undo, want a", got)
	}

	if !e.Undo() {
		t.Fatal("Undo = false")
	}
	if nav.Query().Has("filters") {
		t.Fatal("filters parameter survived undoing to the empty snapshot")
	}
}

func TestEngine_Undo_ReplaysThroughStorage(t *testing.T) {
	adapter := NewMemoryStorage()
	cfg := baseConfig()
	cfg.Storage.Adapter = adapter
	e, _ := newEngine(t, cfg)

	if err := e.Set("search", "a"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e.Set("search", "b"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if !e.Undo() {
		t.Fatal("Undo = false")
	}
	raw, ok := adapter.GetItemSync("sift:filters")
	if !ok {
		t.Fatal("no record after Undo")
	}
	rec, err := storage.DecodeRecord(raw)
	if err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if got := rec.Filters["search"]; got != "a" {
		t.Fatalf("stored search = %v after Undo, want a", got)
	}
}
