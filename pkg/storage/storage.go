// Package storage defines the persistence capability the engine writes
// filter state through, plus ready-made adapters: an in-process map, a
// single JSON file with external-change detection, a SQLite table and an
// S3 bucket. Adapters store opaque strings under keys; the engine decides
// what the strings contain (see Record).
package storage

import "context"

// Adapter is the persistence capability. Implementations must be safe for
// concurrent use. A missing key is reported through the bool, not an error;
// errors are for transport or medium failures.
type Adapter interface {
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// SyncAdapter is an Adapter that can also read without a context round
// trip. The engine uses it during construction so initial hydration does
// not block on storage latency handling.
type SyncAdapter interface {
	Adapter
	GetItemSync(key string) (value string, ok bool)
}
