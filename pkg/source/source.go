// Package source provides ready-made fetch collaborators: an HTTP GET
// fetcher that serializes filter snapshots into query parameters and a
// database/sql fetcher that builds WHERE clauses from them. Both satisfy
// fetch.Fetcher and plug straight into an engine.
package source

import "github.com/sift-dev/sift/pkg/fetch"

// Func adapts a plain function to a fetcher.
type Func[T any] = fetch.Func[T]
