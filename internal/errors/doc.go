// Package errors provides structured, actionable error messages for sift.
//
// The errors package implements a coded error system that:
//   - Explains what went wrong in plain language
//   - Suggests how to fix configuration issues
//   - Links to documentation for deeper understanding
//
// # Error Categories
//
// Errors are organized into categories:
//   - config: Schema/engine setup errors (duplicate keys, dependency cycles)
//   - codec: Serialization errors (bad Base64, malformed query strings)
//   - storage: Adapter errors (read/write failures, corrupt records)
//   - fetch: Data source errors (retries exhausted, transform failures)
//   - validation: Per-field value errors (rejected or uncoercible values)
//   - bridge: Live session errors (closed connections, rate limits)
//
// # Error Codes
//
// Each error has a unique code (e.g., "E003") that maps to:
//   - A short message describing the error
//   - A detailed explanation
//   - A documentation URL
//
// # Usage
//
//	err := errors.New("E003").
//	    WithMessagef("circular filter dependency: %s", strings.Join(cycle, " -> ")).
//	    WithSuggestion("Remove one edge of the cycle from the field Dependencies maps")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E003: circular filter dependency: region -> store -> region
//	//
//	//   Hint: Remove one edge of the cycle from the field Dependencies maps
//	//
//	//   Learn more: https://sift.dev/docs/errors/E003
package errors
