package filter

import "context"

// DependencyFunc derives the value for another key from the current filter
// payload. Dependency transforms run during fetch-payload assembly and may
// block; they receive the fetch's context.
type DependencyFunc func(ctx context.Context, values Values) (any, error)

// Field declares one filter: its key, value kind and optional behavior.
// Fields are value types; the schema keeps its own normalized copies.
type Field struct {
	// Key uniquely identifies the filter within a schema.
	Key string

	// Kind tags the value type. Zero means "infer from Default".
	Kind Kind

	// Repeated marks array-valued fields. Inferred when Default is a slice.
	Repeated bool

	// Default is the value used when neither URL nor storage supply one.
	// nil means the filter starts unset.
	Default any

	// Validate vets a coerced value before it is committed. A non-nil
	// return discards the proposed value and flags the field invalid;
	// the previous value stays.
	Validate func(any) error

	// Transform rewrites a committed value (trim, clamp, normalize).
	// Applied after validation.
	Transform func(any) any

	// Dependencies derive values for other keys from the full payload when
	// a fetch is assembled. Keys may name other fields or payload-only keys;
	// edges between declared fields must not form a cycle.
	Dependencies map[string]DependencyFunc
}
