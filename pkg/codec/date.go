package codec

import "regexp"

// isoDatePattern matches RFC3339 timestamps, the shape Encode emits.
// The heuristic is deliberately lossy: a string filter whose value happens
// to look like a timestamp will round-trip as a date when no schema is
// present. Callers who care pass a schema.
var isoDatePattern = regexp.MustCompile(
	`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})$`,
)

func looksLikeDate(s string) bool {
	if len(s) < 20 || len(s) > 35 {
		return false
	}
	return isoDatePattern.MatchString(s)
}
