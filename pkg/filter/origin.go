package filter

// Origin records where the current filter values most recently came from.
// Exactly one origin applies at a time; it changes on every values change.
// The sync writers read it to avoid fighting: a snapshot that just arrived
// from the URL is not written back to storage as if the user typed it.
type Origin uint8

const (
	// OriginNone means no source has produced values yet.
	OriginNone Origin = iota

	// OriginDefault marks values computed from schema defaults or a reset.
	OriginDefault

	// OriginStorage marks values hydrated from or headed to the adapter.
	OriginStorage

	// OriginURL marks values hydrated from or headed to the URL.
	OriginURL
)

func (o Origin) String() string {
	switch o {
	case OriginDefault:
		return "default"
	case OriginStorage:
		return "storage"
	case OriginURL:
		return "url"
	default:
		return "none"
	}
}
