package filter

// File is the value carried by KindFile fields: an in-memory attachment
// used as a filter input (a similarity-search image, an uploaded list of
// IDs). Files never serialize through the codec and never reach the URL or
// storage; they only travel to the data source in fetch payloads.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}
