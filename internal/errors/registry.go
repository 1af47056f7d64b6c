package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E001-E019)
	// ============================================

	"E001": {
		Category: CategoryConfig,
		Message:  "Duplicate filter key",
		Detail:   "Every field in a schema must have a unique key. Two fields declare the same key.",
		DocURL:   "https://sift.dev/docs/errors/E001",
	},
	"E002": {
		Category: CategoryConfig,
		Message:  "Unknown filter kind",
		Detail:   "The field declares a kind the engine does not know. Use one of the filter.Kind constants.",
		DocURL:   "https://sift.dev/docs/errors/E002",
	},
	"E003": {
		Category: CategoryConfig,
		Message:  "Circular filter dependency",
		Detail:   "Field dependencies form a cycle. Dependency transforms must form a directed acyclic graph.",
		DocURL:   "https://sift.dev/docs/errors/E003",
	},
	"E004": {
		Category: CategoryConfig,
		Message:  "Field kind not declared and not inferable",
		Detail:   "A field needs either an explicit Kind or a non-nil Default to infer one from.",
		DocURL:   "https://sift.dev/docs/errors/E004",
	},
	"E005": {
		Category: CategoryConfig,
		Message:  "Invalid engine configuration",
		Detail:   "The engine configuration is inconsistent.",
		DocURL:   "https://sift.dev/docs/errors/E005",
	},
	"E006": {
		Category: CategoryConfig,
		Message:  "Empty filter key",
		Detail:   "Field keys must be non-empty strings.",
		DocURL:   "https://sift.dev/docs/errors/E006",
	},

	// ============================================
	// Codec Errors (E020-E039)
	// ============================================

	"E020": {
		Category: CategoryCodec,
		Message:  "Filter encoding failed",
		Detail:   "The filter values could not be serialized to the transport format.",
		DocURL:   "https://sift.dev/docs/errors/E020",
	},
	"E021": {
		Category: CategoryCodec,
		Message:  "Filter decoding failed",
		Detail:   "The payload is not valid Base64 JSON or query-string data.",
		DocURL:   "https://sift.dev/docs/errors/E021",
	},
	"E022": {
		Category: CategoryCodec,
		Message:  "Unsupported value in payload",
		Detail:   "A value in the filter mapping cannot travel through the codec (file contents never serialize).",
		DocURL:   "https://sift.dev/docs/errors/E022",
	},

	// ============================================
	// Storage Errors (E040-E059)
	// ============================================

	"E040": {
		Category: CategoryStorage,
		Message:  "Storage read failed",
		Detail:   "The storage adapter returned an error while reading.",
		DocURL:   "https://sift.dev/docs/errors/E040",
	},
	"E041": {
		Category: CategoryStorage,
		Message:  "Storage write failed",
		Detail:   "The storage adapter returned an error while writing.",
		DocURL:   "https://sift.dev/docs/errors/E041",
	},
	"E042": {
		Category: CategoryStorage,
		Message:  "Storage migration failed",
		Detail:   "A version migration transform returned an error or produced an invalid record.",
		DocURL:   "https://sift.dev/docs/errors/E042",
	},
	"E043": {
		Category: CategoryStorage,
		Message:  "Corrupt storage record",
		Detail:   "The persisted record could not be parsed. It is ignored and will be overwritten on the next write.",
		DocURL:   "https://sift.dev/docs/errors/E043",
	},

	// ============================================
	// Fetch Errors (E060-E079)
	// ============================================

	"E060": {
		Category: CategoryFetch,
		Message:  "Fetch failed after retries",
		Detail:   "The data source kept failing after the configured retry attempts.",
		DocURL:   "https://sift.dev/docs/errors/E060",
	},
	"E061": {
		Category: CategoryFetch,
		Message:  "Before-fetch transform failed",
		Detail:   "The BeforeFetch hook returned an error; the fetch was aborted.",
		DocURL:   "https://sift.dev/docs/errors/E061",
	},
	"E062": {
		Category: CategoryFetch,
		Message:  "Dependency resolution failed",
		Detail:   "A field dependency transform returned an error; the fetch was aborted.",
		DocURL:   "https://sift.dev/docs/errors/E062",
	},
	"E063": {
		Category: CategoryFetch,
		Message:  "Source request failed",
		Detail:   "The data source did not return a usable response.",
		DocURL:   "https://sift.dev/docs/errors/E063",
	},

	// ============================================
	// Validation Errors (E080-E099)
	// ============================================

	"E080": {
		Category: CategoryValidation,
		Message:  "Field validation failed",
		Detail:   "The proposed value was rejected by the field validator. The previous value is kept.",
		DocURL:   "https://sift.dev/docs/errors/E080",
	},
	"E081": {
		Category: CategoryValidation,
		Message:  "Value coercion failed",
		Detail:   "The raw value cannot be coerced to the field's declared kind.",
		DocURL:   "https://sift.dev/docs/errors/E081",
	},
	"E082": {
		Category: CategoryValidation,
		Message:  "Unsafe identifier",
		Detail:   "A filter key or column name is not a safe SQL identifier.",
		DocURL:   "https://sift.dev/docs/errors/E082",
	},

	// ============================================
	// Bridge Errors (E100-E119)
	// ============================================

	"E100": {
		Category: CategoryBridge,
		Message:  "Bridge connection closed",
		Detail:   "The WebSocket session ended; navigation events can no longer be delivered.",
		DocURL:   "https://sift.dev/docs/errors/E100",
	},
	"E101": {
		Category: CategoryBridge,
		Message:  "Bridge rate limit exceeded",
		Detail:   "Inbound navigation events arrived faster than the configured rate; the frame was dropped.",
		DocURL:   "https://sift.dev/docs/errors/E101",
	},

	// ============================================
	// CLI Errors (E120-E139)
	// ============================================

	"E120": {
		Category: CategoryCLI,
		Message:  "Invalid filter assignment",
		Detail:   "Filter arguments must be of the form key=value.",
		DocURL:   "https://sift.dev/docs/errors/E120",
	},
}

// Register adds a custom error template. Intended for applications that
// extend sift with their own coded errors; panics on code collision so
// clashes surface at init time.
func Register(code string, template ErrorTemplate) {
	if _, exists := registry[code]; exists {
		panic("sift/errors: duplicate error code registration: " + code)
	}
	registry[code] = template
}
