// Package filter defines filter fields, their value kinds, coercion rules
// and the validated Schema the engine is configured with. A Schema is built
// once, up front: keys are checked for uniqueness, kinds are declared or
// inferred from defaults, and dependency declarations are checked for
// cycles. Nothing here sniffs value shapes mid-flow.
package filter

import "time"

// Kind tags the value type a field carries. Runtime values for a field
// always match its kind: string, float64, bool, time.Time or *File, or
// slices thereof when the field is Repeated.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBool
	KindDate
	KindFile
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindFile:
		return "file"
	default:
		return "invalid"
	}
}

// KindNamed maps a kind name back to its Kind. Used by the CLI when loading
// schema files. Returns KindInvalid for unknown names.
func KindNamed(name string) Kind {
	switch name {
	case "string":
		return KindString
	case "number":
		return KindNumber
	case "bool", "boolean":
		return KindBool
	case "date":
		return KindDate
	case "file":
		return KindFile
	default:
		return KindInvalid
	}
}

// KindOf infers the kind from a sample value: the pure, construction-time
// inference the schema applies to fields that declare a Default but no Kind.
// For slices it reports the element kind and repeated=true.
func KindOf(v any) (kind Kind, repeated bool) {
	switch v.(type) {
	case string:
		return KindString, false
	case bool:
		return KindBool, false
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return KindNumber, false
	case time.Time, *time.Time:
		return KindDate, false
	case File, *File:
		return KindFile, false
	case []string:
		return KindString, true
	case []bool:
		return KindBool, true
	case []int, []int64, []float64:
		return KindNumber, true
	case []time.Time:
		return KindDate, true
	case []any:
		elems := v.([]any)
		if len(elems) == 0 {
			return KindInvalid, true
		}
		k, _ := KindOf(elems[0])
		return k, true
	default:
		return KindInvalid, false
	}
}
