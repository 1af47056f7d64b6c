package filter

import (
	"reflect"
	"sort"
)

// Values is a filter key to value mapping. It is partial: an absent key
// means "unset", not "defaulted". Values are treated as immutable snapshots;
// mutation helpers copy on write so reactive equality checks stay honest.
type Values map[string]any

// Clone returns a shallow copy.
func (v Values) Clone() Values {
	if v == nil {
		return Values{}
	}
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Equal reports deep equality with other.
func (v Values) Equal(other Values) bool {
	if len(v) == 0 && len(other) == 0 {
		return true
	}
	return reflect.DeepEqual(map[string]any(v), map[string]any(other))
}

// IsEmpty reports whether the mapping carries no meaningful values:
// no keys, or only nil values.
func (v Values) IsEmpty() bool {
	for _, val := range v {
		if val != nil {
			return false
		}
	}
	return true
}

// With returns a copy with key set to value.
func (v Values) With(key string, value any) Values {
	out := v.Clone()
	out[key] = value
	return out
}

// Without returns a copy with key removed.
func (v Values) Without(key string) Values {
	out := v.Clone()
	delete(out, key)
	return out
}

// Merge returns a copy of v overlaid with every entry of other.
func (v Values) Merge(other Values) Values {
	out := v.Clone()
	for k, val := range other {
		out[k] = val
	}
	return out
}

// Keys returns the keys in sorted order.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
