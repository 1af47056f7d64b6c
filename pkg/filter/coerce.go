package filter

import (
	"encoding/json"
	"reflect"
	"strconv"
	"time"

	sifterrors "github.com/sift-dev/sift/internal/errors"
)

// Coerce converts a raw value to the field's declared kind. nil passes
// through (it means "cleared"), and so does an empty string on number,
// bool and date fields: clearing an input must never produce NaN or a
// zero time. Repeated fields coerce element-wise; a scalar raw value on a
// repeated field becomes a one-element slice.
func Coerce(f Field, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}

	if f.Repeated {
		elems, ok := toSlice(raw)
		if !ok {
			cv, err := coerceScalar(f, raw)
			if err != nil {
				return nil, err
			}
			if cv == nil {
				return nil, nil
			}
			return []any{cv}, nil
		}

		out := make([]any, 0, len(elems))
		for _, e := range elems {
			cv, err := coerceScalar(f, e)
			if err != nil {
				return nil, err
			}
			if cv != nil {
				out = append(out, cv)
			}
		}
		if len(out) == 0 {
			return nil, nil
		}
		return out, nil
	}

	if _, isSlice := toSlice(raw); isSlice {
		return nil, coerceError(f, raw, "slice value on a non-repeated field")
	}

	return coerceScalar(f, raw)
}

func coerceScalar(f Field, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}

	switch f.Kind {
	case KindString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		case bool:
			return strconv.FormatBool(v), nil
		default:
			return nil, coerceError(f, raw, "not a string")
		}

	case KindNumber:
		switch v := raw.(type) {
		case string:
			if v == "" {
				// Cleared input, never NaN.
				return nil, nil
			}
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, coerceError(f, raw, "not a number")
			}
			return n, nil
		case json.Number:
			n, err := v.Float64()
			if err != nil {
				return nil, coerceError(f, raw, "not a number")
			}
			return n, nil
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int8:
			return float64(v), nil
		case int16:
			return float64(v), nil
		case int32:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case uint:
			return float64(v), nil
		case uint8:
			return float64(v), nil
		case uint16:
			return float64(v), nil
		case uint32:
			return float64(v), nil
		case uint64:
			return float64(v), nil
		default:
			return nil, coerceError(f, raw, "not a number")
		}

	case KindBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			if v == "" {
				return nil, nil
			}
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, coerceError(f, raw, "not a bool")
			}
			return b, nil
		case float64:
			return v != 0, nil
		case int:
			return v != 0, nil
		default:
			return nil, coerceError(f, raw, "not a bool")
		}

	case KindDate:
		switch v := raw.(type) {
		case time.Time:
			return v, nil
		case *time.Time:
			if v == nil {
				return nil, nil
			}
			return *v, nil
		case string:
			if v == "" {
				return nil, nil
			}
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				return ts, nil
			}
			if ts, err := time.Parse("2006-01-02", v); err == nil {
				return ts, nil
			}
			return nil, coerceError(f, raw, "not an RFC3339 date")
		case float64:
			return time.UnixMilli(int64(v)).UTC(), nil
		case int64:
			return time.UnixMilli(v).UTC(), nil
		default:
			return nil, coerceError(f, raw, "not a date")
		}

	case KindFile:
		switch v := raw.(type) {
		case *File:
			return v, nil
		case File:
			return &v, nil
		default:
			return nil, coerceError(f, raw, "not a file")
		}

	default:
		return nil, sifterrors.New("E002").
			WithMessagef("unknown filter kind for field %q", f.Key)
	}
}

func coerceError(f Field, raw any, why string) error {
	return sifterrors.New("E081").
		WithMessagef("cannot coerce %T into %s field %q: %s", raw, f.Kind, f.Key, why)
}

// toSlice normalizes any slice or array into []any. Strings and byte
// slices are values, not element containers.
func toSlice(raw any) ([]any, bool) {
	switch raw.(type) {
	case nil, string, []byte:
		return nil, false
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
