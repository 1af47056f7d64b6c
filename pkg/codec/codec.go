// Package codec converts filter value mappings to and from their transport
// forms: a Base64-encoded JSON object (compact, opaque, single URL
// parameter) or a URL-encoded query string (readable, one parameter per
// filter). Dates travel as RFC3339 strings either way; decoding restores
// typed values through a schema when one is available, and falls back to a
// best-effort ISO-8601 heuristic when not. File values never serialize.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	sifterrors "github.com/sift-dev/sift/internal/errors"
	"github.com/sift-dev/sift/pkg/filter"
)

// Encode serializes values. encoded=true produces Base64 JSON, else a
// query string. Nil values, empty strings and File values are omitted;
// an empty result means "nothing to carry", and callers clear their URL
// parameter instead of writing it.
func Encode(vals filter.Values, encoded bool) (string, error) {
	plain := sanitize(vals)
	if len(plain) == 0 {
		return "", nil
	}

	if encoded {
		raw, err := json.Marshal(plain)
		if err != nil {
			return "", sifterrors.FromError(err, "E020")
		}
		return base64.StdEncoding.EncodeToString(raw), nil
	}

	q := url.Values{}
	for key, value := range plain {
		switch v := value.(type) {
		case []any:
			for _, elem := range v {
				q.Add(key, scalarString(elem))
			}
		default:
			q.Set(key, scalarString(v))
		}
	}
	return q.Encode(), nil
}

// Decode parses a payload produced by Encode. schema may be nil, in which
// case Base64 JSON payloads keep their JSON types plus the date heuristic,
// and query-string payloads restore strings plus the date heuristic.
// Structural problems (bad Base64, bad JSON, bad query syntax) return an
// error; individual values that fail schema coercion are dropped.
func Decode(payload string, encoded bool, schema *filter.Schema) (filter.Values, error) {
	if payload == "" {
		return filter.Values{}, nil
	}

	if encoded {
		raw, err := decodeBase64(payload)
		if err != nil {
			return nil, sifterrors.FromError(err, "E021")
		}
		var plain map[string]any
		if err := json.Unmarshal(raw, &plain); err != nil {
			return nil, sifterrors.FromError(err, "E021")
		}
		return restore(plain, schema), nil
	}

	q, err := url.ParseQuery(payload)
	if err != nil {
		return nil, sifterrors.FromError(err, "E021")
	}

	plain := make(map[string]any, len(q))
	for key, vs := range q {
		switch {
		case len(vs) == 0:
			continue
		case len(vs) == 1:
			plain[key] = vs[0]
		default:
			elems := make([]any, len(vs))
			for i, s := range vs {
				elems[i] = s
			}
			plain[key] = elems
		}
	}
	return restore(plain, schema), nil
}

// DecodeQuery is Decode for an already-parsed query parameter set.
// The URL bridge reads namespaced parameters into url.Values first.
func DecodeQuery(q url.Values, schema *filter.Schema) filter.Values {
	vals, err := Decode(q.Encode(), false, schema)
	if err != nil {
		return filter.Values{}
	}
	return vals
}

// Sanitize returns a JSON-safe copy of vals: dates become RFC3339 strings,
// nils, empty strings and File values drop out. Storage records embed the
// result directly instead of a pre-encoded payload string.
func Sanitize(vals filter.Values) map[string]any {
	return sanitize(vals)
}

// Restore rebuilds typed values from a JSON-decoded mapping, the inverse of
// Sanitize. Coercion follows the schema where keys are declared and the
// date heuristic elsewhere; schema may be nil.
func Restore(plain map[string]any, schema *filter.Schema) filter.Values {
	return restore(plain, schema)
}

// sanitize walks the mapping and produces a JSON-safe copy: dates become
// RFC3339 strings, nils, empty strings and files drop out.
func sanitize(vals filter.Values) map[string]any {
	out := make(map[string]any, len(vals))
	for key, value := range vals {
		if sv, ok := sanitizeValue(value); ok {
			out[key] = sv
		}
	}
	return out
}

func sanitizeValue(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case string:
		if v == "" {
			return nil, false
		}
		return v, true
	case time.Time:
		return v.Format(time.RFC3339), true
	case *time.Time:
		if v == nil {
			return nil, false
		}
		return v.Format(time.RFC3339), true
	case filter.File, *filter.File:
		// Files are fetch-only payloads.
		return nil, false
	case []any:
		elems := make([]any, 0, len(v))
		for _, e := range v {
			if se, ok := sanitizeValue(e); ok {
				elems = append(elems, se)
			}
		}
		if len(elems) == 0 {
			return nil, false
		}
		return elems, true
	case []string:
		elems := make([]any, 0, len(v))
		for _, e := range v {
			if e != "" {
				elems = append(elems, e)
			}
		}
		if len(elems) == 0 {
			return nil, false
		}
		return elems, true
	case []time.Time:
		elems := make([]any, len(v))
		for i, e := range v {
			elems[i] = e.Format(time.RFC3339)
		}
		return elems, true
	default:
		return v, true
	}
}

func scalarString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// restore rebuilds typed values: schema coercion when declared, the date
// heuristic otherwise. Values failing coercion are dropped, not surfaced;
// a payload assembled by another version of the schema should degrade to
// "that filter is unset", not poison the rest.
func restore(plain map[string]any, schema *filter.Schema) filter.Values {
	out := make(filter.Values, len(plain))
	for key, value := range plain {
		if schema != nil && schema.Has(key) {
			cv, err := schema.Coerce(key, value)
			if err != nil || cv == nil {
				continue
			}
			out[key] = cv
			continue
		}
		out[key] = restoreHeuristic(value)
	}
	return out
}

func restoreHeuristic(value any) any {
	switch v := value.(type) {
	case string:
		if looksLikeDate(v) {
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				return ts
			}
		}
		return v
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = restoreHeuristic(e)
		}
		return out
	default:
		return v
	}
}

// decodeBase64 accepts the padded standard alphabet Encode produces, plus
// the URL-safe variants other producers may emit.
func decodeBase64(payload string) ([]byte, error) {
	if raw, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return raw, nil
	}
	if raw, err := base64.URLEncoding.DecodeString(payload); err == nil {
		return raw, nil
	}
	if raw, err := base64.RawStdEncoding.DecodeString(payload); err == nil {
		return raw, nil
	}
	return base64.RawURLEncoding.DecodeString(payload)
}
