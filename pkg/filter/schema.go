package filter

import (
	"strings"

	sifterrors "github.com/sift-dev/sift/internal/errors"
)

// Schema is the validated set of fields an engine is configured with.
// Construction is the single place configuration errors surface: duplicate
// or empty keys, undeclarable kinds and dependency cycles are all fatal
// here, before any engine work happens.
type Schema struct {
	fields []Field
	byKey  map[string]int
}

// NewSchema validates and normalizes the field list. Fields missing a Kind
// get one inferred from their Default; slice defaults imply Repeated.
func NewSchema(fields []Field) (*Schema, error) {
	s := &Schema{
		fields: make([]Field, 0, len(fields)),
		byKey:  make(map[string]int, len(fields)),
	}

	for _, f := range fields {
		if f.Key == "" {
			return nil, sifterrors.New("E006")
		}
		if _, dup := s.byKey[f.Key]; dup {
			return nil, sifterrors.New("E001").
				WithMessagef("duplicate filter key %q", f.Key)
		}

		if f.Kind == KindInvalid {
			if f.Default == nil {
				return nil, sifterrors.New("E004").
					WithMessagef("field %q declares neither Kind nor Default", f.Key).
					WithSuggestion("Set Kind explicitly or give the field a non-nil Default")
			}
			kind, repeated := KindOf(f.Default)
			if kind == KindInvalid {
				return nil, sifterrors.New("E002").
					WithMessagef("cannot infer kind for field %q from default of type %T", f.Key, f.Default)
			}
			f.Kind = kind
			if repeated {
				f.Repeated = true
			}
		} else if f.Kind > KindFile {
			return nil, sifterrors.New("E002").
				WithMessagef("field %q declares unknown kind %d", f.Key, f.Kind)
		} else if !f.Repeated && f.Default != nil {
			if _, repeated := KindOf(f.Default); repeated {
				f.Repeated = true
			}
		}

		s.byKey[f.Key] = len(s.fields)
		s.fields = append(s.fields, f)
	}

	if cycle := detectCycle(s.fields); cycle != nil {
		return nil, sifterrors.New("E003").
			WithMessagef("circular filter dependency: %s", strings.Join(cycle, " -> ")).
			WithSuggestion("Remove one edge of the cycle from the field Dependencies maps")
	}

	return s, nil
}

// MustSchema is NewSchema that panics on error. For tests and static
// schemas known to be valid.
func MustSchema(fields []Field) *Schema {
	s, err := NewSchema(fields)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns the normalized fields in declared order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field returns the field declared under key.
func (s *Schema) Field(key string) (Field, bool) {
	idx, ok := s.byKey[key]
	if !ok {
		return Field{}, false
	}
	return s.fields[idx], true
}

// Has reports whether key is a declared field.
func (s *Schema) Has(key string) bool {
	_, ok := s.byKey[key]
	return ok
}

// Len returns the number of declared fields.
func (s *Schema) Len() int {
	return len(s.fields)
}

// Defaults collects the non-nil field defaults into a Values mapping.
func (s *Schema) Defaults() Values {
	out := Values{}
	for _, f := range s.fields {
		if f.Default != nil {
			out[f.Key] = f.Default
		}
	}
	return out
}

// Coerce converts raw to the declared kind of key. Unknown keys pass
// through untouched: the engine stores them as-is so URL payloads with
// extra keys survive round trips.
func (s *Schema) Coerce(key string, raw any) (any, error) {
	f, ok := s.Field(key)
	if !ok {
		return raw, nil
	}
	return Coerce(f, raw)
}

// CoerceAll converts every entry of raw per its declared kind, dropping
// entries that fail. The bool result reports whether all entries survived.
func (s *Schema) CoerceAll(raw Values) (Values, bool) {
	out := make(Values, len(raw))
	clean := true
	for k, v := range raw {
		cv, err := s.Coerce(k, v)
		if err != nil {
			clean = false
			continue
		}
		if cv != nil {
			out[k] = cv
		}
	}
	return out, clean
}
