package filter

import (
	"context"
	"strings"
	"testing"

	sifterrors "github.com/sift-dev/sift/internal/errors"
)

func TestNewSchemaInfersKindFromDefault(t *testing.T) {
	s, err := NewSchema([]Field{
		{Key: "search", Default: ""},
		{Key: "price", Default: 10.0},
		{Key: "inStock", Default: true},
		{Key: "tags", Default: []string{"new"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checks := map[string]Kind{
		"search":  KindString,
		"price":   KindNumber,
		"inStock": KindBool,
		"tags":    KindString,
	}
	for key, want := range checks {
		f, ok := s.Field(key)
		if !ok {
			t.Fatalf("missing field %q", key)
		}
		if f.Kind != want {
			t.Errorf("field %q kind = %s, want %s", key, f.Kind, want)
		}
	}

	tags, _ := s.Field("tags")
	if !tags.Repeated {
		t.Error("slice default should imply Repeated")
	}
}

func TestNewSchemaDuplicateKey(t *testing.T) {
	_, err := NewSchema([]Field{
		{Key: "a", Kind: KindString},
		{Key: "a", Kind: KindNumber},
	})
	if sifterrors.CodeOf(err) != "E001" {
		t.Errorf("expected E001, got %v", err)
	}
}

func TestNewSchemaEmptyKey(t *testing.T) {
	_, err := NewSchema([]Field{{Kind: KindString}})
	if sifterrors.CodeOf(err) != "E006" {
		t.Errorf("expected E006, got %v", err)
	}
}

func TestNewSchemaUndeclarableKind(t *testing.T) {
	_, err := NewSchema([]Field{{Key: "mystery"}})
	if sifterrors.CodeOf(err) != "E004" {
		t.Errorf("expected E004, got %v", err)
	}

	_, err = NewSchema([]Field{{Key: "odd", Default: struct{}{}}})
	if sifterrors.CodeOf(err) != "E002" {
		t.Errorf("expected E002, got %v", err)
	}
}

func TestNewSchemaCycleDetection(t *testing.T) {
	derive := func(ctx context.Context, v Values) (any, error) { return nil, nil }

	_, err := NewSchema([]Field{
		{Key: "a", Kind: KindString, Dependencies: map[string]DependencyFunc{"b": derive}},
		{Key: "b", Kind: KindString, Dependencies: map[string]DependencyFunc{"a": derive}},
	})
	if sifterrors.CodeOf(err) != "E003" {
		t.Fatalf("expected E003, got %v", err)
	}
	if !strings.Contains(err.Error(), "->") {
		t.Errorf("cycle error should show the path, got %q", err.Error())
	}
}

func TestNewSchemaSelfCycle(t *testing.T) {
	derive := func(ctx context.Context, v Values) (any, error) { return nil, nil }

	_, err := NewSchema([]Field{
		{Key: "a", Kind: KindString, Dependencies: map[string]DependencyFunc{"a": derive}},
	})
	if sifterrors.CodeOf(err) != "E003" {
		t.Errorf("expected E003 for self-cycle, got %v", err)
	}
}

func TestNewSchemaLongerCycle(t *testing.T) {
	derive := func(ctx context.Context, v Values) (any, error) { return nil, nil }

	_, err := NewSchema([]Field{
		{Key: "a", Kind: KindString, Dependencies: map[string]DependencyFunc{"b": derive}},
		{Key: "b", Kind: KindString, Dependencies: map[string]DependencyFunc{"c": derive}},
		{Key: "c", Kind: KindString, Dependencies: map[string]DependencyFunc{"a": derive}},
	})
	if sifterrors.CodeOf(err) != "E003" {
		t.Errorf("expected E003 for a->b->c->a, got %v", err)
	}
}

func TestNewSchemaAcyclicDependenciesOK(t *testing.T) {
	derive := func(ctx context.Context, v Values) (any, error) { return "x", nil }

	_, err := NewSchema([]Field{
		{Key: "region", Kind: KindString, Dependencies: map[string]DependencyFunc{"store": derive}},
		{Key: "store", Kind: KindString, Dependencies: map[string]DependencyFunc{"aisle": derive}},
		// aisle is payload-only; edges to undeclared keys are terminal.
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSchemaDefaults(t *testing.T) {
	s := MustSchema([]Field{
		{Key: "search", Kind: KindString, Default: "laptop"},
		{Key: "page", Kind: KindNumber},
	})

	d := s.Defaults()
	if d["search"] != "laptop" {
		t.Errorf("got %v", d["search"])
	}
	if _, present := d["page"]; present {
		t.Error("nil defaults should not appear")
	}
}

func TestSchemaCoerceUnknownKeyPassesThrough(t *testing.T) {
	s := MustSchema([]Field{{Key: "search", Kind: KindString}})

	got, err := s.Coerce("extra", 42)
	if err != nil || got != 42 {
		t.Errorf("unknown key should pass through, got %v err %v", got, err)
	}
}

func TestSchemaCoerceAll(t *testing.T) {
	s := MustSchema([]Field{
		{Key: "price", Kind: KindNumber},
		{Key: "inStock", Kind: KindBool},
	})

	out, clean := s.CoerceAll(Values{"price": "12", "inStock": "true"})
	if !clean {
		t.Error("expected clean coercion")
	}
	if out["price"] != 12.0 || out["inStock"] != true {
		t.Errorf("got %v", out)
	}

	out, clean = s.CoerceAll(Values{"price": "abc", "inStock": "true"})
	if clean {
		t.Error("expected dirty coercion")
	}
	if _, present := out["price"]; present {
		t.Error("failed entry should be dropped")
	}
	if out["inStock"] != true {
		t.Error("surviving entries should be kept")
	}
}
