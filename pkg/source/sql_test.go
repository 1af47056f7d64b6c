package source

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	sifterrors "github.com/sift-dev/sift/internal/errors"
	"github.com/sift-dev/sift/pkg/filter"
)

func productDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "products.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	stmts := []string{
		`CREATE TABLE products (id INTEGER PRIMARY KEY, name TEXT, category TEXT, price REAL)`,
		`INSERT INTO products (name, category, price) VALUES
			('laptop', 'electronics', 1200),
			('phone', 'electronics', 800),
			('hammer', 'tools', 20)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return db
}

func TestSQL_ScalarEquality(t *testing.T) {
	f, err := NewSQL(productDB(t), "products", "name", "category")
	if err != nil {
		t.Fatalf("NewSQL: %v", err)
	}

	rows, err := f.Fetch(context.Background(), filter.Values{"category": "tools"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %v, want one tools row", rows)
	}
	if got := rows[0]["name"]; got != "hammer" {
		t.Fatalf("name = %v, want hammer", got)
	}
}

func TestSQL_RepeatedBecomesIN(t *testing.T) {
	f, err := NewSQL(productDB(t), "products")
	if err != nil {
		t.Fatalf("NewSQL: %v", err)
	}

	rows, err := f.Fetch(context.Background(), filter.Values{
		"name": []any{"laptop", "hammer"},
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
}

func TestSQL_MultipleFiltersJoinWithAND(t *testing.T) {
	f, err := NewSQL(productDB(t), "products")
	if err != nil {
		t.Fatalf("NewSQL: %v", err)
	}

	rows, err := f.Fetch(context.Background(), filter.Values{
		"category": "electronics",
		"name":     "phone",
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if got := rows[0]["price"]; got != float64(800) {
		t.Fatalf("price = %v (%T), want 800", got, got)
	}
}

func TestSQL_EmptySnapshotSelectsAll(t *testing.T) {
	f, err := NewSQL(productDB(t), "products")
	if err != nil {
		t.Fatalf("NewSQL: %v", err)
	}

	rows, err := f.Fetch(context.Background(), filter.Values{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want all 3", len(rows))
	}
}

func TestSQL_NilAndEmptyListAddNoPredicate(t *testing.T) {
	f, err := NewSQL(productDB(t), "products")
	if err != nil {
		t.Fatalf("NewSQL: %v", err)
	}

	rows, err := f.Fetch(context.Background(), filter.Values{
		"category": nil,
		"name":     []any{},
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want all 3", len(rows))
	}
}

func TestSQL_FileFiltersAddNoPredicate(t *testing.T) {
	f, err := NewSQL(productDB(t), "products")
	if err != nil {
		t.Fatalf("NewSQL: %v", err)
	}

	rows, err := f.Fetch(context.Background(), filter.Values{
		"image": &filter.File{Name: "q.png", Data: []byte{1}},
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want all 3 (file filter ignored)", len(rows))
	}
}

func TestSQL_RejectsUnsafeFilterKey(t *testing.T) {
	f, err := NewSQL(productDB(t), "products")
	if err != nil {
		t.Fatalf("NewSQL: %v", err)
	}

	_, err = f.Fetch(context.Background(), filter.Values{
		"name; DROP TABLE products": "x",
	})
	if err == nil {
		t.Fatal("expected an error for an unsafe key")
	}
	if code := sifterrors.CodeOf(err); code != "E082" {
		t.Fatalf("CodeOf = %q, want E082", code)
	}
}

func TestSQL_RejectsUnsafeTable(t *testing.T) {
	if _, err := NewSQL(productDB(t), "products; --"); err == nil {
		t.Fatal("expected an error for an unsafe table name")
	}
}
