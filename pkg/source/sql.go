package source

import (
	"context"
	"database/sql"
	"regexp"
	"strings"

	sifterrors "github.com/sift-dev/sift/internal/errors"
	"github.com/sift-dev/sift/pkg/filter"
)

// Row is one result row, keyed by column name.
type Row = map[string]any

// SQL fetches rows with a query built from the snapshot: scalar filters
// become `key = ?`, repeated filters `key IN (?, ...)`, joined with AND in
// sorted key order. Filter keys and configured identifiers are restricted
// to [A-Za-z0-9_], since undeclared keys can arrive straight from a URL.
// Placeholders are `?`, matching the sqlite and mysql drivers.
type SQL struct {
	db      *sql.DB
	table   string
	columns []string
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkIdentifier(name string) error {
	if !identPattern.MatchString(name) {
		return sifterrors.New("E082").
			WithMessagef("%q is not a safe SQL identifier", name)
	}
	return nil
}

// NewSQL builds a fetcher selecting columns from table (all columns when
// none are given). Table and column names are validated here.
func NewSQL(db *sql.DB, table string, columns ...string) (*SQL, error) {
	if err := checkIdentifier(table); err != nil {
		return nil, err
	}
	for _, col := range columns {
		if err := checkIdentifier(col); err != nil {
			return nil, err
		}
	}
	return &SQL{db: db, table: table, columns: columns}, nil
}

// Fetch implements fetch.Fetcher.
func (s *SQL) Fetch(ctx context.Context, values filter.Values) ([]Row, error) {
	query, args, err := s.build(values)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sifterrors.New("E063").
			WithDetail("Query failed: " + err.Error())
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, sifterrors.FromError(err, "E063")
	}

	var out []Row
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, sifterrors.FromError(err, "E063")
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			v := raw[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, sifterrors.FromError(err, "E063")
	}
	return out, nil
}

// build renders the SELECT. Nil values, empty lists and file filters add
// no predicate.
func (s *SQL) build(values filter.Values) (string, []any, error) {
	cols := "*"
	if len(s.columns) > 0 {
		cols = strings.Join(s.columns, ", ")
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(cols)
	b.WriteString(" FROM ")
	b.WriteString(s.table)

	var args []any
	wrote := false
	for _, key := range values.Keys() {
		v := values[key]
		if v == nil {
			continue
		}
		switch v.(type) {
		case *filter.File, filter.File:
			continue
		}
		if err := checkIdentifier(key); err != nil {
			return "", nil, err
		}

		var clause string
		switch list := v.(type) {
		case []any:
			if len(list) == 0 {
				continue
			}
			clause = key + " IN (" + placeholders(len(list)) + ")"
			args = append(args, list...)
		default:
			clause = key + " = ?"
			args = append(args, v)
		}

		if wrote {
			b.WriteString(" AND ")
		} else {
			b.WriteString(" WHERE ")
			wrote = true
		}
		b.WriteString(clause)
	}
	return b.String(), args, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
