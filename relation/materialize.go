package relation

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"time"

	"duckrel/internal/arrowconv"
)

// result is a fully fetched query result.
type result struct {
	columns []arrowconv.Column
	rows    [][]any
}

func (r *result) names() []string {
	names := make([]string, len(r.columns))
	for i, c := range r.columns {
		names[i] = c.Name
	}
	return names
}

// fetch runs query and reads every row as scanned by the driver. Column types
// come from the driver, so they are known even when no row comes back.
func (d *Database) fetch(ctx context.Context, query string) (*result, error) {
	rows, err := d.query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}
	res := &result{columns: make([]arrowconv.Column, len(types))}
	for i, t := range types {
		res.columns[i] = arrowconv.Column{Name: t.Name(), Type: t.DatabaseTypeName()}
	}

	for rows.Next() {
		values, err := scanRow(rows, len(types))
		if err != nil {
			return nil, err
		}
		res.rows = append(res.rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return res, nil
}

func scanRow(rows *sql.Rows, n int) ([]any, error) {
	values := make([]any, n)
	ptrs := make([]any, n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	return values, nil
}

// keyedRows turns positional rows into column-keyed maps of exact values.
func keyedRows(names []string, rows [][]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		m := make(map[string]any, len(names))
		for c, name := range names {
			if _, dup := m[name]; !dup {
				m[name] = arrowconv.Exact(row[c])
			}
		}
		out[i] = m
	}
	return out
}

func rowsEqual(a, b []map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for k, va := range a[i] {
			vb, ok := b[i][k]
			if !ok || !valuesEqual(va, vb) {
				return false
			}
		}
	}
	return true
}

// valuesEqual compares two exact values. Integers and decimals compare
// exactly; only a comparison involving a float goes through float64. NULL
// equals only NULL.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, aExact := asRat(a)
	rb, bExact := asRat(b)
	if aExact && bExact {
		return ra.Cmp(rb) == 0
	}
	fa, aNum := asFloat(a, ra, aExact)
	fb, bNum := asFloat(b, rb, bExact)
	if aNum || bNum {
		if !aNum || !bNum {
			return false
		}
		if math.IsNaN(fa) && math.IsNaN(fb) {
			return true
		}
		return fa == fb
	}
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	}
	return reflect.DeepEqual(a, b)
}

// asRat returns integer and decimal values as exact rationals.
func asRat(v any) (*big.Rat, bool) {
	switch x := v.(type) {
	case int64:
		return new(big.Rat).SetInt64(x), true
	case uint64:
		return new(big.Rat).SetUint64(x), true
	case *big.Int:
		return new(big.Rat).SetInt(x), true
	case *big.Rat:
		return x, true
	}
	return nil, false
}

func asFloat(v any, r *big.Rat, exact bool) (float64, bool) {
	if exact {
		f, _ := r.Float64()
		return f, true
	}
	f, ok := v.(float64)
	return f, ok
}
