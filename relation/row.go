package relation

import (
	"fmt"
	"slices"
	"strings"

	"duckrel/internal/arrowconv"
)

// Row is a result row of a relation without a bound model. Column order
// follows the query; duplicate column names keep every value.
type Row struct {
	columns []string
	values  []any
}

// NewRow builds a Row from parallel column and value slices.
func NewRow(columns []string, values []any) Row {
	vals := make([]any, len(columns))
	for i := range columns {
		vals[i] = arrowconv.Normalize(values[i])
	}
	return Row{columns: columns, values: vals}
}

// Get returns the value of a column. With duplicate names the first column
// wins.
func (r Row) Get(name string) (any, error) {
	i := slices.Index(r.columns, name)
	if i < 0 {
		return nil, ErrAttribute("Row has no attribute '%s'", name)
	}
	return r.values[i], nil
}

// Columns returns the column names in query order.
func (r Row) Columns() []string { return r.columns }

// Values returns the values in column order.
func (r Row) Values() []any { return slices.Clone(r.values) }

// Map returns the row keyed by column name. With duplicate names the first
// column wins.
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.columns))
	for i, c := range r.columns {
		if _, dup := out[c]; !dup {
			out[c] = r.values[i]
		}
	}
	return out
}

func (r Row) String() string {
	parts := make([]string, len(r.columns))
	for i, c := range r.columns {
		parts[i] = fmt.Sprintf("%s=%s", c, repr(r.values[i]))
	}
	return strings.Join(parts, " ")
}
