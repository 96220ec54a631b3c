package plan

import (
	"fmt"
	"sort"
	"strings"

	"duckrel/internal/duckdbsql"
)

// NamedExpr binds an output column name to a SQL expression.
type NamedExpr struct {
	Name string
	Expr duckdbsql.Expr
}

// CaseBranch maps one input value to one output value.
type CaseBranch struct {
	When any
	Then any
}

// TypedColumn is a column a row schema declares: its engine type and the
// constant used when the column is missing (nil means NULL).
type TypedColumn struct {
	Name  string
	Type  string
	Value any
}

// Select projects the named columns, in the given order.
func Select(input Node, columns ...string) Node {
	items := make([]duckdbsql.SelectItem, len(columns))
	for i, c := range columns {
		items[i] = duckdbsql.SelectItem{Expr: &duckdbsql.ColumnRef{Column: c}}
	}
	return &Project{Input: input, Items: items}
}

// Rename builds an explicit projection in current column order where every
// mapped column is renamed. A column whose name is the target of a rename
// and which is not itself renamed is dropped, so the renamed column wins.
func Rename(input Node, columns []string, mapping map[string]string) (Node, error) {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	olds := make([]string, 0, len(mapping))
	for old := range mapping {
		olds = append(olds, old)
	}
	sort.Strings(olds)
	for _, old := range olds {
		if !present[old] {
			return nil, ErrValue("Column '%s' can not be renamed as it does not exist. The columns of the relation are: %s.",
				old, strings.Join(columns, ", "))
		}
	}

	targets := make(map[string]bool, len(mapping))
	for _, to := range mapping {
		targets[to] = true
	}

	items := make([]duckdbsql.SelectItem, 0, len(columns))
	for _, c := range columns {
		ref := &duckdbsql.ColumnRef{Column: c}
		if to, ok := mapping[c]; ok {
			items = append(items, duckdbsql.SelectItem{Expr: ref, Alias: to})
			continue
		}
		if targets[c] {
			continue
		}
		items = append(items, duckdbsql.SelectItem{Expr: ref})
	}
	return &Project{Input: input, Items: items}, nil
}

// Affix renames columns by adding a prefix and a suffix. With include set, only
// those columns are renamed; with exclude set, every other column is.
func Affix(input Node, columns []string, prefix, suffix string, include, exclude []string) (Node, error) {
	if include != nil && exclude != nil {
		return nil, ErrType("Both include and exclude provided at the same time!")
	}
	selected := func(string) bool { return true }
	switch {
	case include != nil:
		set := toSet(include)
		selected = func(c string) bool { return set[c] }
	case exclude != nil:
		set := toSet(exclude)
		selected = func(c string) bool { return !set[c] }
	}

	items := make([]duckdbsql.SelectItem, len(columns))
	for i, c := range columns {
		items[i] = duckdbsql.SelectItem{Expr: &duckdbsql.ColumnRef{Column: c}}
		if selected(c) {
			items[i].Alias = prefix + c + suffix
		}
	}
	return &Project{Input: input, Items: items}, nil
}

// Drop removes the named columns.
func Drop(input Node, columns ...string) Node {
	return &Exclude{Input: input, Columns: columns}
}

// Group aggregates input by the groupBy columns. Items hold plain columns first
// and aggregate expressions after, in the order given.
func Group(input Node, columns []duckdbsql.Expr, aggregates []NamedExpr, groupBy []string) Node {
	items := make([]duckdbsql.SelectItem, 0, len(columns)+len(aggregates))
	for _, c := range columns {
		items = append(items, duckdbsql.SelectItem{Expr: c})
	}
	for _, a := range aggregates {
		items = append(items, duckdbsql.SelectItem{Expr: a.Expr, Alias: a.Name})
	}
	return &Aggregate{Input: input, Items: items, GroupBy: groupBy}
}

// Union appends right below left. Both sides must have the same column names;
// right is reordered to match left.
func Union(left Node, leftColumns []string, right Node, rightColumns []string) (Node, error) {
	onlyLeft := difference(leftColumns, rightColumns)
	onlyRight := difference(rightColumns, leftColumns)
	if len(onlyLeft) > 0 || len(onlyRight) > 0 {
		msg := "Union between relations with different column names is not allowed."
		if len(onlyLeft) > 0 {
			msg += fmt.Sprintf(" Additional columns in left relation: %s.", setString(onlyLeft))
		}
		if len(onlyRight) > 0 {
			msg += fmt.Sprintf(" Additional columns in right relation: %s.", setString(onlyRight))
		}
		return nil, ErrType("%s", msg)
	}

	if !sameOrder(leftColumns, rightColumns) {
		right = Select(right, leftColumns...)
	}
	return &UnionAll{Left: left, Right: right}, nil
}

// CoalesceColumns replaces NULLs in each named column with a constant.
func CoalesceColumns(input Node, replacements []NamedValue) Node {
	items := make([]duckdbsql.ReplaceItem, len(replacements))
	for i, r := range replacements {
		items[i] = duckdbsql.ReplaceItem{
			Expr: &duckdbsql.FuncCall{
				Name: "COALESCE",
				Args: []duckdbsql.Expr{&duckdbsql.ColumnRef{Column: r.Name}, duckdbsql.NewLiteral(r.Value)},
			},
			Alias: r.Name,
		}
	}
	return &Coalesce{Input: input, Items: items}
}

// NamedValue pairs a column name with a Go value rendered as a SQL literal.
type NamedValue struct {
	Name  string
	Value any
}

// MapValues appends column to, computed from column from through the branches.
// Unmatched values map to def.
func MapValues(input Node, from, to string, branches []CaseBranch, def any) Node {
	c := &duckdbsql.CaseExpr{Else: duckdbsql.NewLiteral(def)}
	for _, b := range branches {
		var cond duckdbsql.Expr = &duckdbsql.BinaryExpr{
			Left:  &duckdbsql.ColumnRef{Column: from},
			Op:    "=",
			Right: duckdbsql.NewLiteral(b.When),
		}
		if b.When == nil {
			cond = &duckdbsql.IsNullExpr{Expr: &duckdbsql.ColumnRef{Column: from}}
		}
		c.Whens = append(c.Whens, duckdbsql.WhenClause{Condition: cond, Result: duckdbsql.NewLiteral(b.Then)})
	}
	return &Project{Input: input, Items: []duckdbsql.SelectItem{
		{Star: true},
		{Expr: c, Alias: to},
	}}
}

// WithColumns overwrites the named columns that already exist, in place, and
// appends the rest.
func WithColumns(input Node, columns []string, exprs []NamedExpr) Node {
	present := toSet(columns)
	node := &Replace{Input: input}
	for _, e := range exprs {
		if present[e.Name] {
			node.Items = append(node.Items, duckdbsql.ReplaceItem{Expr: e.Expr, Alias: e.Name})
		} else {
			node.Append = append(node.Append, duckdbsql.SelectItem{Expr: e.Expr, Alias: e.Name})
		}
	}
	return node
}

// WithMissing appends every candidate column absent from columns, as a
// constant cast to its declared type. It returns input unchanged if nothing
// is missing.
func WithMissing(input Node, columns []string, candidates []TypedColumn) Node {
	present := toSet(columns)
	var items []duckdbsql.SelectItem
	for _, c := range candidates {
		if present[c.Name] {
			continue
		}
		items = append(items, duckdbsql.SelectItem{
			Expr:  &duckdbsql.TypeCastExpr{Expr: duckdbsql.NewLiteral(c.Value), TypeName: c.Type},
			Alias: c.Name,
		})
	}
	if len(items) == 0 {
		return input
	}
	return &FillMissing{Input: input, Columns: items}
}

// InsertInto renders an INSERT of input into table. The relation must carry
// every target column; extra columns are ignored and values land by name.
func InsertInto(input Node, columns []string, table string, targetColumns []string) (string, error) {
	missing := difference(targetColumns, columns)
	if len(missing) > 0 {
		return "", ErrType("Relation is missing column(s) %s in order to be inserted into table '%s'!",
			setString(missing), table)
	}
	stmt := &duckdbsql.InsertStmt{
		Table:   tableName(table),
		Columns: targetColumns,
		Query:   Lower(Select(input, targetColumns...)),
	}
	return duckdbsql.Format(stmt), nil
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// difference returns the names of a that are not in b, in a's order.
func difference(a, b []string) []string {
	in := toSet(b)
	var out []string
	for _, n := range a {
		if !in[n] {
			out = append(out, n)
		}
	}
	return out
}

func sameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// setString formats names like {'a', 'b'}, sorted.
func setString(names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	quoted := make([]string, len(sorted))
	for i, n := range sorted {
		quoted[i] = "'" + n + "'"
	}
	return "{" + strings.Join(quoted, ", ") + "}"
}
