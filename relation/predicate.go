package relation

import (
	"fmt"
	"strings"

	"duckrel/internal/duckdbsql"
)

// Predicate is one boolean condition of Filter, Get or All.
type Predicate struct {
	expr  duckdbsql.Expr
	label string // how the predicate appears in error messages
}

// Where wraps a SQL boolean expression written by hand, for example
// "price > 10" or "p.supplier_id = s.id".
func Where(sql string) Predicate {
	return Predicate{
		expr:  &duckdbsql.ParenExpr{Expr: &duckdbsql.RawExpr{SQL: sql}},
		label: fmt.Sprintf("%q", sql),
	}
}

// Eq matches rows where column equals value. A nil value matches NULLs.
func Eq(column string, value any) Predicate {
	ref := &duckdbsql.ColumnRef{Column: column}
	p := Predicate{label: column + "=" + repr(value)}
	if value == nil {
		p.expr = &duckdbsql.IsNullExpr{Expr: ref}
	} else {
		p.expr = &duckdbsql.BinaryExpr{Left: ref, Op: "=", Right: duckdbsql.NewLiteral(value)}
	}
	return p
}

// IsNull matches rows where column is NULL.
func IsNull(column string) Predicate {
	return Eq(column, nil)
}

// NotNull matches rows where column is not NULL.
func NotNull(column string) Predicate {
	return Predicate{
		expr:  &duckdbsql.IsNullExpr{Expr: &duckdbsql.ColumnRef{Column: column}, Not: true},
		label: column + "!=nil",
	}
}

// SQL renders the predicate.
func (p Predicate) SQL() string {
	return duckdbsql.FormatExpr(p.expr)
}

func (p Predicate) String() string { return p.label }

func predicateExprs(preds []Predicate) []duckdbsql.Expr {
	out := make([]duckdbsql.Expr, len(preds))
	for i, p := range preds {
		out[i] = p.expr
	}
	return out
}

func predicateArgs(preds []Predicate) string {
	labels := make([]string, len(preds))
	for i, p := range preds {
		labels[i] = p.label
	}
	return strings.Join(labels, ",")
}

func repr(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		return fmt.Sprintf("%q", x)
	}
	return fmt.Sprint(v)
}

// Projection is one output column of Project, Aggregate or WithColumns.
type Projection struct {
	name string
	expr duckdbsql.Expr
}

// Raw is a hand-written projection fragment such as "a, b" or "*". It keeps
// whatever names the engine derives.
func Raw(sql string) Projection {
	return Projection{expr: &duckdbsql.RawExpr{SQL: sql}}
}

// As names the result of a SQL expression: As("total", "price * quantity").
func As(name, sql string) Projection {
	return Projection{name: name, expr: &duckdbsql.RawExpr{SQL: sql}}
}

// Col selects a column by name, quoting it.
func Col(name string) Projection {
	return Projection{expr: &duckdbsql.ColumnRef{Column: name}}
}

// Value names a constant: Value("source", "import") renders 'import' AS "source".
func Value(name string, v any) Projection {
	return Projection{name: name, expr: duckdbsql.NewLiteral(v)}
}

// Name returns the output column name of a named projection, or "".
func (p Projection) Name() string { return p.name }

func (p Projection) isStar() bool {
	raw, ok := p.expr.(*duckdbsql.RawExpr)
	return ok && strings.TrimSpace(raw.SQL) == "*"
}

func (p Projection) item() duckdbsql.SelectItem {
	return duckdbsql.SelectItem{Expr: p.expr, Alias: p.name}
}
