// Package relation provides immutable, lazily evaluated relations over a
// DuckDB database. Transformations build a query plan without touching the
// engine; terminal operations render the plan to SQL and execute it.
package relation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"duckrel/internal/arrowconv"
	"duckrel/internal/ddl"
	"duckrel/internal/duckdbsql"
	"duckrel/internal/plan"
	"duckrel/schema"
)

// Relation is an immutable query bound to a Database and, optionally, to a
// row schema. The zero value is not usable; obtain relations from a Database.
type Relation struct {
	db     *Database
	node   plan.Node
	schema schema.Schema
}

// derive wraps node in a new relation, keeping the bound schema only when the
// last step preserves the column set and order.
func (r Relation) derive(node plan.Node) Relation {
	out := Relation{db: r.db, node: node}
	if plan.PreservesSchema(node) {
		out.schema = r.schema
	}
	return out
}

// Database returns the database the relation runs against.
func (r Relation) Database() *Database { return r.db }

// Plan returns the query plan.
func (r Relation) Plan() plan.Node { return r.node }

// SQL renders the relation as DuckDB SQL.
func (r Relation) SQL() string { return plan.Render(r.node) }

func (r Relation) String() string { return r.SQL() }

// Model returns the bound row schema, or nil.
func (r Relation) Model() schema.Schema { return r.schema }

// SetModel returns the relation with s bound as its row schema. A nil s
// clears it.
func (r Relation) SetModel(s schema.Schema) Relation {
	r.schema = s
	return r
}

// === Transformations ===

// Project selects the given projections: SELECT <items> FROM (<relation>).
// A bare Raw("*") next to named projections expands to the current columns
// minus the named ones, so named projections overwrite star columns.
// Column references are not validated until execution.
func (r Relation) Project(ctx context.Context, items ...Projection) (Relation, error) {
	named := make(map[string]bool)
	star := -1
	for i, p := range items {
		if p.name != "" {
			named[p.name] = true
		} else if p.isStar() {
			star = i
		}
	}

	var sel []duckdbsql.SelectItem
	for i, p := range items {
		if i != star || len(named) == 0 {
			sel = append(sel, p.item())
			continue
		}
		columns, err := r.Columns(ctx)
		if err != nil {
			return Relation{}, err
		}
		for _, c := range columns {
			if !named[c] {
				sel = append(sel, Col(c).item())
			}
		}
	}
	return r.derive(&plan.Project{Input: r.node, Items: sel}), nil
}

// Select keeps the named columns, in the given order.
func (r Relation) Select(columns ...string) Relation {
	return r.derive(plan.Select(r.node, columns...))
}

// Filter keeps the rows satisfying every predicate.
func (r Relation) Filter(predicates ...Predicate) Relation {
	if len(predicates) == 0 {
		return r
	}
	return r.derive(&plan.Filter{Input: r.node, Predicates: predicateExprs(predicates)})
}

// Order sorts by a SQL ORDER BY fragment such as "price DESC, name".
func (r Relation) Order(by string) Relation {
	return r.derive(&plan.Order{Input: r.node, By: []duckdbsql.OrderByItem{{Expr: &duckdbsql.RawExpr{SQL: by}}}})
}

// Limit keeps at most n rows after skipping offset rows.
func (r Relation) Limit(n, offset int64) Relation {
	return r.derive(&plan.Limit{Input: r.node, Count: n, Offset: offset})
}

// Distinct removes duplicate rows.
func (r Relation) Distinct() Relation {
	return r.derive(&plan.Distinct{Input: r.node})
}

// SetAlias names the relation so join conditions can qualify its columns.
func (r Relation) SetAlias(name string) Relation {
	return r.derive(&plan.Alias{Input: r.node, Name: name})
}

// Drop removes the named columns.
func (r Relation) Drop(columns ...string) Relation {
	return r.derive(plan.Drop(r.node, columns...))
}

// Aggregate groups by the groupBy columns. Unnamed items (Raw, Col) are
// selected first, named ones (As) after. Groups come back in ascending
// groupBy order; an empty groupBy aggregates the whole relation.
func (r Relation) Aggregate(groupBy []string, items ...Projection) Relation {
	var columns []duckdbsql.Expr
	var aggregates []plan.NamedExpr
	for _, it := range items {
		if it.name == "" {
			columns = append(columns, it.expr)
			continue
		}
		aggregates = append(aggregates, plan.NamedExpr{Name: it.name, Expr: it.expr})
	}
	return r.derive(plan.Group(r.node, columns, aggregates, groupBy))
}

// InnerJoin joins other on a SQL condition. Use SetAlias on both sides to
// qualify columns in the condition.
func (r Relation) InnerJoin(other Relation, on string) Relation {
	return r.join(other, on, duckdbsql.JoinInner)
}

// LeftJoin left-joins other on a SQL condition.
func (r Relation) LeftJoin(other Relation, on string) Relation {
	return r.join(other, on, duckdbsql.JoinLeft)
}

func (r Relation) join(other Relation, on string, kind duckdbsql.JoinType) Relation {
	return r.derive(&plan.Join{Left: r.node, Right: other.node, Kind: kind, On: &duckdbsql.RawExpr{SQL: on}})
}

// Coalesce replaces NULLs in the given columns with constants, keeping the
// column order.
func (r Relation) Coalesce(replacements map[string]any) Relation {
	names := make([]string, 0, len(replacements))
	for name := range replacements {
		names = append(names, name)
	}
	sort.Strings(names)
	values := make([]plan.NamedValue, len(names))
	for i, name := range names {
		values[i] = plan.NamedValue{Name: name, Value: replacements[name]}
	}
	return r.derive(plan.CoalesceColumns(r.node, values))
}

// CaseBranch maps one value of the source column to one output value.
type CaseBranch = plan.CaseBranch

// Case appends column to, mapping each value of column from through branches
// in order. Unmatched values map to def.
func (r Relation) Case(from, to string, branches []CaseBranch, def any) Relation {
	return r.derive(plan.MapValues(r.node, from, to, branches, def))
}

// Rename renames columns (old name to new name). Renaming onto an existing
// column replaces it.
func (r Relation) Rename(ctx context.Context, mapping map[string]string) (Relation, error) {
	columns, err := r.Columns(ctx)
	if err != nil {
		return Relation{}, err
	}
	node, err := plan.Rename(r.node, columns, mapping)
	if err != nil {
		return Relation{}, err
	}
	return r.derive(node), nil
}

// ColumnOption restricts an operation to a subset of columns.
type ColumnOption func(*columnSelection)

type columnSelection struct {
	include []string
	exclude []string
}

// Include restricts the operation to the named columns.
func Include(columns ...string) ColumnOption {
	return func(s *columnSelection) { s.include = append([]string{}, columns...) }
}

// Exclude applies the operation to every column except the named ones.
func Exclude(columns ...string) ColumnOption {
	return func(s *columnSelection) { s.exclude = append([]string{}, columns...) }
}

func selection(opts []ColumnOption) (columnSelection, error) {
	var s columnSelection
	for _, opt := range opts {
		opt(&s)
	}
	if s.include != nil && s.exclude != nil {
		return s, ErrType("Both include and exclude provided at the same time!")
	}
	return s, nil
}

func (s columnSelection) filter(columns []string) []string {
	var out []string
	for _, c := range columns {
		switch {
		case s.include != nil && !slices.Contains(s.include, c):
		case s.exclude != nil && slices.Contains(s.exclude, c):
		default:
			out = append(out, c)
		}
	}
	return out
}

// AddPrefix prefixes column names.
func (r Relation) AddPrefix(ctx context.Context, prefix string, opts ...ColumnOption) (Relation, error) {
	return r.affix(ctx, prefix, "", opts)
}

// AddSuffix suffixes column names.
func (r Relation) AddSuffix(ctx context.Context, suffix string, opts ...ColumnOption) (Relation, error) {
	return r.affix(ctx, "", suffix, opts)
}

func (r Relation) affix(ctx context.Context, prefix, suffix string, opts []ColumnOption) (Relation, error) {
	sel, err := selection(opts)
	if err != nil {
		return Relation{}, err
	}
	columns, err := r.Columns(ctx)
	if err != nil {
		return Relation{}, err
	}
	node, err := plan.Affix(r.node, columns, prefix, suffix, sel.include, sel.exclude)
	if err != nil {
		return Relation{}, err
	}
	return r.derive(node), nil
}

// WithColumns overwrites existing columns in place and appends new ones.
// Every projection must be named.
func (r Relation) WithColumns(ctx context.Context, items ...Projection) (Relation, error) {
	exprs := make([]plan.NamedExpr, len(items))
	for i, it := range items {
		if it.name == "" {
			return Relation{}, ErrValue("Relation.WithColumns() requires named projections, got %s",
				duckdbsql.FormatExpr(it.expr))
		}
		exprs[i] = plan.NamedExpr{Name: it.name, Expr: it.expr}
	}
	columns, err := r.Columns(ctx)
	if err != nil {
		return Relation{}, err
	}
	return r.derive(plan.WithColumns(r.node, columns, exprs)), nil
}

// Union appends the rows of other. Both relations must have the same column
// names; other is reordered to match. Rows are never deduplicated.
func (r Relation) Union(ctx context.Context, other Relation) (Relation, error) {
	left, err := r.Columns(ctx)
	if err != nil {
		return Relation{}, err
	}
	right, err := other.Columns(ctx)
	if err != nil {
		return Relation{}, err
	}
	node, err := plan.Union(r.node, left, other.node, right)
	if err != nil {
		return Relation{}, err
	}
	return r.derive(node), nil
}

// Add is Union.
func (r Relation) Add(ctx context.Context, other Relation) (Relation, error) {
	return r.Union(ctx, other)
}

// WithMissingNullableColumns appends a typed NULL column for every nullable
// model field the relation lacks.
func (r Relation) WithMissingNullableColumns(ctx context.Context, opts ...ColumnOption) (Relation, error) {
	return r.withMissing(ctx, "WithMissingNullableColumns", opts, func(f schema.Field) (any, bool) {
		return nil, f.Nullable
	})
}

// WithMissingDefaultableColumns appends a typed default-value column for every
// model field with a default that the relation lacks.
func (r Relation) WithMissingDefaultableColumns(ctx context.Context, opts ...ColumnOption) (Relation, error) {
	return r.withMissing(ctx, "WithMissingDefaultableColumns", opts, func(f schema.Field) (any, bool) {
		return f.Default, f.HasDefault
	})
}

func (r Relation) withMissing(ctx context.Context, op string, opts []ColumnOption, pick func(schema.Field) (any, bool)) (Relation, error) {
	if r.schema == nil {
		return Relation{}, ErrType("Relation.%s() invoked without Relation.Model() having been set! "+
			"You should invoke Relation.SetModel() first!", op)
	}
	sel, err := selection(opts)
	if err != nil {
		return Relation{}, err
	}

	eligible := make(map[string]bool)
	for _, name := range sel.filter(schema.Columns(r.schema)) {
		eligible[name] = true
	}
	var candidates []plan.TypedColumn
	for _, f := range r.schema.Fields() {
		v, ok := pick(f)
		if ok && eligible[f.Name] {
			candidates = append(candidates, plan.TypedColumn{Name: f.Name, Type: f.Type, Value: v})
		}
	}

	columns, err := r.Columns(ctx)
	if err != nil {
		return Relation{}, err
	}
	node := plan.WithMissing(r.node, columns, candidates)
	if node == r.node {
		return r, nil
	}
	if err := r.db.CreateEnumTypes(ctx, r.schema); err != nil {
		return Relation{}, err
	}
	return r.derive(node), nil
}

// InsertInto inserts the rows into an existing table, matching columns by
// name. Extra relation columns are ignored. It returns the table.
func (r Relation) InsertInto(ctx context.Context, table string) (Relation, error) {
	target := r.db.Table(table)
	targetColumns, err := target.Columns(ctx)
	if err != nil {
		return Relation{}, err
	}
	columns, err := r.Columns(ctx)
	if err != nil {
		return Relation{}, err
	}
	stmt, err := plan.InsertInto(r.node, columns, table, targetColumns)
	if err != nil {
		return Relation{}, err
	}
	if err := r.db.Execute(ctx, stmt); err != nil {
		return Relation{}, err
	}
	return target.SetModel(r.schema), nil
}

// CreateTable materializes the relation into a new table and returns it.
func (r Relation) CreateTable(ctx context.Context, name string) (Relation, error) {
	if err := r.db.CreateEnumTypes(ctx, r.schema); err != nil {
		return Relation{}, err
	}
	stmt, err := ddl.CreateTableAs(name, r.SQL())
	if err != nil {
		return Relation{}, err
	}
	if err := r.db.Execute(ctx, stmt); err != nil {
		return Relation{}, err
	}
	return r.db.Table(name).SetModel(r.schema), nil
}

// CreateView creates or replaces a view over the relation and returns it.
func (r Relation) CreateView(ctx context.Context, name string) (Relation, error) {
	return r.db.CreateView(ctx, name, r)
}

// === Terminal operations ===

// Execute runs the query and returns the raw result set.
func (r Relation) Execute(ctx context.Context) (*sql.Rows, error) {
	return r.db.query(ctx, r.SQL())
}

func (r Relation) describe(ctx context.Context) (*result, error) {
	return r.db.fetch(ctx, plan.Render(&plan.Limit{Input: r.node, Count: 0}))
}

// Columns returns the column names reported by the engine.
func (r Relation) Columns(ctx context.Context) ([]string, error) {
	res, err := r.describe(ctx)
	if err != nil {
		return nil, err
	}
	return res.names(), nil
}

// Types returns the engine type of every column.
func (r Relation) Types(ctx context.Context) (map[string]string, error) {
	res, err := r.describe(ctx)
	if err != nil {
		return nil, err
	}
	types := make(map[string]string, len(res.columns))
	for _, c := range res.columns {
		types[c.Name] = c.Type
	}
	return types, nil
}

// SQLTypes returns the column types, taking the bound model's declared type
// for every column it describes and the engine type otherwise.
func (r Relation) SQLTypes(ctx context.Context) (map[string]string, error) {
	types, err := r.Types(ctx)
	if err != nil {
		return nil, err
	}
	if r.schema != nil {
		for name, typ := range schema.SQLTypes(r.schema) {
			if _, ok := types[name]; ok {
				types[name] = typ
			}
		}
	}
	return types, nil
}

// Column returns a single-column relation, failing with an AttributeError
// when the column does not exist.
func (r Relation) Column(ctx context.Context, name string) (Relation, error) {
	columns, err := r.Columns(ctx)
	if err != nil {
		return Relation{}, err
	}
	for _, c := range columns {
		if c == name {
			return r.Select(name), nil
		}
	}
	return Relation{}, ErrAttribute("Relation has no attribute '%s'", name)
}

// Count returns the number of rows.
func (r Relation) Count(ctx context.Context) (int64, error) {
	var n int64
	query := plan.CountQuery(r.node)
	r.db.logger.Debug("query", "sql", query)
	if err := r.db.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// All reports whether every row satisfies all predicates. Errors in the
// predicates are returned, never reported as false.
func (r Relation) All(ctx context.Context, predicates ...Predicate) (bool, error) {
	var ok bool
	query := plan.AllQuery(r.node, predicateExprs(predicates))
	r.db.logger.Debug("query", "sql", query)
	if err := r.db.db.QueryRowContext(ctx, query).Scan(&ok); err != nil {
		return false, fmt.Errorf("all: %w", err)
	}
	return ok, nil
}

// Get returns the single row matching the predicates. It fails with a
// CardinalityError when zero or several rows match. The row is built by the
// bound model, or is a Row when none is bound.
func (r Relation) Get(ctx context.Context, predicates ...Predicate) (any, error) {
	rel := r.Filter(predicates...)
	res, err := r.db.fetch(ctx, plan.Render(&plan.Limit{Input: rel.node, Count: 2}))
	if err != nil {
		return nil, err
	}
	if len(res.rows) != 1 {
		n, err := rel.Count(ctx)
		if err != nil {
			return nil, err
		}
		return nil, cardinalityError(predicateArgs(predicates), n)
	}
	return r.build(res.names(), res.rows[0])
}

// GetAs is Get for a relation whose bound model produces T.
func GetAs[T any](ctx context.Context, r Relation, predicates ...Predicate) (T, error) {
	var zero T
	v, err := r.Get(ctx, predicates...)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, ErrType("Relation.Get() built %T, not %T", v, zero)
	}
	return out, nil
}

// build constructs one row through the bound model or as a dynamic Row.
func (r Relation) build(columns []string, values []any) (any, error) {
	if r.schema == nil {
		return NewRow(columns, values), nil
	}
	m := make(map[string]any, len(columns))
	for i, c := range columns {
		if _, dup := m[c]; !dup {
			m[c] = arrowconv.Normalize(values[i])
		}
	}
	return r.schema.New(m)
}

// Rows iterates over the rows in result order. Every iteration re-runs the
// query. Iteration stops at the first error.
func (r Relation) Rows(ctx context.Context) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		rows, err := r.Execute(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close() //nolint:errcheck

		columns, err := rows.Columns()
		if err != nil {
			yield(nil, fmt.Errorf("columns: %w", err))
			return
		}
		for rows.Next() {
			values, err := scanRow(rows, len(columns))
			if err != nil {
				yield(nil, err)
				return
			}
			row, err := r.build(columns, values)
			if !yield(row, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterate rows: %w", err))
		}
	}
}

// Collect returns every row.
func (r Relation) Collect(ctx context.Context) ([]any, error) {
	var out []any
	for row, err := range r.Rows(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// ToRecord materializes the relation as an Arrow record. Column types come
// from the engine, so an empty result is still typed. The caller must
// Release the record.
func (r Relation) ToRecord(ctx context.Context) (arrow.Record, error) {
	res, err := r.db.fetch(ctx, r.SQL())
	if err != nil {
		return nil, err
	}
	rec, err := arrowconv.NewRecord(memory.DefaultAllocator, res.columns, res.rows)
	if err != nil {
		return nil, fmt.Errorf("build record: %w", err)
	}
	return rec, nil
}

// ToSeries materializes a single-column relation as a named Arrow column.
// The caller must Release it.
func (r Relation) ToSeries(ctx context.Context) (*arrow.Column, error) {
	rec, err := r.ToRecord(ctx)
	if err != nil {
		return nil, err
	}
	defer rec.Release()

	if rec.NumCols() != 1 {
		return nil, ErrType("Relation.ToSeries() was invoked on a relation with %d columns, while exactly 1 is required!",
			rec.NumCols())
	}
	chunked := arrow.NewChunked(rec.Column(0).DataType(), []arrow.Array{rec.Column(0)})
	defer chunked.Release()
	return arrow.NewColumn(rec.Schema().Field(0), chunked), nil
}

// Equal reports whether the relation has the same rows as other, in order.
// Rows compare by column name, numbers by value. other may be a Relation, a
// SQL string or an Arrow record.
func (r Relation) Equal(ctx context.Context, other any) (bool, error) {
	res, err := r.db.fetch(ctx, r.SQL())
	if err != nil {
		return false, err
	}
	left := keyedRows(res.names(), res.rows)

	var right []map[string]any
	switch o := other.(type) {
	case arrow.Record:
		names, rows := arrowconv.Rows(o)
		right = keyedRows(names, rows)
	case Relation:
		ores, err := o.db.fetch(ctx, o.SQL())
		if err != nil {
			return false, err
		}
		right = keyedRows(ores.names(), ores.rows)
	default:
		rel, err := r.db.ToRelation(ctx, other)
		if err != nil {
			return false, err
		}
		ores, err := r.db.fetch(ctx, rel.SQL())
		if err != nil {
			return false, err
		}
		right = keyedRows(ores.names(), ores.rows)
	}
	return rowsEqual(left, right), nil
}

// IsCardinalityError reports whether err is a CardinalityError of any kind.
func IsCardinalityError(err error) bool {
	var ce *CardinalityError
	return errors.As(err, &ce)
}
