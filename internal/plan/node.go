// Package plan models relational queries as an immutable tree of plan nodes.
// Builders are pure: they never touch the engine, and every node renders to a
// single DuckDB SELECT statement.
package plan

import (
	"strings"

	"duckrel/internal/duckdbsql"
)

// Node is one step of a query plan. Nodes are never mutated after construction.
type Node interface {
	planNode()
}

// === Sources ===

// RawQuery is caller-supplied SQL used verbatim.
type RawQuery struct {
	SQL string
}

// TableScan reads every column of a table or view.
type TableScan struct {
	Name string // optionally qualified: schema.table or catalog.schema.table
}

// FileScan reads a file through a DuckDB table function (read_parquet, read_csv_auto).
type FileScan struct {
	Reader string
	Path   string
}

// === Operators ===

// Project replaces the column list of its input.
type Project struct {
	Input Node
	Items []duckdbsql.SelectItem
}

// Filter keeps the input rows for which every predicate holds.
type Filter struct {
	Input      Node
	Predicates []duckdbsql.Expr
}

// Order sorts the input.
type Order struct {
	Input Node
	By    []duckdbsql.OrderByItem
}

// Limit caps the number of rows, skipping Offset rows first.
type Limit struct {
	Input  Node
	Count  int64
	Offset int64
}

// Distinct removes duplicate rows.
type Distinct struct {
	Input Node
}

// Alias names the input so join conditions and fragments can qualify its columns.
type Alias struct {
	Input Node
	Name  string
}

// Join combines two inputs. Column collisions are left to the engine.
type Join struct {
	Left  Node
	Right Node
	Kind  duckdbsql.JoinType
	On    duckdbsql.Expr
}

// Aggregate groups its input. Groups come back in ascending GroupBy order.
type Aggregate struct {
	Input   Node
	Items   []duckdbsql.SelectItem
	GroupBy []string
}

// UnionAll concatenates two inputs with identical column order. Rows are never
// deduplicated.
type UnionAll struct {
	Left  Node
	Right Node
}

// Exclude drops columns from its input.
type Exclude struct {
	Input   Node
	Columns []string
}

// Coalesce replaces nulls in some columns, keeping the column order.
type Coalesce struct {
	Input Node
	Items []duckdbsql.ReplaceItem
}

// Replace overwrites existing columns in place and appends new ones.
type Replace struct {
	Input  Node
	Items  []duckdbsql.ReplaceItem
	Append []duckdbsql.SelectItem
}

// FillMissing appends typed constant columns that a row schema declares but
// the input lacks.
type FillMissing struct {
	Input   Node
	Columns []duckdbsql.SelectItem
}

func (*RawQuery) planNode()    {}
func (*TableScan) planNode()   {}
func (*FileScan) planNode()    {}
func (*Project) planNode()     {}
func (*Filter) planNode()      {}
func (*Order) planNode()       {}
func (*Limit) planNode()       {}
func (*Distinct) planNode()    {}
func (*Alias) planNode()       {}
func (*Join) planNode()        {}
func (*Aggregate) planNode()   {}
func (*UnionAll) planNode()    {}
func (*Exclude) planNode()     {}
func (*Coalesce) planNode()    {}
func (*Replace) planNode()     {}
func (*FillMissing) planNode() {}

// Query wraps caller SQL as a plan source. Trailing semicolons are dropped so
// the text can be nested as a subquery.
func Query(sql string) Node {
	return &RawQuery{SQL: strings.TrimRight(strings.TrimSpace(sql), "; \t\n")}
}

// Table scans a table or view by name.
func Table(name string) Node {
	return &TableScan{Name: name}
}

// File scans a parquet or CSV file. The reader is chosen from the extension.
func File(path string) Node {
	reader := "read_parquet"
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".csv.gz") || strings.HasSuffix(lower, ".tsv") {
		reader = "read_csv_auto"
	}
	return &FileScan{Reader: reader, Path: path}
}

// PreservesSchema reports whether a node keeps the column set and order of its
// input, so a row schema bound to the input still describes the output.
func PreservesSchema(n Node) bool {
	switch n.(type) {
	case *Filter, *Order, *Limit, *Distinct, *Alias, *UnionAll, *Coalesce, *FillMissing:
		return true
	default:
		return false
	}
}
