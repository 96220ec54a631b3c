package duckdbsql

// === Statement Nodes ===

// SelectStmt represents a complete SELECT statement.
type SelectStmt struct {
	Body *SelectBody
}

func (*SelectStmt) node()     {}
func (*SelectStmt) stmtNode() {}

// SelectBody represents the body of a SELECT with possible set operations.
type SelectBody struct {
	Left  *SelectCore
	Op    SetOpType   // UNION ALL or empty
	Right *SelectBody // for chained set operations
}

// SetOpType represents the type of set operation.
type SetOpType string

// SetOpNone and SetOpUnionAll are the set operations a relation can produce.
// UNION (deduplicating) is deliberately absent.
const (
	SetOpNone     SetOpType = ""
	SetOpUnionAll SetOpType = "UNION ALL"
)

// SelectCore represents the core SELECT clause with all optional clauses.
type SelectCore struct {
	Distinct bool
	Columns  []SelectItem
	From     *FromClause
	Where    Expr
	GroupBy  []Expr
	OrderBy  []OrderByItem
	Limit    Expr
	Offset   Expr
}

// SelectItem represents an item in the SELECT list.
type SelectItem struct {
	Star      bool           // SELECT *
	Expr      Expr           // expression
	Alias     string         // AS alias
	Modifiers []StarModifier // DuckDB: EXCLUDE, REPLACE
}

// FromClause represents the FROM clause.
type FromClause struct {
	Source TableRef
	Joins  []*Join
}

// Join represents a JOIN clause.
type Join struct {
	Type      JoinType
	Right     TableRef
	Condition Expr // ON clause
}

// JoinType represents the type of join.
type JoinType string

// JoinInner and JoinLeft are the join kinds a relation can build.
const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
)

// OrderByItem represents an item in ORDER BY clause.
type OrderByItem struct {
	Expr Expr
	Desc bool
}

// === DML Statement Nodes ===

// InsertStmt represents INSERT INTO table (cols) SELECT ...
type InsertStmt struct {
	Table   *TableName
	Columns []string
	Query   *SelectStmt
}

func (*InsertStmt) node()     {}
func (*InsertStmt) stmtNode() {}
