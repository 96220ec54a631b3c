package duckdbsql

// === Expression Nodes ===

// ColumnRef represents a column reference, optionally qualified with table name.
type ColumnRef struct {
	Table  string // optional table/alias qualifier
	Column string // column name
}

func (*ColumnRef) node()     {}
func (*ColumnRef) exprNode() {}

// Literal represents a literal value (number, string, bool, null).
type Literal struct {
	Type  LiteralType
	Value string
}

func (*Literal) node()     {}
func (*Literal) exprNode() {}

// LiteralType represents the type of a literal.
type LiteralType int

const (
	LiteralNumber LiteralType = iota
	LiteralString
	LiteralBool
	LiteralNull
)

// BinaryExpr represents a binary expression (left op right).
// Op is the operator keyword or symbol as it should be emitted (=, AND, OR, ...).
type BinaryExpr struct {
	Left  Expr
	Op    string
	Right Expr
}

func (*BinaryExpr) node()     {}
func (*BinaryExpr) exprNode() {}

// UnaryExpr represents a unary expression (NOT x, -x).
type UnaryExpr struct {
	Op   string
	Expr Expr
}

func (*UnaryExpr) node()     {}
func (*UnaryExpr) exprNode() {}

// ParenExpr represents a parenthesized expression.
type ParenExpr struct {
	Expr Expr
}

func (*ParenExpr) node()     {}
func (*ParenExpr) exprNode() {}

// FuncCall represents a function call.
type FuncCall struct {
	Name     string // function name, written unquoted
	Distinct bool   // COUNT(DISTINCT ...)
	Args     []Expr
	Star     bool // COUNT(*)
	Filter   Expr // FILTER (WHERE ...) clause
}

func (*FuncCall) node()     {}
func (*FuncCall) exprNode() {}

// CaseExpr represents a CASE expression.
type CaseExpr struct {
	Operand Expr // CASE operand WHEN... (optional, nil for searched CASE)
	Whens   []WhenClause
	Else    Expr
}

func (*CaseExpr) node()     {}
func (*CaseExpr) exprNode() {}

// WhenClause represents a WHEN clause in a CASE expression.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// TypeCastExpr represents a DuckDB :: cast expression (expr::type).
type TypeCastExpr struct {
	Expr     Expr
	TypeName string
}

func (*TypeCastExpr) node()     {}
func (*TypeCastExpr) exprNode() {}

// IsNullExpr represents IS [NOT] NULL.
type IsNullExpr struct {
	Expr Expr
	Not  bool
}

func (*IsNullExpr) node()     {}
func (*IsNullExpr) exprNode() {}

// StarExpr represents a * or table.* expression.
type StarExpr struct {
	Table     string         // optional table qualifier
	Modifiers []StarModifier // DuckDB: EXCLUDE, REPLACE
}

func (*StarExpr) node()     {}
func (*StarExpr) exprNode() {}

// RawExpr is caller-supplied SQL preserved verbatim (predicates, projections,
// aggregate expressions written by hand).
type RawExpr struct {
	SQL string
}

func (*RawExpr) node()     {}
func (*RawExpr) exprNode() {}

// === Star Modifiers (DuckDB) ===

// StarModifier is the interface for star expression modifiers.
type StarModifier interface {
	starModifier()
}

// ExcludeModifier represents * EXCLUDE (col1, col2, ...).
type ExcludeModifier struct {
	Columns []string
}

func (*ExcludeModifier) starModifier() {}

// ReplaceItem represents a single replacement in REPLACE modifier.
type ReplaceItem struct {
	Expr  Expr
	Alias string
}

// ReplaceModifier represents * REPLACE (expr AS col, ...).
type ReplaceModifier struct {
	Items []ReplaceItem
}

func (*ReplaceModifier) starModifier() {}
