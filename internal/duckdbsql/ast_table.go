package duckdbsql

// === Table Reference Nodes ===

// TableName represents a table name reference (up to 3-part: catalog.schema.name).
type TableName struct {
	Catalog string
	Schema  string
	Name    string
	Alias   string
}

func (*TableName) node()         {}
func (*TableName) tableRefNode() {}

// DerivedTable represents a subquery in FROM clause.
type DerivedTable struct {
	Select *SelectStmt
	Alias  string
}

func (*DerivedTable) node()         {}
func (*DerivedTable) tableRefNode() {}

// RawSubquery is a caller-supplied query text used as a FROM source. The text is
// emitted verbatim between parentheses.
type RawSubquery struct {
	SQL   string
	Alias string
}

func (*RawSubquery) node()         {}
func (*RawSubquery) tableRefNode() {}

// FuncTable represents a table-valued function in FROM (e.g., read_parquet()).
type FuncTable struct {
	Func  *FuncCall
	Alias string
}

func (*FuncTable) node()         {}
func (*FuncTable) tableRefNode() {}
