package plan

import (
	"strconv"
	"strings"

	"duckrel/internal/duckdbsql"
)

// Render lowers a plan to DuckDB SQL. Raw queries render as written.
func Render(n Node) string {
	if raw, ok := n.(*RawQuery); ok {
		return raw.SQL
	}
	return duckdbsql.Format(Lower(n))
}

// Lower converts a plan into a SELECT statement AST.
func Lower(n Node) *duckdbsql.SelectStmt {
	switch node := n.(type) {
	case *UnionAll:
		return &duckdbsql.SelectStmt{Body: &duckdbsql.SelectBody{
			Left:  starFrom(node.Left),
			Op:    duckdbsql.SetOpUnionAll,
			Right: &duckdbsql.SelectBody{Left: starFrom(node.Right)},
		}}
	default:
		return &duckdbsql.SelectStmt{Body: &duckdbsql.SelectBody{Left: lowerCore(n)}}
	}
}

func lowerCore(n Node) *duckdbsql.SelectCore {
	switch node := n.(type) {
	case *RawQuery, *TableScan, *FileScan, *Alias:
		return starFrom(node)

	case *Project:
		return &duckdbsql.SelectCore{Columns: node.Items, From: fromClause(node.Input)}

	case *Filter:
		core := starFrom(node.Input)
		core.Where = and(node.Predicates)
		return core

	case *Order:
		core := starFrom(node.Input)
		core.OrderBy = node.By
		return core

	case *Limit:
		core := starFrom(node.Input)
		core.Limit = number(node.Count)
		if node.Offset > 0 {
			core.Offset = number(node.Offset)
		}
		return core

	case *Distinct:
		core := starFrom(node.Input)
		core.Distinct = true
		return core

	case *Join:
		from := fromClause(node.Left)
		from.Joins = append(from.Joins, &duckdbsql.Join{
			Type:      node.Kind,
			Right:     tableRef(node.Right),
			Condition: node.On,
		})
		return &duckdbsql.SelectCore{Columns: []duckdbsql.SelectItem{{Star: true}}, From: from}

	case *Aggregate:
		core := &duckdbsql.SelectCore{Columns: node.Items, From: fromClause(node.Input)}
		for _, g := range node.GroupBy {
			core.GroupBy = append(core.GroupBy, &duckdbsql.ColumnRef{Column: g})
			core.OrderBy = append(core.OrderBy, duckdbsql.OrderByItem{Expr: &duckdbsql.ColumnRef{Column: g}})
		}
		return core

	case *Exclude:
		return &duckdbsql.SelectCore{
			Columns: []duckdbsql.SelectItem{{
				Star:      true,
				Modifiers: []duckdbsql.StarModifier{&duckdbsql.ExcludeModifier{Columns: node.Columns}},
			}},
			From: fromClause(node.Input),
		}

	case *Coalesce:
		return &duckdbsql.SelectCore{
			Columns: []duckdbsql.SelectItem{{
				Star:      true,
				Modifiers: []duckdbsql.StarModifier{&duckdbsql.ReplaceModifier{Items: node.Items}},
			}},
			From: fromClause(node.Input),
		}

	case *Replace:
		star := duckdbsql.SelectItem{Star: true}
		if len(node.Items) > 0 {
			star.Modifiers = []duckdbsql.StarModifier{&duckdbsql.ReplaceModifier{Items: node.Items}}
		}
		return &duckdbsql.SelectCore{
			Columns: append([]duckdbsql.SelectItem{star}, node.Append...),
			From:    fromClause(node.Input),
		}

	case *FillMissing:
		return &duckdbsql.SelectCore{
			Columns: append([]duckdbsql.SelectItem{{Star: true}}, node.Columns...),
			From:    fromClause(node.Input),
		}

	case *UnionAll:
		// A union used as a core is wrapped so it can take further clauses.
		return &duckdbsql.SelectCore{
			Columns: []duckdbsql.SelectItem{{Star: true}},
			From:    &duckdbsql.FromClause{Source: &duckdbsql.DerivedTable{Select: Lower(node)}},
		}
	}
	return nil
}

func starFrom(n Node) *duckdbsql.SelectCore {
	return &duckdbsql.SelectCore{
		Columns: []duckdbsql.SelectItem{{Star: true}},
		From:    fromClause(n),
	}
}

func fromClause(n Node) *duckdbsql.FromClause {
	return &duckdbsql.FromClause{Source: tableRef(n)}
}

// tableRef turns a node into something that can sit in a FROM clause. Scans
// are referenced directly; everything else becomes a subquery.
func tableRef(n Node) duckdbsql.TableRef {
	switch node := n.(type) {
	case *RawQuery:
		return &duckdbsql.RawSubquery{SQL: node.SQL}
	case *TableScan:
		return tableName(node.Name)
	case *FileScan:
		return &duckdbsql.FuncTable{Func: &duckdbsql.FuncCall{
			Name: node.Reader,
			Args: []duckdbsql.Expr{duckdbsql.NewLiteral(node.Path)},
		}}
	case *Alias:
		switch ref := tableRef(node.Input).(type) {
		case *duckdbsql.TableName:
			ref.Alias = node.Name
			return ref
		case *duckdbsql.FuncTable:
			ref.Alias = node.Name
			return ref
		case *duckdbsql.RawSubquery:
			ref.Alias = node.Name
			return ref
		case *duckdbsql.DerivedTable:
			ref.Alias = node.Name
			return ref
		}
	}
	return &duckdbsql.DerivedTable{Select: Lower(n)}
}

func tableName(name string) *duckdbsql.TableName {
	parts := strings.Split(name, ".")
	switch len(parts) {
	case 2:
		return &duckdbsql.TableName{Schema: parts[0], Name: parts[1]}
	case 3:
		return &duckdbsql.TableName{Catalog: parts[0], Schema: parts[1], Name: parts[2]}
	default:
		return &duckdbsql.TableName{Name: name}
	}
}

func and(preds []duckdbsql.Expr) duckdbsql.Expr {
	var out duckdbsql.Expr
	for _, p := range preds {
		if out == nil {
			out = p
			continue
		}
		out = &duckdbsql.BinaryExpr{Left: out, Op: "AND", Right: p}
	}
	return out
}

func number(n int64) duckdbsql.Expr {
	return &duckdbsql.Literal{Type: duckdbsql.LiteralNumber, Value: strconv.FormatInt(n, 10)}
}

// CountQuery renders a query returning the number of rows of n.
func CountQuery(n Node) string {
	return duckdbsql.Format(&duckdbsql.SelectStmt{Body: &duckdbsql.SelectBody{Left: &duckdbsql.SelectCore{
		Columns: []duckdbsql.SelectItem{{Expr: countStar(nil)}},
		From:    fromClause(n),
	}}})
}

// AllQuery renders a query returning whether every row of n satisfies all
// predicates. Rows where a predicate is NULL do not satisfy it.
func AllQuery(n Node, predicates []duckdbsql.Expr) string {
	match := &duckdbsql.BinaryExpr{Left: countStar(nil), Op: "=", Right: countStar(and(predicates))}
	return duckdbsql.Format(&duckdbsql.SelectStmt{Body: &duckdbsql.SelectBody{Left: &duckdbsql.SelectCore{
		Columns: []duckdbsql.SelectItem{{Expr: match}},
		From:    fromClause(n),
	}}})
}

func countStar(filter duckdbsql.Expr) *duckdbsql.FuncCall {
	return &duckdbsql.FuncCall{Name: "count", Star: true, Filter: filter}
}
