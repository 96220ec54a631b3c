package duckdbsql

// formatStmt dispatches statement formatting by type.
func (f *formatter) formatStmt(stmt Stmt) {
	if stmt == nil {
		return
	}

	switch s := stmt.(type) {
	case *SelectStmt:
		f.formatSelectStmt(s)
	case *InsertStmt:
		f.formatInsertStmt(s)
	}
}

// === SELECT ===

func (f *formatter) formatSelectStmt(stmt *SelectStmt) {
	if stmt == nil || stmt.Body == nil {
		return
	}
	f.formatSelectBody(stmt.Body)
}

func (f *formatter) formatSelectBody(body *SelectBody) {
	if body == nil {
		return
	}
	f.formatSelectCore(body.Left)

	if body.Op != SetOpNone {
		f.space()
		f.write(string(body.Op))
		f.space()
		f.formatSelectBody(body.Right)
	}
}

func (f *formatter) formatSelectCore(sc *SelectCore) {
	if sc == nil {
		return
	}

	f.write("SELECT ")
	if sc.Distinct {
		f.write("DISTINCT ")
	}

	f.commaSep(len(sc.Columns), func(i int) {
		f.formatSelectItem(sc.Columns[i])
	})

	if sc.From != nil {
		f.write(" FROM ")
		f.formatFromClause(sc.From)
	}

	if sc.Where != nil {
		f.write(" WHERE ")
		f.formatExpr(sc.Where)
	}

	if len(sc.GroupBy) > 0 {
		f.write(" GROUP BY ")
		f.commaSep(len(sc.GroupBy), func(i int) {
			f.formatExpr(sc.GroupBy[i])
		})
	}

	if len(sc.OrderBy) > 0 {
		f.write(" ORDER BY ")
		f.commaSep(len(sc.OrderBy), func(i int) {
			f.formatOrderByItem(sc.OrderBy[i])
		})
	}

	if sc.Limit != nil {
		f.write(" LIMIT ")
		f.formatExpr(sc.Limit)
	}

	if sc.Offset != nil {
		f.write(" OFFSET ")
		f.formatExpr(sc.Offset)
	}
}

func (f *formatter) formatSelectItem(item SelectItem) {
	if item.Star {
		f.write("*")
		f.formatStarModifiers(item.Modifiers)
		return
	}
	f.formatExpr(item.Expr)
	if item.Alias != "" {
		f.write(" AS ")
		f.writeIdent(item.Alias)
	}
}

func (f *formatter) formatFromClause(from *FromClause) {
	if from == nil {
		return
	}
	f.formatTableRef(from.Source)
	for _, join := range from.Joins {
		f.formatJoin(join)
	}
}

func (f *formatter) formatTableRef(ref TableRef) {
	if ref == nil {
		return
	}

	switch t := ref.(type) {
	case *TableName:
		f.formatTableName(t)
	case *DerivedTable:
		f.write("(")
		f.formatSelectStmt(t.Select)
		f.write(")")
		f.formatAlias(t.Alias)
	case *RawSubquery:
		f.write("(")
		f.write(t.SQL)
		f.write(")")
		f.formatAlias(t.Alias)
	case *FuncTable:
		f.formatFuncCall(t.Func)
		f.formatAlias(t.Alias)
	}
}

func (f *formatter) formatAlias(alias string) {
	if alias != "" {
		f.write(" AS ")
		f.writeIdent(alias)
	}
}

func (f *formatter) formatTableName(t *TableName) {
	if t.Catalog != "" {
		f.writeIdent(t.Catalog)
		f.write(".")
	}
	if t.Schema != "" {
		f.writeIdent(t.Schema)
		f.write(".")
	}
	f.writeIdent(t.Name)
	f.formatAlias(t.Alias)
}

func (f *formatter) formatJoin(join *Join) {
	if join == nil {
		return
	}
	f.space()
	f.write(string(join.Type))
	f.write(" JOIN ")
	f.formatTableRef(join.Right)

	if join.Condition != nil {
		f.write(" ON ")
		f.formatExpr(join.Condition)
	}
}

// === INSERT ===

func (f *formatter) formatInsertStmt(stmt *InsertStmt) {
	f.write("INSERT INTO ")
	f.formatTableName(stmt.Table)

	if len(stmt.Columns) > 0 {
		f.write(" (")
		f.commaSep(len(stmt.Columns), func(i int) {
			f.writeIdent(stmt.Columns[i])
		})
		f.write(")")
	}

	if stmt.Query != nil {
		f.space()
		f.formatSelectStmt(stmt.Query)
	}
}
