package duckdbsql

import "strings"

// formatExpr dispatches expression formatting by type.
func (f *formatter) formatExpr(e Expr) {
	if e == nil {
		return
	}

	switch expr := e.(type) {
	case *Literal:
		f.formatLiteral(expr)
	case *ColumnRef:
		f.formatColumnRef(expr)
	case *BinaryExpr:
		f.formatExpr(expr.Left)
		f.space()
		f.write(expr.Op)
		f.space()
		f.formatExpr(expr.Right)
	case *UnaryExpr:
		f.formatUnaryExpr(expr)
	case *ParenExpr:
		f.write("(")
		f.formatExpr(expr.Expr)
		f.write(")")
	case *FuncCall:
		f.formatFuncCall(expr)
	case *CaseExpr:
		f.formatCaseExpr(expr)
	case *TypeCastExpr:
		f.formatExpr(expr.Expr)
		f.write("::")
		f.write(expr.TypeName)
	case *IsNullExpr:
		f.formatExpr(expr.Expr)
		if expr.Not {
			f.write(" IS NOT NULL")
		} else {
			f.write(" IS NULL")
		}
	case *StarExpr:
		if expr.Table != "" {
			f.writeIdent(expr.Table)
			f.write(".")
		}
		f.write("*")
		f.formatStarModifiers(expr.Modifiers)
	case *RawExpr:
		f.write(expr.SQL)
	}
}

func (f *formatter) formatLiteral(lit *Literal) {
	switch lit.Type {
	case LiteralString:
		f.write(QuoteString(lit.Value))
	case LiteralBool:
		f.write(strings.ToUpper(lit.Value))
	case LiteralNull:
		f.write("NULL")
	default:
		// Number
		f.write(lit.Value)
	}
}

// QuoteString wraps a value in single quotes, doubling embedded single quotes.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (f *formatter) formatColumnRef(col *ColumnRef) {
	if col.Table != "" {
		f.writeIdent(col.Table)
		f.write(".")
	}
	f.writeIdent(col.Column)
}

func (f *formatter) formatUnaryExpr(expr *UnaryExpr) {
	if expr.Op == "NOT" {
		f.write("NOT ")
	} else {
		f.write(expr.Op)
	}
	f.formatExpr(expr.Expr)
}

func (f *formatter) formatFuncCall(fn *FuncCall) {
	// Function names are written unquoted in original case
	f.write(fn.Name)
	f.write("(")

	if fn.Distinct {
		f.write("DISTINCT ")
	}

	if fn.Star {
		f.write("*")
	} else {
		f.commaSep(len(fn.Args), func(i int) {
			f.formatExpr(fn.Args[i])
		})
	}
	f.write(")")

	if fn.Filter != nil {
		f.write(" FILTER (WHERE ")
		f.formatExpr(fn.Filter)
		f.write(")")
	}
}

func (f *formatter) formatCaseExpr(c *CaseExpr) {
	f.write("CASE")
	if c.Operand != nil {
		f.space()
		f.formatExpr(c.Operand)
	}
	for _, w := range c.Whens {
		f.write(" WHEN ")
		f.formatExpr(w.Condition)
		f.write(" THEN ")
		f.formatExpr(w.Result)
	}
	if c.Else != nil {
		f.write(" ELSE ")
		f.formatExpr(c.Else)
	}
	f.write(" END")
}

func (f *formatter) formatStarModifiers(mods []StarModifier) {
	for _, mod := range mods {
		switch m := mod.(type) {
		case *ExcludeModifier:
			f.write(" EXCLUDE (")
			f.commaSep(len(m.Columns), func(i int) {
				f.writeIdent(m.Columns[i])
			})
			f.write(")")
		case *ReplaceModifier:
			f.write(" REPLACE (")
			f.commaSep(len(m.Items), func(i int) {
				f.formatExpr(m.Items[i].Expr)
				f.write(" AS ")
				f.writeIdent(m.Items[i].Alias)
			})
			f.write(")")
		}
	}
}

func (f *formatter) formatOrderByItem(item OrderByItem) {
	f.formatExpr(item.Expr)
	if item.Desc {
		f.write(" DESC")
	}
}
