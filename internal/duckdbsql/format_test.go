package duckdbsql

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func col(name string) *ColumnRef { return &ColumnRef{Column: name} }

func from(name string) *FromClause {
	return &FromClause{Source: &TableName{Name: name}}
}

func TestFormat_Select(t *testing.T) {
	tests := []struct {
		name string
		stmt Stmt
		want string
	}{
		{
			name: "select_star",
			stmt: &SelectStmt{Body: &SelectBody{Left: &SelectCore{
				Columns: []SelectItem{{Star: true}},
				From:    from("t"),
			}}},
			want: `SELECT * FROM "t"`,
		},
		{
			name: "select_alias_distinct",
			stmt: &SelectStmt{Body: &SelectBody{Left: &SelectCore{
				Distinct: true,
				Columns:  []SelectItem{{Expr: col("x"), Alias: "y"}},
				From:     from("t"),
			}}},
			want: `SELECT DISTINCT "x" AS "y" FROM "t"`,
		},
		{
			name: "where_order_limit_offset",
			stmt: &SelectStmt{Body: &SelectBody{Left: &SelectCore{
				Columns: []SelectItem{{Star: true}},
				From:    from("t"),
				Where:   &BinaryExpr{Left: col("a"), Op: "=", Right: NewLiteral(1)},
				OrderBy: []OrderByItem{{Expr: col("a")}, {Expr: col("b"), Desc: true}},
				Limit:   NewLiteral(10),
				Offset:  NewLiteral(5),
			}}},
			want: `SELECT * FROM "t" WHERE "a" = 1 ORDER BY "a", "b" DESC LIMIT 10 OFFSET 5`,
		},
		{
			name: "group_by",
			stmt: &SelectStmt{Body: &SelectBody{Left: &SelectCore{
				Columns: []SelectItem{
					{Expr: col("k")},
					{Expr: &FuncCall{Name: "sum", Args: []Expr{col("v")}}, Alias: "total"},
				},
				From:    from("t"),
				GroupBy: []Expr{col("k")},
			}}},
			want: `SELECT "k", sum("v") AS "total" FROM "t" GROUP BY "k"`,
		},
		{
			name: "star_exclude_replace",
			stmt: &SelectStmt{Body: &SelectBody{Left: &SelectCore{
				Columns: []SelectItem{{Star: true, Modifiers: []StarModifier{
					&ExcludeModifier{Columns: []string{"a"}},
					&ReplaceModifier{Items: []ReplaceItem{{Expr: &RawExpr{SQL: "b * 2"}, Alias: "b"}}},
				}}},
				From: from("t"),
			}}},
			want: `SELECT * EXCLUDE ("a") REPLACE (b * 2 AS "b") FROM "t"`,
		},
		{
			name: "raw_subquery",
			stmt: &SelectStmt{Body: &SelectBody{Left: &SelectCore{
				Columns: []SelectItem{{Star: true}},
				From:    &FromClause{Source: &RawSubquery{SQL: "select 1 as a", Alias: "q"}},
			}}},
			want: `SELECT * FROM (select 1 as a) AS "q"`,
		},
		{
			name: "left_join",
			stmt: &SelectStmt{Body: &SelectBody{Left: &SelectCore{
				Columns: []SelectItem{{Star: true}},
				From: &FromClause{
					Source: &TableName{Name: "l", Alias: "l"},
					Joins: []*Join{{
						Type:      JoinLeft,
						Right:     &TableName{Name: "r", Alias: "r"},
						Condition: &RawExpr{SQL: "l.id = r.id"},
					}},
				},
			}}},
			want: `SELECT * FROM "l" AS "l" LEFT JOIN "r" AS "r" ON l.id = r.id`,
		},
		{
			name: "union_all",
			stmt: &SelectStmt{Body: &SelectBody{
				Left: &SelectCore{Columns: []SelectItem{{Star: true}}, From: from("a")},
				Op:   SetOpUnionAll,
				Right: &SelectBody{Left: &SelectCore{
					Columns: []SelectItem{{Expr: col("x")}},
					From:    from("b"),
				}},
			}},
			want: `SELECT * FROM "a" UNION ALL SELECT "x" FROM "b"`,
		},
		{
			name: "func_table",
			stmt: &SelectStmt{Body: &SelectBody{Left: &SelectCore{
				Columns: []SelectItem{{Star: true}},
				From: &FromClause{Source: &FuncTable{
					Func: &FuncCall{Name: "read_parquet", Args: []Expr{NewLiteral("data/x.parquet")}},
				}},
			}}},
			want: `SELECT * FROM read_parquet('data/x.parquet')`,
		},
		{
			name: "qualified_table",
			stmt: &SelectStmt{Body: &SelectBody{Left: &SelectCore{
				Columns: []SelectItem{{Star: true}},
				From:    &FromClause{Source: &TableName{Schema: "main", Name: "weird\"name"}},
			}}},
			want: `SELECT * FROM "main"."weird""name"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.stmt))
		})
	}
}

func TestFormat_Insert(t *testing.T) {
	stmt := &InsertStmt{
		Table:   &TableName{Name: "dst"},
		Columns: []string{"a", "b"},
		Query: &SelectStmt{Body: &SelectBody{Left: &SelectCore{
			Columns: []SelectItem{{Expr: col("a")}, {Expr: col("b")}},
			From:    from("src"),
		}}},
	}
	assert.Equal(t, `INSERT INTO "dst" ("a", "b") SELECT "a", "b" FROM "src"`, Format(stmt))
}

func TestFormatExpr(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"count_star_filter", &FuncCall{Name: "count", Star: true, Filter: &RawExpr{SQL: "a > 1"}}, `count(*) FILTER (WHERE a > 1)`},
		{"count_distinct", &FuncCall{Name: "count", Distinct: true, Args: []Expr{col("a")}}, `count(DISTINCT "a")`},
		{"is_null", &IsNullExpr{Expr: col("a")}, `"a" IS NULL`},
		{"is_not_null", &IsNullExpr{Expr: col("a"), Not: true}, `"a" IS NOT NULL`},
		{"not", &UnaryExpr{Op: "NOT", Expr: &ParenExpr{Expr: &RawExpr{SQL: "x"}}}, `NOT (x)`},
		{"negate", &UnaryExpr{Op: "-", Expr: col("a")}, `-"a"`},
		{
			"searched_case",
			&CaseExpr{
				Whens: []WhenClause{{Condition: &RawExpr{SQL: "a = 1"}, Result: NewLiteral("one")}},
				Else:  NewLiteral(nil),
			},
			`CASE WHEN a = 1 THEN 'one' ELSE NULL END`,
		},
		{
			"simple_case",
			&CaseExpr{Operand: col("a"), Whens: []WhenClause{{Condition: NewLiteral(1), Result: NewLiteral(true)}}},
			`CASE "a" WHEN 1 THEN TRUE END`,
		},
		{"cast", &TypeCastExpr{Expr: NewLiteral(nil), TypeName: "INTEGER"}, `NULL::INTEGER`},
		{"qualified_star", &StarExpr{Table: "l"}, `"l".*`},
		{"qualified_column", &ColumnRef{Table: "r", Column: "id"}, `"r"."id"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatExpr(tt.expr))
		})
	}
}

func TestNewLiteral(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, "NULL"},
		{"true", true, "TRUE"},
		{"false", false, "FALSE"},
		{"int", 42, "42"},
		{"negative_int64", int64(-7), "-7"},
		{"uint8", uint8(255), "255"},
		{"float", 1.5, "1.5::DOUBLE"},
		{"nan", math.NaN(), "'NaN'::DOUBLE"},
		{"string", "it's", "'it''s'"},
		{"bytes", []byte("ab"), "'ab'::BLOB"},
		{"time", ts, "'2024-03-01 12:30:00'::TIMESTAMP"},
		{"uuid", id, "'6ba7b810-9dad-11d1-80b4-00c04fd430c8'::UUID"},
		{"stringer", time.Duration(0), "'0s'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatExpr(NewLiteral(tt.value)))
		})
	}
}
