package relation

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duckrel/config"
	"duckrel/internal/arrowconv"
	"duckrel/schema"
)

type item struct {
	ID       int64    `db:"id"`
	Name     string   `db:"name"`
	Price    *float64 `db:"price"`
	Category string   `db:"category" enum:"A,B,C" default:"A"`
}

var itemModel = schema.MustFor[item]()

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(context.Background(), config.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// rowValues collects the rows of rel as positional values.
func rowValues(t *testing.T, rel Relation) [][]any {
	t.Helper()
	rows, err := rel.Collect(context.Background())
	require.NoError(t, err)
	out := make([][]any, len(rows))
	for i, r := range rows {
		row, ok := r.(Row)
		require.True(t, ok, "expected Row, got %T", r)
		out[i] = row.Values()
	}
	return out
}

func columns(t *testing.T, rel Relation) []string {
	t.Helper()
	cols, err := rel.Columns(context.Background())
	require.NoError(t, err)
	return cols
}

func TestProjectMatchesSelect(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rel := db.Query("SELECT 1 AS a, 2 AS b, 3 AS c")

	tests := []struct {
		name  string
		items []Projection
		sel   Relation
	}{
		{"same_order", []Projection{Raw("a, b")}, rel.Select("a", "b")},
		{"permuted", []Projection{Raw("b, a")}, rel.Select("a", "b")},
		{"single", []Projection{Col("c")}, rel.Select("c")},
		{"named", []Projection{As("a", "a"), Raw("c")}, rel.Select("c", "a")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			projected, err := rel.Project(ctx, tt.items...)
			require.NoError(t, err)
			eq, err := projected.Equal(ctx, tt.sel)
			require.NoError(t, err)
			assert.True(t, eq)
		})
	}

	eq, err := rel.Select("a").Equal(ctx, rel.Select("b"))
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestProject_StarWithNamedProjections(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rel := db.Query("SELECT 1 AS a, 2 AS b")

	overwritten, err := rel.Project(ctx, Raw("*"), As("a", "a + 10"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, columns(t, overwritten))
	assert.Equal(t, [][]any{{int64(2), int64(11)}}, rowValues(t, overwritten))

	added, err := rel.Project(ctx, Raw("*"), As("c", "a * 2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, columns(t, added))
	assert.Equal(t, [][]any{{int64(1), int64(2), int64(2)}}, rowValues(t, added))

	plain, err := rel.Project(ctx, Raw("*"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, columns(t, plain))
}

func TestUnion_DoesNotDeduplicate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rel := db.Query("SELECT * FROM (VALUES (1, 'x'), (2, 'y')) t(a, b)")

	doubled, err := rel.Add(ctx, rel)
	require.NoError(t, err)

	n, err := doubled.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	eq, err := doubled.Equal(ctx, rel)
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestUnion_ReordersRightColumns(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	left := db.Query("SELECT 1 AS a, 'x' AS b")
	right := db.Query("SELECT 'y' AS b, 2 AS a")

	union, err := left.Union(ctx, right)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, columns(t, union))
	assert.Equal(t, [][]any{{int64(1), "x"}, {int64(2), "y"}}, rowValues(t, union.Order("a")))

	reversed, err := right.Union(ctx, left)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, columns(t, reversed))
}

func TestUnion_MismatchedColumns(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	tests := []struct {
		name  string
		left  string
		right string
		want  string
	}{
		{
			name:  "extra_left",
			left:  "SELECT 1 AS a, 2 AS b",
			right: "SELECT 1 AS a",
			want:  "Union between relations with different column names is not allowed. Additional columns in left relation: {'b'}.",
		},
		{
			name:  "extra_right",
			left:  "SELECT 1 AS a",
			right: "SELECT 1 AS a, 2 AS c",
			want:  "Union between relations with different column names is not allowed. Additional columns in right relation: {'c'}.",
		},
		{
			name:  "empty_relations",
			left:  "SELECT 1 AS a WHERE false",
			right: "SELECT 1 AS z WHERE false",
			want:  "Union between relations with different column names is not allowed. Additional columns in left relation: {'a'}. Additional columns in right relation: {'z'}.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Query(tt.left).Union(ctx, db.Query(tt.right))
			var typeErr *TypeError
			require.ErrorAs(t, err, &typeErr)
			assert.Equal(t, tt.want, typeErr.Message)
		})
	}
}

func TestGet_Cardinality(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rel := db.Query("SELECT * FROM (VALUES (1, 'a'), (2, 'b'), (2, 'c')) t(id, name)")

	_, err := rel.Get(ctx, Eq("id", 3))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRowDoesNotExist))
	assert.Equal(t, "Relation.Get(id=3) returned 0 rows!", err.Error())

	_, err = rel.Get(ctx, Eq("id", 2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMultipleRowsReturned))
	assert.False(t, errors.Is(err, ErrRowDoesNotExist))
	assert.Equal(t, "Relation.Get(id=2) returned 2 rows!", err.Error())

	_, err = rel.Get(ctx)
	var ce *CardinalityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(3), ce.Rows)
	assert.Equal(t, "Relation.Get() returned 3 rows!", ce.Message)

	_, err = rel.Get(ctx, Where("id > 1"), Eq("name", "z"))
	assert.Equal(t, `Relation.Get("id > 1",name="z") returned 0 rows!`, err.Error())
	assert.True(t, IsCardinalityError(err))

	got, err := rel.Get(ctx, Eq("id", 1))
	require.NoError(t, err)
	row, ok := got.(Row)
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name"}, row.Columns())
	assert.Equal(t, map[string]any{"id": int64(1), "name": "a"}, row.Map())

	name, err := row.Get("name")
	require.NoError(t, err)
	assert.Equal(t, "a", name)
}

func TestGet_TypedModel(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rel := db.Query("SELECT 2 AS id, 'pear' AS name, 1.5::DOUBLE AS price, 'B' AS category").SetModel(itemModel)

	got, err := GetAs[item](ctx, rel)
	require.NoError(t, err)
	require.NotNil(t, got.Price)
	assert.Equal(t, item{ID: 2, Name: "pear", Price: got.Price, Category: "B"}, got)
	assert.Equal(t, 1.5, *got.Price)

	_, err = GetAs[Row](ctx, rel)
	var typeErr *TypeError
	require.ErrorAs(t, err, &typeErr)
}

func TestGet_ValidationErrorPropagates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rel := db.Query("SELECT 1 AS id, 'x' AS name, NULL AS price, 'Z' AS category").SetModel(itemModel)

	_, err := rel.Get(ctx)
	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Problems, 1)
	assert.Equal(t, "category", verr.Problems[0].Field)
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rel := db.Query("SELECT 1 AS a, 2 AS b")

	_, err := rel.Rename(ctx, map[string]string{"x": "y"})
	var valueErr *ValueError
	require.ErrorAs(t, err, &valueErr)
	assert.Equal(t, "Column 'x' can not be renamed as it does not exist. The columns of the relation are: a, b.", valueErr.Message)

	renamed, err := rel.Rename(ctx, map[string]string{"a": "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, columns(t, renamed))

	overwritten, err := rel.Rename(ctx, map[string]string{"b": "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, columns(t, overwritten))
	assert.Equal(t, [][]any{{int64(2)}}, rowValues(t, overwritten))

	swapped, err := rel.Rename(ctx, map[string]string{"a": "b", "b": "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, columns(t, swapped))
	assert.Equal(t, [][]any{{int64(1), int64(2)}}, rowValues(t, swapped))
}

func TestSchemaPropagation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	bound := db.Query("SELECT 1 AS id, 'apple' AS name").SetModel(itemModel)
	other := db.Query("SELECT 1 AS supplier_id")

	renamed, err := bound.Rename(ctx, map[string]string{"name": "title"})
	require.NoError(t, err)
	prefixed, err := bound.AddPrefix(ctx, "x_")
	require.NoError(t, err)
	withCols, err := bound.WithColumns(ctx, As("id", "id + 1"))
	require.NoError(t, err)
	projected, err := bound.Project(ctx, Raw("id"))
	require.NoError(t, err)

	lost := map[string]Relation{
		"project":      projected,
		"select":       bound.Select("id"),
		"drop":         bound.Drop("name"),
		"aggregate":    bound.Aggregate([]string{"id"}, Col("id")),
		"inner_join":   bound.InnerJoin(other, "true"),
		"left_join":    bound.LeftJoin(other, "true"),
		"rename":       renamed,
		"add_prefix":   prefixed,
		"case":         bound.Case("name", "label", nil, "x"),
		"with_columns": withCols,
	}
	for name, rel := range lost {
		assert.Nil(t, rel.Model(), name)
	}

	union, err := bound.Union(ctx, bound)
	require.NoError(t, err)
	kept := map[string]Relation{
		"filter":   bound.Filter(Eq("id", 1)),
		"order":    bound.Order("id"),
		"limit":    bound.Limit(1, 0),
		"distinct": bound.Distinct(),
		"alias":    bound.SetAlias("a"),
		"union":    union,
		"coalesce": bound.Coalesce(map[string]any{"name": "-"}),
	}
	for name, rel := range kept {
		assert.Same(t, itemModel, rel.Model(), name)
	}

	assert.Same(t, itemModel, projected.SetModel(itemModel).Model())
	assert.Nil(t, bound.SetModel(nil).Model())
}

func TestNullHandling(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	rec, err := arrowconv.NewRecord(memory.DefaultAllocator,
		[]arrowconv.Column{{Name: "id", Type: "BIGINT"}, {Name: "value", Type: "DOUBLE"}},
		[][]any{{int64(1), 1.5}, {int64(2), math.NaN()}, {int64(3), nil}})
	require.NoError(t, err)
	defer rec.Release()

	rel, err := db.ToRelation(ctx, rec)
	require.NoError(t, err)

	n, err := rel.Filter(IsNull("value")).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = rel.Filter(Eq("value", nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = rel.Filter(NotNull("value")).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestInsertInto(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.Execute(ctx, "CREATE TABLE foo (a INTEGER, b VARCHAR)"))

	table, err := db.Query("SELECT 'x' AS b, 1 AS a, true AS extra").InsertInto(ctx, "foo")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1), "x"}}, rowValues(t, table))

	_, err = db.Query("SELECT 1 AS a").InsertInto(ctx, "foo")
	var typeErr *TypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "Relation is missing column(s) {'b'} in order to be inserted into table 'foo'!", typeErr.Message)
}

func TestAggregate(t *testing.T) {
	db := newTestDB(t)
	rel := db.Query("SELECT * FROM (VALUES (2, 1000, 1), (1, 10, 1), (1, 100, 2)) t(a, b, c)")

	agg := rel.Aggregate([]string{"a"}, Col("a"), As("b_sum", "sum(b)"))
	assert.Equal(t, []string{"a", "b_sum"}, columns(t, agg))
	assert.Equal(t, [][]any{{int64(1), int64(110)}, {int64(2), int64(1000)}}, rowValues(t, agg))

	total := rel.Aggregate(nil, As("n", "count(*)"), As("c_max", "max(c)"))
	assert.Equal(t, [][]any{{int64(3), int64(2)}}, rowValues(t, total))
}

func TestToSeries(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rel := db.Query("SELECT * FROM (VALUES (1, 'x'), (2, 'y')) t(a, b)")

	_, err := rel.ToSeries(ctx)
	var typeErr *TypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "Relation.ToSeries() was invoked on a relation with 2 columns, while exactly 1 is required!", typeErr.Message)

	series, err := rel.Select("a").ToSeries(ctx)
	require.NoError(t, err)
	defer series.Release()
	assert.Equal(t, "a", series.Name())
	assert.Equal(t, 2, series.Len())
	assert.Equal(t, arrow.INT32, series.DataType().ID())
}

func TestToRecord_EmptyIsTyped(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	rec, err := db.Query("SELECT 1::INTEGER AS a, 'x' AS b, now()::TIMESTAMP AS c").Filter(Where("false")).ToRecord(ctx)
	require.NoError(t, err)
	defer rec.Release()

	assert.Equal(t, int64(0), rec.NumRows())
	require.Equal(t, int64(3), rec.NumCols())
	assert.Equal(t, arrow.INT32, rec.Schema().Field(0).Type.ID())
	assert.Equal(t, arrow.STRING, rec.Schema().Field(1).Type.ID())
	assert.Equal(t, arrow.TIMESTAMP, rec.Schema().Field(2).Type.ID())
}

func TestToRecord(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	rec, err := db.Query("SELECT * FROM (VALUES (1, 'x'), (2, NULL)) t(a, b)").Order("a").ToRecord(ctx)
	require.NoError(t, err)
	defer rec.Release()

	names, rows := arrowconv.Rows(rec)
	assert.Equal(t, []string{"a", "b"}, names)
	assert.Equal(t, [][]any{{int32(1), "x"}, {int32(2), nil}}, rows)
}

func TestAll(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rel := db.Query("SELECT * FROM (VALUES (2, 1, 0), (4, 3, 0), (6, 5, 0)) t(even, odd, zero)")

	tests := []struct {
		name  string
		preds []Predicate
		want  bool
	}{
		{"no_predicates", nil, true},
		{"all_hold", []Predicate{Where("even % 2 = 0"), Where("odd % 2 = 1"), Eq("zero", 0)}, true},
		{"one_fails", []Predicate{Where("even > 2")}, false},
		{"none_hold", []Predicate{Eq("zero", 1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rel.All(ctx, tt.preds...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	ok, err := rel.Filter(Where("false")).All(ctx, Eq("zero", 1))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = rel.All(ctx, Where("missing_column = 1"))
	require.Error(t, err)
}

func TestRows(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rel := db.Query("SELECT * FROM range(5) t(n)").Order("n DESC")

	for pass := 0; pass < 2; pass++ {
		var got []any
		for row, err := range rel.Rows(ctx) {
			require.NoError(t, err)
			v, err := row.(Row).Get("n")
			require.NoError(t, err)
			got = append(got, v)
		}
		assert.Equal(t, []any{int64(4), int64(3), int64(2), int64(1), int64(0)}, got)
	}

	var first []any
	for row, err := range rel.Rows(ctx) {
		require.NoError(t, err)
		first = append(first, row)
		break
	}
	assert.Len(t, first, 1)

	for _, err := range db.Query("SELECT * FROM missing_table").Rows(ctx) {
		require.Error(t, err)
	}
}

func TestRows_TypedModel(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rel := db.Query("SELECT * FROM (VALUES (1, 'a', 'A'), (2, 'b', 'C')) t(id, name, category)").SetModel(itemModel)

	rows, err := rel.Order("id").Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{
		item{ID: 1, Name: "a", Category: "A"},
		item{ID: 2, Name: "b", Category: "C"},
	}, rows)
}

func TestCoalesce(t *testing.T) {
	db := newTestDB(t)
	rel := db.Query("SELECT * FROM (VALUES (1, NULL), (NULL, 'x')) t(a, b)").
		Coalesce(map[string]any{"a": 0, "b": "-"})

	assert.Equal(t, []string{"a", "b"}, columns(t, rel))
	assert.Equal(t, [][]any{{int64(0), "x"}, {int64(1), "-"}}, rowValues(t, rel.Order("a")))
}

func TestCase(t *testing.T) {
	db := newTestDB(t)
	rel := db.Query("SELECT * FROM (VALUES ('A'), ('B'), (NULL)) t(shelf)").
		Case("shelf", "label", []CaseBranch{{When: "A", Then: "first"}, {When: nil, Then: "none"}}, "other")

	assert.Equal(t, []string{"shelf", "label"}, columns(t, rel))
	assert.Equal(t, [][]any{{"first"}, {"none"}, {"other"}}, rowValues(t, rel.Select("label").Order("label")))
}

func TestRow_DuplicateColumns(t *testing.T) {
	row := NewRow([]string{"a", "b", "b"}, []any{int32(1), "one", "q"})

	assert.Equal(t, []any{int64(1), "one", "q"}, row.Values())
	assert.Equal(t, `a=1 b="one" b="q"`, row.String())
	assert.Equal(t, map[string]any{"a": int64(1), "b": "one"}, row.Map())

	b, err := row.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "one", b)
}

func TestAffixes(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rel := db.Query("SELECT 1 AS a, 2 AS b")

	tests := []struct {
		name string
		run  func() (Relation, error)
		want []string
	}{
		{"prefix_all", func() (Relation, error) { return rel.AddPrefix(ctx, "x_") }, []string{"x_a", "x_b"}},
		{"suffix_include", func() (Relation, error) { return rel.AddSuffix(ctx, "_y", Include("a")) }, []string{"a_y", "b"}},
		{"suffix_exclude", func() (Relation, error) { return rel.AddSuffix(ctx, "_y", Exclude("a")) }, []string{"a", "b_y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.run()
			require.NoError(t, err)
			assert.Equal(t, tt.want, columns(t, got))
		})
	}

	_, err := rel.AddPrefix(ctx, "x_", Include("a"), Exclude("b"))
	var typeErr *TypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "Both include and exclude provided at the same time!", typeErr.Message)
}

func TestWithColumns(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rel := db.Query("SELECT 1 AS a, 2 AS b")

	got, err := rel.WithColumns(ctx, As("a", "a + 10"), As("c", "b * 2"), Value("d", "k"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, columns(t, got))
	assert.Equal(t, [][]any{{int64(11), int64(2), int64(4), "k"}}, rowValues(t, got))

	_, err = rel.WithColumns(ctx, Raw("a + 1"))
	var valueErr *ValueError
	require.ErrorAs(t, err, &valueErr)
}

func TestDrop(t *testing.T) {
	db := newTestDB(t)
	assert.Equal(t, []string{"b"}, columns(t, db.Query("SELECT 1 AS a, 2 AS b, 3 AS c").Drop("a", "c")))
}

func TestWithMissingColumns(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	base := db.Query("SELECT 1 AS id, 'apple' AS name").SetModel(itemModel)

	_, err := base.SetModel(nil).WithMissingNullableColumns(ctx)
	var typeErr *TypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Contains(t, typeErr.Message, "WithMissingNullableColumns() invoked without")

	_, err = base.WithMissingDefaultableColumns(ctx, Include("category"), Exclude("id"))
	require.ErrorAs(t, err, &typeErr)

	withNulls, err := base.WithMissingNullableColumns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "price"}, columns(t, withNulls))
	assert.Same(t, itemModel, withNulls.Model())

	unchanged, err := base.WithMissingNullableColumns(ctx, Exclude("price"))
	require.NoError(t, err)
	assert.Equal(t, base.SQL(), unchanged.SQL())

	full, err := withNulls.WithMissingDefaultableColumns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "price", "category"}, columns(t, full))

	types, err := full.SQLTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"id":       "BIGINT",
		"name":     "VARCHAR",
		"price":    "DOUBLE",
		"category": schema.EnumTypeName([]string{"A", "B", "C"}),
	}, types)

	engineTypes, err := full.Types(ctx)
	require.NoError(t, err)
	assert.Equal(t, "INTEGER", engineTypes["id"])

	got, err := GetAs[item](ctx, full)
	require.NoError(t, err)
	assert.Equal(t, item{ID: 1, Name: "apple", Category: "A"}, got)
}

func TestJoin(t *testing.T) {
	db := newTestDB(t)
	products := db.Query("SELECT * FROM (VALUES ('apple', 2), ('banana', 1), ('orange', 3)) t(product_name, supplier_id)").SetAlias("p")
	suppliers := db.Query("SELECT * FROM (VALUES (1, 'fruitco'), (2, 'applecorp')) t(id, supplier_name)").SetAlias("s")

	inner := products.InnerJoin(suppliers, "p.supplier_id = s.id").Order("product_name")
	assert.Equal(t, []string{"product_name", "supplier_id", "id", "supplier_name"}, columns(t, inner))
	assert.Equal(t, [][]any{
		{"apple", int64(2), int64(2), "applecorp"},
		{"banana", int64(1), int64(1), "fruitco"},
	}, rowValues(t, inner))

	left := products.LeftJoin(suppliers, "p.supplier_id = s.id")
	rows := rowValues(t, left.Select("product_name", "supplier_name").Order("product_name"))
	assert.Equal(t, [][]any{{"apple", "applecorp"}, {"banana", "fruitco"}, {"orange", nil}}, rows)
}

func TestEqual(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rel := db.Query("SELECT * FROM (VALUES (1, 'x'), (2, 'y')) t(a, b)")

	eq, err := rel.Equal(ctx, "SELECT * FROM (VALUES (1::BIGINT, 'x'), (2::BIGINT, 'y')) t(a, b)")
	require.NoError(t, err)
	assert.True(t, eq, "integer widths compare by value")

	eq, err = rel.Equal(ctx, "SELECT * FROM (VALUES ('x', 1.0), ('y', 2.0)) t(b, a)")
	require.NoError(t, err)
	assert.True(t, eq, "columns compare by name")

	eq, err = rel.Equal(ctx, "SELECT * FROM (VALUES (2, 'y'), (1, 'x')) t(a, b)")
	require.NoError(t, err)
	assert.False(t, eq, "row order matters")

	rec, err := arrowconv.NewRecord(memory.DefaultAllocator,
		[]arrowconv.Column{{Name: "a", Type: "INTEGER"}, {Name: "b", Type: "VARCHAR"}},
		[][]any{{1, "x"}, {2, "y"}})
	require.NoError(t, err)
	defer rec.Release()

	eq, err = rel.Equal(ctx, rec)
	require.NoError(t, err)
	assert.True(t, eq)

	_, err = rel.Equal(ctx, 42)
	require.Error(t, err)
}

func TestEqual_ExactNumbers(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	tests := []struct {
		name  string
		left  string
		right string
		want  bool
	}{
		{"bigint_above_2_53", "SELECT 9007199254740993::BIGINT AS x", "SELECT 9007199254740992::BIGINT AS x", false},
		{"same_bigint", "SELECT 9007199254740993::BIGINT AS x", "SELECT 9007199254740993::HUGEINT AS x", true},
		{"ubigint", "SELECT 18446744073709551615::UBIGINT AS x", "SELECT 18446744073709551614::UBIGINT AS x", false},
		{"hugeint", "SELECT 1180591620717411303425::HUGEINT AS x", "SELECT 1180591620717411303424::HUGEINT AS x", false},
		{"decimal_digits", "SELECT 1.0000000000000000001::DECIMAL(38,19) AS x", "SELECT 1.0000000000000000002::DECIMAL(38,19) AS x", false},
		{"decimal_scale", "SELECT 1.50::DECIMAL(10,2) AS x", "SELECT 1.5::DECIMAL(10,1) AS x", true},
		{"decimal_vs_integer", "SELECT 2.00::DECIMAL(10,2) AS x", "SELECT 2 AS x", true},
		{"integer_vs_double", "SELECT 3 AS x", "SELECT 3.0::DOUBLE AS x", true},
		{"decimal_vs_double", "SELECT 0.25::DECIMAL(4,2) AS x", "SELECT 0.25::DOUBLE AS x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eq, err := db.Query(tt.left).Equal(ctx, db.Query(tt.right))
			require.NoError(t, err)
			assert.Equal(t, tt.want, eq)
		})
	}
}

func TestColumnAccess(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rel := db.Query("SELECT 1 AS a, 2 AS b")

	col, err := rel.Column(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, columns(t, col))

	_, err = rel.Column(ctx, "zzz")
	var attrErr *AttributeError
	require.ErrorAs(t, err, &attrErr)
	assert.Equal(t, "Relation has no attribute 'zzz'", attrErr.Message)

	got, err := rel.Get(ctx)
	require.NoError(t, err)
	_, err = got.(Row).Get("zzz")
	require.ErrorAs(t, err, &attrErr)
	assert.Equal(t, "Row has no attribute 'zzz'", attrErr.Message)
	assert.Equal(t, "a=1 b=2", got.(Row).String())
}

func TestCreateTableAndView(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rel := db.Query("SELECT * FROM (VALUES (1, 'x'), (2, 'y')) t(a, b)")

	table, err := rel.CreateTable(ctx, "copied")
	require.NoError(t, err)
	n, err := table.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	view, err := rel.Filter(Eq("a", 2)).CreateView(ctx, "only_two")
	require.NoError(t, err)
	eq, err := view.Equal(ctx, "SELECT 2 AS a, 'y' AS b")
	require.NoError(t, err)
	assert.True(t, eq)

	ok, err := db.Contains(ctx, "only_two")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = rel.CreateTable(ctx, "bad name")
	require.Error(t, err)
}

func TestExecuteAndString(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rel := db.Table("items").Filter(Eq("name", "O'Neil")).Limit(10, 5)
	assert.Equal(t, `SELECT * FROM (SELECT * FROM "items" WHERE "name" = 'O''Neil') LIMIT 10 OFFSET 5`, rel.String())

	rows, err := db.Query("SELECT 42 AS answer").Execute(ctx)
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var answer int
	require.NoError(t, rows.Scan(&answer))
	assert.Equal(t, 42, answer)
}

func TestPredicateSQL(t *testing.T) {
	tests := []struct {
		pred  Predicate
		sql   string
		label string
	}{
		{Where("a > 1"), "(a > 1)", `"a > 1"`},
		{Eq("name", "O'Neil"), `"name" = 'O''Neil'`, `name="O'Neil"`},
		{Eq("n", 3), `"n" = 3`, "n=3"},
		{Eq("ok", true), `"ok" = TRUE`, "ok=true"},
		{IsNull("x"), `"x" IS NULL`, "x=nil"},
		{NotNull("x"), `"x" IS NOT NULL`, "x!=nil"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.sql, tt.pred.SQL())
			assert.Equal(t, tt.label, tt.pred.String())
		})
	}
}
