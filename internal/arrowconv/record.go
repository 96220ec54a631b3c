package arrowconv

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
)

// Column names a result column and its DuckDB type.
type Column struct {
	Name string
	Type string
}

// Schema returns the Arrow schema for columns. Every field is nullable.
func Schema(columns []Column) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		fields[i] = arrow.Field{Name: c.Name, Type: ArrowType(c.Type), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// NewRecord builds a record from rows of positional values. The column types
// come from columns, so an empty rows slice still yields a typed record.
// The caller owns the returned record and must Release it.
func NewRecord(mem memory.Allocator, columns []Column, rows [][]any) (arrow.Record, error) {
	schema := Schema(columns)
	builders := make([]array.Builder, len(columns))
	for i, f := range schema.Fields() {
		builders[i] = array.NewBuilder(mem, f.Type)
	}
	defer func() {
		for _, b := range builders {
			b.Release()
		}
	}()

	for r, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", r, len(row), len(columns))
		}
		for i, v := range row {
			if err := appendValue(builders[i], v); err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", columns[i].Name, r, err)
			}
		}
	}

	cols := make([]arrow.Array, len(columns))
	for i, b := range builders {
		cols[i] = b.NewArray()
	}
	record := array.NewRecord(schema, cols, int64(len(rows)))
	for _, c := range cols {
		c.Release()
	}
	return record, nil
}

// Rows extracts the column names and positional values of a record.
func Rows(rec arrow.Record) ([]string, [][]any) {
	names := make([]string, rec.NumCols())
	for i := range names {
		names[i] = rec.ColumnName(i)
	}
	rows := make([][]any, rec.NumRows())
	for r := range rows {
		row := make([]any, len(names))
		for c := range names {
			row[c] = Value(rec.Column(c), r)
		}
		rows[r] = row
	}
	return names, rows
}

func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	v = Normalize(v)

	switch bb := b.(type) {
	case *array.BooleanBuilder:
		x, ok := v.(bool)
		if !ok {
			return mismatch("bool", v)
		}
		bb.Append(x)
	case *array.Int8Builder:
		x, err := toInt64(v)
		if err != nil {
			return err
		}
		bb.Append(int8(x))
	case *array.Int16Builder:
		x, err := toInt64(v)
		if err != nil {
			return err
		}
		bb.Append(int16(x))
	case *array.Int32Builder:
		x, err := toInt64(v)
		if err != nil {
			return err
		}
		bb.Append(int32(x))
	case *array.Int64Builder:
		x, err := toInt64(v)
		if err != nil {
			return err
		}
		bb.Append(x)
	case *array.Uint8Builder:
		x, err := toUint64(v)
		if err != nil {
			return err
		}
		bb.Append(uint8(x))
	case *array.Uint16Builder:
		x, err := toUint64(v)
		if err != nil {
			return err
		}
		bb.Append(uint16(x))
	case *array.Uint32Builder:
		x, err := toUint64(v)
		if err != nil {
			return err
		}
		bb.Append(uint32(x))
	case *array.Uint64Builder:
		x, err := toUint64(v)
		if err != nil {
			return err
		}
		bb.Append(x)
	case *array.Float32Builder:
		x, err := toFloat64(v)
		if err != nil {
			return err
		}
		bb.Append(float32(x))
	case *array.Float64Builder:
		x, err := toFloat64(v)
		if err != nil {
			return err
		}
		bb.Append(x)
	case *array.StringBuilder:
		bb.Append(toString(v))
	case *array.BinaryBuilder:
		switch x := v.(type) {
		case []byte:
			bb.Append(x)
		case string:
			bb.AppendString(x)
		default:
			return mismatch("[]byte", v)
		}
	case *array.Date32Builder:
		t, ok := v.(time.Time)
		if !ok {
			return mismatch("time.Time", v)
		}
		bb.Append(arrow.Date32FromTime(t))
	case *array.TimestampBuilder:
		t, ok := v.(time.Time)
		if !ok {
			return mismatch("time.Time", v)
		}
		bb.Append(arrow.Timestamp(t.UnixMicro()))
	case *array.Time64Builder:
		t, ok := v.(time.Time)
		if !ok {
			return mismatch("time.Time", v)
		}
		bb.Append(arrow.Time64(timeOfDay(t).Microseconds()))
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case uint64:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, mismatch("integer", v)
}

func toUint64(v any) (uint64, error) {
	switch x := v.(type) {
	case uint64:
		return x, nil
	case int64:
		return uint64(x), nil
	case float64:
		return uint64(x), nil
	}
	return 0, mismatch("unsigned integer", v)
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	}
	return 0, mismatch("float", v)
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		if id, err := uuid.FromBytes(x); err == nil && len(x) == 16 {
			return id.String()
		}
		return string(x)
	case [16]byte:
		return uuid.UUID(x).String()
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func mismatch(want string, v any) error {
	return fmt.Errorf("cannot store %T as %s", v, want)
}
