// Package arrowconv converts between DuckDB result rows and Arrow record
// batches, the tabular buffer format relations materialize into.
package arrowconv

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// baseType upper-cases a DuckDB type name and strips parameters, so
// DECIMAL(18,3) becomes DECIMAL and VARCHAR[] stays a list.
func baseType(duckType string) string {
	t := strings.ToUpper(strings.TrimSpace(duckType))
	if strings.HasSuffix(t, "[]") {
		return "LIST"
	}
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

// ArrowType returns the Arrow type a DuckDB column is materialized as.
// Types without a direct counterpart (enums, UUIDs, nested types) become strings;
// DECIMAL and HUGEINT become float64.
func ArrowType(duckType string) arrow.DataType {
	switch baseType(duckType) {
	case "BOOLEAN", "BOOL":
		return arrow.FixedWidthTypes.Boolean
	case "TINYINT", "INT1":
		return arrow.PrimitiveTypes.Int8
	case "SMALLINT", "INT2":
		return arrow.PrimitiveTypes.Int16
	case "INTEGER", "INT", "INT4":
		return arrow.PrimitiveTypes.Int32
	case "BIGINT", "INT8":
		return arrow.PrimitiveTypes.Int64
	case "UTINYINT":
		return arrow.PrimitiveTypes.Uint8
	case "USMALLINT":
		return arrow.PrimitiveTypes.Uint16
	case "UINTEGER":
		return arrow.PrimitiveTypes.Uint32
	case "UBIGINT":
		return arrow.PrimitiveTypes.Uint64
	case "FLOAT", "REAL", "FLOAT4":
		return arrow.PrimitiveTypes.Float32
	case "DOUBLE", "FLOAT8", "DECIMAL", "NUMERIC", "HUGEINT", "UHUGEINT":
		return arrow.PrimitiveTypes.Float64
	case "BLOB", "BYTEA":
		return arrow.BinaryTypes.Binary
	case "DATE":
		return arrow.FixedWidthTypes.Date32
	case "TIMESTAMP", "DATETIME", "TIMESTAMP_US":
		return &arrow.TimestampType{Unit: arrow.Microsecond}
	case "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE":
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
	case "TIME":
		return arrow.FixedWidthTypes.Time64us
	default:
		return arrow.BinaryTypes.String
	}
}

// DuckDBType returns the column type used to store an Arrow column in DuckDB.
func DuckDBType(dt arrow.DataType) (string, error) {
	switch dt.ID() {
	case arrow.BOOL:
		return "BOOLEAN", nil
	case arrow.INT8:
		return "TINYINT", nil
	case arrow.INT16:
		return "SMALLINT", nil
	case arrow.INT32:
		return "INTEGER", nil
	case arrow.INT64:
		return "BIGINT", nil
	case arrow.UINT8:
		return "UTINYINT", nil
	case arrow.UINT16:
		return "USMALLINT", nil
	case arrow.UINT32:
		return "UINTEGER", nil
	case arrow.UINT64:
		return "UBIGINT", nil
	case arrow.FLOAT32:
		return "FLOAT", nil
	case arrow.FLOAT64:
		return "DOUBLE", nil
	case arrow.STRING, arrow.LARGE_STRING:
		return "VARCHAR", nil
	case arrow.BINARY, arrow.LARGE_BINARY:
		return "BLOB", nil
	case arrow.DATE32, arrow.DATE64:
		return "DATE", nil
	case arrow.TIMESTAMP:
		return "TIMESTAMP", nil
	case arrow.TIME32, arrow.TIME64:
		return "TIME", nil
	case arrow.NULL:
		// An all-null column carries no type; VARCHAR accepts the NULLs.
		return "VARCHAR", nil
	}
	return "", fmt.Errorf("arrow type %s has no DuckDB column type", dt)
}
