package schema

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	bytesType   = reflect.TypeOf([]byte(nil))
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

// kindTypes maps Go kinds to DuckDB column types.
var kindTypes = map[reflect.Kind]string{
	reflect.String:  "VARCHAR",
	reflect.Bool:    "BOOLEAN",
	reflect.Int:     "BIGINT",
	reflect.Int64:   "BIGINT",
	reflect.Int32:   "INTEGER",
	reflect.Int16:   "SMALLINT",
	reflect.Int8:    "TINYINT",
	reflect.Uint:    "UBIGINT",
	reflect.Uint64:  "UBIGINT",
	reflect.Uint32:  "UINTEGER",
	reflect.Uint16:  "USMALLINT",
	reflect.Uint8:   "UTINYINT",
	reflect.Float64: "DOUBLE",
	reflect.Float32: "FLOAT",
}

// nullTypes maps the database/sql null wrappers to the DuckDB type they carry.
var nullTypes = map[reflect.Type]string{
	reflect.TypeOf(sql.NullString{}):  "VARCHAR",
	reflect.TypeOf(sql.NullBool{}):    "BOOLEAN",
	reflect.TypeOf(sql.NullInt64{}):   "BIGINT",
	reflect.TypeOf(sql.NullInt32{}):   "INTEGER",
	reflect.TypeOf(sql.NullInt16{}):   "SMALLINT",
	reflect.TypeOf(sql.NullByte{}):    "UTINYINT",
	reflect.TypeOf(sql.NullFloat64{}): "DOUBLE",
	reflect.TypeOf(sql.NullTime{}):    "TIMESTAMP",
}

// SQLType returns the DuckDB column type for a Go type and whether values of
// the type may be NULL. Pointers, sql.Null* wrappers and sql.Null[T] are
// nullable and map to the type they wrap.
func SQLType(t reflect.Type) (typ string, nullable bool, err error) {
	if t.Kind() == reflect.Pointer {
		inner, _, err := SQLType(t.Elem())
		return inner, true, err
	}
	if typ, ok := nullTypes[t]; ok {
		return typ, true, nil
	}
	if inner, ok := nullGenericValue(t); ok {
		typ, _, err := SQLType(inner)
		return typ, true, err
	}

	switch t {
	case timeType:
		return "TIMESTAMP", false, nil
	case uuidType:
		return "UUID", false, nil
	case bytesType:
		return "BLOB", false, nil
	}
	if typ, ok := kindTypes[t.Kind()]; ok {
		return typ, false, nil
	}
	if t.Kind() == reflect.Slice {
		inner, _, err := SQLType(t.Elem())
		if err != nil {
			return "", false, err
		}
		return inner + "[]", false, nil
	}
	return "", false, fmt.Errorf("no DuckDB type for Go type %s", t)
}

// nullGenericValue recognises sql.Null[T]: a struct with a V field and a
// Valid bool whose pointer implements sql.Scanner.
func nullGenericValue(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Struct || !reflect.PointerTo(t).Implements(scannerType) {
		return nil, false
	}
	v, ok := t.FieldByName("V")
	if !ok {
		return nil, false
	}
	valid, ok := t.FieldByName("Valid")
	if !ok || valid.Type.Kind() != reflect.Bool {
		return nil, false
	}
	return v.Type, true
}

// EnumTypeName returns the name of the DuckDB enum type holding values. The
// same set of values always yields the same name, regardless of order.
func EnumTypeName(values []string) string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	quoted := make([]string, len(sorted))
	for i, v := range sorted {
		quoted[i] = "'" + v + "'"
	}
	sum := md5.Sum([]byte(strings.Join(quoted, ", ")))
	return "enum__" + hex.EncodeToString(sum[:])
}
