package schema

import (
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
)

// Model is a Schema derived from the exported fields of struct T.
//
// Field tags:
//
//	db:"name"          column name (default: snake_case of the field name), "-" skips
//	default:"value"    default used when the column is absent
//	enum:"A,B,C"       allowed string values, stored as a DuckDB enum type
//	sqltype:"TYPE"     explicit DuckDB column type
//
// Pointer, sql.Null* and sql.Null[T] fields are nullable.
type Model[T any] struct {
	name   string
	fields []Field
	keys   map[string]string // column name -> decoder key
}

// For builds the Model of struct type T.
func For[T any]() (*Model[T], error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema: %s is not a struct", t)
	}

	m := &Model[T]{name: t.Name(), keys: make(map[string]string)}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		tag := sf.Tag.Get("db")
		if tag == "-" {
			continue
		}
		name, key := tag, tag
		if name == "" {
			name, key = snakeCase(sf.Name), sf.Name
		}

		f, err := fieldFor(name, sf)
		if err != nil {
			return nil, fmt.Errorf("schema: %s.%s: %w", t.Name(), sf.Name, err)
		}
		m.fields = append(m.fields, f)
		m.keys[name] = key
	}
	if len(m.fields) == 0 {
		return nil, fmt.Errorf("schema: %s has no exported fields", t)
	}
	return m, nil
}

// MustFor is For that panics on error, for package-level model variables.
func MustFor[T any]() *Model[T] {
	m, err := For[T]()
	if err != nil {
		panic(err)
	}
	return m
}

func fieldFor(name string, sf reflect.StructField) (Field, error) {
	typ, nullable, err := SQLType(sf.Type)
	if err != nil {
		return Field{}, err
	}
	f := Field{Name: name, Type: typ, Nullable: nullable}

	if enum, ok := sf.Tag.Lookup("enum"); ok {
		if base(sf.Type).Kind() != reflect.String {
			return Field{}, fmt.Errorf("enum tag on non-string field")
		}
		for _, v := range strings.Split(enum, ",") {
			f.Enum = append(f.Enum, strings.TrimSpace(v))
		}
		f.Type = EnumTypeName(f.Enum)
	}
	if explicit, ok := sf.Tag.Lookup("sqltype"); ok {
		f.Type = explicit
	}
	if def, ok := sf.Tag.Lookup("default"); ok {
		v, err := parseDefault(base(sf.Type), def)
		if err != nil {
			return Field{}, fmt.Errorf("default %q: %w", def, err)
		}
		f.Default, f.HasDefault = v, true
	}
	return f, nil
}

// base strips pointers and null wrappers down to the value type.
func base(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t {
	case reflect.TypeOf(sql.NullString{}):
		return reflect.TypeOf("")
	case reflect.TypeOf(sql.NullBool{}):
		return reflect.TypeOf(false)
	case reflect.TypeOf(sql.NullInt64{}):
		return reflect.TypeOf(int64(0))
	case reflect.TypeOf(sql.NullInt32{}):
		return reflect.TypeOf(int32(0))
	case reflect.TypeOf(sql.NullInt16{}):
		return reflect.TypeOf(int16(0))
	case reflect.TypeOf(sql.NullByte{}):
		return reflect.TypeOf(byte(0))
	case reflect.TypeOf(sql.NullFloat64{}):
		return reflect.TypeOf(float64(0))
	case reflect.TypeOf(sql.NullTime{}):
		return timeType
	}
	if inner, ok := nullGenericValue(t); ok {
		return base(inner)
	}
	return t
}

func parseDefault(t reflect.Type, s string) (any, error) {
	if t == timeType {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, nil
			}
		}
		return nil, fmt.Errorf("not a timestamp")
	}
	if t == uuidType {
		return uuid.Parse(s)
	}
	switch t.Kind() {
	case reflect.String:
		return s, nil
	case reflect.Bool:
		return strconv.ParseBool(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.ParseInt(s, 10, t.Bits())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.ParseUint(s, 10, t.Bits())
	case reflect.Float32, reflect.Float64:
		return strconv.ParseFloat(s, t.Bits())
	}
	return nil, fmt.Errorf("defaults are not supported for %s", t)
}

// Name returns the struct type name.
func (m *Model[T]) Name() string { return m.name }

// Fields returns the fields in struct order.
func (m *Model[T]) Fields() []Field { return m.fields }

// New validates values and decodes them into a T.
func (m *Model[T]) New(values map[string]any) (any, error) {
	v, err := m.Decode(values)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Decode validates values and decodes them into a T.
func (m *Model[T]) Decode(values map[string]any) (T, error) {
	var out T
	resolved, err := resolve(m.name, m.fields, values)
	if err != nil {
		return out, err
	}

	input := make(map[string]any, len(resolved))
	for col, v := range resolved {
		input[m.keys[col]] = v
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &out,
		TagName: "db",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			uuidHook,
			scannerHook,
		),
	})
	if err != nil {
		return out, fmt.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		return out, fmt.Errorf("decode %s: %w", m.name, err)
	}
	return out, nil
}

// uuidHook accepts the string and 16-byte forms the driver may return.
func uuidHook(from, to reflect.Type, data any) (any, error) {
	if to != uuidType || from == uuidType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return uuid.Parse(v)
	case []byte:
		return uuid.FromBytes(v)
	case [16]byte:
		return uuid.UUID(v), nil
	}
	return data, nil
}

// scannerHook fills sql.Scanner value types (sql.NullString, sql.Null[T], ...)
// through their Scan method.
func scannerHook(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Struct || from == to || !reflect.PointerTo(to).Implements(scannerType) {
		return data, nil
	}
	ptr := reflect.New(to)
	if err := ptr.Interface().(sql.Scanner).Scan(data); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

// snakeCase converts a Go field name such as ProductID to product_id.
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && !unicode.IsUpper(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || (nextLower && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
