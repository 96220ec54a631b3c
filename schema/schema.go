// Package schema describes the rows of a relation: ordered, typed fields with
// nullability, defaults and enum domains, plus a constructor that builds one
// validated row value from one result row.
package schema

import (
	"fmt"
	"slices"
	"strings"
)

// Field is one declared column of a row schema.
type Field struct {
	Name       string
	Type       string // DuckDB column type; enum fields carry their enum type name
	Nullable   bool
	Default    any
	HasDefault bool
	Enum       []string
}

// Schema is a named, ordered row description able to construct row values.
type Schema interface {
	Name() string
	Fields() []Field
	// New builds one row from column values. Validation failures are
	// returned as *ValidationError.
	New(values map[string]any) (any, error)
}

// Columns returns the field names in declaration order.
func Columns(s Schema) []string {
	fields := s.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// NullableColumns returns the names of fields that accept NULL.
func NullableColumns(s Schema) []string {
	var names []string
	for _, f := range s.Fields() {
		if f.Nullable {
			names = append(names, f.Name)
		}
	}
	return names
}

// NonNullableColumns returns the names of fields that reject NULL.
func NonNullableColumns(s Schema) []string {
	var names []string
	for _, f := range s.Fields() {
		if !f.Nullable {
			names = append(names, f.Name)
		}
	}
	return names
}

// Defaults maps every field that declares a default to that default.
func Defaults(s Schema) map[string]any {
	out := make(map[string]any)
	for _, f := range s.Fields() {
		if f.HasDefault {
			out[f.Name] = f.Default
		}
	}
	return out
}

// SQLTypes maps every field to its DuckDB column type.
func SQLTypes(s Schema) map[string]string {
	out := make(map[string]string)
	for _, f := range s.Fields() {
		out[f.Name] = f.Type
	}
	return out
}

// Lookup returns the named field.
func Lookup(s Schema, name string) (Field, bool) {
	for _, f := range s.Fields() {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldProblem is one reason a row failed validation.
type FieldProblem struct {
	Field   string
	Message string
}

// ValidationError is returned when a row does not satisfy its schema.
type ValidationError struct {
	Schema   string
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.Field + ": " + p.Message
	}
	return fmt.Sprintf("%s: validation failed: %s", e.Schema, strings.Join(parts, "; "))
}

// resolve applies defaults and checks nullability and enum membership,
// returning the values to construct a row from.
func resolve(name string, fields []Field, values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	var problems []FieldProblem
	for _, f := range fields {
		v, ok := values[f.Name]
		if !ok && f.HasDefault {
			v, ok = f.Default, true
		}
		if v == nil {
			if !f.Nullable {
				msg := "value is required"
				if ok {
					msg = "value must not be null"
				}
				problems = append(problems, FieldProblem{Field: f.Name, Message: msg})
			}
			out[f.Name] = nil
			continue
		}
		if len(f.Enum) > 0 {
			s, isString := v.(string)
			if !isString || !slices.Contains(f.Enum, s) {
				problems = append(problems, FieldProblem{
					Field:   f.Name,
					Message: fmt.Sprintf("value %v is not one of %s", v, strings.Join(f.Enum, ", ")),
				})
				continue
			}
		}
		out[f.Name] = v
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Schema: name, Problems: problems}
	}
	return out, nil
}

// Dynamic is a schema built from explicit fields. Its rows are
// map[string]any holding exactly the declared fields.
type Dynamic struct {
	name   string
	fields []Field
}

// Define builds a Dynamic schema.
func Define(name string, fields ...Field) *Dynamic {
	return &Dynamic{name: name, fields: fields}
}

// Name returns the schema name given to Define.
func (d *Dynamic) Name() string { return d.name }

// Fields returns the fields in declaration order.
func (d *Dynamic) Fields() []Field { return d.fields }

func (d *Dynamic) New(values map[string]any) (any, error) {
	row, err := resolve(d.name, d.fields, values)
	if err != nil {
		return nil, err
	}
	return row, nil
}
