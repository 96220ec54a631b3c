package relation

import (
	"fmt"

	"duckrel/internal/plan"
)

// ValueError is returned when an argument does not fit the relation, such as
// renaming a column that does not exist.
type ValueError = plan.ValueError

// TypeError is returned when relations, or a relation and a table, are
// structurally incompatible, or when an operation needs a bound model.
type TypeError = plan.TypeError

// ErrValue creates a ValueError with a formatted message.
func ErrValue(format string, args ...interface{}) *ValueError {
	return plan.ErrValue(format, args...)
}

// ErrType creates a TypeError with a formatted message.
func ErrType(format string, args ...interface{}) *TypeError {
	return plan.ErrType(format, args...)
}

// CardinalityKind tells which cardinality check failed.
type CardinalityKind int

const (
	// RowDoesNotExist means a lookup matched no rows.
	RowDoesNotExist CardinalityKind = iota + 1
	// MultipleRowsReturned means a lookup matched more than one row.
	MultipleRowsReturned
)

func (k CardinalityKind) String() string {
	switch k {
	case RowDoesNotExist:
		return "row does not exist"
	case MultipleRowsReturned:
		return "multiple rows returned"
	default:
		return "unknown"
	}
}

// CardinalityError indicates that a single-row lookup matched zero or several rows.
type CardinalityError struct {
	Kind    CardinalityKind
	Rows    int64
	Message string
}

func (e *CardinalityError) Error() string { return e.Message }

// Is lets errors.Is match on the kind alone: errors.Is(err, ErrRowDoesNotExist).
func (e *CardinalityError) Is(target error) bool {
	t, ok := target.(*CardinalityError)
	return ok && t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is.
var (
	ErrRowDoesNotExist      = &CardinalityError{Kind: RowDoesNotExist}
	ErrMultipleRowsReturned = &CardinalityError{Kind: MultipleRowsReturned}
)

// AttributeError indicates access to a column that does not exist.
type AttributeError struct {
	Message string
}

func (e *AttributeError) Error() string { return e.Message }

// ErrAttribute creates an AttributeError with a formatted message.
func ErrAttribute(format string, args ...interface{}) *AttributeError {
	return &AttributeError{Message: fmt.Sprintf(format, args...)}
}

func cardinalityError(args string, rows int64) *CardinalityError {
	kind := MultipleRowsReturned
	if rows == 0 {
		kind = RowDoesNotExist
	}
	return &CardinalityError{
		Kind:    kind,
		Rows:    rows,
		Message: fmt.Sprintf("Relation.Get(%s) returned %d rows!", args, rows),
	}
}
