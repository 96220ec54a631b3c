package plan

import "fmt"

// ValueError is returned when a builder receives a value that does not fit the
// current relation, such as renaming a column that does not exist.
type ValueError struct {
	Message string
}

func (e *ValueError) Error() string { return e.Message }

// TypeError is returned when two relations, or a relation and a target, are
// structurally incompatible.
type TypeError struct {
	Message string
}

func (e *TypeError) Error() string { return e.Message }

// ErrValue creates a ValueError with the given formatted message.
func ErrValue(format string, args ...interface{}) *ValueError {
	return &ValueError{Message: fmt.Sprintf(format, args...)}
}

// ErrType creates a TypeError with the given formatted message.
func ErrType(format string, args ...interface{}) *TypeError {
	return &TypeError{Message: fmt.Sprintf(format, args...)}
}
