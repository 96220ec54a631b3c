package duckdbsql

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// NewLiteral converts a Go value into a SQL literal expression.
// Values without a native literal form are cast from their string rendering.
func NewLiteral(v any) Expr {
	switch x := v.(type) {
	case nil:
		return &Literal{Type: LiteralNull}
	case *Literal:
		return x
	case bool:
		return &Literal{Type: LiteralBool, Value: strconv.FormatBool(x)}
	case int:
		return number(strconv.FormatInt(int64(x), 10))
	case int8:
		return number(strconv.FormatInt(int64(x), 10))
	case int16:
		return number(strconv.FormatInt(int64(x), 10))
	case int32:
		return number(strconv.FormatInt(int64(x), 10))
	case int64:
		return number(strconv.FormatInt(x, 10))
	case uint:
		return number(strconv.FormatUint(uint64(x), 10))
	case uint8:
		return number(strconv.FormatUint(uint64(x), 10))
	case uint16:
		return number(strconv.FormatUint(uint64(x), 10))
	case uint32:
		return number(strconv.FormatUint(uint64(x), 10))
	case uint64:
		return number(strconv.FormatUint(x, 10))
	case float32:
		return floatLiteral(float64(x))
	case float64:
		return floatLiteral(x)
	case string:
		return &Literal{Type: LiteralString, Value: x}
	case []byte:
		return &TypeCastExpr{Expr: &Literal{Type: LiteralString, Value: string(x)}, TypeName: "BLOB"}
	case time.Time:
		return &TypeCastExpr{
			Expr:     &Literal{Type: LiteralString, Value: x.UTC().Format("2006-01-02 15:04:05.999999")},
			TypeName: "TIMESTAMP",
		}
	case uuid.UUID:
		return &TypeCastExpr{Expr: &Literal{Type: LiteralString, Value: x.String()}, TypeName: "UUID"}
	case fmt.Stringer:
		return &Literal{Type: LiteralString, Value: x.String()}
	default:
		return &Literal{Type: LiteralString, Value: fmt.Sprint(x)}
	}
}

func number(s string) *Literal {
	return &Literal{Type: LiteralNumber, Value: s}
}

func floatLiteral(f float64) Expr {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return &TypeCastExpr{
			Expr:     &Literal{Type: LiteralString, Value: strconv.FormatFloat(f, 'g', -1, 64)},
			TypeName: "DOUBLE",
		}
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	return &TypeCastExpr{Expr: number(s), TypeName: "DOUBLE"}
}
