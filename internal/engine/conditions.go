package engine

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/shaiso/Pagebind/internal/domain"
)

// Операторы условий отображения.
const (
	OpIs         = "is"
	OpNot        = "not"
	OpEqual      = "="
	OpNotEqual   = "!="
	OpGreater    = ">"
	OpGreaterEq  = ">="
	OpLess       = "<"
	OpLessEq     = "<="
	OpBetween    = "between"
	OpNotBetween = "not_between"
	OpInclude    = "include"
	OpNotInclude = "not_include"
)

var validOps = map[string]bool{
	OpIs: true, OpNot: true, OpEqual: true, OpNotEqual: true,
	OpGreater: true, OpGreaterEq: true, OpLess: true, OpLessEq: true,
	OpBetween: true, OpNotBetween: true, OpInclude: true, OpNotInclude: true,
}

// IsValidOp проверяет, известен ли оператор.
func IsValidOp(op string) bool {
	return validOps[op]
}

// EvalDisplayConds вычисляет группы условий.
//
// Группы объединяются через OR, условия внутри группы — через AND.
// Пустой список групп означает "видим всегда". Условие, для которого
// в контексте нет значения поля, считается невыполненным.
func EvalDisplayConds(groups []domain.CondGroup, ctx *Context) (bool, error) {
	if len(groups) == 0 {
		return true, nil
	}

	for _, group := range groups {
		matched := true
		for _, cond := range group.Cond {
			ok, err := EvalCond(cond, ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				matched = false
				break
			}
		}
		if matched {
			return true, nil
		}
	}

	return false, nil
}

// EvalCond вычисляет одно условие.
func EvalCond(cond domain.Cond, ctx *Context) (bool, error) {
	if len(cond.Field) < 2 {
		return false, fmt.Errorf("%w: %v", ErrInvalidCondField, cond.Field)
	}
	if !IsValidOp(cond.Op) {
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, cond.Op)
	}

	fieldValue, ok := ctx.Lookup(cond.Field)
	if !ok {
		return false, nil
	}

	return CompareOp(cond.Op, fieldValue, cond.Value, cond.Range)
}

// CompareOp применяет оператор к значению поля.
func CompareOp(op string, fieldValue, value any, rng []float64) (bool, error) {
	switch op {
	case OpIs:
		return strictEqual(fieldValue, value), nil
	case OpNot:
		return !strictEqual(fieldValue, value), nil
	case OpEqual:
		return looseEqual(fieldValue, value), nil
	case OpNotEqual:
		return !looseEqual(fieldValue, value), nil
	case OpGreater, OpGreaterEq, OpLess, OpLessEq:
		return compareOrdered(op, fieldValue, value), nil
	case OpBetween:
		n, ok := looseNumber(fieldValue)
		return ok && len(rng) >= 2 && n >= rng[0] && n <= rng[1], nil
	case OpNotBetween:
		n, ok := looseNumber(fieldValue)
		return !ok || len(rng) < 2 || n < rng[0] || n > rng[1], nil
	case OpInclude:
		return contains(fieldValue, value), nil
	case OpNotInclude:
		return fieldValue == nil || !contains(fieldValue, value), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}
}

// strictEqual — равенство без приведения типов (числа сравниваются по значению).
func strictEqual(a, b any) bool {
	na, okA := number(a)
	nb, okB := number(b)
	if okA || okB {
		return okA && okB && na == nb
	}
	return reflect.DeepEqual(a, b)
}

// looseEqual — равенство с приведением строк к числам.
func looseEqual(a, b any) bool {
	na, okA := looseNumber(a)
	nb, okB := looseNumber(b)
	if okA && okB {
		return na == nb
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compareOrdered(op string, a, b any) bool {
	na, okA := looseNumber(a)
	nb, okB := looseNumber(b)
	if okA && okB {
		switch op {
		case OpGreater:
			return na > nb
		case OpGreaterEq:
			return na >= nb
		case OpLess:
			return na < nb
		default:
			return na <= nb
		}
	}

	sa, okA := a.(string)
	sb, okB := b.(string)
	if !okA || !okB {
		return false
	}
	c := strings.Compare(sa, sb)
	switch op {
	case OpGreater:
		return c > 0
	case OpGreaterEq:
		return c >= 0
	case OpLess:
		return c < 0
	default:
		return c <= 0
	}
}

func contains(container, value any) bool {
	switch v := container.(type) {
	case string:
		if value == nil {
			return false
		}
		return strings.Contains(v, fmt.Sprint(value))
	case []any:
		for _, item := range v {
			if looseEqual(item, value) {
				return true
			}
		}
	case []string:
		s := fmt.Sprint(value)
		for _, item := range v {
			if item == s {
				return true
			}
		}
	case map[string]any:
		_, ok := v[fmt.Sprint(value)]
		return ok
	}
	return false
}

// number извлекает число из числовых типов.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// looseNumber дополнительно разбирает числовые строки.
func looseNumber(v any) (float64, bool) {
	if n, ok := number(v); ok {
		return n, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}
