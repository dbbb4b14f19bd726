package vm

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/wippyai/gotoify/code"
	"github.com/wippyai/gotoify/errors"
)

// Value is any value the machine manipulates: nil, bool, int64, string,
// *List, *Range, *Iterator, Namespace, *Exception, Resource, *Builtin or
// *code.Function.
type Value = any

// List is a mutable sequence.
type List struct {
	Items []Value
}

// NewList creates a list holding items.
func NewList(items ...Value) *List {
	return &List{Items: items}
}

// Range is the lazy integer sequence returned by range().
type Range struct {
	Start, Stop, Step int64
}

// Len returns the number of integers in the range.
func (r *Range) Len() int64 {
	switch {
	case r.Step > 0 && r.Start < r.Stop:
		return (r.Stop - r.Start + r.Step - 1) / r.Step
	case r.Step < 0 && r.Start > r.Stop:
		return (r.Start - r.Stop - r.Step - 1) / -r.Step
	}
	return 0
}

// Iterator yields values until exhausted.
type Iterator struct {
	next func() (Value, bool)
}

// Next returns the next value, or false once the iterator is exhausted.
func (it *Iterator) Next() (Value, bool) {
	return it.next()
}

// Attributed values expose named attributes to LOAD_ATTR.
type Attributed interface {
	Attr(name string) (Value, bool)
}

// Namespace is a set of named values, such as a module of helpers.
type Namespace map[string]Value

func (ns Namespace) Attr(name string) (Value, bool) {
	v, ok := ns[name]
	return v, ok
}

// Resource is a value usable in a scoped-resource block. Enter's result is
// pushed for the block body; Exit runs on every way out of the block and
// may suppress the exception in flight.
type Resource interface {
	Enter() Value
	Exit(exc *Exception) (suppress bool)
}

// Builtin is a function implemented in Go.
type Builtin struct {
	Name string
	Fn   func(m *Machine, args []Value) (Value, error)
}

func iterate(v Value) (*Iterator, *Exception) {
	switch x := v.(type) {
	case *Iterator:
		return x, nil
	case *List:
		i := 0
		return &Iterator{next: func() (Value, bool) {
			if i >= len(x.Items) {
				return nil, false
			}
			i++
			return x.Items[i-1], true
		}}, nil
	case *Range:
		cur, left := x.Start, x.Len()
		return &Iterator{next: func() (Value, bool) {
			if left <= 0 {
				return nil, false
			}
			v := cur
			cur += x.Step
			left--
			return v, true
		}}, nil
	case string:
		runes := []rune(x)
		i := 0
		return &Iterator{next: func() (Value, bool) {
			if i >= len(runes) {
				return nil, false
			}
			i++
			return string(runes[i-1]), true
		}}, nil
	}
	return nil, typeError("%s is not iterable", typeName(v))
}

func truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case string:
		return x != ""
	case *List:
		return len(x.Items) > 0
	case *Range:
		return x.Len() > 0
	}
	return true
}

func typeName(v Value) string {
	switch v.(type) {
	case nil:
		return "none"
	case bool:
		return "bool"
	case int64:
		return "int"
	case string:
		return "str"
	case *List:
		return "list"
	case *Range:
		return "range"
	case *Iterator:
		return "iterator"
	case Namespace:
		return "namespace"
	case *Exception:
		return "exception"
	case *Builtin, *code.Function:
		return "function"
	case Resource:
		return "resource"
	}
	return fmt.Sprintf("%T", v)
}

func equal(a, b Value) bool {
	switch x := a.(type) {
	case *List:
		y, ok := b.(*List)
		if !ok || len(x.Items) != len(y.Items) {
			return false
		}
		for i := range x.Items {
			if !equal(x.Items[i], y.Items[i]) {
				return false
			}
		}
		return true
	case nil, bool, int64, string:
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// Format renders v the way print shows it.
func Format(v Value) string {
	switch x := v.(type) {
	case nil:
		return "none"
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		return x
	case *List:
		parts := make([]string, len(x.Items))
		for i, item := range x.Items {
			if s, ok := item.(string); ok {
				parts[i] = strconv.Quote(s)
			} else {
				parts[i] = Format(item)
			}
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Range:
		return fmt.Sprintf("range(%d, %d, %d)", x.Start, x.Stop, x.Step)
	case *Exception:
		return x.Error()
	case *Builtin:
		return "<builtin " + x.Name + ">"
	case *code.Function:
		return "<function " + x.Name() + ">"
	}
	return fmt.Sprintf("<%s>", typeName(v))
}

func binaryOp(op code.BinaryOperator, a, b Value) (Value, *Exception) {
	x, xok := a.(int64)
	y, yok := b.(int64)
	if xok && yok {
		switch op {
		case code.BinaryAdd:
			return x + y, nil
		case code.BinarySubtract:
			return x - y, nil
		case code.BinaryMultiply:
			return x * y, nil
		case code.BinaryFloorDivide, code.BinaryModulo:
			if y == 0 {
				return nil, newException(errors.KindDivisionByZero, "integer division or modulo by zero")
			}
			q, r := x/y, x%y
			// Round the quotient toward negative infinity.
			if r != 0 && (r < 0) != (y < 0) {
				q--
				r += y
			}
			if op == code.BinaryFloorDivide {
				return q, nil
			}
			return r, nil
		}
	}

	if op == code.BinaryAdd {
		switch x := a.(type) {
		case string:
			if y, ok := b.(string); ok {
				return x + y, nil
			}
		case *List:
			if y, ok := b.(*List); ok {
				items := make([]Value, 0, len(x.Items)+len(y.Items))
				items = append(append(items, x.Items...), y.Items...)
				return &List{Items: items}, nil
			}
		}
	}

	return nil, newException(errors.KindUnsupportedOperator,
		fmt.Sprintf("unsupported operand types for %s: %s and %s", op, typeName(a), typeName(b)))
}

func compare(c code.Comparison, a, b Value) (Value, *Exception) {
	switch c {
	case code.CompareEqual:
		return equal(a, b), nil
	case code.CompareNotEqual:
		return !equal(a, b), nil
	}

	var cmp int
	switch x := a.(type) {
	case int64:
		y, ok := b.(int64)
		if !ok {
			return nil, unorderable(c, a, b)
		}
		cmp = compareOrdered(x, y)
	case string:
		y, ok := b.(string)
		if !ok {
			return nil, unorderable(c, a, b)
		}
		cmp = strings.Compare(x, y)
	default:
		return nil, unorderable(c, a, b)
	}

	switch c {
	case code.CompareLess:
		return cmp < 0, nil
	case code.CompareLessEqual:
		return cmp <= 0, nil
	case code.CompareGreater:
		return cmp > 0, nil
	case code.CompareGreaterEqual:
		return cmp >= 0, nil
	}
	return nil, newException(errors.KindUnsupportedOperator, fmt.Sprintf("unknown comparison %s", c))
}

func compareOrdered(x, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func unorderable(c code.Comparison, a, b Value) *Exception {
	return newException(errors.KindUnsupportedOperator,
		fmt.Sprintf("%s not supported between %s and %s", c, typeName(a), typeName(b)))
}
