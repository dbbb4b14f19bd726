package vm

import (
	"fmt"
	"io"
	"strings"

	"github.com/wippyai/gotoify/errors"
)

func defaultBuiltins() map[string]*Builtin {
	builtins := []*Builtin{
		{Name: "range", Fn: builtinRange},
		{Name: "len", Fn: builtinLen},
		{Name: "print", Fn: builtinPrint},
		{Name: "list", Fn: builtinList},
		{Name: "str", Fn: builtinStr},
	}
	m := make(map[string]*Builtin, len(builtins))
	for _, b := range builtins {
		m[b.Name] = b
	}
	return m
}

func intArgs(name string, args []Value) ([]int64, error) {
	out := make([]int64, len(args))
	for i, a := range args {
		n, ok := a.(int64)
		if !ok {
			return nil, typeError("%s() argument %d must be int, not %s", name, i+1, typeName(a))
		}
		out[i] = n
	}
	return out, nil
}

func builtinRange(_ *Machine, args []Value) (Value, error) {
	n, err := intArgs("range", args)
	if err != nil {
		return nil, err
	}
	switch len(n) {
	case 1:
		return &Range{Start: 0, Stop: n[0], Step: 1}, nil
	case 2:
		return &Range{Start: n[0], Stop: n[1], Step: 1}, nil
	case 3:
		if n[2] == 0 {
			return nil, newException(errors.KindInvalidInput, "range() step must not be zero")
		}
		return &Range{Start: n[0], Stop: n[1], Step: n[2]}, nil
	}
	return nil, arity("range", "1 to 3", len(args))
}

func builtinLen(_ *Machine, args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, arity("len", "1", len(args))
	}
	switch x := args[0].(type) {
	case string:
		return int64(len([]rune(x))), nil
	case *List:
		return int64(len(x.Items)), nil
	case *Range:
		return x.Len(), nil
	}
	return nil, typeError("object of type %s has no len()", typeName(args[0]))
}

func builtinPrint(m *Machine, args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Format(a)
	}
	if _, err := io.WriteString(m.out, strings.Join(parts, " ")+"\n"); err != nil {
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindInvalidData, err, "print")
	}
	return nil, nil
}

func builtinList(_ *Machine, args []Value) (Value, error) {
	switch len(args) {
	case 0:
		return &List{}, nil
	case 1:
	default:
		return nil, arity("list", "0 or 1", len(args))
	}
	it, exc := iterate(args[0])
	if exc != nil {
		return nil, exc
	}
	var items []Value
	for v, ok := it.Next(); ok; v, ok = it.Next() {
		items = append(items, v)
	}
	return &List{Items: items}, nil
}

func builtinStr(_ *Machine, args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, arity("str", "1", len(args))
	}
	return Format(args[0]), nil
}

func arity(name, want string, got int) *Exception {
	return newException(errors.KindInvalidInput, fmt.Sprintf("%s() takes %s arguments (%d given)", name, want, got))
}
