package asm

import (
	"github.com/wippyai/gotoify/code"
	"github.com/wippyai/gotoify/errors"
)

// item is one instruction awaiting layout. Jumps to marks carry a ref and
// get their operand once every offset is known.
type item struct {
	ref      string
	op       code.Opcode
	arg      uint32
	prefixes int
}

// Builder assembles a single unit.
//
// Methods record the first error and turn into no-ops afterwards; Build
// reports it.
type Builder struct {
	format   code.Format
	marks    map[string]int
	name     string
	consts   []any
	names    []string
	varnames []string
	items    []item
	err      error
	nargs    int
	stack    int
}

// NewBuilder creates a builder for a unit called name in format f. A nil
// format selects code.Wordcode.
func NewBuilder(name string, f code.Format) *Builder {
	if f == nil {
		f = code.Wordcode
	}
	return &Builder{
		format: f,
		name:   name,
		marks:  make(map[string]int),
	}
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// Args declares the unit's parameters. They occupy the first local slots,
// so Args must come before any other local is used.
func (b *Builder) Args(names ...string) *Builder {
	if len(b.varnames) != b.nargs {
		return b.fail(errors.New(errors.PhaseAssemble, errors.KindInvalidInput).
			Unit(b.name).
			Detail("arguments declared after locals").
			Build())
	}
	b.varnames = append(b.varnames, names...)
	b.nargs = len(b.varnames)
	return b
}

// StackSize records the unit's stack size hint.
func (b *Builder) StackSize(n int) *Builder {
	b.stack = n
	return b
}

// Local returns the slot of a local variable, adding it if needed.
func (b *Builder) Local(name string) uint32 {
	return intern(&b.varnames, name)
}

// Name returns the name-table index of n, adding it if needed.
func (b *Builder) Name(n string) uint32 {
	return intern(&b.names, n)
}

// Const returns the constant-pool index of v. Integers are stored as int64;
// equal scalars share one entry.
func (b *Builder) Const(v any) uint32 {
	switch x := v.(type) {
	case int:
		v = int64(x)
	case int32:
		v = int64(x)
	case uint32:
		v = int64(x)
	}
	switch v.(type) {
	case nil, bool, int64, string:
		for i, have := range b.consts {
			if sameScalar(have, v) {
				return uint32(i)
			}
		}
	}
	b.consts = append(b.consts, v)
	return uint32(len(b.consts) - 1)
}

func sameScalar(a, b any) bool {
	switch a.(type) {
	case nil, bool, int64, string:
		return a == b
	}
	return false
}

func intern(table *[]string, s string) uint32 {
	for i, have := range *table {
		if have == s {
			return uint32(i)
		}
	}
	*table = append(*table, s)
	return uint32(len(*table) - 1)
}

// Emit appends op with a literal operand.
func (b *Builder) Emit(op code.Opcode, arg uint32) *Builder {
	if b.err != nil {
		return b
	}
	info, ok := b.format.Lookup(op)
	if !ok {
		return b.fail(errors.New(errors.PhaseAssemble, errors.KindUnknownOpcode).
			Unit(b.name).
			Value(op).
			Detail("opcode %d not in %s format", op, b.format.Name()).
			Build())
	}
	if !info.HasArg && arg != 0 {
		return b.fail(errors.New(errors.PhaseAssemble, errors.KindInvalidInput).
			Unit(b.name).
			Detail("%s takes no operand", info.Name).
			Build())
	}
	b.items = append(b.items, item{op: op, arg: arg, prefixes: code.PrefixCount(arg)})
	return b
}

// Jump appends a jump-class op whose operand is resolved against mark.
func (b *Builder) Jump(op code.Opcode, mark string) *Builder {
	if b.err != nil {
		return b
	}
	info, ok := b.format.Lookup(op)
	if !ok || info.Jump == code.JumpNone {
		return b.fail(errors.New(errors.PhaseAssemble, errors.KindInvalidInput).
			Unit(b.name).
			Detail("%s does not take a jump target", code.OpName(b.format, op)).
			Build())
	}
	b.items = append(b.items, item{op: op, ref: mark})
	return b
}

// Mark names the position of the next instruction.
func (b *Builder) Mark(name string) *Builder {
	if b.err != nil {
		return b
	}
	if _, dup := b.marks[name]; dup {
		return b.fail(errors.New(errors.PhaseAssemble, errors.KindInvalidInput).
			Unit(b.name).
			Detail("mark %q defined twice", name).
			Build())
	}
	b.marks[name] = len(b.items)
	return b
}

// Marker appends the statement `<global>.<name>`: a global load, an
// attribute access and a pop.
func (b *Builder) Marker(global, name string) *Builder {
	b.Emit(code.OpLoadGlobal, b.Name(global))
	b.Emit(code.OpLoadAttr, b.Name(name))
	return b.Emit(code.OpPopTop, 0)
}

// Label appends a `label.<name>` statement.
func (b *Builder) Label(name string) *Builder { return b.Marker("label", name) }

// Goto appends a `goto.<name>` statement.
func (b *Builder) Goto(name string) *Builder { return b.Marker("goto", name) }

func (b *Builder) LoadConst(v any) *Builder { return b.Emit(code.OpLoadConst, b.Const(v)) }

func (b *Builder) LoadFast(name string) *Builder { return b.Emit(code.OpLoadFast, b.Local(name)) }

func (b *Builder) StoreFast(name string) *Builder { return b.Emit(code.OpStoreFast, b.Local(name)) }

func (b *Builder) LoadGlobal(name string) *Builder { return b.Emit(code.OpLoadGlobal, b.Name(name)) }

func (b *Builder) StoreGlobal(name string) *Builder {
	return b.Emit(code.OpStoreGlobal, b.Name(name))
}

func (b *Builder) LoadAttr(name string) *Builder { return b.Emit(code.OpLoadAttr, b.Name(name)) }

func (b *Builder) Binary(op code.BinaryOperator) *Builder {
	return b.Emit(code.OpBinaryOp, uint32(op))
}

func (b *Builder) Compare(c code.Comparison) *Builder {
	return b.Emit(code.OpCompareOp, uint32(c))
}

func (b *Builder) Call(nargs int) *Builder { return b.Emit(code.OpCallFunction, uint32(nargs)) }

func (b *Builder) PopTop() *Builder { return b.Emit(code.OpPopTop, 0) }

func (b *Builder) PopBlock() *Builder { return b.Emit(code.OpPopBlock, 0) }

func (b *Builder) Return() *Builder { return b.Emit(code.OpReturnValue, 0) }

// Build lays out the instructions and returns the unit. Jump operands are
// widened with EXTENDED_ARG prefixes until every displacement fits; widths
// only grow, so layout settles after a few passes.
func (b *Builder) Build() (*code.Unit, error) {
	if b.err != nil {
		return nil, b.err
	}
	for _, it := range b.items {
		if it.ref == "" {
			continue
		}
		if _, ok := b.marks[it.ref]; !ok {
			return nil, errors.New(errors.PhaseAssemble, errors.KindNotFound).
				Unit(b.name).
				Detail("mark %q not defined", it.ref).
				Build()
		}
	}

	items := make([]item, len(b.items))
	copy(items, b.items)
	offsets := make([]uint32, len(items)+1)

	for changed := true; changed; {
		changed = false
		for i, it := range items {
			info, _ := b.format.Lookup(it.op)
			offsets[i+1] = offsets[i] + uint32(it.prefixes+1+int(info.Caches))
		}

		for i := range items {
			it := &items[i]
			if it.ref == "" {
				continue
			}
			arg, err := b.resolve(it, offsets[b.marks[it.ref]], offsets[i+1])
			if err != nil {
				return nil, err
			}
			it.arg = arg
			if n := code.PrefixCount(arg); n > it.prefixes {
				it.prefixes = n
				changed = true
			}
		}
	}

	var buf []byte
	for _, it := range items {
		if it.prefixes > code.MaxPrefixes {
			return nil, errors.New(errors.PhaseAssemble, errors.KindOverflow).
				Unit(b.name).
				Detail("operand %d of %s needs %d prefixes", it.arg, code.OpName(b.format, it.op), it.prefixes).
				Build()
		}
		buf = code.AppendPadded(buf, b.format, it.op, it.arg, it.prefixes)
	}

	return &code.Unit{
		Format:    b.format,
		Name:      b.name,
		Code:      buf,
		Consts:    b.consts,
		Names:     b.names,
		Varnames:  b.varnames,
		ArgCount:  b.nargs,
		StackSize: b.stack,
	}, nil
}

// resolve computes a jump operand in slots.
func (b *Builder) resolve(it *item, target, next uint32) (uint32, error) {
	info, _ := b.format.Lookup(it.op)
	switch info.Jump {
	case code.JumpForward:
		if target < next {
			return 0, b.badDirection(it, "forward")
		}
		return target - next, nil
	case code.JumpBackward:
		if target > next {
			return 0, b.badDirection(it, "backward")
		}
		return next - target, nil
	}
	return target, nil
}

func (b *Builder) badDirection(it *item, dir string) error {
	return errors.New(errors.PhaseAssemble, errors.KindInvalidInput).
		Unit(b.name).
		Detail("%s cannot reach mark %q %s", code.OpName(b.format, it.op), it.ref, dir).
		Build()
}
