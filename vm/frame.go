package vm

import (
	"github.com/wippyai/gotoify/code"
	"github.com/wippyai/gotoify/errors"
)

// program is a unit decoded for execution.
type program struct {
	unit   *code.Unit
	format code.Format
	instrs []code.Instruction
	// index maps a slot to the instruction starting there, or -1. The entry
	// past the last slot maps to len(instrs).
	index []int32
}

func compile(u *code.Unit) (*program, error) {
	f := u.Layout()
	instrs, err := code.Decode(f, u.Code)
	if err != nil {
		return nil, err
	}

	index := make([]int32, len(u.Code)/code.UnitSize+1)
	for i := range index {
		index[i] = -1
	}
	for i, in := range instrs {
		index[in.Start/code.UnitSize] = int32(i)
	}
	index[len(index)-1] = int32(len(instrs))

	return &program{unit: u, format: f, instrs: instrs, index: index}, nil
}

type blockKind uint8

const (
	blockLoop blockKind = iota
	blockExcept
	blockFinally
	blockWith
	blockExceptHandler
)

// block is a runtime block: where control goes when it is unwound and how
// deep the value stack was when it was entered.
type block struct {
	kind    blockKind
	handler uint32
	level   int
}

// unbound marks a local that has not been assigned.
type unbound struct{}

// stackUnderflow is panicked by pop on an empty stack and recovered in eval.
type stackUnderflow struct{}

type frame struct {
	prog   *program
	locals []Value
	stack  []Value
	blocks []block
	pc     int
	depth  int
}

func newFrame(p *program, args []Value, depth int) *frame {
	locals := make([]Value, max(len(p.unit.Varnames), len(args)))
	copy(locals, args)
	for i := len(args); i < len(locals); i++ {
		locals[i] = unbound{}
	}
	return &frame{
		prog:   p,
		locals: locals,
		stack:  make([]Value, 0, max(p.unit.StackSize, 8)),
		depth:  depth,
	}
}

func (f *frame) push(v Value) {
	f.stack = append(f.stack, v)
}

func (f *frame) pop() Value {
	n := len(f.stack)
	if n == 0 {
		panic(stackUnderflow{})
	}
	v := f.stack[n-1]
	f.stack[n-1] = nil
	f.stack = f.stack[:n-1]
	return v
}

func (f *frame) top() Value {
	if len(f.stack) == 0 {
		panic(stackUnderflow{})
	}
	return f.stack[len(f.stack)-1]
}

// popN removes the top n values and returns them in push order.
func (f *frame) popN(n int) []Value {
	if n > len(f.stack) {
		panic(stackUnderflow{})
	}
	out := make([]Value, n)
	copy(out, f.stack[len(f.stack)-n:])
	f.truncate(len(f.stack) - n)
	return out
}

func (f *frame) truncate(level int) {
	for i := level; i < len(f.stack); i++ {
		f.stack[i] = nil
	}
	if level < len(f.stack) {
		f.stack = f.stack[:level]
	}
}

func (f *frame) pushBlock(kind blockKind, handler uint32) {
	f.blocks = append(f.blocks, block{kind: kind, handler: handler, level: len(f.stack)})
}

func (f *frame) popBlock() (block, bool) {
	n := len(f.blocks)
	if n == 0 {
		return block{}, false
	}
	b := f.blocks[n-1]
	f.blocks = f.blocks[:n-1]
	return b, true
}

// jumpTo moves execution to the instruction starting at off.
func (f *frame) jumpTo(off uint32) error {
	slot := off / code.UnitSize
	if off%code.UnitSize != 0 || int(slot) >= len(f.prog.index) || f.prog.index[slot] < 0 {
		return f.fault(errors.KindInvalidData, off, "jump target is not an instruction boundary")
	}
	f.pc = int(f.prog.index[slot])
	return nil
}

// unwind transfers control to the innermost block that handles exc. It
// reports false when no block does.
func (f *frame) unwind(exc *Exception) (bool, error) {
	for {
		b, ok := f.popBlock()
		if !ok {
			return false, nil
		}
		f.truncate(b.level)

		switch b.kind {
		case blockLoop, blockExceptHandler:
			continue
		case blockExcept:
			f.pushBlock(blockExceptHandler, 0)
		}
		f.push(exc)
		return true, f.jumpTo(b.handler)
	}
}

// fault builds a non-catchable error for a malformed unit.
func (f *frame) fault(kind errors.Kind, off uint32, detail string) error {
	return errors.New(errors.PhaseRuntime, kind).
		Unit(f.prog.unit.Name).
		Offset(off).
		Detail("%s", detail).
		Build()
}
