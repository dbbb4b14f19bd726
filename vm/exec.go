package vm

import (
	"context"
	"fmt"

	"github.com/wippyai/gotoify/code"
	"github.com/wippyai/gotoify/errors"
)

// eval runs f until it returns. Exceptions raised by instructions unwind to
// the frame's handlers; an unhandled one is returned as *Exception.
func (m *Machine) eval(ctx context.Context, f *frame) (result Value, err error) {
	var at uint32
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(stackUnderflow); !ok {
				panic(r)
			}
			result, err = nil, f.fault(errors.KindStackUnderflow, at, "value stack underflow")
		}
	}()

	done := ctx.Done()
	var count int

	for {
		if f.pc >= len(f.prog.instrs) {
			return nil, f.fault(errors.KindInvalidData, uint32(len(f.prog.unit.Code)), "execution ran past end of code")
		}
		in := f.prog.instrs[f.pc]
		at = in.Start

		if m.checkInterval > 0 && done != nil {
			count++
			if count >= m.checkInterval {
				count = 0
				select {
				case <-done:
					return nil, errors.Wrap(errors.PhaseRuntime, errors.KindCancelled, ctx.Err(), "execution cancelled")
				default:
				}
			}
		}

		if m.observer != nil {
			event := StepEvent{
				Unit:       f.prog.unit.Name,
				Offset:     in.Start,
				Arg:        in.Arg,
				Op:         in.Op,
				OpName:     code.OpName(f.prog.format, in.Op),
				StackDepth: len(f.stack),
				BlockDepth: len(f.blocks),
				CallDepth:  f.depth,
			}
			if !m.observer.OnStep(event) {
				return nil, halted()
			}
		}

		f.pc++
		v, ret, err := m.exec(ctx, f, in)
		if err != nil {
			exc, ok := err.(*Exception)
			if !ok {
				return nil, err
			}
			if exc.Unit == "" {
				exc.Unit, exc.Offset = f.prog.unit.Name, in.Start
			}
			handled, err := f.unwind(exc)
			if err != nil {
				return nil, err
			}
			if !handled {
				return nil, exc
			}
			continue
		}
		if ret {
			return v, nil
		}
	}
}

// exec runs one instruction. It returns the result and true on return.
func (m *Machine) exec(ctx context.Context, f *frame, in code.Instruction) (Value, bool, error) {
	u := f.prog.unit

	switch in.Op {
	case code.OpNop:

	case code.OpPopTop:
		f.pop()

	case code.OpDupTop:
		f.push(f.top())

	case code.OpRotTwo:
		a, b := f.pop(), f.pop()
		f.push(a)
		f.push(b)

	case code.OpUnaryNot:
		f.push(!truthy(f.pop()))

	case code.OpUnaryNegative:
		v := f.pop()
		n, ok := v.(int64)
		if !ok {
			return nil, false, typeError("bad operand type for unary -: %s", typeName(v))
		}
		f.push(-n)

	case code.OpBinaryOp:
		b, a := f.pop(), f.pop()
		v, exc := binaryOp(code.BinaryOperator(in.Arg), a, b)
		if exc != nil {
			return nil, false, exc
		}
		f.push(v)

	case code.OpCompareOp:
		b, a := f.pop(), f.pop()
		v, exc := compare(code.Comparison(in.Arg), a, b)
		if exc != nil {
			return nil, false, exc
		}
		f.push(v)

	case code.OpLoadConst:
		if int(in.Arg) >= len(u.Consts) {
			return nil, false, f.fault(errors.KindInvalidData, in.Start, "constant index out of range")
		}
		f.push(normalize(u.Consts[in.Arg]))

	case code.OpLoadFast:
		if int(in.Arg) >= len(f.locals) {
			return nil, false, f.fault(errors.KindInvalidData, in.Start, "local index out of range")
		}
		v := f.locals[in.Arg]
		if _, ok := v.(unbound); ok {
			return nil, false, newException(errors.KindNotFound,
				fmt.Sprintf("local %q referenced before assignment", localName(u, in.Arg)))
		}
		f.push(v)

	case code.OpStoreFast:
		if int(in.Arg) >= len(f.locals) {
			return nil, false, f.fault(errors.KindInvalidData, in.Start, "local index out of range")
		}
		f.locals[in.Arg] = f.pop()

	case code.OpLoadGlobal:
		name := u.NameAt(in.Arg)
		v, ok := m.lookup(name)
		if !ok {
			return nil, false, newException(errors.KindNotFound, fmt.Sprintf("name %q is not defined", name))
		}
		f.push(v)

	case code.OpStoreGlobal:
		m.SetGlobal(u.NameAt(in.Arg), f.pop())

	case code.OpLoadAttr:
		name := u.NameAt(in.Arg)
		obj := f.pop()
		a, ok := obj.(Attributed)
		if !ok {
			return nil, false, typeError("%s has no attribute %q", typeName(obj), name)
		}
		v, ok := a.Attr(name)
		if !ok {
			return nil, false, newException(errors.KindNotFound,
				fmt.Sprintf("%s has no attribute %q", typeName(obj), name))
		}
		f.push(v)

	case code.OpBuildList:
		f.push(&List{Items: f.popN(int(in.Arg))})

	case code.OpCallFunction:
		args := f.popN(int(in.Arg))
		callee := f.pop()
		v, err := m.invoke(ctx, callee, args, f.depth)
		if err != nil {
			return nil, false, err
		}
		f.push(v)

	case code.OpReturnValue:
		return f.pop(), true, nil

	case code.OpJumpForward, code.OpJumpBackward, code.OpJumpAbsolute:
		return nil, false, m.jump(f, in)

	case code.OpPopJumpIfFalse:
		if !truthy(f.pop()) {
			return nil, false, m.jump(f, in)
		}

	case code.OpPopJumpIfTrue:
		if truthy(f.pop()) {
			return nil, false, m.jump(f, in)
		}

	case code.OpGetIter:
		it, exc := iterate(f.pop())
		if exc != nil {
			return nil, false, exc
		}
		f.push(it)

	case code.OpForIter:
		it, ok := f.top().(*Iterator)
		if !ok {
			return nil, false, typeError("for_iter on %s", typeName(f.top()))
		}
		if v, ok := it.Next(); ok {
			f.push(v)
			return nil, false, nil
		}
		f.pop()
		return nil, false, m.jump(f, in)

	case code.OpSetupLoop, code.OpSetupExcept, code.OpSetupFinally:
		target, ok := code.JumpTarget(f.prog.format, in)
		if !ok {
			return nil, false, f.fault(errors.KindInvalidData, in.Start, "block handler out of range")
		}
		kind := blockLoop
		switch in.Op {
		case code.OpSetupExcept:
			kind = blockExcept
		case code.OpSetupFinally:
			kind = blockFinally
		}
		f.pushBlock(kind, target)

	case code.OpSetupWith:
		target, ok := code.JumpTarget(f.prog.format, in)
		if !ok {
			return nil, false, f.fault(errors.KindInvalidData, in.Start, "block handler out of range")
		}
		v := f.pop()
		r, ok := v.(Resource)
		if !ok {
			return nil, false, typeError("%s is not a resource", typeName(v))
		}
		f.push(r)
		f.pushBlock(blockWith, target)
		f.push(normalize(r.Enter()))

	case code.OpPopBlock:
		b, ok := f.popBlock()
		if !ok {
			return nil, false, f.fault(errors.KindStackUnderflow, in.Start, "pop_block with no open block")
		}
		f.truncate(b.level)

	case code.OpPopExcept:
		b, ok := f.popBlock()
		if !ok || b.kind != blockExceptHandler {
			return nil, false, f.fault(errors.KindInvalidData, in.Start, "pop_except outside an exception handler")
		}
		f.truncate(b.level)

	case code.OpBreakLoop:
		b, ok := f.popBlock()
		if !ok || b.kind != blockLoop {
			return nil, false, f.fault(errors.KindInvalidData, in.Start, "break_loop outside a loop block")
		}
		f.truncate(b.level)
		return nil, false, f.jumpTo(b.handler)

	case code.OpEndFinally:
		switch x := f.pop().(type) {
		case nil:
		case *Exception:
			return nil, false, x
		default:
			return nil, false, typeError("end_finally on %s", typeName(x))
		}

	case code.OpWithCleanup:
		x := f.pop()
		v := f.pop()
		r, ok := v.(Resource)
		if !ok {
			return nil, false, f.fault(errors.KindInvalidData, in.Start, "with_cleanup without a resource")
		}
		exc, _ := x.(*Exception)
		if r.Exit(exc) || exc == nil {
			f.push(nil)
		} else {
			f.push(exc)
		}

	case code.OpRaise:
		return nil, false, raised(f.pop())

	default:
		return nil, false, errors.New(errors.PhaseRuntime, errors.KindUnknownOpcode).
			Unit(u.Name).
			Offset(in.Start).
			Value(in.Op).
			Detail("cannot execute %s", code.OpName(f.prog.format, in.Op)).
			Build()
	}

	return nil, false, nil
}

func (m *Machine) jump(f *frame, in code.Instruction) error {
	target, ok := code.JumpTarget(f.prog.format, in)
	if !ok {
		return f.fault(errors.KindInvalidData, in.Start, "jump target out of range")
	}
	return f.jumpTo(target)
}

func localName(u *code.Unit, idx uint32) string {
	if int(idx) < len(u.Varnames) {
		return u.Varnames[idx]
	}
	return fmt.Sprintf("#%d", idx)
}
