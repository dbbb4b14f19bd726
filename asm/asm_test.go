package asm

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/gotoify/code"
	"github.com/wippyai/gotoify/errors"
)

func TestBuilder_Tables(t *testing.T) {
	b := NewBuilder("f", nil)
	b.Args("a", "b")
	b.LoadFast("b").LoadFast("tmp").StoreFast("a")
	b.LoadConst(1).LoadConst(int64(1)).LoadConst("x").LoadConst(nil).LoadConst(nil)
	b.LoadGlobal("print").LoadAttr("print")
	b.Return()

	u, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if u.ArgCount != 2 || len(u.Varnames) != 3 || u.Varnames[2] != "tmp" {
		t.Errorf("varnames = %v, args = %d", u.Varnames, u.ArgCount)
	}
	if len(u.Consts) != 3 {
		t.Errorf("consts = %v, want 3 pooled entries", u.Consts)
	}
	if len(u.Names) != 1 {
		t.Errorf("names = %v, want one shared entry", u.Names)
	}
	if u.Format != code.Wordcode {
		t.Error("nil format should default to wordcode")
	}
}

func TestBuilder_ArgsAfterLocals(t *testing.T) {
	b := NewBuilder("f", nil)
	b.Local("x")
	b.Args("a")
	if _, err := b.Build(); !stderrors.Is(err, &errors.Error{Kind: errors.KindInvalidInput}) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestBuilder_JumpLayout(t *testing.T) {
	f := code.Wordcode
	b := NewBuilder("f", f)
	b.Mark("top")
	b.Jump(code.OpJumpForward, "end")
	for i := 0; i < 300; i++ {
		b.Emit(code.OpNop, 0)
	}
	b.Jump(code.OpJumpBackward, "top")
	b.Jump(code.OpJumpAbsolute, "end")
	b.Mark("end")
	b.Return()

	u, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	instrs, err := code.Decode(f, u.Code)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	ret := instrs[len(instrs)-1]
	if ret.Op != code.OpReturnValue {
		t.Fatalf("last instruction is %s", code.OpName(f, ret.Op))
	}

	fwd := instrs[0]
	if fwd.Prefixes != 1 {
		t.Errorf("forward jump prefixes = %d, want 1", fwd.Prefixes)
	}
	if target, _ := code.JumpTarget(f, fwd); target != ret.Start {
		t.Errorf("forward jump lands at %d, want %d", target, ret.Start)
	}

	back := instrs[len(instrs)-3]
	if back.Op != code.OpJumpBackward || back.Prefixes != 1 {
		t.Fatalf("backward jump = %+v", back)
	}
	if target, _ := code.JumpTarget(f, back); target != 0 {
		t.Errorf("backward jump lands at %d, want 0", target)
	}

	abs := instrs[len(instrs)-2]
	if target, _ := code.JumpTarget(f, abs); target != ret.Start {
		t.Errorf("absolute jump lands at %d, want %d", target, ret.Start)
	}
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
		kind  errors.Kind
	}{
		{"undefined mark", func(b *Builder) { b.Jump(code.OpJumpForward, "nowhere") }, errors.KindNotFound},
		{"duplicate mark", func(b *Builder) { b.Mark("a").Mark("a") }, errors.KindInvalidInput},
		{"operand on argless op", func(b *Builder) { b.Emit(code.OpPopTop, 3) }, errors.KindInvalidInput},
		{"unknown opcode", func(b *Builder) { b.Emit(0xEE, 0) }, errors.KindUnknownOpcode},
		{"jump on plain op", func(b *Builder) { b.Jump(code.OpLoadFast, "a") }, errors.KindInvalidInput},
		{"forward jump backwards", func(b *Builder) { b.Mark("a").Jump(code.OpJumpForward, "a") }, errors.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder("f", nil)
			tt.build(b)
			_, err := b.Build()
			if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseAssemble, Kind: tt.kind}) {
				t.Errorf("error = %v, want %s", err, tt.kind)
			}
		})
	}
}

func TestBuilder_MarkerSites(t *testing.T) {
	u, err := NewBuilder("f", code.Wordcode).Label("a").Goto("a").Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	// Two marker statements of eleven slots each.
	if len(u.Code) != 2*11*code.UnitSize {
		t.Errorf("code length = %d, want %d", len(u.Code), 2*11*code.UnitSize)
	}
	if u.Names[0] != "label" || u.Names[1] != "a" || u.Names[2] != "goto" {
		t.Errorf("names = %v", u.Names)
	}
}

const sumSource = `
;; sum of 1..n using a label-driven loop
(func $sum
  (args n)
  (locals total)
  (load_const 0) (store_fast total)
  (label top)
  load_fast n
  (pop_jump_if_false $done)
  (load_fast total) (load_fast n) (binary_op add) (store_fast total)
  (load_fast n) (load_const 1) (binary_op sub) (store_fast n)
  (goto top)
  (mark $done)
  (load_fast total)
  (return_value))

(func $greet
  (stack 2)
  (load_const "hi\n")
  return_value)
`

func TestParse_Program(t *testing.T) {
	prog, err := Parse(sumSource)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(prog.Units) != 2 || prog.Format != code.Wordcode {
		t.Fatalf("units = %d, format = %s", len(prog.Units), prog.Format.Name())
	}

	sum := prog.Unit("sum")
	if sum == nil {
		t.Fatal("sum not found")
	}
	if sum.ArgCount != 1 || sum.Varnames[0] != "n" || sum.Varnames[1] != "total" {
		t.Errorf("sum locals = %v", sum.Varnames)
	}
	if _, err := code.Decode(sum.Layout(), sum.Code); err != nil {
		t.Errorf("sum does not decode: %v", err)
	}

	greet := prog.Unit("greet")
	if greet == nil || greet.StackSize != 2 || greet.Consts[0] != "hi\n" {
		t.Errorf("greet = %+v", greet)
	}
	if prog.Unit("missing") != nil {
		t.Error("unexpected unit")
	}
}

func TestParse_Operands(t *testing.T) {
	prog, err := Parse(`
(format compact)
(func f
  (load_const -5) (load_const true) (load_const none)
  (compare_op ge) (binary_op 3) (build_list 2)
  (load_global print) (load_attr kind) (call_function 1))`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	u := prog.Unit("f")
	if u.Format != code.Compact {
		t.Error("format directive ignored")
	}
	if u.Consts[0] != int64(-5) || u.Consts[1] != true || u.Consts[2] != nil {
		t.Errorf("consts = %v", u.Consts)
	}

	instrs, err := code.Decode(code.Compact, u.Code)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if instrs[3].Arg != uint32(code.CompareGreaterEqual) || instrs[4].Arg != uint32(code.BinaryFloorDivide) {
		t.Errorf("operators = %d, %d", instrs[3].Arg, instrs[4].Arg)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown instruction", "(func f (frobnicate))", "unknown instruction"},
		{"missing operand", "(func f load_fast", "expects an operand"},
		{"bad constant", "(func f (load_const maybe))", "invalid constant"},
		{"bad operator", "(func f (binary_op pow))", "unknown binary operator"},
		{"unknown format", "(format exotic)", "unknown format"},
		{"late format", "(func f) (format compact)", "must precede"},
		{"duplicate func", "(func f) (func f)", "defined twice"},
		{"unterminated", "(func f (nop)", "unexpected end"},
		{"top level", "(data 1)", "at top level"},
		{"name operand on jump", "(func f (jump_forward x))", "does not take a name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestParse_AssembleErrorsSurface(t *testing.T) {
	_, err := Parse("(func f (jump_forward $nowhere))")
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseAssemble, Kind: errors.KindNotFound}) {
		t.Errorf("expected assemble error, got %v", err)
	}
}

func TestMustParse_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustParse("(func")
}
