package engine

import (
	"testing"

	"github.com/wippyai/gotoify/code"
)

// unitBuilder assembles raw instruction streams for engine tests.
type unitBuilder struct {
	format code.Format
	buf    []byte
	names  []string
}

func newBuilder(f code.Format) *unitBuilder {
	return &unitBuilder{format: f}
}

func (b *unitBuilder) name(n string) uint32 {
	for i, have := range b.names {
		if have == n {
			return uint32(i)
		}
	}
	b.names = append(b.names, n)
	return uint32(len(b.names) - 1)
}

// op appends one instruction and returns its start offset.
func (b *unitBuilder) op(op code.Opcode, arg uint32) uint32 {
	at := uint32(len(b.buf))
	b.buf = code.AppendInstruction(b.buf, b.format, op, arg)
	return at
}

func (b *unitBuilder) nops(n int) {
	for i := 0; i < n; i++ {
		b.op(code.OpNop, 0)
	}
}

// marker appends `<global>.<label>` as a statement and returns its start.
func (b *unitBuilder) marker(global, label string) uint32 {
	at := b.op(code.OpLoadGlobal, b.name(global))
	b.op(code.OpLoadAttr, b.name(label))
	b.op(code.OpPopTop, 0)
	return at
}

func (b *unitBuilder) label(name string) uint32 { return b.marker("label", name) }
func (b *unitBuilder) jump(name string) uint32  { return b.marker("goto", name) }

func (b *unitBuilder) loop() { b.op(code.OpSetupLoop, 0) }
func (b *unitBuilder) exit() { b.op(code.OpPopBlock, 0) }

func (b *unitBuilder) unit() *code.Unit {
	return &code.Unit{
		Format: b.format,
		Name:   "test",
		Code:   b.buf,
		Names:  b.names,
	}
}

// decodeAt returns the instruction starting at off in buf.
func decodeAt(t *testing.T, f code.Format, buf []byte, off uint32) code.Instruction {
	t.Helper()
	for in, err := range code.Instructions(f, buf) {
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if in.Start == off {
			return in
		}
	}
	t.Fatalf("no instruction starts at %d", off)
	return code.Instruction{}
}
