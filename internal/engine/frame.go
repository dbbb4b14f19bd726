package engine

import "github.com/wippyai/gotoify/code"

// FrameKind identifies the structured construct a block frame belongs to.
type FrameKind uint8

const (
	FrameLoop FrameKind = iota + 1
	FrameTry
	FrameExcept
	FrameScopedResource
)

func (k FrameKind) String() string {
	switch k {
	case FrameLoop:
		return "loop"
	case FrameTry:
		return "try"
	case FrameExcept:
		return "except"
	case FrameScopedResource:
		return "with"
	}
	return "unknown"
}

// Unwindable reports whether a goto may leave this frame with a plain
// block exit.
func (k FrameKind) Unwindable() bool {
	return k == FrameLoop
}

// Frame is one open block at a point in the instruction stream.
type Frame struct {
	Kind  FrameKind
	Enter uint32
}

// tracker maintains the stack of open blocks during a linear scan.
type tracker struct {
	format code.Format
	stack  []Frame
}

func newTracker(f code.Format) *tracker {
	return &tracker{format: f}
}

// apply updates the stack for one instruction. Exits on an empty stack are
// ignored; well-formed units always balance.
func (t *tracker) apply(in code.Instruction) {
	info, ok := t.format.Lookup(in.Op)
	if !ok {
		return
	}
	switch info.Block {
	case code.BlockEnterLoop:
		t.push(FrameLoop, in.Start)
	case code.BlockEnterFinally:
		t.push(FrameTry, in.Start)
	case code.BlockEnterResource:
		t.push(FrameScopedResource, in.Start)
	case code.BlockEnterExcept:
		// The handler is a scope nested in the guarded region.
		t.push(FrameTry, in.Start)
		t.push(FrameExcept, in.Start)
	case code.BlockExit, code.BlockExitExcept:
		if len(t.stack) > 0 {
			t.stack = t.stack[:len(t.stack)-1]
		}
	}
}

func (t *tracker) push(kind FrameKind, at uint32) {
	t.stack = append(t.stack, Frame{Kind: kind, Enter: at})
}

// snapshot returns a copy of the current stack.
func (t *tracker) snapshot() []Frame {
	if len(t.stack) == 0 {
		return nil
	}
	out := make([]Frame, len(t.stack))
	copy(out, t.stack)
	return out
}

func (t *tracker) depth() int {
	return len(t.stack)
}
