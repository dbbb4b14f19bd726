package vm

import "github.com/wippyai/gotoify/code"

// Observer receives execution events. Methods are called synchronously;
// returning false halts execution.
type Observer interface {
	// OnStep is called before every instruction.
	OnStep(event StepEvent) bool

	// OnCall is called when a unit is entered.
	OnCall(event CallEvent) bool

	// OnReturn is called when a unit returns normally.
	OnReturn(event ReturnEvent) bool
}

// StepEvent describes the instruction about to run.
type StepEvent struct {
	Unit   string
	Offset uint32
	Arg    uint32
	Op     code.Opcode
	OpName string

	// StackDepth is the depth of the value stack of the running unit.
	StackDepth int
	// BlockDepth is the depth of the runtime block stack of the running unit.
	BlockDepth int
	// CallDepth is 1 for the outermost call.
	CallDepth int
}

// CallEvent describes a unit being entered.
type CallEvent struct {
	Unit      string
	Args      []Value
	CallDepth int
}

// ReturnEvent describes a unit returning.
type ReturnEvent struct {
	Unit      string
	Result    Value
	CallDepth int
}

// NoOpObserver implements Observer and does nothing. Embed it to implement
// only some methods.
type NoOpObserver struct{}

func (NoOpObserver) OnStep(StepEvent) bool     { return true }
func (NoOpObserver) OnCall(CallEvent) bool     { return true }
func (NoOpObserver) OnReturn(ReturnEvent) bool { return true }

var _ Observer = NoOpObserver{}
