package vm

import (
	"fmt"

	"github.com/wippyai/gotoify/errors"
)

// Exception is a catchable runtime failure. Guest code raises them with
// RAISE; the machine raises them for failed operations such as an unknown
// global or a division by zero.
type Exception struct {
	Value   Value
	Kind    errors.Kind
	Message string
	Unit    string
	Offset  uint32
}

func newException(kind errors.Kind, msg string) *Exception {
	return &Exception{Kind: kind, Message: msg}
}

func typeError(format string, args ...any) *Exception {
	return newException(errors.KindTypeMismatch, fmt.Sprintf(format, args...))
}

func (e *Exception) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

// Attr exposes kind, message and value to guest code.
func (e *Exception) Attr(name string) (Value, bool) {
	switch name {
	case "kind":
		return string(e.Kind), true
	case "message":
		return e.Message, true
	case "value":
		return e.Value, true
	}
	return nil, false
}

// toError converts an exception that escaped the outermost call.
func (e *Exception) toError() *errors.Error {
	return errors.New(errors.PhaseRuntime, e.Kind).
		Unit(e.Unit).
		Offset(e.Offset).
		Value(e.Value).
		Detail("%s", e.Message).
		Build()
}

// raised builds the exception for a RAISE operand.
func raised(v Value) *Exception {
	switch x := v.(type) {
	case *Exception:
		return x
	case string:
		return &Exception{Kind: errors.KindUncaughtException, Message: x, Value: x}
	}
	return &Exception{Kind: errors.KindUncaughtException, Message: Format(v), Value: v}
}
