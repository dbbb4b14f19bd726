package vm

import (
	"io"

	"github.com/wippyai/gotoify/code"
)

// Option configures a Machine.
type Option func(*Machine)

// WithGlobals provides global variables with the given names.
func WithGlobals(globals map[string]Value) Option {
	return func(m *Machine) {
		for name, v := range globals {
			m.globals[name] = normalize(v)
		}
	}
}

// WithFunctions makes each function callable as a global under its name.
func WithFunctions(fns ...*code.Function) Option {
	return func(m *Machine) {
		for _, fn := range fns {
			m.globals[fn.Name()] = fn
		}
	}
}

// WithOutput sets where print writes. The default is os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(m *Machine) {
		m.out = w
	}
}

// WithObserver sets an observer for execution events.
func WithObserver(o Observer) Option {
	return func(m *Machine) {
		m.observer = o
	}
}

// WithContextCheckInterval sets how many instructions run between checks of
// ctx.Done(). A value of 0 disables the checks.
func WithContextCheckInterval(n int) Option {
	return func(m *Machine) {
		m.checkInterval = n
	}
}

// WithMaxCallDepth bounds nested calls.
func WithMaxCallDepth(n int) Option {
	return func(m *Machine) {
		m.maxDepth = n
	}
}
