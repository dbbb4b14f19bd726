package vm

import (
	"context"
	"io"
	"os"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/gotoify/code"
	"github.com/wippyai/gotoify/errors"
)

const (
	// DefaultContextCheckInterval is the number of instructions between
	// checks of ctx.Done().
	DefaultContextCheckInterval = 1000

	// DefaultMaxCallDepth bounds nested calls.
	DefaultMaxCallDepth = 256
)

// Machine executes units.
//
// A Machine may run calls from several goroutines at once. Globals are
// shared between all calls on the same Machine.
type Machine struct {
	out      io.Writer
	observer Observer
	builtins map[string]*Builtin
	globals  map[string]Value
	programs map[*code.Unit]*program

	checkInterval int
	maxDepth      int

	globalsMu  sync.RWMutex
	programsMu sync.Mutex
}

// New creates a machine with the default builtins.
func New(opts ...Option) *Machine {
	m := &Machine{
		out:           os.Stdout,
		builtins:      defaultBuiltins(),
		globals:       make(map[string]Value),
		programs:      make(map[*code.Unit]*program),
		checkInterval: DefaultContextCheckInterval,
		maxDepth:      DefaultMaxCallDepth,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetGlobal binds a global variable.
func (m *Machine) SetGlobal(name string, v Value) {
	m.globalsMu.Lock()
	m.globals[name] = normalize(v)
	m.globalsMu.Unlock()
}

// Global returns a global variable.
func (m *Machine) Global(name string) (Value, bool) {
	m.globalsMu.RLock()
	v, ok := m.globals[name]
	m.globalsMu.RUnlock()
	return v, ok
}

func (m *Machine) lookup(name string) (Value, bool) {
	if v, ok := m.Global(name); ok {
		return v, true
	}
	if b, ok := m.builtins[name]; ok {
		return b, true
	}
	return nil, false
}

// Call runs fn's active unit with args. The unit is loaded once at entry,
// so installing a new unit while the call runs does not affect it.
func (m *Machine) Call(ctx context.Context, fn *code.Function, args ...Value) (Value, error) {
	if fn == nil {
		return nil, errors.InvalidInput(errors.PhaseRuntime, "nil function")
	}
	return m.Run(ctx, fn.Unit(), args...)
}

// Run executes u with args. An exception that escapes u is returned as an
// *errors.Error in the runtime phase carrying the exception's kind.
func (m *Machine) Run(ctx context.Context, u *code.Unit, args ...Value) (Value, error) {
	if u == nil {
		return nil, errors.InvalidInput(errors.PhaseRuntime, "nil unit")
	}
	vals := make([]Value, len(args))
	for i, a := range args {
		vals[i] = normalize(a)
	}

	v, err := m.call(ctx, u, vals, 1)
	if err != nil {
		if exc, ok := err.(*Exception); ok {
			Logger().Debug("uncaught exception",
				zap.String("unit", exc.Unit),
				zap.Uint32("offset", exc.Offset),
				zap.String("kind", string(exc.Kind)),
				zap.String("message", exc.Message))
			return nil, exc.toError()
		}
		return nil, err
	}
	return v, nil
}

func (m *Machine) call(ctx context.Context, u *code.Unit, args []Value, depth int) (Value, error) {
	if m.maxDepth > 0 && depth > m.maxDepth {
		return nil, newException(errors.KindOverflow, "maximum call depth exceeded")
	}
	if len(args) != u.ArgCount {
		return nil, arity(u.Name, strconv.Itoa(u.ArgCount), len(args))
	}

	prog, err := m.load(u)
	if err != nil {
		return nil, err
	}

	if m.observer != nil && !m.observer.OnCall(CallEvent{Unit: u.Name, Args: args, CallDepth: depth}) {
		return nil, halted()
	}

	f := newFrame(prog, args, depth)
	result, err := m.eval(ctx, f)
	if err != nil {
		return nil, err
	}

	if m.observer != nil && !m.observer.OnReturn(ReturnEvent{Unit: u.Name, Result: result, CallDepth: depth}) {
		return nil, halted()
	}
	return result, nil
}

func (m *Machine) invoke(ctx context.Context, callee Value, args []Value, depth int) (Value, error) {
	switch fn := callee.(type) {
	case *code.Function:
		return m.call(ctx, fn.Unit(), args, depth+1)
	case *Builtin:
		return fn.Fn(m, args)
	}
	return nil, typeError("%s is not callable", typeName(callee))
}

// load decodes u once per machine.
func (m *Machine) load(u *code.Unit) (*program, error) {
	m.programsMu.Lock()
	defer m.programsMu.Unlock()

	if p, ok := m.programs[u]; ok {
		return p, nil
	}
	p, err := compile(u)
	if err != nil {
		return nil, err
	}
	m.programs[u] = p
	return p, nil
}

func halted() error {
	return errors.New(errors.PhaseRuntime, errors.KindCancelled).
		Detail("execution halted by observer").
		Build()
}

func normalize(v Value) Value {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint32:
		return int64(x)
	case []Value:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = normalize(item)
		}
		return &List{Items: items}
	case map[string]Value:
		ns := make(Namespace, len(x))
		for k, item := range x {
			ns[k] = normalize(item)
		}
		return ns
	}
	return v
}
