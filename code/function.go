package code

import "sync/atomic"

// Function is a callable whose active unit can be replaced atomically.
// Calls load the unit once and run it to completion, so a concurrent swap
// never affects a call in flight.
type Function struct {
	unit atomic.Pointer[Unit]
	name string
}

// NewFunction creates a function running u.
func NewFunction(u *Unit) *Function {
	f := &Function{name: u.Name}
	f.unit.Store(u)
	return f
}

// Name returns the function's name.
func (f *Function) Name() string {
	return f.name
}

// Unit returns the active unit.
func (f *Function) Unit() *Unit {
	return f.unit.Load()
}

// Install replaces old with next. It reports false and leaves the function
// unchanged when old is no longer the active unit.
func (f *Function) Install(old, next *Unit) bool {
	return f.unit.CompareAndSwap(old, next)
}
