// Package vm is a reference interpreter for executable units.
//
// It exists so that rewritten control flow can be observed: a unit runs on
// a value stack with a per-call runtime block stack (loop, except, finally,
// scoped resource and active handler blocks), catchable exceptions, a few
// builtins (range, len, print, list, str) and calls between functions.
//
// POP_BLOCK discards its block and every value pushed since the block was
// entered, so leaving a loop early with explicit POP_BLOCKs also drops the
// loop's iterator. Undefined globals raise a not_found exception; this is how
// marker statements that were never rewritten fail at run time.
//
// Execution can be observed and halted with an Observer and is cancelled
// through the context passed to Call or Run.
package vm
