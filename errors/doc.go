// Package errors provides structured error types for the gotoify module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the unit name, the offending label and byte offset, and a
// cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseValidate, errors.KindCrossingBoundary).
//		Unit("parse").
//		Label("retry").
//		Offset(48).
//		Detail("goto crosses try boundary").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.DuplicateLabel("parse", "retry", 12, 48)
//	err := errors.NestedTooDeep(errors.PhasePatch, "parse", "out", 96, 13, 11)
//
// All errors implement the standard error interface and support errors.Is/As.
// The exported sentinels (ErrDuplicateLabel, ErrMissingLabel, ...) match any
// error of the same kind regardless of phase.
package errors
