// Package gotoify adds goto and label statements to compiled units by
// rewriting their instruction streams.
//
// # Overview
//
// Source code cannot say goto, but it can say
//
//	label .retry
//	...
//	goto .retry
//
// which compiles to an ordinary attribute access on a reserved global
// followed by a discarded result:
//
//	LOAD_GLOBAL label
//	LOAD_ATTR   retry
//	POP_TOP
//
// The load carries inline cache slots in the wordcode format, so each
// marker statement owns a run of slots much larger than a jump needs. The
// transform finds these statements, checks that every jump is legal, and
// rewrites each goto site in place into POP_BLOCKs for the loops it leaves
// followed by a relative jump to the slot after the label. Label sites and
// any slots a goto does not use become NOPs. The buffer never changes
// length, so no other jump target in the unit moves.
//
// # Pipeline
//
//	Scan      decode once, track the block stack, collect label and goto sites
//	Validate  check each goto against its label's block context, plan the patch
//	Patch     clear the sites and write POP_BLOCK/EXTENDED_ARG/JUMP slots
//	Install   build a new unit and swap it into the function atomically
//
// Nothing is written before every goto in the unit validates, and any
// failure leaves the original unit installed.
//
// # Rules
//
// A goto may jump to a label whose block stack is a prefix of its own. The
// frames it leaves must all be loops; leaving a try, except or scoped
// resource block is rejected because its cleanup would be skipped. Each
// loop left costs one slot of the goto's site, and a jump whose
// displacement does not fit in one byte also needs EXTENDED_ARG slots, so
// the number of loops a goto can leave is bounded by the site size.
//
// # Usage
//
//	fn := code.NewFunction(unit)
//	if _, err := gotoify.Apply(fn); err != nil {
//	    return err
//	}
//	result, err := vm.New().Call(ctx, fn, 10)
//
// Use Plan to inspect the sites and the computed patches without
// rewriting anything.
//
// # Errors
//
// Failures are *errors.Error values (or *errors.MissingLabelsError, or a
// combination of several validation errors) that match the sentinels in
// the errors package with errors.Is:
//
//	if errors.Is(err, gotoerrors.ErrCrossingBoundary) {
//	    ...
//	}
package gotoify
