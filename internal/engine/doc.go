// Package engine implements the goto rewrite over one executable unit:
// block-context tracking, marker collection, crossing validation, patch
// planning and in-place byte patching.
//
// The pipeline is strictly staged. Scan and Plan never write; Patch works on
// a private copy of the unit's buffer. A failure at any stage therefore
// leaves the caller's unit untouched.
package engine
