// Package code defines the executable unit format: a linear wordcode
// instruction stream plus the constant and name tables it refers to.
//
// # Instruction Format
//
// Every instruction occupies one or more 2-byte slots:
//
//	[opcode][arg]                        one slot, 8-bit operand
//	[EXTENDED_ARG hi][opcode lo]         prefix carries the high operand bits
//	[opcode][arg][CACHE 0]...[CACHE 0]   trailing inline cache slots
//
// The slot is the addressing unit for all jumps. Relative jumps count slots
// from the slot after the jump; absolute jumps name a slot index. Up to three
// EXTENDED_ARG prefixes extend an operand to 32 bits.
//
// # Formats
//
// Opcode behaviour (operand use, inline cache count, block effect, jump kind)
// comes from a Format table indexed by opcode. Two formats ship:
//
//	Wordcode   inline caches after LOAD_GLOBAL, LOAD_ATTR, BINARY_OP and CALL_FUNCTION
//	Compact    same opcodes, no inline caches
//
// Decoders, the assembler, the interpreter and the goto rewrite all consult the
// unit's Format, so alternate layouts plug in without touching them.
//
// # Units and Functions
//
// A Unit is immutable once built. A Function holds its active Unit behind an
// atomic pointer; replacing the code of a function is a single swap:
//
//	patched := fn.Unit().WithCode(buf)
//	if !fn.Install(old, patched) {
//	    // someone else replaced the unit first
//	}
package code
