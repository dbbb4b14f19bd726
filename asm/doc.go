// Package asm builds executable units, either programmatically with Builder
// or from an s-expression text format.
//
// # Text Format
//
//	;; line comment, (; block comment ;)
//	(format wordcode)              optional, must come first
//	(func $sum
//	  (args n)
//	  (locals total)
//	  (load_const 0) (store_fast total)
//	  (label top)                  marker statement label.top
//	  (load_fast n)
//	  (pop_jump_if_false $done)    jump to a mark
//	  ...
//	  (goto top)                   marker statement goto.top
//	  (mark $done)
//	  (load_fast total)
//	  (return_value))
//
// Instructions are opcode mnemonics of the selected format, written either
// in parentheses or flat. Operands are numbers, names resolved against the
// unit's tables (locals, globals and attributes), operator mnemonics for
// binary_op and compare_op, literal constants for load_const, or $marks for
// jump-class opcodes.
//
// Jumps to marks are laid out with the fewest EXTENDED_ARG prefixes that
// hold their displacement. Marker statements always use the minimal
// encoding, so their padding is whatever the format's inline caches give.
package asm
