package code

// PrefixCount returns how many EXTENDED_ARG prefixes arg needs.
func PrefixCount(arg uint32) int {
	n := 0
	for arg > 0xFF {
		arg >>= 8
		n++
	}
	return n
}

// Fits reports whether arg can be carried by an instruction with n prefixes.
func Fits(arg uint32, n int) bool {
	return PrefixCount(arg) <= n
}

// InstructionSlots returns the slot count of op with arg, prefixes and caches
// included.
func InstructionSlots(f Format, op Opcode, arg uint32) int {
	info, _ := f.Lookup(op)
	return 1 + PrefixCount(arg) + int(info.Caches)
}

// AppendInstruction appends op with arg to dst using the minimal number of
// EXTENDED_ARG prefixes and zeroed inline cache slots.
func AppendInstruction(dst []byte, f Format, op Opcode, arg uint32) []byte {
	return AppendPadded(dst, f, op, arg, PrefixCount(arg))
}

// AppendPadded is like AppendInstruction but always writes n prefixes, so an
// operand can be resolved later without moving code.
func AppendPadded(dst []byte, f Format, op Opcode, arg uint32, n int) []byte {
	roles := f.Roles()
	for i := n; i > 0; i-- {
		dst = append(dst, byte(roles.ExtendedArg), byte(arg>>(8*uint(i))))
	}
	dst = append(dst, byte(op), byte(arg))
	info, _ := f.Lookup(op)
	for i := 0; i < int(info.Caches); i++ {
		dst = append(dst, byte(roles.Cache), 0)
	}
	return dst
}

// PutSlot writes a single slot at off.
func PutSlot(buf []byte, off uint32, op Opcode, arg byte) {
	buf[off] = byte(op)
	buf[off+1] = arg
}
