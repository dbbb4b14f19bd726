package code

import (
	"iter"

	"github.com/wippyai/gotoify/errors"
)

// Instruction is a decoded view of one instruction in a buffer. Arg already
// folds any EXTENDED_ARG prefixes; Start is the offset of the first prefix.
type Instruction struct {
	Start    uint32
	Offset   uint32
	Arg      uint32
	Op       Opcode
	HasArg   bool
	Caches   uint8
	Prefixes uint8
}

// End returns the offset just past the instruction and its cache slots.
func (i Instruction) End() uint32 {
	return i.Offset + UnitSize*(1+uint32(i.Caches))
}

// Slots returns the number of slots from Start to End.
func (i Instruction) Slots() int {
	return int(i.End()-i.Start) / UnitSize
}

// Instructions returns a lazy sequence over the instructions in buf. The
// sequence can be ranged over any number of times. A malformed buffer yields
// one error and ends the sequence.
func Instructions(f Format, buf []byte) iter.Seq2[Instruction, error] {
	return func(yield func(Instruction, error) bool) {
		roles := f.Roles()
		start := -1
		var ext uint32
		var prefixes uint8

		for off := 0; off < len(buf); {
			if off+UnitSize > len(buf) {
				yield(Instruction{}, errors.InvalidData(errors.PhaseDecode, off, "truncated instruction slot"))
				return
			}
			op := Opcode(buf[off])
			arg := uint32(buf[off+1])

			if op == roles.ExtendedArg {
				if start < 0 {
					start = off
				}
				prefixes++
				if prefixes > MaxPrefixes {
					yield(Instruction{}, errors.New(errors.PhaseDecode, errors.KindOverflow).
						Offset(uint32(off)).
						Detail("more than %d extended_arg prefixes", MaxPrefixes).
						Build())
					return
				}
				ext = (ext | arg) << 8
				off += UnitSize
				continue
			}

			info, ok := f.Lookup(op)
			if !ok {
				yield(Instruction{}, errors.New(errors.PhaseDecode, errors.KindUnknownOpcode).
					Offset(uint32(off)).
					Value(op).
					Detail("opcode %d not in %s format", op, f.Name()).
					Build())
				return
			}

			in := Instruction{
				Start:    uint32(off),
				Offset:   uint32(off),
				Op:       op,
				Arg:      ext | arg,
				HasArg:   info.HasArg,
				Caches:   info.Caches,
				Prefixes: prefixes,
			}
			if start >= 0 {
				in.Start = uint32(start)
			}
			if int(in.End()) > len(buf) {
				yield(Instruction{}, errors.InvalidData(errors.PhaseDecode, off, "inline cache slots run past end of code"))
				return
			}

			off = int(in.End())
			start, ext, prefixes = -1, 0, 0
			if !yield(in, nil) {
				return
			}
		}

		if start >= 0 {
			yield(Instruction{}, errors.InvalidData(errors.PhaseDecode, start, "extended_arg without instruction"))
		}
	}
}

// Decode collects every instruction in buf.
func Decode(f Format, buf []byte) ([]Instruction, error) {
	// Roughly one instruction per two slots once caches are counted.
	instrs := make([]Instruction, 0, len(buf)/(2*UnitSize))
	for in, err := range Instructions(f, buf) {
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, in)
	}
	return instrs, nil
}

// JumpTarget returns the slot-aligned byte offset an instruction transfers to.
func JumpTarget(f Format, in Instruction) (uint32, bool) {
	info, ok := f.Lookup(in.Op)
	if !ok {
		return 0, false
	}
	switch info.Jump {
	case JumpForward:
		return in.End() + in.Arg*UnitSize, true
	case JumpBackward:
		back := in.Arg * UnitSize
		if back > in.End() {
			return 0, false
		}
		return in.End() - back, true
	case JumpAbsolute:
		return in.Arg * UnitSize, true
	}
	return 0, false
}
