package code

// Flags records properties of a unit.
type Flags uint32

const (
	// FlagGotoPatched marks a unit produced by the goto rewrite.
	FlagGotoPatched Flags = 1 << iota
)

// Unit is one executable unit: the instruction buffer and the tables its
// operands index into. A Unit must not be modified after it is built; rewrites
// produce a new Unit with WithCode.
type Unit struct {
	Format    Format
	Name      string
	Code      []byte
	Consts    []any
	Names     []string
	Varnames  []string
	ArgCount  int
	StackSize int
	Flags     Flags
}

// Layout returns the unit's format, defaulting to Wordcode.
func (u *Unit) Layout() Format {
	if u.Format == nil {
		return Wordcode
	}
	return u.Format
}

// WithCode returns a copy of u carrying buf as its instruction stream. All
// other tables are shared with u.
func (u *Unit) WithCode(buf []byte) *Unit {
	nu := *u
	nu.Code = buf
	return &nu
}

// WithFlags returns a copy of u with flags added.
func (u *Unit) WithFlags(flags Flags) *Unit {
	nu := *u
	nu.Flags |= flags
	return &nu
}

// Has reports whether all of flags are set on u.
func (u *Unit) Has(flags Flags) bool {
	return u.Flags&flags == flags
}

// CloneCode returns a private copy of the instruction buffer.
func (u *Unit) CloneCode() []byte {
	buf := make([]byte, len(u.Code))
	copy(buf, u.Code)
	return buf
}

// NameAt returns the entry of the name table at idx, or "" when out of range.
func (u *Unit) NameAt(idx uint32) string {
	if int(idx) < len(u.Names) {
		return u.Names[idx]
	}
	return ""
}
