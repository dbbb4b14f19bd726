package code

import "strconv"

// UnitSize is the size of one instruction slot in bytes.
const UnitSize = 2

// MaxPrefixes is the largest number of EXTENDED_ARG prefixes an operand may
// carry, which bounds operands to 32 bits.
const MaxPrefixes = 3

// BlockEffect describes how an opcode changes the structured block stack.
type BlockEffect uint8

const (
	BlockNone          BlockEffect = iota
	BlockEnterLoop                 // SETUP_LOOP
	BlockEnterExcept               // SETUP_EXCEPT: guard and handler scope
	BlockEnterFinally              // SETUP_FINALLY
	BlockEnterResource             // SETUP_WITH
	BlockExit                      // POP_BLOCK
	BlockExitExcept                // POP_EXCEPT
)

// JumpKind describes how an opcode's operand addresses a target slot.
type JumpKind uint8

const (
	JumpNone     JumpKind = iota
	JumpForward           // target = next slot + arg
	JumpBackward          // target = next slot - arg
	JumpAbsolute          // target = arg
)

// OpInfo is the per-opcode entry of a format table.
type OpInfo struct {
	Name   string
	HasArg bool
	Caches uint8
	Block  BlockEffect
	Jump   JumpKind
}

// Roles names the opcodes that the rewrite passes emit or recognize.
type Roles struct {
	Nop          Opcode
	Cache        Opcode
	ExtendedArg  Opcode
	LoadGlobal   Opcode
	LoadAttr     Opcode
	PopTop       Opcode
	JumpForward  Opcode
	JumpBackward Opcode
	PopBlock     Opcode
}

// Format is one version of the instruction layout. It is the only place
// that knows operand use and inline cache counts per opcode.
type Format interface {
	Name() string
	Lookup(op Opcode) (OpInfo, bool)
	Roles() Roles
}

type tableFormat struct {
	name  string
	roles Roles
	table [256]OpInfo
	known [256]bool
}

func (f *tableFormat) Name() string { return f.name }

func (f *tableFormat) Roles() Roles { return f.roles }

func (f *tableFormat) Lookup(op Opcode) (OpInfo, bool) {
	return f.table[op], f.known[op]
}

var standardRoles = Roles{
	Nop:          OpNop,
	Cache:        OpCache,
	ExtendedArg:  OpExtendedArg,
	LoadGlobal:   OpLoadGlobal,
	LoadAttr:     OpLoadAttr,
	PopTop:       OpPopTop,
	JumpForward:  OpJumpForward,
	JumpBackward: OpJumpBackward,
	PopBlock:     OpPopBlock,
}

var baseTable = map[Opcode]OpInfo{
	OpCache:       {Name: "cache"},
	OpNop:         {Name: "nop"},
	OpExtendedArg: {Name: "extended_arg", HasArg: true},
	OpPopTop:      {Name: "pop_top"},
	OpDupTop:      {Name: "dup_top"},
	OpRotTwo:      {Name: "rot_two"},

	OpUnaryNot:      {Name: "unary_not"},
	OpUnaryNegative: {Name: "unary_negative"},
	OpBinaryOp:      {Name: "binary_op", HasArg: true},
	OpCompareOp:     {Name: "compare_op", HasArg: true},

	OpLoadConst:   {Name: "load_const", HasArg: true},
	OpLoadFast:    {Name: "load_fast", HasArg: true},
	OpStoreFast:   {Name: "store_fast", HasArg: true},
	OpLoadGlobal:  {Name: "load_global", HasArg: true},
	OpStoreGlobal: {Name: "store_global", HasArg: true},
	OpLoadAttr:    {Name: "load_attr", HasArg: true},

	OpBuildList:    {Name: "build_list", HasArg: true},
	OpCallFunction: {Name: "call_function", HasArg: true},
	OpReturnValue:  {Name: "return_value"},

	OpJumpForward:    {Name: "jump_forward", HasArg: true, Jump: JumpForward},
	OpJumpBackward:   {Name: "jump_backward", HasArg: true, Jump: JumpBackward},
	OpJumpAbsolute:   {Name: "jump_absolute", HasArg: true, Jump: JumpAbsolute},
	OpPopJumpIfFalse: {Name: "pop_jump_if_false", HasArg: true, Jump: JumpAbsolute},
	OpPopJumpIfTrue:  {Name: "pop_jump_if_true", HasArg: true, Jump: JumpAbsolute},

	OpGetIter: {Name: "get_iter"},
	OpForIter: {Name: "for_iter", HasArg: true, Jump: JumpForward},

	OpSetupLoop:    {Name: "setup_loop", HasArg: true, Jump: JumpForward, Block: BlockEnterLoop},
	OpSetupExcept:  {Name: "setup_except", HasArg: true, Jump: JumpForward, Block: BlockEnterExcept},
	OpSetupFinally: {Name: "setup_finally", HasArg: true, Jump: JumpForward, Block: BlockEnterFinally},
	OpSetupWith:    {Name: "setup_with", HasArg: true, Jump: JumpForward, Block: BlockEnterResource},
	OpPopBlock:     {Name: "pop_block", Block: BlockExit},
	OpPopExcept:    {Name: "pop_except", Block: BlockExitExcept},
	OpBreakLoop:    {Name: "break_loop"},
	OpEndFinally:   {Name: "end_finally"},
	OpWithCleanup:  {Name: "with_cleanup"},
	OpRaise:        {Name: "raise"},
}

func newTableFormat(name string, caches map[Opcode]uint8) *tableFormat {
	f := &tableFormat{name: name, roles: standardRoles}
	for op, info := range baseTable {
		info.Caches = caches[op]
		f.table[op] = info
		f.known[op] = true
	}
	return f
}

// Wordcode is the default format. Name lookups, binary operations and calls
// reserve trailing inline cache slots.
var Wordcode Format = newTableFormat("wordcode", map[Opcode]uint8{
	OpLoadGlobal:   4,
	OpLoadAttr:     4,
	OpBinaryOp:     1,
	OpCallFunction: 1,
})

// Compact has the same opcodes as Wordcode without inline caches.
var Compact Format = newTableFormat("compact", nil)

// FormatByName returns a shipped format by its name.
func FormatByName(name string) (Format, bool) {
	switch name {
	case "", Wordcode.Name():
		return Wordcode, true
	case Compact.Name():
		return Compact, true
	}
	return nil, false
}

// LookupName resolves an opcode mnemonic in f.
func LookupName(f Format, name string) (Opcode, OpInfo, bool) {
	for i := 0; i < 256; i++ {
		if info, ok := f.Lookup(Opcode(i)); ok && info.Name == name {
			return Opcode(i), info, true
		}
	}
	return 0, OpInfo{}, false
}

// OpName returns the mnemonic of op in f, or a numeric placeholder.
func OpName(f Format, op Opcode) string {
	if info, ok := f.Lookup(op); ok {
		return info.Name
	}
	return "op(" + strconv.Itoa(int(op)) + ")"
}
