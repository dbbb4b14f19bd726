package code

import "fmt"

// Opcode is the first byte of an instruction slot.
type Opcode byte

// Opcode values shared by all shipped formats.
const (
	OpCache       Opcode = 0
	OpNop         Opcode = 1
	OpExtendedArg Opcode = 2
	OpPopTop      Opcode = 3
	OpDupTop      Opcode = 4
	OpRotTwo      Opcode = 5

	OpUnaryNot      Opcode = 10
	OpUnaryNegative Opcode = 11
	OpBinaryOp      Opcode = 12
	OpCompareOp     Opcode = 13

	OpLoadConst   Opcode = 20
	OpLoadFast    Opcode = 21
	OpStoreFast   Opcode = 22
	OpLoadGlobal  Opcode = 23
	OpStoreGlobal Opcode = 24
	OpLoadAttr    Opcode = 25

	OpBuildList    Opcode = 30
	OpCallFunction Opcode = 31
	OpReturnValue  Opcode = 32

	OpJumpForward    Opcode = 40
	OpJumpBackward   Opcode = 41
	OpJumpAbsolute   Opcode = 42
	OpPopJumpIfFalse Opcode = 43
	OpPopJumpIfTrue  Opcode = 44

	OpGetIter Opcode = 50
	OpForIter Opcode = 51

	OpSetupLoop    Opcode = 60
	OpSetupExcept  Opcode = 61
	OpSetupFinally Opcode = 62
	OpSetupWith    Opcode = 63
	OpPopBlock     Opcode = 64
	OpPopExcept    Opcode = 65
	OpBreakLoop    Opcode = 66
	OpEndFinally   Opcode = 67
	OpWithCleanup  Opcode = 68
	OpRaise        Opcode = 69
)

// BinaryOperator is the operand of BINARY_OP.
type BinaryOperator uint32

const (
	BinaryAdd BinaryOperator = iota
	BinarySubtract
	BinaryMultiply
	BinaryFloorDivide
	BinaryModulo
)

var binaryNames = [...]string{"add", "sub", "mul", "floordiv", "mod"}

func (op BinaryOperator) String() string {
	if int(op) < len(binaryNames) {
		return binaryNames[op]
	}
	return fmt.Sprintf("binary(%d)", uint32(op))
}

// ParseBinaryOperator resolves an operator mnemonic.
func ParseBinaryOperator(name string) (BinaryOperator, bool) {
	for i, n := range binaryNames {
		if n == name {
			return BinaryOperator(i), true
		}
	}
	return 0, false
}

// Comparison is the operand of COMPARE_OP.
type Comparison uint32

const (
	CompareLess Comparison = iota
	CompareLessEqual
	CompareEqual
	CompareNotEqual
	CompareGreater
	CompareGreaterEqual
)

var comparisonNames = [...]string{"lt", "le", "eq", "ne", "gt", "ge"}

func (c Comparison) String() string {
	if int(c) < len(comparisonNames) {
		return comparisonNames[c]
	}
	return fmt.Sprintf("compare(%d)", uint32(c))
}

// ParseComparison resolves a comparison mnemonic.
func ParseComparison(name string) (Comparison, bool) {
	for i, n := range comparisonNames {
		if n == name {
			return Comparison(i), true
		}
	}
	return 0, false
}
