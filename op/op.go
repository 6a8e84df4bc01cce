// Package op defines opcodes used by the Skink bytecode generator and the
// tools that consume unlinked code blocks.
package op

// Code is an integer opcode that indicates an operation to execute.
// Instructions are encoded as an opcode word followed by a fixed number of
// operand words; the operand count for each opcode is available via GetInfo.
type Code uint16

const (
	Invalid Code = 0

	// Execution
	Nop         Code = 1
	Halt        Code = 2
	Call        Code = 3
	ReturnValue Code = 4
	TailCall    Code = 5

	// Jumps. Operands are unsigned word displacements measured from the
	// offset of the jump instruction itself. A zero operand means the
	// displacement did not fit in one word and the resolved absolute target
	// is stored in the code block's out-of-line jump table.
	JumpForward            Code = 10
	JumpBackward           Code = 11
	PopJumpForwardIfFalse  Code = 12
	PopJumpForwardIfTrue   Code = 13
	PopJumpForwardIfNil    Code = 14
	PopJumpForwardIfNotNil Code = 15

	// Load
	LoadFast   Code = 20
	LoadGlobal Code = 21
	LoadConst  Code = 22
	LoadAttr   Code = 23
	LoadFree   Code = 24

	// Store
	StoreFast   Code = 30
	StoreGlobal Code = 31
	StoreAttr   Code = 32
	StoreFree   Code = 33

	// Operations
	BinaryOp      Code = 40
	CompareOp     Code = 41
	UnaryNegative Code = 42
	UnaryNot      Code = 43

	// Stack
	PopTop Code = 50
	Swap   Code = 51
	Copy   Code = 52

	// Push constants
	Nil   Code = 60
	False Code = 61
	True  Code = 62

	// Iteration
	GetIter Code = 70
	ForIter Code = 71 // operand1=exhaustion jump displacement, operand2=name count

	// Functions and closures
	MakeFunction Code = 80 // operand: function-expression template index
	MakeClosure  Code = 81 // operands: template index, free variable count
	MakeCell     Code = 82 // operands: local index, frames back

	// Exception handling. Dispatch is table-driven: handler ranges live in
	// the code block, not on the value stack.
	Throw Code = 90
	Catch Code = 91 // operand: local index that receives the caught value
)

// BinaryOpType describes a type of binary operation, as in an operation that
// takes two operands. For example, addition, subtraction, multiplication, etc.
type BinaryOpType uint16

const (
	Add        BinaryOpType = 1
	Subtract   BinaryOpType = 2
	Multiply   BinaryOpType = 3
	Divide     BinaryOpType = 4
	Modulo     BinaryOpType = 5
	And        BinaryOpType = 6
	Or         BinaryOpType = 7
	Xor        BinaryOpType = 8
	Power      BinaryOpType = 9
	LShift     BinaryOpType = 10
	RShift     BinaryOpType = 11
	BitwiseAnd BinaryOpType = 12
	BitwiseOr  BinaryOpType = 13
)

// String returns a string representation of the binary operation.
// For example "+" for addition.
func (bop BinaryOpType) String() string {
	switch bop {
	case Add:
		return "+"
	case Subtract:
		return "-"
	case Multiply:
		return "*"
	case Divide:
		return "/"
	case Modulo:
		return "%"
	case And:
		return "&&"
	case Or:
		return "||"
	case Xor:
		return "^"
	case Power:
		return "**"
	case LShift:
		return "<<"
	case RShift:
		return ">>"
	case BitwiseAnd:
		return "&^"
	case BitwiseOr:
		return "|^"
	default:
		return ""
	}
}

// CompareOpType describes a type of comparison operation. For example, less
// than, greater than, equal, etc.
type CompareOpType uint16

const (
	LessThan           CompareOpType = 1
	LessThanOrEqual    CompareOpType = 2
	Equal              CompareOpType = 3
	NotEqual           CompareOpType = 4
	GreaterThan        CompareOpType = 5
	GreaterThanOrEqual CompareOpType = 6
)

// String returns a string representation of the comparison operation.
// For example "<" for less than.
func (cop CompareOpType) String() string {
	switch cop {
	case LessThan:
		return "<"
	case LessThanOrEqual:
		return "<="
	case Equal:
		return "=="
	case NotEqual:
		return "!="
	case GreaterThan:
		return ">"
	case GreaterThanOrEqual:
		return ">="
	default:
		return ""
	}
}

// Info contains information about an opcode.
type Info struct {
	Code         Code
	Name         string
	OperandCount int
}

var infos = make([]Info, 256)

func init() {
	type opInfo struct {
		op    Code
		name  string
		count int
	}
	ops := []opInfo{
		{BinaryOp, "BINARY_OP", 1},
		{Call, "CALL", 1},
		{Catch, "CATCH", 1},
		{CompareOp, "COMPARE_OP", 1},
		{Copy, "COPY", 1},
		{False, "FALSE", 0},
		{ForIter, "FOR_ITER", 2},
		{GetIter, "GET_ITER", 0},
		{Halt, "HALT", 0},
		{JumpBackward, "JUMP_BACKWARD", 1},
		{JumpForward, "JUMP_FORWARD", 1},
		{LoadAttr, "LOAD_ATTR", 1},
		{LoadConst, "LOAD_CONST", 1},
		{LoadFast, "LOAD_FAST", 1},
		{LoadFree, "LOAD_FREE", 1},
		{LoadGlobal, "LOAD_GLOBAL", 1},
		{MakeCell, "MAKE_CELL", 2},
		{MakeClosure, "MAKE_CLOSURE", 2},
		{MakeFunction, "MAKE_FUNCTION", 1},
		{Nil, "NIL", 0},
		{Nop, "NOP", 0},
		{PopJumpForwardIfFalse, "POP_JUMP_FORWARD_IF_FALSE", 1},
		{PopJumpForwardIfNil, "POP_JUMP_FORWARD_IF_NIL", 1},
		{PopJumpForwardIfNotNil, "POP_JUMP_FORWARD_IF_NOT_NIL", 1},
		{PopJumpForwardIfTrue, "POP_JUMP_FORWARD_IF_TRUE", 1},
		{PopTop, "POP_TOP", 0},
		{ReturnValue, "RETURN_VALUE", 0},
		{StoreAttr, "STORE_ATTR", 1},
		{StoreFast, "STORE_FAST", 1},
		{StoreFree, "STORE_FREE", 1},
		{StoreGlobal, "STORE_GLOBAL", 1},
		{Swap, "SWAP", 1},
		{TailCall, "TAIL_CALL", 1},
		{Throw, "THROW", 0},
		{True, "TRUE", 0},
		{UnaryNegative, "UNARY_NEGATIVE", 0},
		{UnaryNot, "UNARY_NOT", 0},
	}
	for _, o := range ops {
		infos[o.op] = Info{
			Name:         o.name,
			Code:         o.op,
			OperandCount: o.count,
		}
	}
}

// GetInfo returns information about the given opcode.
func GetInfo(op Code) Info {
	return infos[op]
}

// IsValid returns true if the given word is a defined opcode.
func IsValid(op Code) bool {
	return int(op) < len(infos) && infos[op].Name != ""
}

// Width returns the encoded width of an instruction with the given opcode,
// in words (one word for the opcode plus one per operand).
func Width(op Code) int {
	return 1 + infos[op].OperandCount
}

// IsJump returns true for opcodes whose operand is a jump displacement.
func IsJump(op Code) bool {
	switch op {
	case JumpForward, JumpBackward, PopJumpForwardIfFalse, PopJumpForwardIfTrue,
		PopJumpForwardIfNil, PopJumpForwardIfNotNil:
		return true
	default:
		return false
	}
}
