package bytecode

// CodeKind identifies what kind of program construct a code block was
// generated from.
type CodeKind uint8

const (
	// GlobalCode is top-level program code.
	GlobalCode CodeKind = iota
	// EvalCode is code compiled for dynamic evaluation.
	EvalCode
	// FunctionCode is the body of a function.
	FunctionCode
	// ModuleCode is top-level module code.
	ModuleCode
)

// String returns the string representation of the code kind.
func (k CodeKind) String() string {
	switch k {
	case GlobalCode:
		return "global"
	case EvalCode:
		return "eval"
	case FunctionCode:
		return "function"
	case ModuleCode:
		return "module"
	default:
		return "unknown"
	}
}

// ConstructorKind describes how a function behaves when invoked as a
// constructor.
type ConstructorKind uint8

const (
	// ConstructorNone marks code that cannot construct.
	ConstructorNone ConstructorKind = iota
	// ConstructorBase marks a base class constructor.
	ConstructorBase
	// ConstructorDerived marks a derived class constructor.
	ConstructorDerived
)

// String returns the string representation of the constructor kind.
func (k ConstructorKind) String() string {
	switch k {
	case ConstructorNone:
		return "none"
	case ConstructorBase:
		return "base"
	case ConstructorDerived:
		return "derived"
	default:
		return "unknown"
	}
}

// TriState is a three-valued flag whose zero value means the answer is
// not yet known.
type TriState int32

const (
	Unknown TriState = iota
	False
	True
)

// String returns the string representation of the tri-state value.
func (t TriState) String() string {
	switch t {
	case False:
		return "false"
	case True:
		return "true"
	default:
		return "unknown"
	}
}

// MaxAge is the saturation point of a code block's age counter.
const MaxAge = 7
