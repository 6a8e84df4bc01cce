package bytecode

import (
	"fmt"
	"sort"

	"github.com/gofrs/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/skink-lang/skink/op"
)

// maxInlineDisplacement is the largest jump displacement an inline
// operand word can hold. Larger displacements spill to the out-of-line
// jump table behind a zero operand.
const maxInlineDisplacement = 1<<16 - 1

// maxPoolSize is the largest table an operand word can index into.
const maxPoolSize = 1 << 16

// Builder assembles a code block instruction by instruction and
// publishes it as an immutable Code. Misuse of the emit API panics;
// problems in the assembled block are reported as errors from Finish.
// A Builder must be used from a single goroutine.
type Builder struct {
	params      BuilderParams
	words       []op.Code
	constants   []any
	globalNames []string
	globalIndex map[string]int
	localNames  []string
	localCount  int
	decls       []*FunctionTemplate
	exprs       []*FunctionTemplate
	expression  []ExpressionInfo
	handlers    []HandlerInfo
	profiler    map[int]TypeProfilerRange
	jumpTargets map[int]int // jump offset -> absolute target offset
	discard     bool
}

// BuilderParams carries the identity and flags of the block under
// construction.
type BuilderParams struct {
	ID          string // minted when empty
	Name        string
	Filename    string
	Source      string
	SourceStart int
	SourceEnd   int

	Kind                   CodeKind
	Strict                 bool
	ConstructorKind        ConstructorKind
	IsGenerator            bool
	IsAsync                bool
	IsArrowFunctionContext bool
	IsClassContext         bool
}

// NewBuilder creates a Builder for a block with the given identity.
func NewBuilder(params BuilderParams) *Builder {
	return &Builder{
		params:      params,
		globalIndex: map[string]int{},
		profiler:    map[int]TypeProfilerRange{},
		jumpTargets: map[int]int{},
	}
}

// CurrentOffset returns the offset the next emitted instruction will
// occupy.
func (b *Builder) CurrentOffset() int {
	return len(b.words)
}

// Emit appends an instruction and returns its offset. The operand count
// must match the opcode.
func (b *Builder) Emit(code op.Code, operands ...op.Code) int {
	if !op.IsValid(code) {
		panic(fmt.Sprintf("bytecode: Builder.Emit: unknown opcode %d", code))
	}
	info := op.GetInfo(code)
	if len(operands) != info.OperandCount {
		panic(fmt.Sprintf("bytecode: Builder.Emit: %s expects %d operands, got %d",
			info.Name, info.OperandCount, len(operands)))
	}
	offset := len(b.words)
	b.words = append(b.words, code)
	b.words = append(b.words, operands...)
	return offset
}

// EmitJump appends a jump instruction whose target is not yet known and
// returns its offset. SetJumpTarget must resolve it before Finish.
func (b *Builder) EmitJump(code op.Code) int {
	if !op.IsJump(code) {
		panic(fmt.Sprintf("bytecode: Builder.EmitJump: %s is not a jump", op.GetInfo(code).Name))
	}
	return b.Emit(code, 0)
}

// SetJumpTarget records the absolute target offset for the jump or
// FOR_ITER instruction at jumpOffset. Displacement encoding, including
// the out-of-line spill for displacements beyond the operand range,
// happens in Finish.
func (b *Builder) SetJumpTarget(jumpOffset, target int) {
	b.jumpTargets[jumpOffset] = target
}

// AddConstant appends a constant and returns its index.
func (b *Builder) AddConstant(value any) int {
	b.constants = append(b.constants, value)
	return len(b.constants) - 1
}

// AddGlobalName returns the index for the given global variable name,
// appending it on first use.
func (b *Builder) AddGlobalName(name string) int {
	if idx, ok := b.globalIndex[name]; ok {
		return idx
	}
	idx := len(b.globalNames)
	b.globalNames = append(b.globalNames, name)
	b.globalIndex[name] = idx
	return idx
}

// AddLocal reserves the next local slot under the given name and
// returns its index.
func (b *Builder) AddLocal(name string) int {
	idx := len(b.localNames)
	b.localNames = append(b.localNames, name)
	if len(b.localNames) > b.localCount {
		b.localCount = len(b.localNames)
	}
	return idx
}

// SetLocalCount raises the local slot count beyond the named locals,
// for generator-synthesized temporaries.
func (b *Builder) SetLocalCount(count int) {
	if count > b.localCount {
		b.localCount = count
	}
}

// AddFunctionDecl appends a function declaration template and returns
// its index.
func (b *Builder) AddFunctionDecl(t *FunctionTemplate) int {
	b.decls = append(b.decls, t)
	return len(b.decls) - 1
}

// AddFunctionExpr appends a function expression template and returns
// its index, the operand for MAKE_FUNCTION and MAKE_CLOSURE.
func (b *Builder) AddFunctionExpr(t *FunctionTemplate) int {
	b.exprs = append(b.exprs, t)
	return len(b.exprs) - 1
}

// AddExpressionInfo records the source range for the instruction at
// info.InstructionOffset. Entries must be added in ascending offset
// order.
func (b *Builder) AddExpressionInfo(info ExpressionInfo) {
	b.expression = append(b.expression, info)
}

// AddHandler registers an exception handler. Handlers must be
// registered outermost first.
func (b *Builder) AddHandler(h HandlerInfo) {
	b.handlers = append(b.handlers, h)
}

// AddTypeProfilerRange records the profiled source extent for the
// instruction at the given offset.
func (b *Builder) AddTypeProfilerRange(offset int, r TypeProfilerRange) {
	b.profiler[offset] = r
}

// DiscardInstructions marks the stream to be dropped after validation,
// keeping only counts and memory accounting.
func (b *Builder) DiscardInstructions() {
	b.discard = true
}

// Finish resolves jumps, validates the assembled block and publishes
// it. All problems are accumulated and returned together.
func (b *Builder) Finish() (*Code, error) {
	var result *multierror.Error

	words := copyWords(b.words)
	outOfLine := map[int]int{}

	jumpOffsets := make([]int, 0, len(b.jumpTargets))
	for offset := range b.jumpTargets {
		jumpOffsets = append(jumpOffsets, offset)
	}
	sort.Ints(jumpOffsets)

	for _, jumpOffset := range jumpOffsets {
		target := b.jumpTargets[jumpOffset]
		if jumpOffset < 0 || jumpOffset >= len(words) {
			result = multierror.Append(result,
				fmt.Errorf("jump target set for offset %d, outside the stream", jumpOffset))
			continue
		}
		code := words[jumpOffset]
		if !op.IsJump(code) && code != op.ForIter {
			result = multierror.Append(result,
				fmt.Errorf("jump target set for offset %d, which holds %s",
					jumpOffset, op.GetInfo(code).Name))
			continue
		}

		delta := target - jumpOffset
		if code == op.JumpBackward {
			delta = jumpOffset - target
		}
		if delta <= 0 {
			result = multierror.Append(result,
				fmt.Errorf("jump at offset %d cannot reach target %d", jumpOffset, target))
			continue
		}

		switch {
		case delta <= maxInlineDisplacement:
			words[jumpOffset+1] = op.Code(delta)
		case code == op.ForIter:
			result = multierror.Append(result,
				fmt.Errorf("FOR_ITER at offset %d has displacement %d beyond operand range",
					jumpOffset, delta))
		default:
			words[jumpOffset+1] = 0
			outOfLine[jumpOffset] = target
		}
	}

	if len(b.constants) > maxPoolSize {
		result = multierror.Append(result,
			fmt.Errorf("constant pool size %d exceeds operand range", len(b.constants)))
	}
	if len(b.globalNames) > maxPoolSize {
		result = multierror.Append(result,
			fmt.Errorf("global name table size %d exceeds operand range", len(b.globalNames)))
	}
	if len(b.exprs) > maxPoolSize {
		result = multierror.Append(result,
			fmt.Errorf("function template table size %d exceeds operand range", len(b.exprs)))
	}
	if b.localCount > maxPoolSize {
		result = multierror.Append(result,
			fmt.Errorf("local count %d exceeds operand range", b.localCount))
	}

	id := b.params.ID
	if id == "" {
		id = uuid.Must(uuid.NewV4()).String()
	}

	params := CodeParams{
		ID:                     id,
		Name:                   b.params.Name,
		Filename:               b.params.Filename,
		Source:                 b.params.Source,
		SourceStart:            b.params.SourceStart,
		SourceEnd:              b.params.SourceEnd,
		Kind:                   b.params.Kind,
		Strict:                 b.params.Strict,
		ConstructorKind:        b.params.ConstructorKind,
		IsGenerator:            b.params.IsGenerator,
		IsAsync:                b.params.IsAsync,
		IsArrowFunctionContext: b.params.IsArrowFunctionContext,
		IsClassContext:         b.params.IsClassContext,
		Instructions:           words,
		DiscardInstructions:    b.discard,
		LocalCount:             b.localCount,
		Constants:              b.constants,
		GlobalNames:            b.globalNames,
		LocalNames:             b.localNames,
		FunctionDecls:          b.decls,
		FunctionExprs:          b.exprs,
		ExpressionInfo:         b.expression,
		Handlers:               b.handlers,
		TypeProfilerRanges:     b.profiler,
		OutOfLineJumps:         outOfLine,
	}

	if err := ValidateParams(params); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return NewCode(params), nil
}
