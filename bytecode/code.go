package bytecode

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/skink-lang/skink/liveness"
	"github.com/skink-lang/skink/op"
)

// Code is an unlinked code block: the immutable output of the bytecode
// generator for one program, module, eval or function body. A single
// Code may back any number of linked instantiations, which share its
// instruction stream and tables.
//
// The block is immutable after construction except for three pieces of
// internally-synchronized state: the cached liveness analysis, the age
// counter the collector bumps, and the optimization tri-state.
type Code struct {
	id          string
	name        string
	filename    string
	source      string
	sourceStart int
	sourceEnd   int

	kind            CodeKind
	strict          bool
	constructorKind ConstructorKind
	isGenerator     bool
	isAsync         bool
	isArrowContext  bool
	isClassContext  bool

	instructions  *Instructions // nil when the stream was not retained
	metadata      *MetadataTable
	constants     []any
	globalNames   []string
	localNames    []string
	localCount    int
	functionDecls []*FunctionTemplate
	functionExprs []*FunctionTemplate

	expressionInfo []expressionEntry
	outOfLineJumps map[int]int
	rare           *rareData

	// Collector bookkeeping. The age counter is written under visitMu
	// and read with atomic loads.
	visitMu sync.Mutex
	age     atomic.Uint32

	didOptimize atomic.Int32

	// Liveness cache: written once under livenessMu, read lock-free.
	// livenessMu and visitMu are independent and never nested.
	livenessMu     sync.Mutex
	livenessResult atomic.Pointer[liveness.Analysis]
}

// CodeParams contains parameters for creating a new Code.
type CodeParams struct {
	ID          string
	Name        string
	Filename    string
	Source      string
	SourceStart int // offset of this block's text within the source
	SourceEnd   int

	Kind                   CodeKind
	Strict                 bool
	ConstructorKind        ConstructorKind
	IsGenerator            bool
	IsAsync                bool
	IsArrowFunctionContext bool
	IsClassContext         bool

	Instructions []op.Code

	// DiscardInstructions drops the stream after validation and metadata
	// sizing. Counts and memory accounting remain available; offset
	// lookups and linking do not.
	DiscardInstructions bool

	LocalCount    int
	Constants     []any
	GlobalNames   []string
	LocalNames    []string
	FunctionDecls []*FunctionTemplate
	FunctionExprs []*FunctionTemplate

	ExpressionInfo     []ExpressionInfo
	Handlers           []HandlerInfo
	TypeProfilerRanges map[int]TypeProfilerRange
	OutOfLineJumps     map[int]int
}

// NewCode creates a new Code from the given parameters. Input slices
// are copied. It panics when the parameters fail validation; generators
// that need errors as values should construct through a Builder.
func NewCode(params CodeParams) *Code {
	if err := ValidateParams(params); err != nil {
		panic(fmt.Sprintf("bytecode: NewCode: %v", err))
	}

	instructions := newInstructions(copyWords(params.Instructions))

	var fat []fatPosition
	var entries []expressionEntry
	if len(params.ExpressionInfo) > 0 {
		entries = make([]expressionEntry, len(params.ExpressionInfo))
		for i, info := range params.ExpressionInfo {
			entries[i] = encodeExpressionInfo(info, &fat)
		}
	}

	code := &Code{
		id:              params.ID,
		name:            params.Name,
		filename:        params.Filename,
		source:          params.Source,
		sourceStart:     params.SourceStart,
		sourceEnd:       params.SourceEnd,
		kind:            params.Kind,
		strict:          params.Strict,
		constructorKind: params.ConstructorKind,
		isGenerator:     params.IsGenerator,
		isAsync:         params.IsAsync,
		isArrowContext:  params.IsArrowFunctionContext,
		isClassContext:  params.IsClassContext,
		instructions:    instructions,
		metadata:        newMetadataTable(instructions.Count()),
		constants:       copyAny(params.Constants),
		globalNames:     copyStrings(params.GlobalNames),
		localNames:      copyStrings(params.LocalNames),
		localCount:      params.LocalCount,
		functionDecls:   copyTemplates(params.FunctionDecls),
		functionExprs:   copyTemplates(params.FunctionExprs),
		expressionInfo:  entries,
		outOfLineJumps:  copyIntMap(params.OutOfLineJumps),
	}

	rare := &rareData{
		handlers:           copyHandlers(params.Handlers),
		typeProfilerRanges: copyProfilerRanges(params.TypeProfilerRanges),
		fatPositions:       fat,
	}
	if !rare.isEmpty() {
		code.rare = rare
	}

	if params.DiscardInstructions {
		code.instructions = nil
	}
	return code
}

// ID returns the unique identifier for this code block.
func (c *Code) ID() string {
	return c.id
}

// Name returns the name of this code block, empty for anonymous code.
func (c *Code) Name() string {
	return c.name
}

// Filename returns the source filename.
func (c *Code) Filename() string {
	return c.filename
}

// Source returns the source text of this block.
func (c *Code) Source() string {
	return c.source
}

// SourceStart returns the offset of this block's first character within
// the enclosing source text.
func (c *Code) SourceStart() int {
	return c.sourceStart
}

// SourceEnd returns the offset one past this block's last character
// within the enclosing source text.
func (c *Code) SourceEnd() int {
	return c.sourceEnd
}

// Kind returns what kind of construct this block was generated from.
func (c *Code) Kind() CodeKind {
	return c.kind
}

// IsStrict returns true if the block was generated in strict mode.
func (c *Code) IsStrict() bool {
	return c.strict
}

// ConstructorKind returns how the code behaves when invoked as a
// constructor.
func (c *Code) ConstructorKind() ConstructorKind {
	return c.constructorKind
}

// IsGenerator returns true for generator function bodies.
func (c *Code) IsGenerator() bool {
	return c.isGenerator
}

// IsAsync returns true for async function bodies.
func (c *Code) IsAsync() bool {
	return c.isAsync
}

// IsArrowFunctionContext returns true if the code was generated inside
// an arrow function context.
func (c *Code) IsArrowFunctionContext() bool {
	return c.isArrowContext
}

// IsClassContext returns true if the code was generated inside a class
// context.
func (c *Code) IsClassContext() bool {
	return c.isClassContext
}

// HasInstructions reports whether the instruction stream was retained.
func (c *Code) HasInstructions() bool {
	return c.instructions != nil
}

// Instructions returns the instruction stream. It panics when the
// stream was not retained.
func (c *Code) Instructions() *Instructions {
	if c.instructions == nil {
		panic("bytecode: Code.Instructions: instruction stream not retained")
	}
	return c.instructions
}

// InstructionCount returns the number of instructions the block was
// constructed with. It remains available when the stream itself has
// been dropped.
func (c *Code) InstructionCount() int {
	return c.metadata.SlotCount()
}

// Metadata returns the block's profiling metadata table.
func (c *Code) Metadata() *MetadataTable {
	return c.metadata
}

// LocalCount returns the number of local variable slots.
func (c *Code) LocalCount() int {
	return c.localCount
}

// ConstantCount returns the number of constants.
func (c *Code) ConstantCount() int {
	return len(c.constants)
}

// ConstantAt returns the constant at the given index.
func (c *Code) ConstantAt(index int) any {
	return c.constants[index]
}

// GlobalNameCount returns the number of global variable names.
func (c *Code) GlobalNameCount() int {
	return len(c.globalNames)
}

// GlobalNameAt returns the global variable name at the given index.
// Returns an empty string if the index is out of range.
func (c *Code) GlobalNameAt(index int) string {
	if index < 0 || index >= len(c.globalNames) {
		return ""
	}
	return c.globalNames[index]
}

// GlobalNames returns a copy of all global variable names.
func (c *Code) GlobalNames() []string {
	return copyStrings(c.globalNames)
}

// LocalNameCount returns the number of recorded local variable names.
func (c *Code) LocalNameCount() int {
	return len(c.localNames)
}

// LocalNameAt returns the local variable name at the given index.
// Returns an empty string if the index is out of range.
func (c *Code) LocalNameAt(index int) string {
	if index < 0 || index >= len(c.localNames) {
		return ""
	}
	return c.localNames[index]
}

// FunctionDeclCount returns the number of function declaration
// templates.
func (c *Code) FunctionDeclCount() int {
	return len(c.functionDecls)
}

// FunctionDeclAt returns the function declaration template at the given
// index.
func (c *Code) FunctionDeclAt(index int) *FunctionTemplate {
	return c.functionDecls[index]
}

// FunctionExprCount returns the number of function expression
// templates.
func (c *Code) FunctionExprCount() int {
	return len(c.functionExprs)
}

// FunctionExprAt returns the function expression template at the given
// index.
func (c *Code) FunctionExprAt(index int) *FunctionTemplate {
	return c.functionExprs[index]
}

// HasOutOfLineJumpTarget reports whether the jump at the given offset
// has an out-of-line target entry.
func (c *Code) HasOutOfLineJumpTarget(offset int) bool {
	_, ok := c.outOfLineJumps[offset]
	return ok
}

// OutOfLineJumpTarget returns the absolute target offset recorded for
// the jump instruction at the given offset. The jump's inline operand
// is the zero sentinel exactly when such an entry exists; asking for a
// missing entry panics.
func (c *Code) OutOfLineJumpTarget(offset int) int {
	target, ok := c.outOfLineJumps[offset]
	if !ok {
		panic(fmt.Sprintf("bytecode: Code.OutOfLineJumpTarget: no entry for offset %d", offset))
	}
	return target
}

// OutOfLineJumpOffsets returns the offsets of jumps with out-of-line
// targets, in ascending order.
func (c *Code) OutOfLineJumpOffsets() []int {
	offsets := make([]int, 0, len(c.outOfLineJumps))
	for offset := range c.outOfLineJumps {
		offsets = append(offsets, offset)
	}
	sort.Ints(offsets)
	return offsets
}

// Age returns the block's collection age: the number of cycles that
// have first-visited it, saturating at MaxAge.
func (c *Code) Age() int {
	return int(c.age.Load())
}

// DidOptimize returns whether an optimizing tier has compiled this
// block.
func (c *Code) DidOptimize() TriState {
	return TriState(c.didOptimize.Load())
}

// SetDidOptimize records whether an optimizing tier has compiled this
// block.
func (c *Code) SetDidOptimize(v TriState) {
	c.didOptimize.Store(int32(v))
}

// Flatten returns this block and the bodies of all templates reachable
// from it, parents before children, each block exactly once. Templates
// held as constants count as reachable, matching what VisitChildren
// reports.
func (c *Code) Flatten() []*Code {
	var codes []*Code
	seen := map[*Code]bool{}
	var walk func(*Code)
	walk = func(code *Code) {
		if code == nil || seen[code] {
			return
		}
		seen[code] = true
		codes = append(codes, code)
		for _, t := range code.functionDecls {
			walk(t.Body())
		}
		for _, t := range code.functionExprs {
			walk(t.Body())
		}
		for _, value := range code.constants {
			if t, ok := value.(*FunctionTemplate); ok {
				walk(t.Body())
			}
		}
	}
	walk(c)
	return codes
}
