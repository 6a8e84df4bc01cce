// Package linked binds unlinked code blocks to a global scope,
// producing the executable view the interpreter and the compiler tiers
// consume. Many linked instantiations may share one unlinked block; all
// mutable per-run state lives here, never in the unlinked block.
package linked

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/skink-lang/skink/bytecode"
	"github.com/skink-lang/skink/liveness"
	"github.com/skink-lang/skink/op"
)

// Options configures linking.
type Options struct {
	// Globals supplies the value for each global name the block
	// references. Linking fails when a referenced name is missing.
	Globals map[string]any
}

// Code is a linked instantiation of an unlinked code block. It
// satisfies bytecode.ExecutableCode, so it is also the access path for
// the block's liveness analysis.
type Code struct {
	unlinked  *bytecode.Code
	globals   []any
	constants []any
	handlers  []liveness.Handler
}

// New links the given unlinked block against the provided globals. It
// returns an error when the block's instruction stream was discarded or
// when a referenced global has no binding.
func New(unlinked *bytecode.Code, opts Options) (*Code, error) {
	var result *multierror.Error

	if !unlinked.HasInstructions() {
		return nil, fmt.Errorf("linked: code block %q has no instruction stream", unlinked.Name())
	}

	globals := make([]any, unlinked.GlobalNameCount())
	for i := 0; i < unlinked.GlobalNameCount(); i++ {
		name := unlinked.GlobalNameAt(i)
		value, ok := opts.Globals[name]
		if !ok {
			result = multierror.Append(result,
				fmt.Errorf("unresolved global %q", name))
			continue
		}
		globals[i] = value
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	constants := make([]any, unlinked.ConstantCount())
	for i := range constants {
		constants[i] = unlinked.ConstantAt(i)
	}

	handlers := make([]liveness.Handler, 0, unlinked.ExceptionHandlerCount())
	for i := 0; i < unlinked.ExceptionHandlerCount(); i++ {
		h := unlinked.ExceptionHandlerAt(i)
		handlers = append(handlers, liveness.Handler{
			Start:  h.Start,
			End:    h.End,
			Target: h.Target,
		})
	}

	return &Code{
		unlinked:  unlinked,
		globals:   globals,
		constants: constants,
		handlers:  handlers,
	}, nil
}

// Unlinked returns the unlinked block this code was linked from.
func (c *Code) Unlinked() *bytecode.Code {
	return c.unlinked
}

// Name returns the name of the underlying block.
func (c *Code) Name() string {
	return c.unlinked.Name()
}

// LocalCount returns the number of local variable slots.
func (c *Code) LocalCount() int {
	return c.unlinked.LocalCount()
}

// GlobalAt returns the bound value of the global at the given index.
func (c *Code) GlobalAt(index int) any {
	return c.globals[index]
}

// ConstantAt returns the constant at the given index.
func (c *Code) ConstantAt(index int) any {
	return c.constants[index]
}

// InstructionLen returns the length of the instruction stream in words.
func (c *Code) InstructionLen() int {
	return c.unlinked.Instructions().Len()
}

// WordAt returns the instruction word at the given offset. It panics
// when the offset is outside the stream.
func (c *Code) WordAt(offset int) op.Code {
	return c.unlinked.Instructions().At(offset)
}

// OutOfLineJumpTarget returns the absolute target of the spilled jump
// at the given offset. It panics when no entry exists.
func (c *Code) OutOfLineJumpTarget(offset int) int {
	return c.unlinked.OutOfLineJumpTarget(offset)
}

// Handlers returns the block's exception handlers as liveness edges.
func (c *Code) Handlers() []liveness.Handler {
	return c.handlers
}

// HandlerForOffset returns the innermost exception handler covering the
// given offset, filtered by required.
func (c *Code) HandlerForOffset(offset int, required bytecode.RequiredHandler) (bytecode.HandlerInfo, bool) {
	return c.unlinked.HandlerForOffset(offset, required)
}

// LivenessAnalysis returns the shared liveness analysis of the
// underlying block, computing it on first use.
func (c *Code) LivenessAnalysis() *liveness.Analysis {
	return c.unlinked.LivenessAnalysis(c)
}

// ProfileHit bumps the profiling slot of the instruction at the given
// offset. It panics when the offset is not an instruction boundary.
// Counts are advisory: concurrent interpreters may race and lose
// increments.
func (c *Code) ProfileHit(offset int) {
	c.unlinked.Metadata().Add(c.unlinked.Instructions().IndexOf(offset), 1)
}

// ProfileCount returns the recorded hit count for the instruction at
// the given offset.
func (c *Code) ProfileCount(offset int) uint64 {
	return c.unlinked.Metadata().Load(c.unlinked.Instructions().IndexOf(offset))
}
