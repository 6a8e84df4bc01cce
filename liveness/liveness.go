// Package liveness computes which local variables hold observable values
// at each instruction boundary of a block of bytecode. The analysis is a
// backward dataflow fixpoint over the control flow graph, including the
// edges introduced by exception handlers.
package liveness

import (
	"fmt"

	"github.com/skink-lang/skink/internal/bitset"
	"github.com/skink-lang/skink/op"
)

// Target is the view of a code block that the analysis consumes. The
// instruction stream must be immutable for the lifetime of the analysis.
type Target interface {
	// LocalCount returns the number of local variable slots.
	LocalCount() int

	// InstructionLen returns the length of the instruction stream in words.
	InstructionLen() int

	// WordAt returns the instruction word at the given offset.
	WordAt(offset int) op.Code

	// OutOfLineJumpTarget returns the absolute target offset recorded for
	// the jump instruction at the given offset.
	OutOfLineJumpTarget(offset int) int

	// Handlers returns the exception handler ranges of the block.
	Handlers() []Handler
}

// Handler is one exception handler range. Start and End delimit the
// half-open covered interval and Target is the offset where control
// resumes when an exception is raised inside it.
type Handler struct {
	Start  int
	End    int
	Target int
}

// Analysis holds the result of a liveness computation. It is immutable
// and safe for concurrent use.
type Analysis struct {
	localCount int
	liveIn     map[int]*bitset.Set
}

// LocalCount returns the number of local slots the analysis covers.
func (a *Analysis) LocalCount() int {
	return a.localCount
}

// IsLiveAt returns true if the given local holds a live value just
// before the instruction at offset executes. The offset must be an
// instruction boundary.
func (a *Analysis) IsLiveAt(local, offset int) bool {
	if local < 0 || local >= a.localCount {
		panic(fmt.Sprintf("liveness: Analysis.IsLiveAt: local %d out of range (count %d)",
			local, a.localCount))
	}
	live, ok := a.liveIn[offset]
	if !ok {
		panic(fmt.Sprintf("liveness: Analysis.IsLiveAt: offset %d is not an instruction boundary", offset))
	}
	return live.Has(local)
}

// LiveAt returns the locals live just before the instruction at offset,
// in ascending slot order. The offset must be an instruction boundary.
func (a *Analysis) LiveAt(offset int) []int {
	live, ok := a.liveIn[offset]
	if !ok {
		panic(fmt.Sprintf("liveness: Analysis.LiveAt: offset %d is not an instruction boundary", offset))
	}
	return live.Members()
}

// Compute runs the analysis over target. It panics if the stream is
// malformed: a truncated instruction or a jump that does not land on an
// instruction boundary.
func Compute(target Target) *Analysis {
	localCount := target.LocalCount()
	length := target.InstructionLen()

	starts := make([]int, 0, length)
	isStart := make(map[int]bool, length)
	for offset := 0; offset < length; {
		code := target.WordAt(offset)
		if !op.IsValid(code) {
			panic(fmt.Sprintf("liveness: Compute: unknown opcode %d at offset %d", code, offset))
		}
		width := op.Width(code)
		if offset+width > length {
			panic(fmt.Sprintf("liveness: Compute: truncated instruction at offset %d", offset))
		}
		starts = append(starts, offset)
		isStart[offset] = true
		offset += width
	}

	succs := make(map[int][]int, len(starts))
	for _, offset := range starts {
		edges := successors(target, offset)
		for _, h := range target.Handlers() {
			if offset >= h.Start && offset < h.End {
				edges = append(edges, h.Target)
			}
		}
		for _, s := range edges {
			if !isStart[s] {
				panic(fmt.Sprintf("liveness: Compute: jump at offset %d targets %d, not an instruction boundary",
					offset, s))
			}
		}
		succs[offset] = edges
	}

	liveIn := make(map[int]*bitset.Set, len(starts))
	for _, offset := range starts {
		liveIn[offset] = bitset.New(localCount)
	}

	// Backward fixpoint. Iterating the starts in reverse converges in a
	// single pass on acyclic streams; loops take a pass per nesting level.
	for changed := true; changed; {
		changed = false
		for i := len(starts) - 1; i >= 0; i-- {
			offset := starts[i]
			out := bitset.New(localCount)
			for _, s := range succs[offset] {
				out.Or(liveIn[s])
			}
			transfer(target, offset, out)
			if !out.Equal(liveIn[offset]) {
				liveIn[offset] = out
				changed = true
			}
		}
	}

	return &Analysis{localCount: localCount, liveIn: liveIn}
}

// successors returns the offsets where control may continue after the
// instruction at offset, not counting exception edges.
func successors(target Target, offset int) []int {
	code := target.WordAt(offset)
	width := op.Width(code)
	switch code {
	case op.ReturnValue, op.Halt, op.TailCall, op.Throw:
		return nil
	case op.JumpForward:
		return []int{jumpTarget(target, offset, true)}
	case op.JumpBackward:
		return []int{jumpTarget(target, offset, false)}
	case op.PopJumpForwardIfFalse, op.PopJumpForwardIfTrue,
		op.PopJumpForwardIfNil, op.PopJumpForwardIfNotNil:
		return []int{offset + width, jumpTarget(target, offset, true)}
	case op.ForIter:
		// Operand one is the exhaustion displacement, measured like a
		// forward jump. It is never spilled out of line.
		return []int{offset + width, offset + int(target.WordAt(offset+1))}
	default:
		return []int{offset + width}
	}
}

func jumpTarget(target Target, offset int, forward bool) int {
	delta := int(target.WordAt(offset + 1))
	if delta == 0 {
		return target.OutOfLineJumpTarget(offset)
	}
	if forward {
		return offset + delta
	}
	return offset - delta
}

// transfer applies the instruction's effect on the live set, mutating
// out in place: definitions kill, uses gen.
func transfer(target Target, offset int, out *bitset.Set) {
	switch target.WordAt(offset) {
	case op.StoreFast:
		out.Clear(int(target.WordAt(offset + 1)))
	case op.Catch:
		out.Clear(int(target.WordAt(offset + 1)))
	case op.LoadFast:
		out.Set(int(target.WordAt(offset + 1)))
	case op.MakeCell:
		// Capturing a local from the current frame reads it. Deeper
		// frames are outside this block's local space.
		if framesBack := int(target.WordAt(offset + 2)); framesBack == 0 {
			out.Set(int(target.WordAt(offset + 1)))
		}
	}
}
