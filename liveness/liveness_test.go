package liveness

import (
	"fmt"
	"testing"

	"github.com/skink-lang/skink/op"
	"github.com/stretchr/testify/require"
)

type testTarget struct {
	locals   int
	words    []op.Code
	ool      map[int]int
	handlers []Handler
}

func (t *testTarget) LocalCount() int           { return t.locals }
func (t *testTarget) InstructionLen() int       { return len(t.words) }
func (t *testTarget) WordAt(offset int) op.Code { return t.words[offset] }
func (t *testTarget) Handlers() []Handler       { return t.handlers }

func (t *testTarget) OutOfLineJumpTarget(offset int) int {
	target, ok := t.ool[offset]
	if !ok {
		panic(fmt.Sprintf("no out-of-line jump target for offset %d", offset))
	}
	return target
}

func TestStraightLine(t *testing.T) {
	target := &testTarget{
		locals: 1,
		words: []op.Code{
			op.LoadConst, 0, // 0
			op.StoreFast, 0, // 2
			op.LoadFast, 0, // 4
			op.ReturnValue, // 6
		},
	}
	a := Compute(target)
	require.Equal(t, 1, a.LocalCount())
	require.False(t, a.IsLiveAt(0, 0))
	require.False(t, a.IsLiveAt(0, 2))
	require.True(t, a.IsLiveAt(0, 4))
	require.False(t, a.IsLiveAt(0, 6))
}

func TestBranchJoin(t *testing.T) {
	target := &testTarget{
		locals: 2,
		words: []op.Code{
			op.PopJumpForwardIfFalse, 6, // 0 -> 6, fallthrough 2
			op.LoadFast, 0, // 2
			op.JumpForward, 4, // 4 -> 8
			op.LoadFast, 1, // 6
			op.ReturnValue, // 8
		},
	}
	a := Compute(target)

	// Both branch reads are live at the branch point.
	require.Equal(t, []int{0, 1}, a.LiveAt(0))
	require.Equal(t, []int{0}, a.LiveAt(2))
	require.Equal(t, []int{1}, a.LiveAt(6))
	require.Empty(t, a.LiveAt(8))
}

func TestLoopBackEdge(t *testing.T) {
	target := &testTarget{
		locals: 1,
		words: []op.Code{
			op.StoreFast, 0, // 0
			op.LoadFast, 0, // 2
			op.PopJumpForwardIfFalse, 4, // 4 -> 8, fallthrough 6
			op.JumpBackward, 4, // 6 -> 2
			op.ReturnValue, // 8
		},
	}
	a := Compute(target)

	// The local flows around the back edge.
	require.True(t, a.IsLiveAt(0, 2))
	require.True(t, a.IsLiveAt(0, 4))
	require.True(t, a.IsLiveAt(0, 6))
	require.False(t, a.IsLiveAt(0, 0))
	require.False(t, a.IsLiveAt(0, 8))
}

func TestExceptionEdge(t *testing.T) {
	target := &testTarget{
		locals: 2,
		words: []op.Code{
			op.StoreFast, 1, // 0
			op.Throw,       // 2
			op.ReturnValue, // 3
			op.Catch, 0, // 4
			op.LoadFast, 1, // 6
			op.ReturnValue, // 8
		},
		handlers: []Handler{{Start: 2, End: 3, Target: 4}},
	}
	a := Compute(target)

	// The handler body reads local 1, so it is live at the throw site
	// even though no normal path out of the throw exists.
	require.True(t, a.IsLiveAt(1, 2))
	require.False(t, a.IsLiveAt(1, 0))

	// The caught value slot is defined by CATCH, not live before it.
	require.False(t, a.IsLiveAt(0, 4))
	require.True(t, a.IsLiveAt(1, 4))
}

func TestOutOfLineJump(t *testing.T) {
	target := &testTarget{
		locals: 1,
		words: []op.Code{
			op.JumpForward, 0, // 0, target out of line
			op.LoadFast, 0, // 2, skipped by the jump
			op.ReturnValue, // 4
		},
		ool: map[int]int{0: 4},
	}
	a := Compute(target)
	require.False(t, a.IsLiveAt(0, 0))
	require.True(t, a.IsLiveAt(0, 2))
}

func TestForIterEdges(t *testing.T) {
	target := &testTarget{
		locals: 1,
		words: []op.Code{
			op.GetIter,       // 0
			op.ForIter, 7, 1, // 1 -> 8 on exhaustion, fallthrough 4
			op.StoreFast, 0, // 4
			op.JumpBackward, 5, // 6 -> 1
			op.LoadFast, 0, // 8
			op.ReturnValue, // 10
		},
	}
	a := Compute(target)

	// The loop variable is read after exhaustion, so it is live at the
	// iteration head but dead just before each store.
	require.True(t, a.IsLiveAt(0, 1))
	require.False(t, a.IsLiveAt(0, 4))
	require.True(t, a.IsLiveAt(0, 8))
}

func TestMakeCellReadsCurrentFrameOnly(t *testing.T) {
	current := &testTarget{
		locals: 1,
		words: []op.Code{
			op.MakeCell, 0, 0, // 0, captures local 0 from this frame
			op.ReturnValue, // 3
		},
	}
	a := Compute(current)
	require.True(t, a.IsLiveAt(0, 0))

	outer := &testTarget{
		locals: 1,
		words: []op.Code{
			op.MakeCell, 0, 1, // 0, captures from an enclosing frame
			op.ReturnValue, // 3
		},
	}
	a = Compute(outer)
	require.False(t, a.IsLiveAt(0, 0))
}

func TestComputePanicsOnBadJumpTarget(t *testing.T) {
	target := &testTarget{
		locals: 1,
		words: []op.Code{
			op.JumpForward, 3, // 0 -> 3, inside the LOAD_FAST below
			op.LoadFast, 0, // 2
			op.ReturnValue, // 4
		},
	}
	require.PanicsWithValue(t,
		"liveness: Compute: jump at offset 0 targets 3, not an instruction boundary",
		func() { Compute(target) })
}

func TestComputePanicsOnTruncatedStream(t *testing.T) {
	target := &testTarget{
		locals: 1,
		words:  []op.Code{op.LoadFast},
	}
	require.Panics(t, func() { Compute(target) })
}

func TestAnalysisPanicsOnBadQueries(t *testing.T) {
	target := &testTarget{
		locals: 1,
		words:  []op.Code{op.ReturnValue},
	}
	a := Compute(target)
	require.Panics(t, func() { a.IsLiveAt(0, 5) })
	require.Panics(t, func() { a.IsLiveAt(1, 0) })
	require.Panics(t, func() { a.LiveAt(1) })
}
