package bytecode

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skink-lang/skink/liveness"
	"github.com/skink-lang/skink/op"
)

// fakeExecutable is the minimal linked view of a code block, the shape
// the linked package provides at runtime.
type fakeExecutable struct {
	code *Code
}

func (e *fakeExecutable) LocalCount() int           { return e.code.LocalCount() }
func (e *fakeExecutable) InstructionLen() int       { return e.code.Instructions().Len() }
func (e *fakeExecutable) WordAt(offset int) op.Code { return e.code.Instructions().At(offset) }
func (e *fakeExecutable) Unlinked() *Code           { return e.code }

func (e *fakeExecutable) OutOfLineJumpTarget(offset int) int {
	return e.code.OutOfLineJumpTarget(offset)
}

func (e *fakeExecutable) Handlers() []liveness.Handler {
	handlers := make([]liveness.Handler, 0, e.code.ExceptionHandlerCount())
	for i := 0; i < e.code.ExceptionHandlerCount(); i++ {
		h := e.code.ExceptionHandlerAt(i)
		handlers = append(handlers, liveness.Handler{Start: h.Start, End: h.End, Target: h.Target})
	}
	return handlers
}

func TestLivenessAnalysisComputedOnce(t *testing.T) {
	code := NewCode(CodeParams{
		Instructions: []op.Code{op.LoadFast, 0, op.ReturnValue},
		LocalCount:   1,
	})
	exec := &fakeExecutable{code: code}

	first := code.LivenessAnalysis(exec)
	require.NotNil(t, first)
	require.True(t, first.IsLiveAt(0, 0))
	require.False(t, first.IsLiveAt(0, 2))

	second := code.LivenessAnalysis(exec)
	require.Same(t, first, second)
}

func TestLivenessAnalysisConcurrent(t *testing.T) {
	code := NewCode(CodeParams{
		Instructions: []op.Code{op.StoreFast, 1, op.LoadFast, 1, op.ReturnValue},
		LocalCount:   2,
	})
	exec := &fakeExecutable{code: code}

	const goroutines = 8
	results := make([]*liveness.Analysis, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = code.LivenessAnalysis(exec)
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		require.Same(t, results[0], results[i])
	}
	require.True(t, results[0].IsLiveAt(1, 2))
}

func TestLivenessAnalysisRejectsForeignExecutable(t *testing.T) {
	code := NewCode(CodeParams{Instructions: nopStream(2)})
	other := NewCode(CodeParams{Instructions: nopStream(2)})

	require.PanicsWithValue(t,
		"bytecode: Code.LivenessAnalysis: executable code is not linked to this code block",
		func() { code.LivenessAnalysis(&fakeExecutable{code: other}) })
}
