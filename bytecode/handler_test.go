package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerForOffsetInnermostWins(t *testing.T) {
	outer := HandlerInfo{Start: 0, End: 20, Target: 25, Type: HandlerFinally}
	inner := HandlerInfo{Start: 4, End: 10, Target: 22, Type: HandlerCatch, ScopeDepth: 1}
	code := NewCode(CodeParams{
		Instructions: nopStream(30),
		Handlers:     []HandlerInfo{outer, inner},
	})

	h, ok := code.HandlerForOffset(5, AnyHandler)
	require.True(t, ok)
	require.Equal(t, inner, h)

	// The inner range is half-open, so its end offset falls to the outer
	// handler, as does everything outside [4,10).
	for _, offset := range []int{0, 3, 10, 19} {
		h, ok = code.HandlerForOffset(offset, AnyHandler)
		require.True(t, ok, "offset %d", offset)
		require.Equal(t, outer, h, "offset %d", offset)
	}

	_, ok = code.HandlerForOffset(20, AnyHandler)
	require.False(t, ok)
}

func TestHandlerForOffsetLastRegisteredWins(t *testing.T) {
	first := HandlerInfo{Start: 0, End: 10, Target: 12, Type: HandlerCatch}
	second := HandlerInfo{Start: 0, End: 10, Target: 14, Type: HandlerCatch, ScopeDepth: 2}
	code := NewCode(CodeParams{
		Instructions: nopStream(16),
		Handlers:     []HandlerInfo{first, second},
	})

	h, ok := code.HandlerForOffset(5, AnyHandler)
	require.True(t, ok)
	require.Equal(t, second, h)
}

func TestHandlerForOffsetCatchFilter(t *testing.T) {
	catch := HandlerInfo{Start: 0, End: 10, Target: 12, Type: HandlerCatch}
	finally := HandlerInfo{Start: 2, End: 8, Target: 14, Type: HandlerFinally, ScopeDepth: 1}
	code := NewCode(CodeParams{
		Instructions: nopStream(16),
		Handlers:     []HandlerInfo{catch, finally},
	})

	// Unfiltered, the innermost handler is the finally clause.
	h, ok := code.HandlerForOffset(5, AnyHandler)
	require.True(t, ok)
	require.Equal(t, finally, h)

	// Filtered to catch clauses, the finally is skipped.
	h, ok = code.HandlerForOffset(5, CatchHandler)
	require.True(t, ok)
	require.Equal(t, catch, h)

	// A synthesized finally is not a catch either.
	require.False(t, HandlerInfo{Type: HandlerSynthesizedFinally}.IsCatch())
}

func TestHandlerForOffsetNoHandlers(t *testing.T) {
	code := NewCode(CodeParams{
		Instructions: nopStream(4),
	})

	h, ok := code.HandlerForOffset(0, AnyHandler)
	require.False(t, ok)
	require.Equal(t, HandlerInfo{}, h)
	require.Zero(t, code.ExceptionHandlerCount())
}

func TestHandlerInfoCovers(t *testing.T) {
	h := HandlerInfo{Start: 4, End: 10}
	require.False(t, h.Covers(3))
	require.True(t, h.Covers(4))
	require.True(t, h.Covers(9))
	require.False(t, h.Covers(10))
}

func TestHandlerTypeString(t *testing.T) {
	require.Equal(t, "catch", HandlerCatch.String())
	require.Equal(t, "finally", HandlerFinally.String())
	require.Equal(t, "synthesized finally", HandlerSynthesizedFinally.String())
	require.Equal(t, "unknown", HandlerType(99).String())
}
