package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skink-lang/skink/op"
)

// nopStream returns a stream of n-1 Nop words followed by ReturnValue,
// so every offset in [0, n) is an instruction boundary.
func nopStream(n int) []op.Code {
	words := make([]op.Code, n)
	for i := 0; i < n-1; i++ {
		words[i] = op.Nop
	}
	words[n-1] = op.ReturnValue
	return words
}

func TestExpressionRangeLookup(t *testing.T) {
	code := NewCode(CodeParams{
		Instructions: nopStream(21),
		ExpressionInfo: []ExpressionInfo{
			{InstructionOffset: 0, Divot: 7, StartOffset: 2, EndOffset: 4, Line: 1, Column: 3},
			{InstructionOffset: 10, Divot: 30, StartOffset: 1, EndOffset: 2, Line: 2, Column: 5},
		},
	})

	// Queries at and after the first entry resolve to it until the next
	// entry's offset is reached.
	for _, offset := range []int{0, 4, 9} {
		r := code.ExpressionRangeForOffset(offset)
		require.Equal(t, 1, r.Line, "offset %d", offset)
		require.Equal(t, 3, r.Column, "offset %d", offset)
		require.Equal(t, 7, r.Divot, "offset %d", offset)
		require.Equal(t, 5, r.Start, "offset %d", offset)
		require.Equal(t, 11, r.End, "offset %d", offset)
	}
	for _, offset := range []int{10, 15, 20} {
		r := code.ExpressionRangeForOffset(offset)
		require.Equal(t, 2, r.Line, "offset %d", offset)
		require.Equal(t, 5, r.Column, "offset %d", offset)
		require.Equal(t, 30, r.Divot, "offset %d", offset)
		require.Equal(t, 29, r.Start, "offset %d", offset)
		require.Equal(t, 32, r.End, "offset %d", offset)
	}

	require.Equal(t, 1, code.LineNumberForOffset(4))
	require.Equal(t, 2, code.LineNumberForOffset(20))
}

func TestExpressionRangeClampsToFirstEntry(t *testing.T) {
	code := NewCode(CodeParams{
		Instructions: nopStream(12),
		ExpressionInfo: []ExpressionInfo{
			{InstructionOffset: 4, Divot: 9, StartOffset: 3, EndOffset: 1, Line: 2, Column: 8},
			{InstructionOffset: 10, Divot: 20, Line: 3, Column: 1},
		},
	})

	// Queries before the first recorded offset resolve to the first entry.
	r := code.ExpressionRangeForOffset(0)
	require.Equal(t, 2, r.Line)
	require.Equal(t, 8, r.Column)
	require.Equal(t, 9, r.Divot)
	require.Equal(t, 6, r.Start)
	require.Equal(t, 10, r.End)
}

func TestExpressionRangeEmptyTable(t *testing.T) {
	code := NewCode(CodeParams{
		Instructions: nopStream(3),
	})

	require.Equal(t, ExpressionRange{}, code.ExpressionRangeForOffset(0))
	require.Equal(t, ExpressionRange{}, code.ExpressionRangeForOffset(2))
	require.Zero(t, code.LineNumberForOffset(1))
	require.Zero(t, code.ExpressionInfoCount())
}

func TestExpressionPositionModes(t *testing.T) {
	// In order: compact at its limits, fat line, fat line at its limits,
	// fat column, fat column at its limits, then three entries that fit
	// no inline layout and spill to the rare-data table.
	entries := []ExpressionInfo{
		{InstructionOffset: 0, Divot: 1, Line: 32767, Column: 32767},
		{InstructionOffset: 1, Divot: 2, Line: 32768, Column: 255},
		{InstructionOffset: 2, Divot: 3, Line: 4194303, Column: 255},
		{InstructionOffset: 3, Divot: 4, Line: 255, Column: 32768},
		{InstructionOffset: 4, Divot: 5, Line: 255, Column: 4194303},
		{InstructionOffset: 5, Divot: 6, Line: 4194304, Column: 300},
		{InstructionOffset: 6, Divot: 7, Line: 32767, Column: 32768},
		{InstructionOffset: 7, Divot: 8, Line: 9999999, Column: 9999999},
	}
	code := NewCode(CodeParams{
		Instructions:   nopStream(9),
		ExpressionInfo: entries,
	})

	require.Equal(t, len(entries), code.ExpressionInfoCount())
	for i, want := range entries {
		require.Equal(t, want, code.ExpressionInfoAt(i), "entry %d", i)

		r := code.ExpressionRangeForOffset(want.InstructionOffset)
		require.Equal(t, want.Line, r.Line, "entry %d", i)
		require.Equal(t, want.Column, r.Column, "entry %d", i)
	}
}

func TestExpressionExtentClamps(t *testing.T) {
	entries := []ExpressionInfo{
		{InstructionOffset: 0, Divot: 33554431, StartOffset: 127, EndOffset: 127, Line: 1, Column: 1},
		{InstructionOffset: 1, Divot: 33554432, StartOffset: 5, EndOffset: 5, Line: 2, Column: 2},
		{InstructionOffset: 2, Divot: 100, StartOffset: 128, EndOffset: 5, Line: 3, Column: 3},
		{InstructionOffset: 3, Divot: 100, StartOffset: 5, EndOffset: 128, Line: 4, Column: 4},
	}
	code := NewCode(CodeParams{
		Instructions:   nopStream(5),
		ExpressionInfo: entries,
	})

	// Everything at its limit is preserved exactly.
	require.Equal(t, entries[0], code.ExpressionInfoAt(0))

	// An oversize divot zeroes the whole extent.
	require.Equal(t, ExpressionInfo{
		InstructionOffset: 1, Line: 2, Column: 2,
	}, code.ExpressionInfoAt(1))

	// An oversize start offset zeroes both offsets but keeps the divot.
	require.Equal(t, ExpressionInfo{
		InstructionOffset: 2, Divot: 100, Line: 3, Column: 3,
	}, code.ExpressionInfoAt(2))

	// An oversize end offset zeroes only the end.
	require.Equal(t, ExpressionInfo{
		InstructionOffset: 3, Divot: 100, StartOffset: 5, Line: 4, Column: 4,
	}, code.ExpressionInfoAt(3))

	r := code.ExpressionRangeForOffset(1)
	require.Equal(t, 0, r.Divot)
	require.Equal(t, 0, r.Start)
	require.Equal(t, 0, r.End)
	require.Equal(t, 2, r.Line)
}
