package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skink-lang/skink/op"
)

func TestCodeKindString(t *testing.T) {
	require.Equal(t, "global", GlobalCode.String())
	require.Equal(t, "eval", EvalCode.String())
	require.Equal(t, "function", FunctionCode.String())
	require.Equal(t, "module", ModuleCode.String())
	require.Equal(t, "unknown", CodeKind(9).String())
}

func TestConstructorKindString(t *testing.T) {
	require.Equal(t, "none", ConstructorNone.String())
	require.Equal(t, "base", ConstructorBase.String())
	require.Equal(t, "derived", ConstructorDerived.String())
	require.Equal(t, "unknown", ConstructorKind(9).String())
}

func TestTriStateString(t *testing.T) {
	require.Equal(t, "unknown", Unknown.String())
	require.Equal(t, "false", False.String())
	require.Equal(t, "true", True.String())
}

func TestTypeProfilerOffsetsSorted(t *testing.T) {
	code := NewCode(CodeParams{
		Instructions: nopStream(10),
		TypeProfilerRanges: map[int]TypeProfilerRange{
			7: {StartDivot: 70, EndDivot: 71},
			2: {StartDivot: 20, EndDivot: 21},
			5: {StartDivot: 50, EndDivot: 51},
		},
	})

	require.Equal(t, []int{2, 5, 7}, code.TypeProfilerOffsets())

	r, ok := code.TypeProfilerExpressionInfoForOffset(5)
	require.True(t, ok)
	require.Equal(t, TypeProfilerRange{StartDivot: 50, EndDivot: 51}, r)

	_, ok = code.TypeProfilerExpressionInfoForOffset(3)
	require.False(t, ok)
}

func TestTypeProfilerEmptyWithoutRareData(t *testing.T) {
	code := NewCode(CodeParams{Instructions: []op.Code{op.ReturnValue}})
	require.Nil(t, code.TypeProfilerOffsets())
	_, ok := code.TypeProfilerExpressionInfoForOffset(0)
	require.False(t, ok)
}
