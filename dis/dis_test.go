package dis

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/skink-lang/skink/bytecode"
	"github.com/skink-lang/skink/op"
)

func stepTemplate() *bytecode.FunctionTemplate {
	body := bytecode.NewCode(bytecode.CodeParams{
		ID:           "step-body",
		Name:         "step",
		Kind:         bytecode.FunctionCode,
		Instructions: []op.Code{op.LoadFast, 0, op.ReturnValue},
		LocalCount:   1,
		LocalNames:   []string{"n"},
	})
	return bytecode.NewFunctionTemplate(bytecode.FunctionTemplateParams{
		ID:         "step-template",
		Name:       "step",
		Parameters: []string{"n"},
		Body:       body,
	})
}

func TestDisassemble(t *testing.T) {
	code := bytecode.NewCode(bytecode.CodeParams{
		ID:   "dis-1",
		Name: "loop",
		Kind: bytecode.FunctionCode,
		Instructions: []op.Code{
			op.Nil,
			op.StoreFast, 0,
			op.LoadFast, 0,
			op.LoadConst, 0,
			op.CompareOp, op.Code(op.LessThan),
			op.PopJumpForwardIfFalse, 0,
			op.LoadFast, 0,
			op.MakeFunction, 0,
			op.Call, 1,
			op.StoreFast, 0,
			op.JumpBackward, 16,
			op.ReturnValue,
		},
		LocalCount:     1,
		LocalNames:     []string{"i"},
		Constants:      []any{int64(10)},
		FunctionExprs:  []*bytecode.FunctionTemplate{stepTemplate()},
		OutOfLineJumps: map[int]int{9: 21},
	})

	instructions, err := Disassemble(code)
	require.NoError(t, err)

	want := []struct {
		offset     int
		name       string
		annotation string
	}{
		{0, "NIL", ""},
		{1, "STORE_FAST", "i"},
		{3, "LOAD_FAST", "i"},
		{5, "LOAD_CONST", ""},
		{7, "COMPARE_OP", "<"},
		{9, "POP_JUMP_FORWARD_IF_FALSE", "to 21"},
		{11, "LOAD_FAST", "i"},
		{13, "MAKE_FUNCTION", "step"},
		{15, "CALL", ""},
		{17, "STORE_FAST", "i"},
		{19, "JUMP_BACKWARD", "to 3"},
		{21, "RETURN_VALUE", ""},
	}
	require.Len(t, instructions, len(want))
	for i, w := range want {
		require.Equal(t, w.offset, instructions[i].Offset, "instruction %d", i)
		require.Equal(t, w.name, instructions[i].Name, "instruction %d", i)
		require.Equal(t, w.annotation, instructions[i].Annotation, "instruction %d", i)
	}
	require.Equal(t, []op.Code{0}, instructions[1].Operands)
	require.Equal(t, int64(10), instructions[3].Constant)
	require.Equal(t, op.LoadConst, instructions[3].Opcode)
	require.Empty(t, instructions[0].Operands)
}

func TestDisassembleFallbackNames(t *testing.T) {
	code := bytecode.NewCode(bytecode.CodeParams{
		ID:   "dis-2",
		Name: "bare",
		Kind: bytecode.FunctionCode,
		Instructions: []op.Code{
			op.LoadGlobal, 3,
			op.StoreFast, 0,
			op.ReturnValue,
		},
		LocalCount: 1,
	})

	instructions, err := Disassemble(code)
	require.NoError(t, err)
	require.Equal(t, "global_3", instructions[0].Annotation)
	require.Equal(t, "local_0", instructions[1].Annotation)
}

func TestDisassembleCatchAndAnonymous(t *testing.T) {
	body := bytecode.NewCode(bytecode.CodeParams{
		ID:           "anon-body",
		Kind:         bytecode.FunctionCode,
		Instructions: []op.Code{op.Nil, op.ReturnValue},
	})
	anon := bytecode.NewFunctionTemplate(bytecode.FunctionTemplateParams{
		ID:   "anon-template",
		Body: body,
	})
	code := bytecode.NewCode(bytecode.CodeParams{
		ID:   "dis-3",
		Name: "guarded",
		Kind: bytecode.FunctionCode,
		Instructions: []op.Code{
			op.Throw,
			op.Catch, 0,
			op.MakeFunction, 0,
			op.ReturnValue,
		},
		LocalCount:    1,
		LocalNames:    []string{"err"},
		FunctionExprs: []*bytecode.FunctionTemplate{anon},
		Handlers: []bytecode.HandlerInfo{
			{Start: 0, End: 1, Target: 1, Type: bytecode.HandlerCatch, ScopeDepth: 0},
		},
	})

	instructions, err := Disassemble(code)
	require.NoError(t, err)
	require.Equal(t, "err", instructions[1].Annotation)
	require.Equal(t, "<anonymous>", instructions[2].Annotation)
}

func TestDisassembleDiscardedStream(t *testing.T) {
	code := bytecode.NewCode(bytecode.CodeParams{
		ID:                  "dis-4",
		Name:                "ghost",
		Kind:                bytecode.FunctionCode,
		Instructions:        []op.Code{op.Nil, op.ReturnValue},
		DiscardInstructions: true,
	})

	_, err := Disassemble(code)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no instruction stream")
}

func TestPrint(t *testing.T) {
	restore := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = restore }()

	code := bytecode.NewCode(bytecode.CodeParams{
		ID:   "dis-5",
		Name: "boom",
		Kind: bytecode.FunctionCode,
		Instructions: []op.Code{
			op.LoadConst, 0,
			op.PopTop,
			op.LoadGlobal, 0,
			op.LoadConst, 1,
			op.Call, 1,
			op.ReturnValue,
		},
		Constants:   []any{int64(42), "kaboom"},
		GlobalNames: []string{"error"},
	})

	instructions, err := Disassemble(code)
	require.NoError(t, err)

	var buf bytes.Buffer
	Print(instructions, &buf)

	expected := `
+--------+--------------+----------+----------+
| OFFSET |    OPCODE    | OPERANDS |   INFO   |
+--------+--------------+----------+----------+
|      0 | LOAD_CONST   |        0 | 42       |
|      2 | POP_TOP      |          |          |
|      3 | LOAD_GLOBAL  |        0 | error    |
|      5 | LOAD_CONST   |        1 | "kaboom" |
|      7 | CALL         |        1 |          |
|      9 | RETURN_VALUE |          |          |
+--------+--------------+----------+----------+
`
	require.Equal(t, strings.TrimSpace(expected)+"\n", buf.String())
}

func TestFormatConstantTruncatesLongStrings(t *testing.T) {
	restore := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = restore }()

	long := strings.Repeat("x", 100)
	formatted := formatConstant(long)
	require.Len(t, formatted, 80)
	require.True(t, strings.HasSuffix(formatted, "..."))

	require.Equal(t, `"short"`, formatConstant("short"))
	require.Equal(t, "true", formatConstant(true))
	require.Equal(t, "func:step", formatConstant(stepTemplate()))
}

func TestDumpExpressionInfo(t *testing.T) {
	code := bytecode.NewCode(bytecode.CodeParams{
		ID:           "dis-6",
		Name:         "traced",
		Kind:         bytecode.FunctionCode,
		Instructions: []op.Code{op.Nil, op.Nop, op.ReturnValue},
		ExpressionInfo: []bytecode.ExpressionInfo{
			{InstructionOffset: 0, Divot: 5, StartOffset: 2, EndOffset: 3, Line: 1, Column: 4},
			{InstructionOffset: 2, Divot: 9, StartOffset: 1, EndOffset: 1, Line: 2, Column: 1},
		},
	})

	var buf bytes.Buffer
	DumpExpressionInfo(code, &buf)

	expected := "traced: 2 expression info entries\n" +
		"  [0] offset=0 line=1 column=4 divot=5 start=-2 end=+3\n" +
		"  [1] offset=2 line=2 column=1 divot=9 start=-1 end=+1\n"
	require.Equal(t, expected, buf.String())
}

func TestDumpExceptionHandlers(t *testing.T) {
	code := bytecode.NewCode(bytecode.CodeParams{
		ID:   "dis-7",
		Name: "guarded",
		Kind: bytecode.FunctionCode,
		Instructions: []op.Code{
			op.Throw,
			op.Catch, 0,
			op.ReturnValue,
		},
		LocalCount: 1,
		Handlers: []bytecode.HandlerInfo{
			{Start: 0, End: 1, Target: 1, Type: bytecode.HandlerCatch, ScopeDepth: 2},
		},
	})

	var buf bytes.Buffer
	DumpExceptionHandlers(code, &buf)

	expected := "guarded: 1 exception handlers\n" +
		"  [0] range=[0, 1) target=1 type=catch depth=2\n"
	require.Equal(t, expected, buf.String())
}
