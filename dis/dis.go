// Package dis disassembles instruction streams from unlinked code
// blocks. It decodes each instruction, annotates operands using the
// block's metadata tables, and renders the result as a table. It also
// dumps the debug tables that travel with a block.
package dis

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/skink-lang/skink/bytecode"
	"github.com/skink-lang/skink/internal/table"
	"github.com/skink-lang/skink/op"
)

// Instruction is one decoded instruction.
type Instruction struct {
	Offset     int
	Name       string
	Opcode     op.Code
	Operands   []op.Code
	Annotation string
	Constant   any
}

// Disassemble decodes the block's instruction stream. It returns an
// error when the stream was discarded after generation or when an
// operand indexes outside the block's tables.
func Disassemble(code *bytecode.Code) ([]Instruction, error) {
	if !code.HasInstructions() {
		return nil, fmt.Errorf("dis: code block %q has no instruction stream", code.Name())
	}
	var instructions []Instruction
	iter := code.Instructions().Iter()
	for {
		offset, words, ok := iter.Next()
		if !ok {
			break
		}
		opcode := words[0]
		info := op.GetInfo(opcode)
		var constant any
		var annotation string
		switch opcode {
		case op.LoadFast, op.StoreFast, op.Catch, op.MakeCell:
			annotation = localName(code, int(words[1]))
		case op.LoadGlobal, op.StoreGlobal:
			annotation = globalName(code, int(words[1]))
		case op.LoadConst:
			index := int(words[1])
			if index >= code.ConstantCount() {
				return nil, fmt.Errorf("dis: constant index out of range: %d", index)
			}
			constant = code.ConstantAt(index)
			if constant == nil {
				annotation = "nil"
			}
		case op.MakeFunction, op.MakeClosure:
			index := int(words[1])
			if index >= code.FunctionExprCount() {
				return nil, fmt.Errorf("dis: function template index out of range: %d", index)
			}
			annotation = templateName(code.FunctionExprAt(index))
		case op.BinaryOp:
			annotation = op.BinaryOpType(words[1]).String()
		case op.CompareOp:
			annotation = op.CompareOpType(words[1]).String()
		case op.ForIter:
			if delta := int(words[1]); delta > 0 {
				annotation = fmt.Sprintf("exhausted to %d", offset+delta)
			}
		default:
			if op.IsJump(opcode) {
				annotation = jumpAnnotation(code, offset, words)
			}
		}
		instructions = append(instructions, Instruction{
			Offset:     offset,
			Name:       info.Name,
			Opcode:     opcode,
			Operands:   words[1:],
			Annotation: annotation,
			Constant:   constant,
		})
	}
	return instructions, nil
}

func localName(code *bytecode.Code, index int) string {
	if name := code.LocalNameAt(index); name != "" {
		return name
	}
	return fmt.Sprintf("local_%d", index)
}

func globalName(code *bytecode.Code, index int) string {
	if name := code.GlobalNameAt(index); name != "" {
		return name
	}
	return fmt.Sprintf("global_%d", index)
}

func templateName(t *bytecode.FunctionTemplate) string {
	if name := t.Name(); name != "" {
		return name
	}
	return "<anonymous>"
}

// jumpAnnotation resolves a jump to its absolute target offset. A zero
// displacement means the target lives in the out-of-line jump table.
func jumpAnnotation(code *bytecode.Code, offset int, words []op.Code) string {
	delta := int(words[1])
	if delta == 0 {
		if !code.HasOutOfLineJumpTarget(offset) {
			return "unresolved"
		}
		return fmt.Sprintf("to %d", code.OutOfLineJumpTarget(offset))
	}
	if words[0] == op.JumpBackward {
		return fmt.Sprintf("to %d", offset-delta)
	}
	return fmt.Sprintf("to %d", offset+delta)
}

var (
	yellowText  = color.New(color.FgYellow)
	greenText   = color.New(color.FgGreen)
	magentaText = color.New(color.FgMagenta)
	cyanText    = color.New(color.FgHiCyan)
	boldText    = color.New(color.Bold)
	italicText  = color.New(color.Italic)
)

// Print writes a table rendering of the instructions to the writer.
func Print(instructions []Instruction, writer io.Writer) {
	lines := make([][]string, 0, len(instructions))
	for _, instr := range instructions {
		var info string
		if instr.Constant != nil {
			info = formatConstant(instr.Constant)
		} else if instr.Annotation != "" {
			info = cyanText.Sprint(instr.Annotation)
		}
		lines = append(lines, []string{
			fmt.Sprintf("%d", instr.Offset),
			instr.Name,
			formatOperands(instr.Operands),
			info,
		})
	}
	table.NewTable(writer).
		WithHeader([]string{"OFFSET", "OPCODE", "OPERANDS", "INFO"}).
		WithColumnAlignment([]table.Alignment{
			table.AlignRight,
			table.AlignLeft,
			table.AlignRight,
			table.AlignLeft,
		}).
		WithHeaderAlignment([]table.Alignment{
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
		}).
		WithRows(lines).
		Render()
}

func formatConstant(value any) string {
	switch c := value.(type) {
	case int64:
		return yellowText.Sprintf("%d", c)
	case int:
		return yellowText.Sprintf("%d", c)
	case float64:
		return yellowText.Sprintf("%f", c)
	case string:
		s := fmt.Sprintf("%q", c)
		if len(s) > 80 {
			s = s[:77] + "..."
		}
		return greenText.Sprint(s)
	case *bytecode.FunctionTemplate:
		if name := c.Name(); name != "" {
			return magentaText.Sprintf("func:%s", name)
		}
		return magentaText.Sprint("func:") + italicText.Sprint("<anonymous>")
	default:
		return boldText.Sprintf("%v", c)
	}
}

func formatOperands(operands []op.Code) string {
	parts := make([]string, 0, len(operands))
	for _, operand := range operands {
		parts = append(parts, fmt.Sprintf("%d", operand))
	}
	return strings.Join(parts, ", ")
}

// DumpExpressionInfo writes the block's expression-range table to the
// writer, one entry per line in table order.
func DumpExpressionInfo(code *bytecode.Code, writer io.Writer) {
	count := code.ExpressionInfoCount()
	fmt.Fprintf(writer, "%s: %d expression info entries\n", code.Name(), count)
	for i := 0; i < count; i++ {
		e := code.ExpressionInfoAt(i)
		fmt.Fprintf(writer, "  [%d] offset=%d line=%d column=%d divot=%d start=-%d end=+%d\n",
			i, e.InstructionOffset, e.Line, e.Column, e.Divot, e.StartOffset, e.EndOffset)
	}
}

// DumpExceptionHandlers writes the block's exception handler table to
// the writer in registration order.
func DumpExceptionHandlers(code *bytecode.Code, writer io.Writer) {
	count := code.ExceptionHandlerCount()
	fmt.Fprintf(writer, "%s: %d exception handlers\n", code.Name(), count)
	for i := 0; i < count; i++ {
		h := code.ExceptionHandlerAt(i)
		fmt.Fprintf(writer, "  [%d] range=[%d, %d) target=%d type=%s depth=%d\n",
			i, h.Start, h.End, h.Target, h.Type, h.ScopeDepth)
	}
}
