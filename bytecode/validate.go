package bytecode

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/skink-lang/skink/op"
)

// ValidateParams checks that the given parameters describe a coherent
// code block: a decodable instruction stream, in-range operand indices,
// jump targets on instruction boundaries, an offset-sorted expression
// table, and handlers registered outermost first. All problems found
// are accumulated into one error.
func ValidateParams(params CodeParams) error {
	var result *multierror.Error

	if params.LocalCount < 0 {
		result = multierror.Append(result,
			fmt.Errorf("local count %d is negative", params.LocalCount))
	}
	if params.Kind > ModuleCode {
		result = multierror.Append(result,
			fmt.Errorf("unknown code kind %d", params.Kind))
	}
	if params.ConstructorKind > ConstructorDerived {
		result = multierror.Append(result,
			fmt.Errorf("unknown constructor kind %d", params.ConstructorKind))
	}

	words := params.Instructions
	if len(words) == 0 {
		result = multierror.Append(result,
			fmt.Errorf("instruction stream is empty"))
		return result.ErrorOrNil()
	}

	// Decode instruction boundaries. The offset-based checks below are
	// meaningless without them, so a broken stream ends validation.
	isStart := make(map[int]bool, len(words))
	for offset := 0; offset < len(words); {
		code := words[offset]
		if !op.IsValid(code) {
			result = multierror.Append(result,
				fmt.Errorf("unknown opcode %d at offset %d", code, offset))
			return result.ErrorOrNil()
		}
		width := op.Width(code)
		if offset+width > len(words) {
			result = multierror.Append(result,
				fmt.Errorf("truncated instruction at offset %d", offset))
			return result.ErrorOrNil()
		}
		isStart[offset] = true
		offset += width
	}

	for offset := 0; offset < len(words); {
		code := words[offset]
		width := op.Width(code)

		switch code {
		case op.LoadFast, op.StoreFast, op.Catch:
			if idx := int(words[offset+1]); idx >= params.LocalCount {
				result = multierror.Append(result,
					fmt.Errorf("%s at offset %d references local %d (count %d)",
						op.GetInfo(code).Name, offset, idx, params.LocalCount))
			}
		case op.MakeCell:
			if frames := int(words[offset+2]); frames == 0 {
				if idx := int(words[offset+1]); idx >= params.LocalCount {
					result = multierror.Append(result,
						fmt.Errorf("MAKE_CELL at offset %d references local %d (count %d)",
							offset, idx, params.LocalCount))
				}
			}
		case op.LoadConst:
			if idx := int(words[offset+1]); idx >= len(params.Constants) {
				result = multierror.Append(result,
					fmt.Errorf("LOAD_CONST at offset %d references constant %d (count %d)",
						offset, idx, len(params.Constants)))
			}
		case op.LoadGlobal, op.StoreGlobal:
			if len(params.GlobalNames) > 0 {
				if idx := int(words[offset+1]); idx >= len(params.GlobalNames) {
					result = multierror.Append(result,
						fmt.Errorf("%s at offset %d references global %d (count %d)",
							op.GetInfo(code).Name, offset, idx, len(params.GlobalNames)))
				}
			}
		case op.MakeFunction, op.MakeClosure:
			if idx := int(words[offset+1]); idx >= len(params.FunctionExprs) {
				result = multierror.Append(result,
					fmt.Errorf("%s at offset %d references template %d (count %d)",
						op.GetInfo(code).Name, offset, idx, len(params.FunctionExprs)))
			}
		case op.ForIter:
			delta := int(words[offset+1])
			if delta == 0 {
				result = multierror.Append(result,
					fmt.Errorf("FOR_ITER at offset %d has zero exhaustion displacement", offset))
			} else if !isStart[offset+delta] {
				result = multierror.Append(result,
					fmt.Errorf("FOR_ITER at offset %d targets %d, not an instruction boundary",
						offset, offset+delta))
			}
		}

		if op.IsJump(code) {
			delta := int(words[offset+1])
			target := 0
			resolved := true
			switch {
			case delta == 0:
				t, ok := params.OutOfLineJumps[offset]
				if !ok {
					result = multierror.Append(result,
						fmt.Errorf("jump at offset %d has zero displacement and no out-of-line target", offset))
					resolved = false
				}
				target = t
			case code == op.JumpBackward:
				target = offset - delta
			default:
				target = offset + delta
			}
			if resolved && !isStart[target] {
				result = multierror.Append(result,
					fmt.Errorf("jump at offset %d targets %d, not an instruction boundary",
						offset, target))
			}
		}

		offset += width
	}

	for _, offset := range sortedIntKeys(params.OutOfLineJumps) {
		if !isStart[offset] || !op.IsJump(words[offset]) || words[offset+1] != 0 {
			result = multierror.Append(result,
				fmt.Errorf("out-of-line jump entry at offset %d does not correspond to a spilled jump", offset))
			continue
		}
		if target := params.OutOfLineJumps[offset]; !isStart[target] {
			result = multierror.Append(result,
				fmt.Errorf("out-of-line jump at offset %d targets %d, not an instruction boundary",
					offset, target))
		}
	}

	lastOffset := -1
	for i, info := range params.ExpressionInfo {
		if info.InstructionOffset <= lastOffset {
			result = multierror.Append(result,
				fmt.Errorf("expression info %d has non-ascending instruction offset %d",
					i, info.InstructionOffset))
		}
		lastOffset = info.InstructionOffset
		if !isStart[info.InstructionOffset] {
			result = multierror.Append(result,
				fmt.Errorf("expression info %d references offset %d, not an instruction boundary",
					i, info.InstructionOffset))
		}
		if info.Divot < 0 || info.StartOffset < 0 || info.EndOffset < 0 ||
			info.Line < 0 || info.Column < 0 {
			result = multierror.Append(result,
				fmt.Errorf("expression info %d has a negative field", i))
		}
	}

	for i, h := range params.Handlers {
		if h.Start < 0 || h.End > len(words) || h.Start >= h.End {
			result = multierror.Append(result,
				fmt.Errorf("handler %d has invalid range [%d,%d)", i, h.Start, h.End))
			continue
		}
		if !isStart[h.Start] || (h.End != len(words) && !isStart[h.End]) {
			result = multierror.Append(result,
				fmt.Errorf("handler %d range [%d,%d) is not aligned to instruction boundaries",
					i, h.Start, h.End))
		}
		if !isStart[h.Target] {
			result = multierror.Append(result,
				fmt.Errorf("handler %d target %d is not an instruction boundary", i, h.Target))
		}
		if h.ScopeDepth < 0 {
			result = multierror.Append(result,
				fmt.Errorf("handler %d has negative scope depth %d", i, h.ScopeDepth))
		}
		if h.Type > HandlerSynthesizedFinally {
			result = multierror.Append(result,
				fmt.Errorf("handler %d has unknown type %d", i, h.Type))
		}
	}

	// Handlers must be registered outermost first: a later handler that
	// overlaps an earlier one must nest inside it. Reverse-scan lookup
	// depends on this order.
	for i := 0; i < len(params.Handlers); i++ {
		for j := i + 1; j < len(params.Handlers); j++ {
			a, b := params.Handlers[i], params.Handlers[j]
			overlaps := a.Start < b.End && b.Start < a.End
			nested := b.Start >= a.Start && b.End <= a.End
			if overlaps && !nested {
				result = multierror.Append(result,
					fmt.Errorf("handler %d overlaps handler %d without nesting inside it", j, i))
			}
		}
	}

	for _, offset := range sortedRangeKeys(params.TypeProfilerRanges) {
		if !isStart[offset] {
			result = multierror.Append(result,
				fmt.Errorf("type profiler range references offset %d, not an instruction boundary", offset))
		}
	}

	return result.ErrorOrNil()
}

func sortedIntKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func sortedRangeKeys(m map[int]TypeProfilerRange) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
