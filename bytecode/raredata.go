package bytecode

import "sort"

// fatPosition is a full-width source position stored out of line for
// entries that exceed every inline layout. The table is append-only
// during construction and never resized afterward.
type fatPosition struct {
	line   uint32
	column uint32
}

// TypeProfilerRange is the source extent recorded for one instruction
// for the type profiler: divot offsets of the profiled expression's
// start and end.
type TypeProfilerRange struct {
	StartDivot int
	EndDivot   int
}

// rareData carries tables most code blocks never need. A nil rareData
// means the block has no handlers, no profiler ranges and no fat
// positions.
type rareData struct {
	handlers           []HandlerInfo
	typeProfilerRanges map[int]TypeProfilerRange
	fatPositions       []fatPosition
}

// isEmpty reports whether the rare data carries nothing and can be
// dropped.
func (r *rareData) isEmpty() bool {
	return len(r.handlers) == 0 &&
		len(r.typeProfilerRanges) == 0 &&
		len(r.fatPositions) == 0
}

func (c *Code) fatPositions() []fatPosition {
	if c.rare == nil {
		return nil
	}
	return c.rare.fatPositions
}

// TypeProfilerExpressionInfoForOffset returns the type-profiler range
// recorded for the instruction at the given offset. The second result
// is false when no range was recorded.
func (c *Code) TypeProfilerExpressionInfoForOffset(offset int) (TypeProfilerRange, bool) {
	if c.rare == nil {
		return TypeProfilerRange{}, false
	}
	r, ok := c.rare.typeProfilerRanges[offset]
	return r, ok
}

// TypeProfilerOffsets returns the instruction offsets that carry
// type-profiler ranges, in ascending order.
func (c *Code) TypeProfilerOffsets() []int {
	if c.rare == nil {
		return nil
	}
	offsets := make([]int, 0, len(c.rare.typeProfilerRanges))
	for offset := range c.rare.typeProfilerRanges {
		offsets = append(offsets, offset)
	}
	sort.Ints(offsets)
	return offsets
}
