package bytecode

// The expression-range table maps instruction offsets to source
// positions and expression extents. Entries are packed: line and column
// share a single 32-bit slot in one of four layouts so that the common
// case costs no side storage.

// positionMode selects the layout of an entry's packed position slot.
type positionMode uint8

const (
	// modeCompact packs line and column inline, 15 bits each.
	modeCompact positionMode = iota
	// modeFatLine gives the line 22 bits and the column 8.
	modeFatLine
	// modeFatColumn gives the line 8 bits and the column 22.
	modeFatColumn
	// modeFatLineAndColumn stores an index into the rare-data table of
	// full-width positions.
	modeFatLineAndColumn
)

const (
	compactMaxLine   = (1 << 15) - 1
	compactMaxColumn = (1 << 15) - 1
	fatLineMaxLine   = (1 << 22) - 1
	fatLineMaxColumn = (1 << 8) - 1
	fatColumnMaxLine = (1 << 8) - 1
	fatColumnMaxCol  = (1 << 22) - 1

	// maxDivot is the largest representable divot point. Ranges whose
	// divot exceeds it are recorded with a zeroed extent.
	maxDivot = (1 << 25) - 1
	// maxRangeOffset is the largest representable distance from the
	// divot to either end of the expression.
	maxRangeOffset = (1 << 7) - 1
)

// expressionEntry is one packed row of the expression-range table.
type expressionEntry struct {
	instructionOffset int
	divot             uint32
	startOffset       uint8
	endOffset         uint8
	mode              positionMode
	position          uint32
}

// ExpressionInfo is the unpacked form of an expression-range entry: the
// builder's input and the accessor's output.
type ExpressionInfo struct {
	InstructionOffset int
	Divot             int // position the expression is attributed to
	StartOffset       int // distance from the divot back to the start
	EndOffset         int // distance from the divot forward to the end
	Line              int
	Column            int
}

// ExpressionRange is a decoded source range for one instruction.
type ExpressionRange struct {
	Divot  int
	Start  int
	End    int
	Line   int
	Column int
}

// encodeExpressionInfo packs info into an entry, appending to fat when
// the position does not fit any inline layout. Oversize extents degrade:
// a divot beyond 25 bits zeroes the whole extent, a start offset beyond
// 7 bits zeroes both offsets, an end offset beyond 7 bits zeroes only
// the end. Line and column are always preserved.
func encodeExpressionInfo(info ExpressionInfo, fat *[]fatPosition) expressionEntry {
	divot, start, end := info.Divot, info.StartOffset, info.EndOffset
	if divot > maxDivot {
		divot, start, end = 0, 0, 0
	} else if start > maxRangeOffset {
		start, end = 0, 0
	} else if end > maxRangeOffset {
		end = 0
	}

	entry := expressionEntry{
		instructionOffset: info.InstructionOffset,
		divot:             uint32(divot),
		startOffset:       uint8(start),
		endOffset:         uint8(end),
	}

	line, column := uint32(info.Line), uint32(info.Column)
	switch {
	case line <= compactMaxLine && column <= compactMaxColumn:
		entry.mode = modeCompact
		entry.position = line<<15 | column
	case line <= fatLineMaxLine && column <= fatLineMaxColumn:
		entry.mode = modeFatLine
		entry.position = line<<8 | column
	case line <= fatColumnMaxLine && column <= fatColumnMaxCol:
		entry.mode = modeFatColumn
		entry.position = line<<22 | column
	default:
		entry.mode = modeFatLineAndColumn
		entry.position = uint32(len(*fat))
		*fat = append(*fat, fatPosition{line: line, column: column})
	}
	return entry
}

// decodePosition recovers the line and column of an entry. Entries in
// fat mode read the rare-data side table.
func (e expressionEntry) decodePosition(fat []fatPosition) (line, column int) {
	switch e.mode {
	case modeCompact:
		return int(e.position >> 15), int(e.position & compactMaxColumn)
	case modeFatLine:
		return int(e.position >> 8), int(e.position & fatLineMaxColumn)
	case modeFatColumn:
		return int(e.position >> 22), int(e.position & fatColumnMaxCol)
	default:
		p := fat[e.position]
		return int(p.line), int(p.column)
	}
}

// expressionInfo converts the entry back to its unpacked form.
func (e expressionEntry) expressionInfo(fat []fatPosition) ExpressionInfo {
	line, column := e.decodePosition(fat)
	return ExpressionInfo{
		InstructionOffset: e.instructionOffset,
		Divot:             int(e.divot),
		StartOffset:       int(e.startOffset),
		EndOffset:         int(e.endOffset),
		Line:              line,
		Column:            column,
	}
}

// ExpressionRangeForOffset returns the source range recorded for the
// instruction at the given offset. With an empty table it returns the
// zero ExpressionRange. Otherwise it finds the greatest entry whose
// instruction offset does not exceed the query; when every entry lies
// beyond the query, the first entry is used.
func (c *Code) ExpressionRangeForOffset(offset int) ExpressionRange {
	info := c.expressionInfo
	if len(info) == 0 {
		return ExpressionRange{}
	}

	low, high := 0, len(info)
	for low < high {
		mid := low + (high-low)/2
		if info[mid].instructionOffset <= offset {
			low = mid + 1
		} else {
			high = mid
		}
	}
	if low == 0 {
		low = 1
	}
	entry := info[low-1]

	line, column := entry.decodePosition(c.fatPositions())
	return ExpressionRange{
		Divot:  int(entry.divot),
		Start:  int(entry.divot) - int(entry.startOffset),
		End:    int(entry.divot) + int(entry.endOffset),
		Line:   line,
		Column: column,
	}
}

// LineNumberForOffset returns the source line recorded for the
// instruction at the given offset, or zero when the table is empty.
func (c *Code) LineNumberForOffset(offset int) int {
	return c.ExpressionRangeForOffset(offset).Line
}

// ExpressionInfoCount returns the number of expression-range entries.
func (c *Code) ExpressionInfoCount() int {
	return len(c.expressionInfo)
}

// ExpressionInfoAt returns the unpacked expression-range entry at the
// given index.
func (c *Code) ExpressionInfoAt(index int) ExpressionInfo {
	return c.expressionInfo[index].expressionInfo(c.fatPositions())
}
