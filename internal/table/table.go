// Package table renders rows of strings as an ASCII table with aligned,
// bordered columns. Cells may contain ANSI escape sequences; alignment
// is computed on the visible width.
package table

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Alignment controls how cell content is padded within its column.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// Table accumulates rows and renders them to a writer.
type Table struct {
	w           io.Writer
	header      []string
	rows        [][]string
	colAlign    []Alignment
	headerAlign []Alignment
}

// NewTable creates a table that renders to the given writer.
func NewTable(w io.Writer) *Table {
	return &Table{w: w}
}

// WithHeader sets the header row.
func (t *Table) WithHeader(header []string) *Table {
	t.header = header
	return t
}

// WithColumnAlignment sets the per-column alignment of body rows.
// Columns without an entry default to left alignment.
func (t *Table) WithColumnAlignment(aligns []Alignment) *Table {
	t.colAlign = aligns
	return t
}

// WithHeaderAlignment sets the per-column alignment of the header row.
func (t *Table) WithHeaderAlignment(aligns []Alignment) *Table {
	t.headerAlign = aligns
	return t
}

// WithRows replaces the body rows.
func (t *Table) WithRows(rows [][]string) *Table {
	t.rows = rows
	return t
}

// Append adds one body row.
func (t *Table) Append(row []string) {
	t.rows = append(t.rows, row)
}

// Render writes the table.
func (t *Table) Render() {
	widths := t.columnWidths()
	if len(widths) == 0 {
		return
	}
	border := borderLine(widths)
	fmt.Fprintln(t.w, border)
	if len(t.header) > 0 {
		fmt.Fprintln(t.w, formatRow(t.header, widths, t.headerAlign))
		fmt.Fprintln(t.w, border)
	}
	for _, row := range t.rows {
		fmt.Fprintln(t.w, formatRow(row, widths, t.colAlign))
	}
	fmt.Fprintln(t.w, border)
}

func (t *Table) columnWidths() []int {
	count := len(t.header)
	for _, row := range t.rows {
		if len(row) > count {
			count = len(row)
		}
	}
	widths := make([]int, count)
	measure := func(row []string) {
		for i, cell := range row {
			if w := visibleWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	measure(t.header)
	for _, row := range t.rows {
		measure(row)
	}
	return widths
}

func borderLine(widths []int) string {
	var sb strings.Builder
	for _, width := range widths {
		sb.WriteString("+")
		sb.WriteString(strings.Repeat("-", width+2))
	}
	sb.WriteString("+")
	return sb.String()
}

func formatRow(cells []string, widths []int, aligns []Alignment) string {
	var sb strings.Builder
	for i, width := range widths {
		var cell string
		if i < len(cells) {
			cell = cells[i]
		}
		sb.WriteString("| ")
		sb.WriteString(pad(cell, width, alignmentAt(aligns, i)))
		sb.WriteString(" ")
	}
	sb.WriteString("|")
	return sb.String()
}

func alignmentAt(aligns []Alignment, i int) Alignment {
	if i < len(aligns) {
		return aligns[i]
	}
	return AlignLeft
}

func pad(s string, width int, alignment Alignment) string {
	gap := width - visibleWidth(s)
	if gap <= 0 {
		return s
	}
	switch alignment {
	case AlignRight:
		return strings.Repeat(" ", gap) + s
	case AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", gap-left)
	default:
		return s + strings.Repeat(" ", gap)
	}
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripAnsi removes ANSI escape sequences from a string.
func stripAnsi(s string) string {
	if !strings.Contains(s, "\x1b") {
		return s
	}
	return ansiPattern.ReplaceAllString(s, "")
}

// visibleWidth is the display width of a cell, ignoring ANSI escapes.
func visibleWidth(s string) int {
	return utf8.RuneCountInString(stripAnsi(s))
}
