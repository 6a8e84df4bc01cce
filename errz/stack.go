package errz

import (
	"fmt"
	"strings"
)

// StackFrame is one entry in a script stack trace.
type StackFrame struct {
	Function string
	Location SourceLocation
}

// FormatStackTrace renders frames innermost first, one per line.
func FormatStackTrace(frames []StackFrame) string {
	var b strings.Builder
	b.WriteString("stack trace:\n")
	for _, frame := range frames {
		name := frame.Function
		if name == "" {
			name = "<anonymous>"
		}
		fmt.Fprintf(&b, "  at %s (%s)\n", name, frame.Location)
	}
	return b.String()
}
