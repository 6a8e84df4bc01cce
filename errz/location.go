// Package errz defines the error types surfaced by the Skink toolchain:
// script errors with source locations and stack traces, and parse
// failures recorded on function templates.
package errz

import "fmt"

// SourceLocation identifies a position in script source. A zero value
// means the position is unknown.
type SourceLocation struct {
	Path   string
	Line   int
	Column int
	Source string // the source line, when available
}

// IsZero reports whether the location carries no position.
func (l SourceLocation) IsZero() bool {
	return l.Path == "" && l.Line == 0 && l.Column == 0
}

// String renders the location as path:line:column, omitting missing
// parts. A zero location renders as "unknown location".
func (l SourceLocation) String() string {
	if l.IsZero() {
		return "unknown location"
	}
	if l.Path == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.Path, l.Line, l.Column)
}
