package errz

import "fmt"

// ParseError records a failed parse of a function body. Templates keep
// the error so that later compilation attempts can surface the original
// line and message without reparsing.
type ParseError struct {
	Line    int
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s (line %d)", e.Message, e.Line)
}

// ScriptError converts the parse error into a ScriptError suitable for
// display, optionally naming the script path.
func (e *ParseError) ScriptError(path string) *ScriptError {
	return New(ErrSyntax, e.Message, SourceLocation{Path: path, Line: e.Line})
}
