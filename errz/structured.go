package errz

import (
	"bytes"
	"fmt"
	"strings"
)

// ErrorKind represents the category of a script error.
type ErrorKind int

const (
	// ErrSyntax indicates a syntax/parsing error.
	ErrSyntax ErrorKind = iota
	// ErrType indicates a type mismatch or invalid operation on a type.
	ErrType
	// ErrName indicates an undefined variable or function.
	ErrName
	// ErrValue indicates an invalid value for an operation.
	ErrValue
	// ErrRuntime indicates a general runtime error.
	ErrRuntime
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrSyntax:
		return "syntax error"
	case ErrType:
		return "type error"
	case ErrName:
		return "name error"
	case ErrValue:
		return "value error"
	case ErrRuntime:
		return "runtime error"
	default:
		return "error"
	}
}

// ScriptError is a rich error type with a source location, a visual
// snippet, and a script stack trace.
type ScriptError struct {
	Message  string
	Kind     ErrorKind
	Location SourceLocation
	Stack    []StackFrame
	Cause    error
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	if e.Location.IsZero() {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Location)
}

// Unwrap returns the underlying cause of the error.
func (e *ScriptError) Unwrap() error {
	return e.Cause
}

// FriendlyErrorMessage returns a human-friendly error message with the
// source snippet and stack trace when they are available.
func (e *ScriptError) FriendlyErrorMessage() string {
	var msg bytes.Buffer

	msg.WriteString(e.Error())
	msg.WriteString("\n")

	if e.Location.Source != "" {
		msg.WriteString(" | ")
		msg.WriteString(e.Location.Source)
		msg.WriteString("\n")
		if e.Location.Column > 0 {
			msg.WriteString(" | ")
			msg.WriteString(strings.Repeat(" ", e.Location.Column-1))
			msg.WriteString("^\n")
		}
	}

	if len(e.Stack) > 0 {
		msg.WriteString("\n")
		msg.WriteString(FormatStackTrace(e.Stack))
	}

	return msg.String()
}

// New creates a ScriptError with the given kind, message and location.
func New(kind ErrorKind, message string, loc SourceLocation) *ScriptError {
	return &ScriptError{
		Message:  message,
		Kind:     kind,
		Location: loc,
	}
}

// Newf creates a ScriptError with a formatted message.
func Newf(kind ErrorKind, loc SourceLocation, format string, args ...any) *ScriptError {
	return &ScriptError{
		Message:  fmt.Sprintf(format, args...),
		Kind:     kind,
		Location: loc,
	}
}

// WithStack attaches a script stack trace to the error.
func (e *ScriptError) WithStack(stack []StackFrame) *ScriptError {
	e.Stack = stack
	return e
}

// WithCause wraps the error with a cause.
func (e *ScriptError) WithCause(cause error) *ScriptError {
	e.Cause = cause
	return e
}
