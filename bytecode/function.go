package bytecode

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/skink-lang/skink/errz"
	"github.com/skink-lang/skink/heap"
)

// FunctionTemplate represents a compiled function: the static
// information needed to create closures at runtime. It is immutable
// after creation. A template's body is a shared *Code that any number
// of linked instantiations may reference.
//
// A template whose body failed to parse carries the recorded failure
// instead of a body, so that every later compilation attempt surfaces
// the original line and message.
type FunctionTemplate struct {
	id            string
	name          string
	parameters    []string
	defaults      []any
	restParam     string // name of rest parameter (empty if none)
	body          *Code
	parseFailure  *errz.ParseError
	requiredCount int // precomputed: parameters without usable defaults
}

// FunctionTemplateParams contains parameters for creating a new
// FunctionTemplate.
type FunctionTemplateParams struct {
	ID           string
	Name         string
	Parameters   []string
	Defaults     []any
	RestParam    string
	Body         *Code
	ParseFailure *errz.ParseError
}

// NewFunctionTemplate creates a new immutable FunctionTemplate from the
// given parameters. Input slices are copied. Exactly one of Body and
// ParseFailure must be set.
func NewFunctionTemplate(params FunctionTemplateParams) *FunctionTemplate {
	if (params.Body == nil) == (params.ParseFailure == nil) {
		panic("bytecode: NewFunctionTemplate: exactly one of Body and ParseFailure must be set")
	}

	parameters := copyStrings(params.Parameters)
	defaults := copyAny(params.Defaults)

	// Count non-nil defaults to compute required args correctly.
	// A parameter with a nil default still requires an argument.
	defaultsWithValue := 0
	for _, d := range defaults {
		if d != nil {
			defaultsWithValue++
		}
	}

	return &FunctionTemplate{
		id:            params.ID,
		name:          params.Name,
		parameters:    parameters,
		defaults:      defaults,
		restParam:     params.RestParam,
		body:          params.Body,
		parseFailure:  params.ParseFailure,
		requiredCount: len(parameters) - defaultsWithValue,
	}
}

// ID returns the unique identifier for this template.
func (f *FunctionTemplate) ID() string {
	return f.id
}

// Name returns the function name, or empty string for anonymous
// functions.
func (f *FunctionTemplate) Name() string {
	return f.name
}

// Body returns the compiled code for this function's body, or nil when
// the body failed to parse.
func (f *FunctionTemplate) Body() *Code {
	return f.body
}

// ParseFailure returns the parse error recorded for this template, or
// nil when the body compiled.
func (f *FunctionTemplate) ParseFailure() *errz.ParseError {
	return f.parseFailure
}

// ParameterCount returns the number of parameters.
func (f *FunctionTemplate) ParameterCount() int {
	return len(f.parameters)
}

// Parameter returns the name of the parameter at the given index.
func (f *FunctionTemplate) Parameter(index int) string {
	return f.parameters[index]
}

// DefaultCount returns the number of default parameter values.
func (f *FunctionTemplate) DefaultCount() int {
	return len(f.defaults)
}

// Default returns the default value at the given index.
// May return nil if no default is set for that parameter.
func (f *FunctionTemplate) Default(index int) any {
	return f.defaults[index]
}

// RequiredArgsCount returns the minimum number of arguments required.
// This is precomputed during construction for O(1) access.
func (f *FunctionTemplate) RequiredArgsCount() int {
	return f.requiredCount
}

// LocalCount returns the number of local variables in the function
// body, or zero when the body failed to parse.
func (f *FunctionTemplate) LocalCount() int {
	if f.body == nil {
		return 0
	}
	return f.body.LocalCount()
}

// RestParam returns the name of the rest parameter, or empty string if
// none.
func (f *FunctionTemplate) RestParam() string {
	return f.restParam
}

// HasRestParam returns true if the function has a rest parameter.
func (f *FunctionTemplate) HasRestParam() bool {
	return f.restParam != ""
}

// VisitChildren reports the template's body and any traceable default
// values to the collector.
func (f *FunctionTemplate) VisitChildren(v *heap.Visitor) {
	if f.body != nil {
		v.Append(f.body)
	}
	v.AppendValues(f.defaults)
}

// String returns a string representation of the function.
func (f *FunctionTemplate) String() string {
	var out bytes.Buffer
	parameters := make([]string, 0)
	for i, name := range f.parameters {
		if i < len(f.defaults) {
			if def := f.defaults[i]; def != nil {
				name += "=" + fmt.Sprintf("%v", def)
			}
		}
		parameters = append(parameters, name)
	}
	out.WriteString("func")
	if f.name != "" {
		out.WriteString(" " + f.name)
	}
	out.WriteString("(")
	out.WriteString(strings.Join(parameters, ", "))
	out.WriteString(")")
	if f.parseFailure != nil {
		out.WriteString(" { <" + f.parseFailure.Error() + "> }")
		return out.String()
	}
	out.WriteString(" {")
	var source string
	if f.body != nil {
		source = f.body.Source()
	}
	if source == "" {
		out.WriteString(" }")
		return out.String()
	}
	lines := strings.Split(source, "\n")
	if len(lines) == 1 {
		out.WriteString(" " + lines[0] + " }")
	} else {
		for _, line := range lines {
			out.WriteString("\n    " + line)
		}
		out.WriteString("\n}")
	}
	return out.String()
}
