package codecache

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/skink-lang/skink/bytecode"
	"github.com/skink-lang/skink/errz"
	"github.com/skink-lang/skink/op"
)

// wireVersion is bumped when the wire layout changes incompatibly.
const wireVersion = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("codecache: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Wire types. The code graph is flattened: every code block appears
// once in the codes array and references between blocks are indices
// into it. Canonical CBOR encoding keeps the bytes deterministic, so
// equal blocks produce equal blobs.

const (
	constNil uint8 = iota
	constBool
	constInt
	constFloat
	constString
	constTemplate
)

type wireConstant struct {
	Kind     uint8         `cbor:"1,keyasint"`
	Bool     bool          `cbor:"2,keyasint,omitempty"`
	Int      int64         `cbor:"3,keyasint,omitempty"`
	Float    float64       `cbor:"4,keyasint,omitempty"`
	Str      string        `cbor:"5,keyasint,omitempty"`
	Template *wireTemplate `cbor:"6,keyasint,omitempty"`
}

type wireTemplate struct {
	ID          string         `cbor:"1,keyasint"`
	Name        string         `cbor:"2,keyasint,omitempty"`
	Parameters  []string       `cbor:"3,keyasint,omitempty"`
	Defaults    []wireConstant `cbor:"4,keyasint,omitempty"`
	RestParam   string         `cbor:"5,keyasint,omitempty"`
	BodyIndex   int            `cbor:"6,keyasint"` // -1 when the body failed to parse
	FailLine    int            `cbor:"7,keyasint,omitempty"`
	FailMessage string         `cbor:"8,keyasint,omitempty"`
}

type wireExpression struct {
	Offset int `cbor:"1,keyasint"`
	Divot  int `cbor:"2,keyasint,omitempty"`
	Start  int `cbor:"3,keyasint,omitempty"`
	End    int `cbor:"4,keyasint,omitempty"`
	Line   int `cbor:"5,keyasint,omitempty"`
	Column int `cbor:"6,keyasint,omitempty"`
}

type wireHandler struct {
	Start      int   `cbor:"1,keyasint"`
	End        int   `cbor:"2,keyasint"`
	Target     int   `cbor:"3,keyasint"`
	Type       uint8 `cbor:"4,keyasint,omitempty"`
	ScopeDepth int   `cbor:"5,keyasint,omitempty"`
}

type wireProfilerRange struct {
	StartDivot int `cbor:"1,keyasint"`
	EndDivot   int `cbor:"2,keyasint"`
}

type wireCode struct {
	ID              string                    `cbor:"1,keyasint"`
	Name            string                    `cbor:"2,keyasint,omitempty"`
	Filename        string                    `cbor:"3,keyasint,omitempty"`
	Source          string                    `cbor:"4,keyasint,omitempty"`
	SourceStart     int                       `cbor:"5,keyasint,omitempty"`
	SourceEnd       int                       `cbor:"6,keyasint,omitempty"`
	Kind            uint8                     `cbor:"7,keyasint,omitempty"`
	Strict          bool                      `cbor:"8,keyasint,omitempty"`
	ConstructorKind uint8                     `cbor:"9,keyasint,omitempty"`
	IsGenerator     bool                      `cbor:"10,keyasint,omitempty"`
	IsAsync         bool                      `cbor:"11,keyasint,omitempty"`
	IsArrowFunction bool                      `cbor:"12,keyasint,omitempty"`
	IsClassContext  bool                      `cbor:"13,keyasint,omitempty"`
	Instructions    []op.Code                 `cbor:"14,keyasint"`
	LocalCount      int                       `cbor:"15,keyasint,omitempty"`
	Constants       []wireConstant            `cbor:"16,keyasint,omitempty"`
	GlobalNames     []string                  `cbor:"17,keyasint,omitempty"`
	LocalNames      []string                  `cbor:"18,keyasint,omitempty"`
	Decls           []wireTemplate            `cbor:"19,keyasint,omitempty"`
	Exprs           []wireTemplate            `cbor:"20,keyasint,omitempty"`
	Expression      []wireExpression          `cbor:"21,keyasint,omitempty"`
	Handlers        []wireHandler             `cbor:"22,keyasint,omitempty"`
	OutOfLineJumps  map[int]int               `cbor:"23,keyasint,omitempty"`
	Profiler        map[int]wireProfilerRange `cbor:"24,keyasint,omitempty"`
}

type wireState struct {
	Version int         `cbor:"1,keyasint"`
	Codes   []*wireCode `cbor:"2,keyasint"`
}

// Marshal serializes a code block graph to canonical CBOR. Every block
// in the graph must still carry its instruction stream; a block whose
// stream was discarded cannot round-trip.
func Marshal(code *bytecode.Code) ([]byte, error) {
	state, err := stateFromCode(code)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(state)
}

// Unmarshal rebuilds a code block graph from its CBOR form. The blob is
// validated before any block is constructed.
func Unmarshal(data []byte) (*bytecode.Code, error) {
	var state wireState
	if err := cbor.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("codecache: unmarshal: %w", err)
	}
	return codeFromState(&state)
}

func stateFromCode(root *bytecode.Code) (*wireState, error) {
	codes := root.Flatten()
	index := make(map[*bytecode.Code]int, len(codes))
	for i, c := range codes {
		index[c] = i
	}

	state := &wireState{
		Version: wireVersion,
		Codes:   make([]*wireCode, len(codes)),
	}

	for i, c := range codes {
		if !c.HasInstructions() {
			return nil, fmt.Errorf("codecache: marshal: code block %q has no instruction stream", c.Name())
		}

		constants := make([]wireConstant, c.ConstantCount())
		for j := range constants {
			wc, err := constantToWire(c.ConstantAt(j), index)
			if err != nil {
				return nil, err
			}
			constants[j] = wc
		}

		decls, err := templatesToWire(c.FunctionDeclCount(), c.FunctionDeclAt, index)
		if err != nil {
			return nil, err
		}
		exprs, err := templatesToWire(c.FunctionExprCount(), c.FunctionExprAt, index)
		if err != nil {
			return nil, err
		}

		expression := make([]wireExpression, c.ExpressionInfoCount())
		for j := range expression {
			info := c.ExpressionInfoAt(j)
			expression[j] = wireExpression{
				Offset: info.InstructionOffset,
				Divot:  info.Divot,
				Start:  info.StartOffset,
				End:    info.EndOffset,
				Line:   info.Line,
				Column: info.Column,
			}
		}

		handlers := make([]wireHandler, c.ExceptionHandlerCount())
		for j := range handlers {
			h := c.ExceptionHandlerAt(j)
			handlers[j] = wireHandler{
				Start:      h.Start,
				End:        h.End,
				Target:     h.Target,
				Type:       uint8(h.Type),
				ScopeDepth: h.ScopeDepth,
			}
		}

		var outOfLine map[int]int
		if offsets := c.OutOfLineJumpOffsets(); len(offsets) > 0 {
			outOfLine = make(map[int]int, len(offsets))
			for _, offset := range offsets {
				outOfLine[offset] = c.OutOfLineJumpTarget(offset)
			}
		}

		var profiler map[int]wireProfilerRange
		if offsets := c.TypeProfilerOffsets(); len(offsets) > 0 {
			profiler = make(map[int]wireProfilerRange, len(offsets))
			for _, offset := range offsets {
				r, _ := c.TypeProfilerExpressionInfoForOffset(offset)
				profiler[offset] = wireProfilerRange{StartDivot: r.StartDivot, EndDivot: r.EndDivot}
			}
		}

		state.Codes[i] = &wireCode{
			ID:              c.ID(),
			Name:            c.Name(),
			Filename:        c.Filename(),
			Source:          c.Source(),
			SourceStart:     c.SourceStart(),
			SourceEnd:       c.SourceEnd(),
			Kind:            uint8(c.Kind()),
			Strict:          c.IsStrict(),
			ConstructorKind: uint8(c.ConstructorKind()),
			IsGenerator:     c.IsGenerator(),
			IsAsync:         c.IsAsync(),
			IsArrowFunction: c.IsArrowFunctionContext(),
			IsClassContext:  c.IsClassContext(),
			Instructions:    c.Instructions().Words(),
			LocalCount:      c.LocalCount(),
			Constants:       constants,
			GlobalNames:     c.GlobalNames(),
			LocalNames:      localNames(c),
			Decls:           decls,
			Exprs:           exprs,
			Expression:      expression,
			Handlers:        handlers,
			OutOfLineJumps:  outOfLine,
			Profiler:        profiler,
		}
	}

	return state, nil
}

func localNames(c *bytecode.Code) []string {
	names := make([]string, c.LocalNameCount())
	for i := range names {
		names[i] = c.LocalNameAt(i)
	}
	return names
}

func templatesToWire(count int, at func(int) *bytecode.FunctionTemplate, index map[*bytecode.Code]int) ([]wireTemplate, error) {
	templates := make([]wireTemplate, count)
	for i := 0; i < count; i++ {
		wt, err := templateToWire(at(i), index)
		if err != nil {
			return nil, err
		}
		templates[i] = wt
	}
	return templates, nil
}

func templateToWire(t *bytecode.FunctionTemplate, index map[*bytecode.Code]int) (wireTemplate, error) {
	wt := wireTemplate{
		ID:        t.ID(),
		Name:      t.Name(),
		RestParam: t.RestParam(),
		BodyIndex: -1,
	}
	for i := 0; i < t.ParameterCount(); i++ {
		wt.Parameters = append(wt.Parameters, t.Parameter(i))
	}
	for i := 0; i < t.DefaultCount(); i++ {
		wc, err := constantToWire(t.Default(i), index)
		if err != nil {
			return wireTemplate{}, err
		}
		wt.Defaults = append(wt.Defaults, wc)
	}
	if body := t.Body(); body != nil {
		idx, ok := index[body]
		if !ok {
			return wireTemplate{}, fmt.Errorf("codecache: marshal: template %q body is outside the flattened graph", t.Name())
		}
		wt.BodyIndex = idx
	} else {
		failure := t.ParseFailure()
		wt.FailLine = failure.Line
		wt.FailMessage = failure.Message
	}
	return wt, nil
}

func constantToWire(value any, index map[*bytecode.Code]int) (wireConstant, error) {
	switch v := value.(type) {
	case nil:
		return wireConstant{Kind: constNil}, nil
	case bool:
		return wireConstant{Kind: constBool, Bool: v}, nil
	case int:
		return wireConstant{Kind: constInt, Int: int64(v)}, nil
	case int64:
		return wireConstant{Kind: constInt, Int: v}, nil
	case float32:
		return wireConstant{Kind: constFloat, Float: float64(v)}, nil
	case float64:
		return wireConstant{Kind: constFloat, Float: v}, nil
	case string:
		return wireConstant{Kind: constString, Str: v}, nil
	case *bytecode.FunctionTemplate:
		wt, err := templateToWire(v, index)
		if err != nil {
			return wireConstant{}, err
		}
		return wireConstant{Kind: constTemplate, Template: &wt}, nil
	default:
		return wireConstant{}, fmt.Errorf("codecache: marshal: unsupported constant type %T", value)
	}
}

func codeFromState(state *wireState) (*bytecode.Code, error) {
	if state.Version != wireVersion {
		return nil, fmt.Errorf("codecache: unmarshal: unsupported wire version %d", state.Version)
	}
	if len(state.Codes) == 0 {
		return nil, fmt.Errorf("codecache: unmarshal: no code blocks")
	}

	// Flatten order puts every block before the blocks it references,
	// so building in reverse order means a block's references are
	// always already built.
	codes := make([]*bytecode.Code, len(state.Codes))
	for i := len(state.Codes) - 1; i >= 0; i-- {
		def := state.Codes[i]

		constants, err := constantsFromWire(def.Constants, codes)
		if err != nil {
			return nil, err
		}
		decls, err := templatesFromWire(def.Decls, codes)
		if err != nil {
			return nil, err
		}
		exprs, err := templatesFromWire(def.Exprs, codes)
		if err != nil {
			return nil, err
		}

		expression := make([]bytecode.ExpressionInfo, len(def.Expression))
		for j, e := range def.Expression {
			expression[j] = bytecode.ExpressionInfo{
				InstructionOffset: e.Offset,
				Divot:             e.Divot,
				StartOffset:       e.Start,
				EndOffset:         e.End,
				Line:              e.Line,
				Column:            e.Column,
			}
		}

		handlers := make([]bytecode.HandlerInfo, len(def.Handlers))
		for j, h := range def.Handlers {
			handlers[j] = bytecode.HandlerInfo{
				Start:      h.Start,
				End:        h.End,
				Target:     h.Target,
				Type:       bytecode.HandlerType(h.Type),
				ScopeDepth: h.ScopeDepth,
			}
		}

		var profiler map[int]bytecode.TypeProfilerRange
		if len(def.Profiler) > 0 {
			profiler = make(map[int]bytecode.TypeProfilerRange, len(def.Profiler))
			for offset, r := range def.Profiler {
				profiler[offset] = bytecode.TypeProfilerRange{
					StartDivot: r.StartDivot,
					EndDivot:   r.EndDivot,
				}
			}
		}

		params := bytecode.CodeParams{
			ID:                     def.ID,
			Name:                   def.Name,
			Filename:               def.Filename,
			Source:                 def.Source,
			SourceStart:            def.SourceStart,
			SourceEnd:              def.SourceEnd,
			Kind:                   bytecode.CodeKind(def.Kind),
			Strict:                 def.Strict,
			ConstructorKind:        bytecode.ConstructorKind(def.ConstructorKind),
			IsGenerator:            def.IsGenerator,
			IsAsync:                def.IsAsync,
			IsArrowFunctionContext: def.IsArrowFunction,
			IsClassContext:         def.IsClassContext,
			Instructions:           def.Instructions,
			LocalCount:             def.LocalCount,
			Constants:              constants,
			GlobalNames:            def.GlobalNames,
			LocalNames:             def.LocalNames,
			FunctionDecls:          decls,
			FunctionExprs:          exprs,
			ExpressionInfo:         expression,
			Handlers:               handlers,
			OutOfLineJumps:         def.OutOfLineJumps,
			TypeProfilerRanges:     profiler,
		}
		if err := bytecode.ValidateParams(params); err != nil {
			return nil, fmt.Errorf("codecache: unmarshal: code block %d: %w", i, err)
		}
		codes[i] = bytecode.NewCode(params)
	}

	return codes[0], nil
}

func templatesFromWire(defs []wireTemplate, codes []*bytecode.Code) ([]*bytecode.FunctionTemplate, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	templates := make([]*bytecode.FunctionTemplate, len(defs))
	for i, def := range defs {
		t, err := templateFromWire(def, codes)
		if err != nil {
			return nil, err
		}
		templates[i] = t
	}
	return templates, nil
}

func templateFromWire(def wireTemplate, codes []*bytecode.Code) (*bytecode.FunctionTemplate, error) {
	defaults, err := constantsFromWire(def.Defaults, codes)
	if err != nil {
		return nil, err
	}
	params := bytecode.FunctionTemplateParams{
		ID:         def.ID,
		Name:       def.Name,
		Parameters: def.Parameters,
		Defaults:   defaults,
		RestParam:  def.RestParam,
	}
	if def.BodyIndex >= 0 {
		if def.BodyIndex >= len(codes) || codes[def.BodyIndex] == nil {
			return nil, fmt.Errorf("codecache: unmarshal: template %q references code block %d out of order",
				def.Name, def.BodyIndex)
		}
		params.Body = codes[def.BodyIndex]
	} else {
		params.ParseFailure = &errz.ParseError{Line: def.FailLine, Message: def.FailMessage}
	}
	return bytecode.NewFunctionTemplate(params), nil
}

func constantsFromWire(defs []wireConstant, codes []*bytecode.Code) ([]any, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	constants := make([]any, len(defs))
	for i, def := range defs {
		value, err := constantFromWire(def, codes)
		if err != nil {
			return nil, err
		}
		constants[i] = value
	}
	return constants, nil
}

func constantFromWire(def wireConstant, codes []*bytecode.Code) (any, error) {
	switch def.Kind {
	case constNil:
		return nil, nil
	case constBool:
		return def.Bool, nil
	case constInt:
		// Integers always come back as int64, matching the widest form
		// the generator emits.
		return def.Int, nil
	case constFloat:
		return def.Float, nil
	case constString:
		return def.Str, nil
	case constTemplate:
		if def.Template == nil {
			return nil, fmt.Errorf("codecache: unmarshal: template constant carries no template")
		}
		return templateFromWire(*def.Template, codes)
	default:
		return nil, fmt.Errorf("codecache: unmarshal: unknown constant kind %d", def.Kind)
	}
}
