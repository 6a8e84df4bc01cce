package bytecode

// HandlerType describes what kind of construct an exception handler
// implements.
type HandlerType uint8

const (
	// HandlerCatch is an explicit catch clause.
	HandlerCatch HandlerType = iota
	// HandlerFinally is an explicit finally clause.
	HandlerFinally
	// HandlerSynthesizedFinally is a finally clause synthesized by the
	// generator, e.g. for iterator cleanup.
	HandlerSynthesizedFinally
)

// String returns the string representation of the handler type.
func (t HandlerType) String() string {
	switch t {
	case HandlerCatch:
		return "catch"
	case HandlerFinally:
		return "finally"
	case HandlerSynthesizedFinally:
		return "synthesized finally"
	default:
		return "unknown"
	}
}

// HandlerInfo describes one exception handler: the half-open range of
// instruction offsets it covers and the offset where control resumes
// when an exception is raised inside that range.
type HandlerInfo struct {
	Start      int // first covered offset
	End        int // one past the last covered offset
	Target     int // offset of the handler code
	Type       HandlerType
	ScopeDepth int
}

// IsCatch returns true if the handler is an explicit catch clause.
func (h HandlerInfo) IsCatch() bool {
	return h.Type == HandlerCatch
}

// Covers returns true if the handler's range contains the given offset.
func (h HandlerInfo) Covers(offset int) bool {
	return offset >= h.Start && offset < h.End
}

// RequiredHandler filters handler lookups.
type RequiredHandler uint8

const (
	// AnyHandler accepts every handler type.
	AnyHandler RequiredHandler = iota
	// CatchHandler accepts only explicit catch clauses.
	CatchHandler
)

// HandlerForOffset returns the innermost handler covering the given
// offset. Handlers are registered outermost first, so the scan runs
// from the end of the table. With required set to CatchHandler,
// finally-type handlers are skipped. The second result is false when no
// handler matches.
func (c *Code) HandlerForOffset(offset int, required RequiredHandler) (HandlerInfo, bool) {
	if c.rare == nil {
		return HandlerInfo{}, false
	}
	handlers := c.rare.handlers
	for i := len(handlers) - 1; i >= 0; i-- {
		h := handlers[i]
		if required == CatchHandler && !h.IsCatch() {
			continue
		}
		if h.Covers(offset) {
			return h, true
		}
	}
	return HandlerInfo{}, false
}

// ExceptionHandlerCount returns the number of exception handlers.
func (c *Code) ExceptionHandlerCount() int {
	if c.rare == nil {
		return 0
	}
	return len(c.rare.handlers)
}

// ExceptionHandlerAt returns the exception handler at the given index.
func (c *Code) ExceptionHandlerAt(index int) HandlerInfo {
	return c.rare.handlers[index]
}
