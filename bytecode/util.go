package bytecode

import "github.com/skink-lang/skink/op"

// copyStrings returns a copy of the given string slice.
func copyStrings(src []string) []string {
	if src == nil {
		return nil
	}
	dst := make([]string, len(src))
	copy(dst, src)
	return dst
}

// copyAny returns a copy of the given any slice.
func copyAny(src []any) []any {
	if src == nil {
		return nil
	}
	dst := make([]any, len(src))
	copy(dst, src)
	return dst
}

// copyWords returns a copy of the given instruction word slice.
func copyWords(src []op.Code) []op.Code {
	if src == nil {
		return nil
	}
	dst := make([]op.Code, len(src))
	copy(dst, src)
	return dst
}

// copyHandlers returns a copy of the given exception handler slice.
func copyHandlers(src []HandlerInfo) []HandlerInfo {
	if src == nil {
		return nil
	}
	dst := make([]HandlerInfo, len(src))
	copy(dst, src)
	return dst
}

// copyTemplates returns a copy of the given template slice. The
// templates themselves are shared.
func copyTemplates(src []*FunctionTemplate) []*FunctionTemplate {
	if src == nil {
		return nil
	}
	dst := make([]*FunctionTemplate, len(src))
	copy(dst, src)
	return dst
}

// copyIntMap returns a copy of the given int-to-int map.
func copyIntMap(src map[int]int) map[int]int {
	if src == nil {
		return nil
	}
	dst := make(map[int]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// copyProfilerRanges returns a copy of the given type-profiler map.
func copyProfilerRanges(src map[int]TypeProfilerRange) map[int]TypeProfilerRange {
	if src == nil {
		return nil
	}
	dst := make(map[int]TypeProfilerRange, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
