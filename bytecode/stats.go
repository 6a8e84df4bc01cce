package bytecode

// Stats contains statistics about a code block.
// This is useful for auditing compiled code before caching or linking.
type Stats struct {
	// InstructionCount is the number of decoded instructions.
	InstructionCount int

	// WordCount is the stream length in words, zero when the stream was
	// not retained.
	WordCount int

	// ConstantCount is the number of constants in the constant pool.
	ConstantCount int

	// TemplateCount is the number of function templates referenced
	// directly by this block (declarations plus expressions).
	TemplateCount int

	// HandlerCount is the number of exception handlers.
	HandlerCount int

	// ExpressionInfoCount is the number of expression-range entries.
	ExpressionInfoCount int

	// ExtraMemoryBytes is the off-graph memory the block reports to the
	// collector.
	ExtraMemoryBytes uint64

	// SourceBytes is the size of the block's source text in bytes.
	SourceBytes int
}

// Stats returns statistics about this code block.
func (c *Code) Stats() Stats {
	wordCount := 0
	if c.instructions != nil {
		wordCount = c.instructions.Len()
	}
	return Stats{
		InstructionCount:    c.InstructionCount(),
		WordCount:           wordCount,
		ConstantCount:       len(c.constants),
		TemplateCount:       len(c.functionDecls) + len(c.functionExprs),
		HandlerCount:        c.ExceptionHandlerCount(),
		ExpressionInfoCount: len(c.expressionInfo),
		ExtraMemoryBytes:    c.extraMemoryBytes(),
		SourceBytes:         len(c.source),
	}
}
