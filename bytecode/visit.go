package bytecode

import (
	"unsafe"

	"github.com/skink-lang/skink/heap"
)

// VisitChildren reports the block's references and retained memory to
// the collector. Concurrent visits serialize on the visitation lock.
// The first visit of each cycle bumps the age counter, saturating at
// MaxAge.
func (c *Code) VisitChildren(v *heap.Visitor) {
	c.visitMu.Lock()
	defer c.visitMu.Unlock()

	if v.IsFirstVisit() {
		if age := c.age.Load(); age < MaxAge {
			c.age.Store(age + 1)
		}
	}

	for _, t := range c.functionDecls {
		v.Append(t)
	}
	for _, t := range c.functionExprs {
		v.Append(t)
	}
	v.AppendValues(c.constants)

	v.ReportExtraMemoryVisited(c.extraMemoryBytes())
}

// extraMemoryBytes is the off-graph memory the block retains: the
// metadata table plus the instruction stream when retained.
func (c *Code) extraMemoryBytes() uint64 {
	bytes := c.metadata.SizeBytes()
	if c.instructions != nil {
		bytes += c.instructions.SizeBytes()
	}
	return bytes
}

// EstimatedSize returns the block's approximate retained size in bytes.
func (c *Code) EstimatedSize() uint64 {
	return uint64(unsafe.Sizeof(*c)) + c.extraMemoryBytes()
}
