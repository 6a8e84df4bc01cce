package heap

import "github.com/rs/zerolog"

// Sizer is implemented by objects that can estimate their own retained
// size in bytes.
type Sizer interface {
	EstimatedSize() uint64
}

// Collector walks object graphs in cycles. All methods must be called
// from the same goroutine; per-object synchronization is the
// responsibility of each Traceable.
type Collector struct {
	logger      zerolog.Logger
	cycle       uint64
	visited     map[Traceable]uint64
	pending     []Traceable
	visitCount  int
	extraMemory uint64
	sizeTotal   uint64
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithLogger sets the logger used for cycle statistics.
func WithLogger(logger zerolog.Logger) CollectorOption {
	return func(c *Collector) {
		c.logger = logger
	}
}

// NewCollector creates a Collector with no completed cycles.
func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{
		logger:  zerolog.Nop(),
		visited: map[Traceable]uint64{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BeginCycle starts a new collection cycle. Objects visited in earlier
// cycles become eligible for first visits again, and the extra memory
// total resets.
func (c *Collector) BeginCycle() {
	c.cycle++
	c.visitCount = 0
	c.extraMemory = 0
	c.sizeTotal = 0
	c.logger.Debug().Uint64("cycle", c.cycle).Msg("collection cycle started")
}

// Trace walks the graph reachable from root. Each object is visited at
// most once per cycle; the first visit is flagged on the Visitor.
func (c *Collector) Trace(root Traceable) {
	if c.cycle == 0 {
		panic("heap: Collector.Trace: BeginCycle not called")
	}
	c.pending = append(c.pending, root)
	for len(c.pending) > 0 {
		obj := c.pending[len(c.pending)-1]
		c.pending = c.pending[:len(c.pending)-1]
		if c.visited[obj] == c.cycle {
			continue
		}
		c.visit(obj)
	}
	c.logger.Debug().
		Uint64("cycle", c.cycle).
		Int("visited", c.visitCount).
		Uint64("extra_memory", c.extraMemory).
		Msg("trace finished")
}

func (c *Collector) visit(obj Traceable) {
	c.visited[obj] = c.cycle
	c.visitCount++
	if sizer, ok := obj.(Sizer); ok {
		c.sizeTotal += sizer.EstimatedSize()
	}
	obj.VisitChildren(&Visitor{collector: c, firstVisit: true})
}

// Revisit walks root again within the current cycle without granting a
// first visit. Children reported by the revisit are still traced at
// most once per cycle.
func (c *Collector) Revisit(root Traceable) {
	if c.cycle == 0 {
		panic("heap: Collector.Revisit: BeginCycle not called")
	}
	if c.visited[root] != c.cycle {
		c.visited[root] = c.cycle
		c.visitCount++
		if sizer, ok := root.(Sizer); ok {
			c.sizeTotal += sizer.EstimatedSize()
		}
	}
	root.VisitChildren(&Visitor{collector: c, firstVisit: false})
	for len(c.pending) > 0 {
		obj := c.pending[len(c.pending)-1]
		c.pending = c.pending[:len(c.pending)-1]
		if c.visited[obj] == c.cycle {
			continue
		}
		c.visit(obj)
	}
}

// ExtraMemory returns the off-graph bytes reported during the current
// cycle.
func (c *Collector) ExtraMemory() uint64 {
	return c.extraMemory
}

// VisitedCount returns the number of objects visited during the
// current cycle.
func (c *Collector) VisitedCount() int {
	return c.visitCount
}

// EstimatedHeapSize runs a fresh cycle over the given roots and returns
// the sum of the self-reported sizes of every object that implements
// Sizer.
func (c *Collector) EstimatedHeapSize(roots ...Traceable) uint64 {
	c.BeginCycle()
	for _, root := range roots {
		c.Trace(root)
	}
	return c.sizeTotal
}
