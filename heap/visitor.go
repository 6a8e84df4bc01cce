// Package heap provides the tracing machinery used to walk object
// graphs during a collection cycle. A Collector drives the walk from a
// single goroutine; traced objects guard their own state.
package heap

// Traceable is implemented by objects that participate in collection
// cycles. VisitChildren reports the object's outgoing references and
// any off-graph memory it retains.
type Traceable interface {
	VisitChildren(v *Visitor)
}

// Visitor is passed to VisitChildren during a trace. It records the
// children to walk next and accumulates extra memory totals on the
// collector that created it.
type Visitor struct {
	collector  *Collector
	firstVisit bool
}

// IsFirstVisit reports whether this is the first time the object has
// been reached during the current cycle.
func (v *Visitor) IsFirstVisit() bool {
	return v.firstVisit
}

// Append schedules child to be visited later in the current cycle.
// Nil children are ignored.
func (v *Visitor) Append(child Traceable) {
	if child == nil {
		return
	}
	v.collector.pending = append(v.collector.pending, child)
}

// AppendValues schedules every value that is itself traceable. Scalar
// values are skipped.
func (v *Visitor) AppendValues(values []any) {
	for _, value := range values {
		if child, ok := value.(Traceable); ok {
			v.Append(child)
		}
	}
}

// ReportExtraMemoryVisited credits the current cycle with memory held
// by the visited object outside the traced graph.
func (v *Visitor) ReportExtraMemoryVisited(bytes uint64) {
	v.collector.extraMemory += bytes
}
