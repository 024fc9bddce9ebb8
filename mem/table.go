package mem

import "sort"

// Table is a label->segment map used by the linker and debugger to resolve
// a symbolic segment name, or an absolute address, back to the Segment that
// owns it. It is deliberately independent of bus.Bus: the bus cares about
// polling devices every cycle, the table cares about static layout
// questions asked before (link time) or alongside (debug time) a run.
type Table struct {
	byLabel map[string]*Segment
	ordered []*Segment // kept sorted by Address for Lookup
}

// NewTable builds a Table from a set of segments, sorted by base address.
func NewTable(segments ...*Segment) *Table {
	t := &Table{byLabel: make(map[string]*Segment, len(segments))}
	for _, s := range segments {
		t.byLabel[s.Label] = s
		t.ordered = append(t.ordered, s)
	}
	sort.Slice(t.ordered, func(i, j int) bool { return t.ordered[i].Address < t.ordered[j].Address })
	return t
}

// ByLabel resolves a segment by its symbolic name.
func (t *Table) ByLabel(label string) (*Segment, bool) {
	s, ok := t.byLabel[label]
	return s, ok
}

// Lookup resolves an absolute address to the segment that owns it, using
// the half-open interval [Address, Address+Size) - see Segment.Contains'
// doc comment for why this differs from the reference implementation.
func (t *Table) Lookup(address uint32) (*Segment, bool) {
	// ordered is small (a handful of segments); a linear scan is simpler
	// and just as fast as a binary search here, and matches the teacher's
	// own device list scan in vm/devices.go.
	for _, s := range t.ordered {
		if s.Contains(address) {
			return s, true
		}
	}
	return nil, false
}

// Segments returns every segment in address order.
func (t *Table) Segments() []*Segment {
	return t.ordered
}
