// Package dbg implements the debug-info sidecar: a bijective map between a
// program counter value and its (file, line, column) source location,
// generalized from original_source/sirc-vm/sirc-vm/src/debug_adapter/debug_map.rs.
// The DAP server that would consume this at a breakpoint is out of scope
// (spec.md §1's Non-goals name it explicitly); the sidecar format it would
// read is implemented here since spec.md §4.L names it as in-scope on its
// own.
package dbg

import "fmt"

// Location is a source position: the file it came from plus 1-based line
// and column.
type Location struct {
	File   string
	Line   int
	Column int
}

// Info is a bijective map between program-counter addresses and source
// locations, built incrementally by the assembler as it emits bytes.
type Info struct {
	pcToLoc map[uint32]Location
	locToPC map[Location]uint32
}

// NewInfo returns an empty debug-info sidecar.
func NewInfo() *Info {
	return &Info{pcToLoc: make(map[uint32]Location), locToPC: make(map[Location]uint32)}
}

// Record associates pc with loc. Recording the same pc twice, or the same
// loc twice, would break the bijection, so Record reports an error instead
// of silently overwriting - the assembler only calls this once per emitted
// instruction/data word.
func (i *Info) Record(pc uint32, loc Location) error {
	if existing, ok := i.pcToLoc[pc]; ok {
		return fmt.Errorf("dbg: pc %#x already mapped to %+v", pc, existing)
	}
	if existing, ok := i.locToPC[loc]; ok {
		return fmt.Errorf("dbg: location %+v already mapped to pc %#x", loc, existing)
	}
	i.pcToLoc[pc] = loc
	i.locToPC[loc] = pc
	return nil
}

// LocationFor returns the source location recorded for pc, if any.
func (i *Info) LocationFor(pc uint32) (Location, bool) {
	loc, ok := i.pcToLoc[pc]
	return loc, ok
}

// PCFor returns the program counter recorded for loc, if any - the
// direction a "set breakpoint at file:line" request needs.
func (i *Info) PCFor(loc Location) (uint32, bool) {
	pc, ok := i.locToPC[loc]
	return pc, ok
}

// Merge folds other's entries into i, offsetting every program counter by
// base - used by the linker to combine each translation unit's debug info
// into one whole-image sidecar.
func (i *Info) Merge(other *Info, base uint32) error {
	if other == nil {
		return nil
	}
	for pc, loc := range other.pcToLoc {
		if err := i.Record(pc+base, loc); err != nil {
			return err
		}
	}
	return nil
}

// GobEncode/GobDecode let Info ride inside an object.Definition through
// encoding/gob despite its unexported map fields (gob otherwise round-trips
// exported fields only).
type wireInfo struct {
	Entries map[uint32]Location
}

func (i *Info) GobEncode() ([]byte, error) {
	return gobEncode(wireInfo{Entries: i.pcToLoc})
}

func (i *Info) GobDecode(data []byte) error {
	var w wireInfo
	if err := gobDecode(data, &w); err != nil {
		return err
	}
	i.pcToLoc = w.Entries
	i.locToPC = make(map[Location]uint32, len(w.Entries))
	for pc, loc := range w.Entries {
		i.locToPC[loc] = pc
	}
	return nil
}
