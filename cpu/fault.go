package cpu

// Fault identifies one of the host-detectable exception causes the pipeline
// can raise on its own, as opposed to a program-requested software
// exception or a device-asserted hardware interrupt. Fault vector numbers
// occupy the low end of the 128-entry vector table; spec.md §4.F groups
// these as the highest-priority exception class ("faults > hardware >
// software").
type Fault uint8

const (
	NoFault Fault = iota
	InvalidOpCodeFault
	AlignmentFault
	PrivilegeViolationFault
	BusErrorFault
	SegmentOverflowFault
	_ // vector 6 reserved
	_ // vector 7 reserved
	_ // vector 8 reserved
	Level5ConflictFault // vector 9: regular-class, spec.md §4.F/§8 fixes this slot
)

func (f Fault) String() string {
	switch f {
	case NoFault:
		return "NoFault"
	case InvalidOpCodeFault:
		return "InvalidOpCodeFault"
	case AlignmentFault:
		return "AlignmentFault"
	case PrivilegeViolationFault:
		return "PrivilegeViolationFault"
	case BusErrorFault:
		return "BusErrorFault"
	case SegmentOverflowFault:
		return "SegmentOverflowFault"
	case Level5ConflictFault:
		return "Level5ConflictFault"
	default:
		return "?fault?"
	}
}

// vectorNumber maps each fault to its fixed low-numbered slot in the 128-entry
// exception vector table. Vectors 1-5 are abort-class: they cancel the
// faulting instruction and resume at it. Level5ConflictFault at vector 9 is
// regular-class, dispatched the same way an ordinary hardware or software
// exception is, since there is no in-flight instruction to cancel when two
// level-5 interrupts collide. Software exceptions and hardware interrupts
// use the rest of the table (see exception.go).
func (f Fault) vectorNumber() uint8 {
	return uint8(f)
}
