// Package bus implements the SIRC bus fabric: an ordered list of
// (address-range, Device) pairs that are polled once per cycle with the
// CPU's current address/data/op assertions, and whose responses are merged
// back together with the bitwise-OR discipline spec.md §4.G describes.
package bus

import "fmt"

// Op identifies what kind of bus cycle the CPU is driving this tick.
type Op uint8

const (
	NoOp Op = iota
	Read
	Write
)

// Assertions is the full set of signals that cross the bus in a single
// cycle, in both directions: the CPU drives Address/Data/Op/InstructionFetch
// in, and every Device's response is merged back into the same shape.
type Assertions struct {
	Address uint32
	Data    uint16
	Op      Op

	InstructionFetch bool

	// InterruptAssertion is a bitfield; bit N-1 (counting from bit 0) means
	// hardware interrupt level N is currently asserted. Merged with bitwise OR
	// across every device on the bus.
	InterruptAssertion uint8

	BusError           bool
	DeviceWasActivated bool
	ExitSimulation     bool
}

// merge folds resp into acc following spec.md §4.G: booleans OR, the
// interrupt bitfield ORs bit-by-bit, and Data is only taken from the first
// device that asserts DeviceWasActivated (segments are disjoint, so at most
// one device should ever claim a given cycle).
func merge(acc, resp Assertions) Assertions {
	acc.InterruptAssertion |= resp.InterruptAssertion
	acc.BusError = acc.BusError || resp.BusError
	acc.ExitSimulation = acc.ExitSimulation || resp.ExitSimulation
	if resp.DeviceWasActivated {
		if !acc.DeviceWasActivated {
			acc.Data = resp.Data
		}
		acc.DeviceWasActivated = true
	}
	return acc
}

// Device is anything that can be mapped onto the bus: memory, a timer, a
// debug port. Poll is called once per cycle with the same unmodified
// assertions every other device on the bus sees - Bus does not pre-filter
// by address, since devices like the timer need to react every cycle
// whether or not they're addressed - and returns this device's contribution
// to the merged response.
type Device interface {
	// Poll services one bus cycle. in.Address is absolute (24-bit); the
	// device is responsible for checking whether it falls in its own range
	// and translating it to a local offset.
	Poll(in Assertions) Assertions
}

// mapping pairs a Device with the half-open address range spec.md §4.H
// assigns it.
type mapping struct {
	label        string
	base, size   uint32
	device       Device
}

// Bus is the ordered list of (range, Device) pairs that make up the
// machine's address space. Devices are polled in registration order; the
// teacher's devices.go keeps the same "ordered slice, first match wins for
// addressing, every device polled for interrupts" shape.
type Bus struct {
	mappings []mapping
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{}
}

// Attach maps device onto [base, base+size) under label. Attaching two
// devices with overlapping ranges is a programming error in the machine
// description, not a runtime condition, so it panics rather than returning
// an error - the teacher's device registration (vm/devices.go) does the
// same for a malformed device table.
func (b *Bus) Attach(label string, base, size uint32, device Device) {
	for _, m := range b.mappings {
		if rangesOverlap(base, size, m.base, m.size) {
			panic(fmt.Sprintf("bus: %q overlaps existing mapping %q", label, m.label))
		}
	}
	b.mappings = append(b.mappings, mapping{label: label, base: base, size: size, device: device})
}

func rangesOverlap(aBase, aSize, bBase, bSize uint32) bool {
	return aBase < bBase+bSize && bBase < aBase+aSize
}

// Owner returns the label of the device mapped at address, if any.
func (b *Bus) Owner(address uint32) (string, bool) {
	for _, m := range b.mappings {
		if address >= m.base && address < m.base+m.size {
			return m.label, true
		}
	}
	return "", false
}

// PollAll drives one bus cycle: every device is polled with in (every
// device sees the same outgoing assertions, so devices that only care about
// interrupts, like a timer, don't need to be addressed to react), and the
// responses are merged with bitwise-OR semantics.
func (b *Bus) PollAll(in Assertions) Assertions {
	acc := in
	acc.DeviceWasActivated = false
	acc.BusError = false
	acc.ExitSimulation = false
	acc.InterruptAssertion = 0

	for _, m := range b.mappings {
		resp := m.device.Poll(in)
		acc = merge(acc, resp)
	}

	if in.Op != NoOp && !acc.DeviceWasActivated {
		acc.BusError = true
	}
	return acc
}
