// Package device implements the minimal bus-mapped peripherals SIRC needs
// to exercise its interrupt and exit-simulation machinery end to end: a
// hardware timer and a debug/power port. Both are generalized from the
// teacher's systemTimer/consoleIO/powerController devices (vm/devices.go)
// and from original_source/sirc-vm/peripheral-clock, simplified down to
// what the bus fabric and exception coprocessor need a real device to
// drive - the terminal/video/file-backed peripherals spec.md excludes as
// Non-goals stay out.
package device

import "sirc/bus"

// Timer is a free-running counter mapped onto two bus-visible words: an
// offset-0 "period" register (how many polls between interrupts) and an
// offset-2 "counter" register (read-only; reading it clears the pending
// interrupt). When the counter reaches Period it asserts InterruptLevel on
// the bus every cycle until the counter register is read, mirroring original_source's
// peripheral-clock tick/interrupt pairing.
type Timer struct {
	Base           uint32
	InterruptLevel uint8

	period  uint16
	counter uint16
	pending bool
}

// NewTimer returns a timer mapped at base, asserting level when it fires.
func NewTimer(base uint32, level uint8) *Timer {
	return &Timer{Base: base, InterruptLevel: level}
}

const (
	timerRegPeriod  = 0
	timerRegCounter = 2
)

// Poll advances the timer by one cycle regardless of whether this cycle's
// bus transaction targets it (a timer that only ticked when addressed
// would never fire), and also services any register access in the same
// pass.
func (t *Timer) Poll(in bus.Assertions) bus.Assertions {
	out := in
	out.DeviceWasActivated = false

	if t.period > 0 {
		t.counter++
		if t.counter >= t.period {
			t.counter = 0
			t.pending = true
		}
	}
	if t.pending {
		out.InterruptAssertion |= 1 << (t.InterruptLevel - 1)
	}

	offset := in.Address - t.Base
	if in.Op == bus.NoOp || in.Address < t.Base || offset >= 4 {
		return out
	}
	out.DeviceWasActivated = true

	switch {
	case offset == timerRegPeriod && in.Op == bus.Write:
		t.period = in.Data
	case offset == timerRegPeriod && in.Op == bus.Read:
		out.Data = t.period
	case offset == timerRegCounter && in.Op == bus.Read:
		out.Data = t.counter
		t.pending = false
	}
	return out
}
