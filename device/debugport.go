package device

import "sirc/bus"

// DebugPort is a two-register peripheral: writing any non-zero value to its
// power register asserts ExitSimulation for the driver to observe (the
// teacher's powerController), and writing a byte to its console register
// appends it to an in-memory log the driver can flush (the teacher's
// consoleIO). Both registers are write-only: the port does not claim reads
// (DeviceWasActivated stays false), so the bus reports a read as a bus error.
type DebugPort struct {
	Base uint32

	halted  bool
	console []byte
}

// NewDebugPort returns a debug port mapped at base, occupying two words.
func NewDebugPort(base uint32) *DebugPort {
	return &DebugPort{Base: base}
}

const (
	debugRegPower   = 0
	debugRegConsole = 2
)

// Poll implements bus.Device.
func (d *DebugPort) Poll(in bus.Assertions) bus.Assertions {
	out := in
	out.DeviceWasActivated = false

	offset := in.Address - d.Base
	if in.Op != bus.Write || in.Address < d.Base || offset >= 4 {
		return out
	}
	out.DeviceWasActivated = true

	switch offset {
	case debugRegPower:
		if in.Data != 0 {
			d.halted = true
			out.ExitSimulation = true
		}
	case debugRegConsole:
		d.console = append(d.console, byte(in.Data))
	}
	return out
}

// Halted reports whether the power register has ever been written non-zero.
func (d *DebugPort) Halted() bool { return d.halted }

// Console returns everything written to the console register so far.
func (d *DebugPort) Console() []byte { return d.console }
