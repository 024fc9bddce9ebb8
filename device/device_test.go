package device

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sirc/bus"
)

func TestTimerFiresAfterPeriod(t *testing.T) {
	timer := NewTimer(0x4000, 3)
	timer.Poll(bus.Assertions{Address: 0x4000, Op: bus.Write, Data: 2})

	out := timer.Poll(bus.Assertions{Op: bus.NoOp})
	assert.Equal(t, uint8(0), out.InterruptAssertion)

	out = timer.Poll(bus.Assertions{Op: bus.NoOp})
	assert.Equal(t, uint8(1<<2), out.InterruptAssertion)
}

func TestTimerReadingCounterClearsPending(t *testing.T) {
	timer := NewTimer(0x4000, 1)
	timer.Poll(bus.Assertions{Address: 0x4000, Op: bus.Write, Data: 5})
	for i := 0; i < 5; i++ {
		timer.Poll(bus.Assertions{Op: bus.NoOp})
	}

	out := timer.Poll(bus.Assertions{Address: 0x4002, Op: bus.Read})
	assert.True(t, out.DeviceWasActivated)

	out = timer.Poll(bus.Assertions{Op: bus.NoOp})
	assert.Equal(t, uint8(0), out.InterruptAssertion, "reading the counter must clear the pending interrupt")
}

func TestDebugPortPowerTriggersExit(t *testing.T) {
	port := NewDebugPort(0x5000)
	out := port.Poll(bus.Assertions{Address: 0x5000, Op: bus.Write, Data: 1})
	assert.True(t, out.ExitSimulation)
	assert.True(t, port.Halted())
}

func TestDebugPortConsoleAccumulates(t *testing.T) {
	port := NewDebugPort(0x5000)
	port.Poll(bus.Assertions{Address: 0x5002, Op: bus.Write, Data: uint16('h')})
	port.Poll(bus.Assertions{Address: 0x5002, Op: bus.Write, Data: uint16('i')})
	assert.Equal(t, []byte("hi"), port.Console())
}

func TestDebugPortIgnoresReads(t *testing.T) {
	port := NewDebugPort(0x5000)
	out := port.Poll(bus.Assertions{Address: 0x5000, Op: bus.Read})
	assert.False(t, out.DeviceWasActivated)
}
