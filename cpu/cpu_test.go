package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sirc/bus"
	"sirc/instr"
	"sirc/mem"
	"sirc/regs"
)

func newTestCPU(t *testing.T, ramSize uint32) (*CPU, *mem.Segment) {
	t.Helper()
	b := bus.New()
	ram := mem.NewSegment("ram", 0, ramSize, true)
	b.Attach("ram", ram.Address, ram.Size, ram)
	return New(b), ram
}

func writeInstruction(t *testing.T, ram *mem.Segment, addr uint32, d instr.Data) {
	t.Helper()
	word, err := instr.Encode(d)
	require.NoError(t, err)
	require.NoError(t, ram.WriteWordBE(addr, uint16(word>>16)))
	require.NoError(t, ram.WriteWordBE(addr+2, uint16(word)))
}

func TestStepExecutesAddImmediateAndAdvancesPC(t *testing.T) {
	c, ram := newTestCPU(t, 0x100)
	writeInstruction(t, ram, 0, instr.Data{
		Format: instr.ShortImmediate, OpCode: instr.OpCode(0x08), // Add, store
		Condition: instr.Always, Register: instr.Index16(regs.R1), ShortValue: 5,
	})

	_, _ = c.Step()

	assert.Equal(t, uint16(5), c.Regs.Get(regs.R1))
	assert.Equal(t, uint32(4), regs.ToFullAddress(c.Regs.PC()))
}

func TestCmpDoesNotStoreButUpdatesFlags(t *testing.T) {
	c, ram := newTestCPU(t, 0x100)
	c.Regs.Set(regs.R1, 5)
	writeInstruction(t, ram, 0, instr.Data{
		Format: instr.ShortImmediate, OpCode: instr.OpCode(0x02), // Sub, no store (CMP)
		Condition: instr.Always, Register: instr.Index16(regs.R1), ShortValue: 5,
	})

	_, _ = c.Step()

	assert.Equal(t, uint16(5), c.Regs.Get(regs.R1), "CMP must not overwrite the register")
	assert.True(t, c.Regs.SRBitIsSet(regs.Zero))
}

func TestConditionFalseIsNoOp(t *testing.T) {
	c, ram := newTestCPU(t, 0x100)
	writeInstruction(t, ram, 0, instr.Data{
		Format: instr.ShortImmediate, OpCode: instr.OpCode(0x08),
		Condition: instr.Never, Register: instr.Index16(regs.R1), ShortValue: 0xFF,
	})

	_, _ = c.Step()
	assert.Equal(t, uint16(0), c.Regs.Get(regs.R1))
}

func TestLoadStoreRoundTrip(t *testing.T) {
	c, ram := newTestCPU(t, 0x100)
	c.Regs.Set(regs.R1, 0xCAFE)
	c.Regs.Set(regs.AL, 0)
	c.Regs.Set(regs.AH, 0)

	writeInstruction(t, ram, 0, instr.Data{
		Format: instr.Immediate, OpCode: instr.StoreImmediate,
		Condition: instr.Always, Register: instr.Index16(regs.R1), Value: 0x0020,
	})
	writeInstruction(t, ram, 4, instr.Data{
		Format: instr.Immediate, OpCode: instr.LoadImmediate,
		Condition: instr.Always, Register: instr.Index16(regs.R2), Value: 0x0020,
	})

	_, _ = c.Step()
	_, _ = c.Step()

	assert.Equal(t, uint16(0xCAFE), c.Regs.Get(regs.R2))
}

func TestLoadImmediateValueDoesNotTouchBus(t *testing.T) {
	c, ram := newTestCPU(t, 0x100)
	writeInstruction(t, ram, 0, instr.Data{
		Format: instr.Immediate, OpCode: instr.LoadImmediateValue,
		Condition: instr.Always, Register: instr.Index16(regs.R1), Value: 0x1234,
	})

	_, _ = c.Step()
	assert.Equal(t, uint16(0x1234), c.Regs.Get(regs.R1))
}

func TestStoreAutoIndexPreDecrementThenPostIncrementRoundTrip(t *testing.T) {
	c, ram := newTestCPU(t, 0x100)
	c.Regs.Set(regs.AH, 0)
	c.Regs.Set(regs.AL, 0x2000) // (0, 0x2000) packs byte address 0x20
	c.Regs.Set(regs.R1, 0xBEEF)

	writeInstruction(t, ram, 0, instr.Data{
		Format: instr.Register, OpCode: instr.StoreAutoIndex,
		Condition: instr.Always, R1: instr.Index16(regs.R1), Additional: 0, // pre-decrement
	})
	_, _ = c.Step()

	ah, al := c.Regs.Address()
	assert.Equal(t, uint32(0x20-2), regs.ToFullAddress(ah, al))

	writeInstruction(t, ram, 4, instr.Data{
		Format: instr.Register, OpCode: instr.LoadAutoIndex,
		Condition: instr.Always, R1: instr.Index16(regs.R2), Additional: 1, // post-increment
	})
	_, _ = c.Step()

	assert.Equal(t, uint16(0xBEEF), c.Regs.Get(regs.R2))
	ah, al = c.Regs.Address()
	assert.Equal(t, uint32(0x20), regs.ToFullAddress(ah, al))
}

func TestBranchImmediateTaken(t *testing.T) {
	c, ram := newTestCPU(t, 0x100)
	writeInstruction(t, ram, 0, instr.Data{
		Format: instr.Immediate, OpCode: instr.BranchImmediate,
		Condition: instr.Always, Value: 4, // word offset * 2 = byte offset 8
	})

	_, _ = c.Step()
	// the offset is relative to the already-incremented PC (address of the
	// instruction following the branch): 4 (post-increment) + 4*2 (word
	// offset in bytes) = 12.
	assert.Equal(t, uint32(12), regs.ToFullAddress(c.Regs.PC()))
}

func TestAlignmentFaultOnOddPC(t *testing.T) {
	c, _ := newTestCPU(t, 0x100)
	c.Regs.SetSystemRAMOffset(0)
	c.Regs.SetPC(0, 0x0100) // low half's top byte (0x01) becomes the address's low byte

	fault, _ := c.Step()
	assert.Equal(t, AlignmentFault, fault)
}

func TestHaltSetsExitSimulation(t *testing.T) {
	c, ram := newTestCPU(t, 0x100)
	writeInstruction(t, ram, 0, instr.Data{
		Format: instr.Immediate, OpCode: instr.Halt, Condition: instr.Always,
	})

	_, out := c.Step()
	assert.True(t, out.ExitSimulation)
}

func TestInvalidOpcodeFault(t *testing.T) {
	c, ram := newTestCPU(t, 0x100)
	c.Regs.SetSystemRAMOffset(0x80)
	require.NoError(t, ram.WriteWordBE(0, 0xC000)) // op-code 0x30 = reserved
	require.NoError(t, ram.WriteWordBE(2, 0x0000))

	fault, _ := c.Step()
	assert.Equal(t, InvalidOpCodeFault, fault)
	assert.Equal(t, uint8(1), c.ExceptionLevel())
}

func TestPrivilegeViolationOnHighHalfWrite(t *testing.T) {
	c, ram := newTestCPU(t, 0x100)
	c.Regs.SetSystemRAMOffset(0x80)
	writeInstruction(t, ram, 0, instr.Data{
		Format: instr.ShortImmediate, OpCode: instr.OpCode(0x08),
		Condition: instr.Always, Register: instr.Index16(regs.AH), ShortValue: 1,
	})

	fault, _ := c.Step()
	assert.Equal(t, PrivilegeViolationFault, fault)
}

func TestPrivilegeViolationDoesNotCommitFlags(t *testing.T) {
	c, ram := newTestCPU(t, 0x100)
	c.Regs.SetSystemRAMOffset(0x80)
	c.Regs.SetSRBit(regs.Zero)
	writeInstruction(t, ram, 0, instr.Data{
		Format: instr.ShortImmediate, OpCode: instr.OpCode(0x08), // Add, store
		Condition: instr.Always, Register: instr.Index16(regs.AH), ShortValue: 1,
	})

	fault, _ := c.Step()
	require.Equal(t, PrivilegeViolationFault, fault)
	assert.True(t, c.Regs.SRBitIsSet(regs.Zero), "an aborted instruction must not touch the flags it would have set")
}

func TestPrivilegeViolationLinkRegisterPointsAtFaultingInstruction(t *testing.T) {
	c, ram := newTestCPU(t, 0x200)
	c.Regs.SetSystemRAMOffset(0x100)

	vectorAddr := 0x100 + uint32(PrivilegeViolationFault)*4
	vecHi, vecLo := regs.ToSegmented(0x0080)
	require.NoError(t, ram.WriteWordBE(vectorAddr, vecHi))
	require.NoError(t, ram.WriteWordBE(vectorAddr+2, vecLo))
	writeInstruction(t, ram, 0x0080, instr.Data{
		Format: instr.Immediate, OpCode: instr.OpCode(0x0F),
		Condition: instr.Always, Value: uint16(instr.ReturnFromException),
	})

	writeInstruction(t, ram, 0, instr.Data{
		Format: instr.ShortImmediate, OpCode: instr.OpCode(0x08),
		Condition: instr.Always, Register: instr.Index16(regs.AH), ShortValue: 1,
	})

	fault, _ := c.Step()
	require.Equal(t, PrivilegeViolationFault, fault)
	require.Equal(t, uint32(0x0080), regs.ToFullAddress(c.Regs.PC()), "dispatch should have jumped to the handler")

	_, _ = c.Step() // RETE at the handler
	_, pl := c.Regs.PC()
	assert.Equal(t, uint16(0), pl, "RETE must resume at the faulting instruction, not past it")
}

func TestSegmentOverflowFaultOnPreDecrementUnderflow(t *testing.T) {
	c, ram := newTestCPU(t, 0x100)
	c.Regs.SetSRBit(regs.TrapOnAddressOverflow)
	c.Regs.Set(regs.AH, 0)
	c.Regs.Set(regs.AL, 0)
	writeInstruction(t, ram, 0, instr.Data{
		Format: instr.Register, OpCode: instr.StoreAutoIndex,
		Condition: instr.Always, R1: instr.Index16(regs.R1), Additional: 0, // pre-decrement
	})

	fault, _ := c.Step()
	assert.Equal(t, SegmentOverflowFault, fault)
}

func TestArbitrateAcceptsLevel5HardwareWhenIdle(t *testing.T) {
	c, _ := newTestCPU(t, 0x100)

	p := c.arbitrate(NoFault, 1<<4, nil)
	assert.Equal(t, pendingHardware, p.kind)
	assert.Equal(t, uint8(5), p.level)
}

func TestArbitrateRaisesLevel5ConflictOnReentrantLevel5(t *testing.T) {
	c, _ := newTestCPU(t, 0x100)
	c.exc.level = 5

	p := c.arbitrate(NoFault, 1<<4, nil)
	assert.Equal(t, pendingFault, p.kind)
	assert.Equal(t, vectorBase(Level5ConflictFault), p.vector)
}

func TestSegmentOverflowFaultOnPostIncrementOverflow(t *testing.T) {
	c, ram := newTestCPU(t, 0x100)
	c.Regs.SetSRBit(regs.TrapOnAddressOverflow)
	hi, lo := regs.ToSegmented(0x00FF_FFFE)
	c.Regs.Set(regs.AH, hi)
	c.Regs.Set(regs.AL, lo)
	writeInstruction(t, ram, 0, instr.Data{
		Format: instr.Register, OpCode: instr.LoadAutoIndex,
		Condition: instr.Always, R1: instr.Index16(regs.R1), Additional: 1, // post-increment
	})

	fault, _ := c.Step()
	assert.Equal(t, SegmentOverflowFault, fault)
}
