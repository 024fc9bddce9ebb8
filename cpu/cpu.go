// Package cpu implements the SIRC pipeline: fetch, decode, execute, memory
// access and write-back run as a straight-line sequence once per Step call
// (the architecture's five named stages are modeled as explicit
// intermediate values passed from one stage function to the next, rather
// than as overlapping hardware pipeline slots - spec.md §4.E describes the
// stages functionally, not as a superscalar hazard model), plus the
// exception coprocessor that arbitrates faults, hardware interrupts and
// software exceptions between cycles.
package cpu

import (
	"sirc/alu"
	"sirc/bus"
	"sirc/instr"
	"sirc/regs"
)

// CPU is one SIRC core: its register file, the bus it fetches/loads/stores
// through, and the exception coprocessor's internal state.
type CPU struct {
	Regs *regs.File
	Bus  *bus.Bus

	exc exceptionUnit

	// LastFault/LastAddr are exported for callers and tests; they describe
	// the most recently completed Step, not the one about to run.
	LastFault           Fault
	LastAddr            bus.Assertions
	InstructionsRetired uint64
}

// New returns a CPU with a fresh power-on register file wired to bus b.
func New(b *bus.Bus) *CPU {
	return &CPU{Regs: regs.New(), Bus: b}
}

// decoded is the pipeline's fetch/decode intermediate: the raw word plus
// its parsed form and whether this cycle's condition check passed.
type decoded struct {
	word          uint32
	data          instr.Data
	conditionTrue bool
	fault         Fault
}

// executed is the decode/execute intermediate: the ALU result (if any), the
// flags it produced, the effective address and memory operation for
// memory-reference instructions, and the destination register write-back
// eventually commits.
type executed struct {
	aluResult uint16
	aluFlags  alu.Flags
	hasFlags  bool

	destReg regs.Index
	destOK  bool

	effAddr       uint32
	memOp         bus.Op
	memWriteValue uint16
	addrUpdate    *addrUpdate

	loadEffectiveAddress bool

	branch       bool
	branchTarget uint32
	saveLink     bool

	isHalt   bool
	pending  *pending
	isReturn bool
	isReset  bool
	isWait   bool

	// fault is set when the execute stage itself detects an abort-class
	// condition (SegmentOverflowFault on a wrapping auto-index), as opposed
	// to one raised by the memory or write-back stage.
	fault Fault
}

// Step retires exactly one instruction (or one exception dispatch, if one
// is pending and higher priority than the next fetch). It returns the
// fault raised this cycle, if any, and the bus assertions the final memory
// cycle produced (useful for driving ExitSimulation checks from the
// driver).
func (c *CPU) Step() (Fault, bus.Assertions) {
	if c.exc.waiting {
		// WaitForException still polls the bus every cycle so a hardware
		// interrupt can wake it, it just doesn't fetch.
		out := c.Bus.PollAll(bus.Assertions{})
		if p := c.arbitrate(NoFault, out.InterruptAssertion, nil); p.kind != pendingNone {
			c.dispatch(p)
		}
		return NoFault, out
	}

	pc := regs.ToFullAddress(c.Regs.PC())
	if pc%2 != 0 {
		return c.fault(AlignmentFault)
	}

	word, fetchOut := c.fetch(pc)
	if fetchOut.BusError {
		return c.fault(BusErrorFault)
	}

	d := c.decodeStage(word)
	if d.fault != NoFault {
		return c.fault(d.fault)
	}

	c.Regs.SetPC(regs.ToSegmented(pc + 4))

	ex := c.executeStage(d)

	if ex.fault != NoFault {
		c.Regs.SetPC(regs.ToSegmented(pc))
		return c.fault(ex.fault)
	}
	if ex.isReset {
		c.reset()
		return NoFault, bus.Assertions{}
	}
	if ex.isReturn {
		c.returnFromException()
		return NoFault, bus.Assertions{}
	}
	if ex.isWait {
		c.exc.waiting = true
		return NoFault, bus.Assertions{}
	}

	memOut, fault := c.memoryStage(d, ex)
	if fault != NoFault {
		c.Regs.SetPC(regs.ToSegmented(pc))
		return c.fault(fault)
	}

	if wbFault := c.writeBackStage(d, ex, memOut); wbFault != NoFault {
		c.Regs.SetPC(regs.ToSegmented(pc))
		return c.fault(wbFault)
	}
	c.InstructionsRetired++

	arb := c.arbitrate(NoFault, memOut.InterruptAssertion, ex.pending)
	if arb.kind != pendingNone {
		c.dispatch(arb)
	}

	c.LastAddr = memOut
	return NoFault, memOut
}

func (c *CPU) fault(f Fault) (Fault, bus.Assertions) {
	c.LastFault = f
	c.dispatch(pending{kind: pendingFault, vector: vectorBase(f)})
	return f, bus.Assertions{}
}

func (c *CPU) reset() {
	*c.Regs = *regs.New()
	c.exc = exceptionUnit{}
}

// fetch reads the 32-bit instruction word at addr, asserting
// InstructionFetch so a debug-aware device can tell fetches from data
// accesses.
func (c *CPU) fetch(addr uint32) (uint32, bus.Assertions) {
	hi := c.Bus.PollAll(bus.Assertions{Address: addr, Op: bus.Read, InstructionFetch: true})
	lo := c.Bus.PollAll(bus.Assertions{Address: addr + 2, Op: bus.Read, InstructionFetch: true})
	return uint32(hi.Data)<<16 | uint32(lo.Data), bus.Assertions{BusError: hi.BusError || lo.BusError}
}

func (c *CPU) decodeStage(word uint32) decoded {
	data := instr.Decode(word)
	if data.OpCode.IsReserved() {
		return decoded{word: word, data: data, fault: InvalidOpCodeFault}
	}
	return decoded{word: word, data: data, conditionTrue: data.Condition.Eval(c.Regs)}
}

// loadWordPrivileged loads a word bypassing the normal privilege check,
// used by the exception coprocessor to read the vector table regardless of
// the CPU's current protection state.
func (c *CPU) loadWordPrivileged(addr uint32) uint16 {
	out := c.Bus.PollAll(bus.Assertions{Address: addr, Op: bus.Read})
	return out.Data
}

func toRegIndex(i instr.Index16) (regs.Index, bool) {
	if uint8(i) < uint8(regs.NumRegisters) {
		return regs.Index(i), true
	}
	return 0, false
}
