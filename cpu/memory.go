package cpu

import (
	"sirc/alu"
	"sirc/bus"
	"sirc/regs"
)

// memoryStage performs the bus cycle (if any) ex describes, and applies the
// address-register and program-counter side effects (pre/post increment,
// branch target, subroutine link save, effective-address load) that belong
// to this stage rather than write-back.
func (c *CPU) memoryStage(d decoded, ex executed) (bus.Assertions, Fault) {
	var out bus.Assertions

	if ex.addrUpdate != nil {
		c.Regs.Set(regs.AH, ex.addrUpdate.high)
		c.Regs.Set(regs.AL, ex.addrUpdate.low)
	}

	if ex.loadEffectiveAddress {
		hi, lo := regs.ToSegmented(ex.effAddr)
		c.Regs.Set(regs.AH, hi)
		c.Regs.Set(regs.AL, lo)
	}

	switch ex.memOp {
	case bus.Read:
		out = c.Bus.PollAll(bus.Assertions{Address: ex.effAddr, Op: bus.Read})
		if out.BusError {
			return out, BusErrorFault
		}
	case bus.Write:
		out = c.Bus.PollAll(bus.Assertions{Address: ex.effAddr, Op: bus.Write, Data: ex.memWriteValue})
		if out.BusError {
			return out, BusErrorFault
		}
	}

	if ex.branch {
		if ex.saveLink {
			ph, pl := c.Regs.PC()
			c.Regs.Set(regs.LH, ph)
			c.Regs.Set(regs.LL, pl)
		}
		hi, lo := regs.ToSegmented(ex.branchTarget)
		c.Regs.SetPC(hi, lo)
	}

	if ex.isHalt {
		out.ExitSimulation = true
	}

	return out, NoFault
}

// writeBackStage commits the ALU/load result to its destination register
// and folds the ALU's flags into the status register. A write to a
// protected (high-half) register slot from outside protected mode is a
// privilege violation rather than a silently-dropped write.
func (c *CPU) writeBackStage(d decoded, ex executed, memOut bus.Assertions) Fault {
	if ex.destOK && ex.destReg.IsHighHalf() && !c.Regs.SRBitIsSet(regs.ProtectedMode) {
		return PrivilegeViolationFault
	}

	if ex.hasFlags {
		c.commitFlags(ex.aluFlags)
	}

	if !ex.destOK {
		return NoFault
	}

	value := ex.aluResult
	if ex.memOp == bus.Read {
		value = memOut.Data
	}

	c.Regs.Set(ex.destReg, value)
	return NoFault
}

func (c *CPU) commitFlags(f alu.Flags) {
	c.Regs.AssignSRBit(regs.Carry, f.Carry)
	c.Regs.AssignSRBit(regs.Overflow, f.Overflow)
	c.Regs.AssignSRBit(regs.Zero, f.Zero)
	c.Regs.AssignSRBit(regs.Negative, f.Negative)
}
