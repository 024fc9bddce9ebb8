package cpu

import (
	"sirc/alu"
	"sirc/bus"
	"sirc/instr"
	"sirc/regs"
)

// addressSpaceMask is the top of SIRC's 24-bit address space; an
// auto-indexed address register wraps past this under TrapOnAddressOverflow.
const addressSpaceMask uint32 = 0x00FF_FFFF

func (c *CPU) executeStage(d decoded) executed {
	data := d.data

	if !d.conditionTrue {
		return executed{}
	}

	switch {
	case data.OpCode.IsCoprocessorCall():
		return c.executeCoprocessorCall(data)
	case data.OpCode.IsALU():
		return c.executeALU(data)
	default:
		return c.executeMemRef(data)
	}
}

func (c *CPU) executeCoprocessorCall(d instr.Data) executed {
	sub, _ := d.SubOp()
	switch sub {
	case instr.ReturnFromException:
		return executed{isReturn: true}
	case instr.Reset:
		return executed{isReset: true}
	case instr.WaitForException:
		return executed{isWait: true}
	default:
		return executed{pending: softwareExceptionFor(d)}
	}
}

func (c *CPU) executeALU(d instr.Data) executed {
	op := d.OpCode.ALUOp()
	store := d.OpCode.StoresResult()
	carryIn := c.Regs.SRBitIsSet(regs.Carry)

	var a, b uint16
	var dest regs.Index
	var destOK bool
	var shiftType alu.ShiftType
	var shiftCount uint8

	switch d.Format {
	case instr.Immediate:
		if idx, ok := toRegIndex(d.Register); ok {
			dest, destOK = idx, true
			a = c.Regs.Get(idx)
		}
		b = d.Value
	case instr.ShortImmediate:
		if idx, ok := toRegIndex(d.Register); ok {
			dest, destOK = idx, true
			a = c.Regs.Get(idx)
		}
		b = uint16(d.ShortValue)
		shiftType = d.ShiftType
		shiftCount = d.ShiftCount
	case instr.Register:
		if idx, ok := toRegIndex(d.R1); ok {
			dest, destOK = idx, true
		}
		if idx, ok := toRegIndex(d.R2); ok {
			a = c.Regs.Get(idx)
		}
		if idx, ok := toRegIndex(d.R3); ok {
			b = c.Regs.Get(idx)
		}
		shiftType = d.ShiftType
		shiftCount = d.ShiftCount
	}

	result, flags := alu.Execute(op, a, b, carryIn, shiftType, shiftCount)

	return executed{
		aluResult: result,
		aluFlags:  flags,
		hasFlags:  true,
		destReg:   dest,
		destOK:    destOK && store,
	}
}

func (c *CPU) executeMemRef(d instr.Data) executed {
	ah, al := c.Regs.Address()
	base := regs.ToFullAddress(ah, al)

	switch d.OpCode {
	case instr.Halt:
		return executed{isHalt: true}

	case instr.LoadImmediateValue:
		// register = literal value, no bus access at all - distinct from
		// LoadImmediate's register = mem[(a)+displacement].
		dest, ok := toRegIndex(d.Register)
		return executed{destReg: dest, destOK: ok, aluResult: d.Value}

	case instr.StoreImmediate, instr.LoadImmediate, instr.LoadEffectiveAddressImmediate:
		offset := int32(int16(d.Value))
		addr := uint32(int64(base) + int64(offset))
		return c.memRefResult(d, addr, nil)

	case instr.StoreRegister, instr.LoadRegister, instr.LoadEffectiveAddressRegister:
		off, _ := toRegIndex(d.R2)
		offset := int32(int16(c.Regs.Get(off)))
		addr := uint32(int64(base) + int64(offset))
		return c.memRefResult(d, addr, nil)

	case instr.StoreAutoIndex, instr.LoadAutoIndex:
		trapOnOverflow := c.Regs.SRBitIsSet(regs.TrapOnAddressOverflow)
		if d.Additional&0x1 == 0 {
			// pre-decrement
			if base < 2 && trapOnOverflow {
				return executed{fault: SegmentOverflowFault}
			}
			newBase := base - 2
			hi, lo := regs.ToSegmented(newBase)
			return c.memRefResult(d, newBase, &addrUpdate{hi, lo})
		}
		// post-increment: memory sees the unmodified base, the address
		// register advances for the next instruction.
		if base > addressSpaceMask-2 && trapOnOverflow {
			return executed{fault: SegmentOverflowFault}
		}
		ex := c.memRefResult(d, base, nil)
		newBase := base + 2
		hi, lo := regs.ToSegmented(newBase)
		ex.addrUpdate = &addrUpdate{hi, lo}
		return ex

	case instr.BranchImmediate, instr.JumpSubroutineImmediate:
		ph, pl := c.Regs.PC()
		pc := regs.ToFullAddress(ph, pl)
		offset := int32(int16(d.Value)) * 2
		target := uint32(int64(pc) + int64(offset))
		return executed{branch: true, branchTarget: target, saveLink: d.OpCode == instr.JumpSubroutineImmediate}

	case instr.BranchRegister, instr.JumpSubroutineRegister:
		reg, _ := toRegIndex(d.R1)
		lo := c.Regs.Get(reg)
		target := regs.ToFullAddress(ah, lo)
		return executed{branch: true, branchTarget: target, saveLink: d.OpCode == instr.JumpSubroutineRegister}

	default:
		return executed{}
	}
}

// addrUpdate carries a new (high, low) pair for the address register, used
// by the auto-indexing addressing mode.
type addrUpdate struct {
	high, low uint16
}

func (c *CPU) memRefResult(d instr.Data, addr uint32, upd *addrUpdate) executed {
	ex := executed{effAddr: addr, addrUpdate: upd}
	switch d.OpCode {
	case instr.StoreImmediate, instr.StoreRegister, instr.StoreAutoIndex:
		idx, ok := toRegIndex(d.Register)
		if d.Format == instr.Register {
			idx, ok = toRegIndex(d.R1)
		}
		if ok {
			ex.memOp = bus.Write
			ex.memWriteValue = c.Regs.Get(idx)
		}
	case instr.LoadImmediate, instr.LoadRegister, instr.LoadAutoIndex:
		ex.memOp = bus.Read
		if d.Format == instr.Register {
			ex.destReg, ex.destOK = toRegIndex(d.R1)
		} else {
			ex.destReg, ex.destOK = toRegIndex(d.Register)
		}
	case instr.LoadEffectiveAddressImmediate, instr.LoadEffectiveAddressRegister:
		ex.loadEffectiveAddress = true
	}
	return ex
}
