package asm

import (
	"fmt"

	"sirc/alu"
	"sirc/instr"
	"sirc/object"
	"sirc/regs"
)

// aluImmediateStore/aluImmediateNoStore/shiftImmediate are the
// ShortImmediate-format mnemonics (dest, #value[, ...]) for the
// ALU-immediate op-code family; aluRegisterStore/aluRegisterNoStore/
// shiftRegister are their Register-format counterparts.
var aluImmediateStore = map[string]alu.Op{
	"ADDI": alu.Add, "ADDCI": alu.Addc, "SUBI": alu.Sub, "SUBCI": alu.Subc,
	"ANDI": alu.And, "ORRI": alu.Or, "XORI": alu.Xor,
}

var aluImmediateNoStore = map[string]alu.Op{"CMPI": alu.Sub}

var shiftImmediate = map[string]alu.ShiftType{
	"LSLI": alu.LSL, "LSRI": alu.LSR, "ASLI": alu.ASL, "ASRI": alu.ASR,
	"RTLI": alu.RTL, "RTRI": alu.RTR,
}

var aluRegisterStore = map[string]alu.Op{
	"ADDR": alu.Add, "ADDCR": alu.Addc, "SUBR": alu.Sub, "SUBCR": alu.Subc,
	"ANDR": alu.And, "ORRR": alu.Or, "XORR": alu.Xor,
}

var aluRegisterNoStore = map[string]alu.Op{"CMPR": alu.Sub}

var shiftRegister = map[string]alu.ShiftType{
	"LSLR": alu.LSL, "LSRR": alu.LSR, "ASLR": alu.ASL, "ASRR": alu.ASR,
	"RTLR": alu.RTL, "RTRR": alu.RTR,
}

// aluOpCode derives the low nibble of an ALU op-code: bit 3 set if the
// instruction commits its result (everything but the CMP family), low 3
// bits the ALU operation.
func aluOpCode(op alu.Op, store bool) instr.OpCode {
	code := instr.OpCode(op & 0x7)
	if store {
		code |= 0x8
	}
	return code
}

// buildInstruction assembles one TokenInstruction into its encoded form.
// offset is the byte offset this instruction will occupy, needed to
// compute PC-relative branch displacements against locally-known labels.
//
// Unlike a .DB/.DW/.DQ slot, an instruction's fields are bit-packed rather
// than byte-aligned (instr.Encode), so a cross-unit reference into one can't
// be patched by overwriting raw bytes the way a data slot can. A branch to
// a label this unit doesn't define is still allowed: buildBranch leaves the
// displacement field zeroed and returns a Packed SymbolRef, and the linker
// resolves it by decoding the instruction, substituting the displacement
// and re-encoding (spec.md §4.J). Every other instruction operand that
// names an @symbol (LOAD r,@label and friends) still requires the label to
// be defined somewhere in this same file, since those ref types have
// nowhere but this bit-packed word to live and the linker has no
// decode-reencode path for them yet.
// buildInstruction's second return value is non-nil exactly when the
// instruction is a branch whose target label isn't defined in this
// translation unit: the caller must record it as a SymbolRef for the linker
// to patch (decode-patch-reencode, since the displacement lives in a
// bit-packed field) instead of treating it as resolved here.
func buildInstruction(tok Token, offset uint32, labels map[string]uint32, equ map[string]int64) (instr.Data, *object.SymbolRef, error) {
	cond := instr.Always
	if tok.Condition != "" {
		c, ok := instr.LookupCondition(tok.Condition)
		if !ok {
			return instr.Data{}, nil, fmt.Errorf("%s:%d: unknown condition suffix %q", tok.File, tok.Line, tok.Condition)
		}
		cond = c
	}

	switch {
	case tok.Mnemonic == "HALT":
		return instr.Data{Format: instr.Immediate, OpCode: instr.Halt, Condition: cond}, nil, nil

	case tok.Mnemonic == "WAIT", tok.Mnemonic == "RETE", tok.Mnemonic == "RSET":
		sub := map[string]instr.CoprocessorSubOp{
			"WAIT": instr.WaitForException, "RETE": instr.ReturnFromException, "RSET": instr.Reset,
		}[tok.Mnemonic]
		return instr.Data{Format: instr.Immediate, OpCode: instr.OpCode(0x0F), Condition: cond, Value: uint16(sub)}, nil, nil

	case tok.Mnemonic == "EXCP" || tok.Mnemonic == "HWEX":
		if len(tok.Operands) != 1 {
			return instr.Data{}, nil, fmt.Errorf("%s:%d: %s takes exactly one operand", tok.File, tok.Line, tok.Mnemonic)
		}
		v, err := resolveLocalScalar(tok.Operands[0], labels, equ)
		if err != nil {
			return instr.Data{}, nil, fmt.Errorf("%s:%d: %w", tok.File, tok.Line, err)
		}
		sub := instr.SoftwareException
		if tok.Mnemonic == "HWEX" {
			sub = instr.HardwareException
		}
		return instr.Data{
			Format: instr.Immediate, OpCode: instr.OpCode(0x0F), Condition: cond,
			Value: uint16(sub) | (uint16(v&0xFF) << 8),
		}, nil, nil

	case has(aluImmediateStore, tok.Mnemonic):
		d, err := buildALUImmediate(tok, cond, aluImmediateStore[tok.Mnemonic], true, labels, equ)
		return d, nil, err
	case has(aluImmediateNoStore, tok.Mnemonic):
		d, err := buildALUImmediate(tok, cond, aluImmediateNoStore[tok.Mnemonic], false, labels, equ)
		return d, nil, err
	case has(shiftImmediate, tok.Mnemonic):
		d, err := buildShiftImmediate(tok, cond, shiftImmediate[tok.Mnemonic], labels, equ)
		return d, nil, err

	case has(aluRegisterStore, tok.Mnemonic):
		d, err := buildALURegister(tok, cond, aluRegisterStore[tok.Mnemonic], true)
		return d, nil, err
	case has(aluRegisterNoStore, tok.Mnemonic):
		d, err := buildALURegister(tok, cond, aluRegisterNoStore[tok.Mnemonic], false)
		return d, nil, err
	case has(shiftRegister, tok.Mnemonic):
		d, err := buildShiftRegister(tok, cond, shiftRegister[tok.Mnemonic])
		return d, nil, err

	case tok.Mnemonic == "STOR":
		d, err := buildStore(tok, cond)
		return d, nil, err
	case tok.Mnemonic == "LOAD":
		d, err := buildLoad(tok, cond, labels, equ)
		return d, nil, err
	case tok.Mnemonic == "LDEA":
		d, err := buildLDEA(tok, cond)
		return d, nil, err

	case tok.Mnemonic == "BRAN":
		return buildBranch(tok, cond, offset, labels, instr.BranchImmediate, instr.BranchRegister)
	case tok.Mnemonic == "LJSR", tok.Mnemonic == "BRSR":
		return buildBranch(tok, cond, offset, labels, instr.JumpSubroutineImmediate, instr.JumpSubroutineRegister)

	default:
		return instr.Data{}, nil, fmt.Errorf("%s:%d: unknown mnemonic %q", tok.File, tok.Line, tok.Mnemonic)
	}
}

// has is a generic membership test; alu.Op and alu.ShiftType both have a
// zero-valued member (Add, ShiftNone) so a plain map lookup can't tell
// "maps to the zero op" from "not in this table" without the comma-ok form.
func has[K comparable, V any](table map[K]V, key K) bool {
	_, ok := table[key]
	return ok
}

func buildALUImmediate(tok Token, cond instr.Condition, op alu.Op, store bool, labels map[string]uint32, equ map[string]int64) (instr.Data, error) {
	if len(tok.Operands) != 2 {
		return instr.Data{}, fmt.Errorf("%s:%d: %s takes dest, #value", tok.File, tok.Line, tok.Mnemonic)
	}
	dest, err := parseRegisterOperand(tok.Operands[0])
	if err != nil {
		return instr.Data{}, fmt.Errorf("%s:%d: %w", tok.File, tok.Line, err)
	}
	v, err := resolveLocalScalar(tok.Operands[1], labels, equ)
	if err != nil {
		return instr.Data{}, fmt.Errorf("%s:%d: %w", tok.File, tok.Line, err)
	}
	return instr.Data{
		Format: instr.ShortImmediate, OpCode: aluOpCode(op, store), Condition: cond,
		Register: instr.Index16(dest), ShortValue: uint8(v),
	}, nil
}

func buildShiftImmediate(tok Token, cond instr.Condition, st alu.ShiftType, labels map[string]uint32, equ map[string]int64) (instr.Data, error) {
	if len(tok.Operands) != 2 {
		return instr.Data{}, fmt.Errorf("%s:%d: %s takes dest, #count", tok.File, tok.Line, tok.Mnemonic)
	}
	dest, err := parseRegisterOperand(tok.Operands[0])
	if err != nil {
		return instr.Data{}, fmt.Errorf("%s:%d: %w", tok.File, tok.Line, err)
	}
	v, err := resolveLocalScalar(tok.Operands[1], labels, equ)
	if err != nil {
		return instr.Data{}, fmt.Errorf("%s:%d: %w", tok.File, tok.Line, err)
	}
	return instr.Data{
		Format: instr.ShortImmediate, OpCode: aluOpCode(alu.Shift, true), Condition: cond,
		Register: instr.Index16(dest), ShiftOp: true, ShiftType: st, ShiftCount: uint8(v) & 0xF,
	}, nil
}

func buildALURegister(tok Token, cond instr.Condition, op alu.Op, store bool) (instr.Data, error) {
	var want int
	if store {
		want = 3
	} else {
		want = 2
	}
	if len(tok.Operands) != want {
		return instr.Data{}, fmt.Errorf("%s:%d: %s takes %d register operands", tok.File, tok.Line, tok.Mnemonic, want)
	}
	regsIn := make([]regs.Index, len(tok.Operands))
	for i, o := range tok.Operands {
		r, err := parseRegisterOperand(o)
		if err != nil {
			return instr.Data{}, fmt.Errorf("%s:%d: %w", tok.File, tok.Line, err)
		}
		regsIn[i] = r
	}
	d := instr.Data{Format: instr.Register, OpCode: aluOpCode(op, store) | 0x20, Condition: cond}
	if store {
		d.R1, d.R2, d.R3 = instr.Index16(regsIn[0]), instr.Index16(regsIn[1]), instr.Index16(regsIn[2])
	} else {
		d.R2, d.R3 = instr.Index16(regsIn[0]), instr.Index16(regsIn[1])
	}
	return d, nil
}

func buildShiftRegister(tok Token, cond instr.Condition, st alu.ShiftType) (instr.Data, error) {
	if len(tok.Operands) != 3 {
		return instr.Data{}, fmt.Errorf("%s:%d: %s takes dest, src, #count", tok.File, tok.Line, tok.Mnemonic)
	}
	dest, err := parseRegisterOperand(tok.Operands[0])
	if err != nil {
		return instr.Data{}, fmt.Errorf("%s:%d: %w", tok.File, tok.Line, err)
	}
	src, err := parseRegisterOperand(tok.Operands[1])
	if err != nil {
		return instr.Data{}, fmt.Errorf("%s:%d: %w", tok.File, tok.Line, err)
	}
	v, err := resolveLocalScalar(tok.Operands[2], nil, nil)
	if err != nil {
		return instr.Data{}, fmt.Errorf("%s:%d: shift count must be a literal #value", tok.File, tok.Line)
	}
	return instr.Data{
		Format: instr.Register, OpCode: aluOpCode(alu.Shift, true) | 0x20, Condition: cond,
		R1: instr.Index16(dest), R2: instr.Index16(src), ShiftOp: true, ShiftType: st, ShiftCount: uint8(v) & 0xF,
	}, nil
}

func buildStore(tok Token, cond instr.Condition) (instr.Data, error) {
	if len(tok.Operands) != 2 {
		return instr.Data{}, fmt.Errorf("%s:%d: STOR takes an address operand and a source register", tok.File, tok.Line)
	}
	addr, err := parseOperand(tok.Operands[0])
	if err != nil {
		return instr.Data{}, fmt.Errorf("%s:%d: %w", tok.File, tok.Line, err)
	}
	src, err := parseRegisterOperand(tok.Operands[1])
	if err != nil {
		return instr.Data{}, fmt.Errorf("%s:%d: %w", tok.File, tok.Line, err)
	}
	switch addr.kind {
	case opIndirectImmediate:
		return instr.Data{Format: instr.Immediate, OpCode: instr.StoreImmediate, Condition: cond, Register: instr.Index16(src), Value: uint16(int16(addr.imm))}, nil
	case opIndirectRegister:
		return instr.Data{Format: instr.Register, OpCode: instr.StoreRegister, Condition: cond, R1: instr.Index16(src), R2: instr.Index16(addr.indirectReg)}, nil
	case opPreDecrement:
		return instr.Data{Format: instr.Register, OpCode: instr.StoreAutoIndex, Condition: cond, R1: instr.Index16(src), Additional: 0}, nil
	case opPostIncrement:
		return instr.Data{Format: instr.Register, OpCode: instr.StoreAutoIndex, Condition: cond, R1: instr.Index16(src), Additional: 1}, nil
	default:
		return instr.Data{}, fmt.Errorf("%s:%d: STOR's first operand must be an indirect address, got %q", tok.File, tok.Line, tok.Operands[0])
	}
}

func buildLoad(tok Token, cond instr.Condition, labels map[string]uint32, equ map[string]int64) (instr.Data, error) {
	if len(tok.Operands) != 2 {
		return instr.Data{}, fmt.Errorf("%s:%d: LOAD takes a destination register and a source", tok.File, tok.Line)
	}
	dest, err := parseRegisterOperand(tok.Operands[0])
	if err != nil {
		return instr.Data{}, fmt.Errorf("%s:%d: %w", tok.File, tok.Line, err)
	}
	src, err := parseOperand(tok.Operands[1])
	if err != nil {
		return instr.Data{}, fmt.Errorf("%s:%d: %w", tok.File, tok.Line, err)
	}
	switch src.kind {
	case opImmediate:
		return instr.Data{Format: instr.Immediate, OpCode: instr.LoadImmediateValue, Condition: cond, Register: instr.Index16(dest), Value: uint16(src.imm)}, nil
	case opPlaceholder:
		v, ok := equ[src.placeholder]
		if !ok {
			return instr.Data{}, fmt.Errorf("%s:%d: unresolved placeholder $%s", tok.File, tok.Line, src.placeholder)
		}
		return instr.Data{Format: instr.Immediate, OpCode: instr.LoadImmediateValue, Condition: cond, Register: instr.Index16(dest), Value: uint16(v)}, nil
	case opSymbol:
		off, ok := labels[src.symbol]
		if !ok {
			return instr.Data{}, fmt.Errorf("%s:%d: undefined label %q (cross-unit addresses must be loaded from a data slot, not a LOAD immediate)", tok.File, tok.Line, src.symbol)
		}
		return instr.Data{Format: instr.Immediate, OpCode: instr.LoadImmediateValue, Condition: cond, Register: instr.Index16(dest), Value: uint16(off)}, nil
	case opIndirectImmediate:
		return instr.Data{Format: instr.Immediate, OpCode: instr.LoadImmediate, Condition: cond, Register: instr.Index16(dest), Value: uint16(int16(src.imm))}, nil
	case opIndirectRegister:
		return instr.Data{Format: instr.Register, OpCode: instr.LoadRegister, Condition: cond, R1: instr.Index16(dest), R2: instr.Index16(src.indirectReg)}, nil
	case opPreDecrement:
		return instr.Data{Format: instr.Register, OpCode: instr.LoadAutoIndex, Condition: cond, R1: instr.Index16(dest), Additional: 0}, nil
	case opPostIncrement:
		return instr.Data{Format: instr.Register, OpCode: instr.LoadAutoIndex, Condition: cond, R1: instr.Index16(dest), Additional: 1}, nil
	default:
		return instr.Data{}, fmt.Errorf("%s:%d: unsupported LOAD source %q", tok.File, tok.Line, tok.Operands[1])
	}
}

func buildLDEA(tok Token, cond instr.Condition) (instr.Data, error) {
	if len(tok.Operands) != 1 {
		return instr.Data{}, fmt.Errorf("%s:%d: LDEA takes one indirect address operand", tok.File, tok.Line)
	}
	addr, err := parseOperand(tok.Operands[0])
	if err != nil {
		return instr.Data{}, fmt.Errorf("%s:%d: %w", tok.File, tok.Line, err)
	}
	switch addr.kind {
	case opIndirectImmediate:
		return instr.Data{Format: instr.Immediate, OpCode: instr.LoadEffectiveAddressImmediate, Condition: cond, Value: uint16(int16(addr.imm))}, nil
	case opIndirectRegister:
		return instr.Data{Format: instr.Register, OpCode: instr.LoadEffectiveAddressRegister, Condition: cond, R2: instr.Index16(addr.indirectReg)}, nil
	default:
		return instr.Data{}, fmt.Errorf("%s:%d: LDEA requires (offset,a) or (rN,a)", tok.File, tok.Line)
	}
}

// buildBranch resolves operand against labels known so far in this unit. A
// symbol defined locally is folded straight into the word-offset Value
// field; one that isn't defined here is left as a zero placeholder and
// handed back as a Packed object.SymbolRef{Type: Offset} for the linker to
// resolve against the combined symbol table once every unit is concatenated
// (spec.md §4.J's decode-patch-reencode step).
func buildBranch(tok Token, cond instr.Condition, offset uint32, labels map[string]uint32, immOp, regOp instr.OpCode) (instr.Data, *object.SymbolRef, error) {
	if len(tok.Operands) != 1 {
		return instr.Data{}, nil, fmt.Errorf("%s:%d: %s takes one target operand", tok.File, tok.Line, tok.Mnemonic)
	}
	operand, err := parseOperand(tok.Operands[0])
	if err != nil {
		return instr.Data{}, nil, fmt.Errorf("%s:%d: %w", tok.File, tok.Line, err)
	}
	switch operand.kind {
	case opRegister:
		return instr.Data{Format: instr.Register, OpCode: regOp, Condition: cond, R1: instr.Index16(operand.reg)}, nil, nil
	case opImmediate:
		return instr.Data{Format: instr.Immediate, OpCode: immOp, Condition: cond, Value: uint16(int16(operand.imm))}, nil, nil
	case opSymbol:
		target, ok := labels[operand.symbol]
		if !ok {
			ref := &object.SymbolRef{Name: operand.symbol, Type: object.Offset, Location: offset, Packed: true}
			return instr.Data{Format: instr.Immediate, OpCode: immOp, Condition: cond}, ref, nil
		}
		delta := int64(target) - int64(offset+4)
		if delta%2 != 0 {
			return instr.Data{}, nil, fmt.Errorf("%s:%d: branch target %q is not word-aligned relative to this instruction", tok.File, tok.Line, operand.symbol)
		}
		wordOffset := delta / 2
		if wordOffset < -0x8000 || wordOffset > 0x7FFF {
			return instr.Data{}, nil, fmt.Errorf("%s:%d: branch target %q is out of range", tok.File, tok.Line, operand.symbol)
		}
		return instr.Data{Format: instr.Immediate, OpCode: immOp, Condition: cond, Value: uint16(int16(wordOffset))}, nil, nil
	default:
		return instr.Data{}, nil, fmt.Errorf("%s:%d: %s requires a register or a branch target", tok.File, tok.Line, tok.Mnemonic)
	}
}

func parseRegisterOperand(tok string) (regs.Index, error) {
	o, err := parseOperand(tok)
	if err != nil {
		return 0, err
	}
	if o.kind != opRegister {
		return 0, fmt.Errorf("expected a register, got %q", tok)
	}
	return o.reg, nil
}

// resolveLocalScalar resolves an operand that must be fully known within
// this translation unit: a literal, an EQU placeholder, or a label already
// defined earlier or later in the same file. Used anywhere the resolved
// value has to land in a bit-packed instruction field, which can't be
// patched by the linker after the fact (see buildInstruction).
func resolveLocalScalar(tok string, labels map[string]uint32, equ map[string]int64) (int64, error) {
	o, err := parseOperand(tok)
	if err != nil {
		return 0, err
	}
	switch o.kind {
	case opImmediate:
		return o.imm, nil
	case opPlaceholder:
		v, ok := equ[o.placeholder]
		if !ok {
			return 0, fmt.Errorf("unresolved placeholder $%s", o.placeholder)
		}
		return v, nil
	case opSymbol:
		v, ok := labels[o.symbol]
		if !ok {
			return 0, fmt.Errorf("undefined label %q", o.symbol)
		}
		return int64(v), nil
	default:
		return 0, fmt.Errorf("expected an immediate, placeholder or local label, got %q", tok)
	}
}
