package asm

import (
	"fmt"

	"sirc/bits"
	"sirc/dbg"
	"sirc/instr"
	"sirc/object"
	"sirc/regs"
)

// Assemble turns SIRC assembly source into a relocatable object.Definition.
// It runs two passes over the token stream the way the teacher's compiler
// (vm/compile.go) resolves its own forward label references: pass one
// walks every token purely to learn each label's and EQU placeholder's
// value without emitting anything, pass two re-walks emitting bytes, now
// able to resolve any @symbol or $placeholder defined later in the file.
//
// Program holds one little-endian 16-bit word per slot half, the format
// mem.Segment.LoadImage expects (bits.WordToBytesLE); an instruction or
// data word's logical high half lands at offset, its low half at offset+2.
func Assemble(file, src string) (*object.Definition, error) {
	tokens, err := Tokenize(file, src)
	if err != nil {
		return nil, err
	}

	labels, equ, size, err := layout(tokens)
	if err != nil {
		return nil, err
	}

	def := object.New()
	def.Program = make([]byte, size)
	def.Debug = dbg.NewInfo()
	for name, off := range labels {
		def.Symbols[name] = off
	}

	var offset uint32
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenLabel, TokenEqu:
			continue
		case TokenOrigin:
			v, err := parseNumber(tok.OriginValue)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", tok.File, tok.Line, err)
			}
			offset = uint32(v) * 2
		case TokenData:
			if err := emitData(def, tok, offset, labels, equ); err != nil {
				return nil, err
			}
			offset += 4
		case TokenInstruction:
			data, ref, err := buildInstruction(tok, offset, labels, equ)
			if err != nil {
				return nil, err
			}
			word, err := instr.Encode(data)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", tok.File, tok.Line, err)
			}
			putSlot(def.Program, offset, word)
			if ref != nil {
				def.SymbolRefs = append(def.SymbolRefs, *ref)
			}
			if err := def.Debug.Record(offset, dbg.Location{File: tok.File, Line: tok.Line, Column: 1}); err != nil {
				return nil, fmt.Errorf("%s:%d: %w", tok.File, tok.Line, err)
			}
			offset += 4
		}
	}

	return def, nil
}

// layout is Assemble's first pass: it computes every label's byte offset
// and every EQU placeholder's value, and the final program size, without
// emitting any bytes. Instructions and data words both occupy one 4-byte
// slot regardless of a .DB/.DW's narrower width (spec.md §4.I: data
// directives are zero-padded to a full slot).
func layout(tokens []Token) (labels map[string]uint32, equ map[string]int64, size uint32, err error) {
	labels = make(map[string]uint32)
	equ = make(map[string]int64)
	var offset uint32

	for _, tok := range tokens {
		switch tok.Kind {
		case TokenLabel:
			if _, exists := labels[tok.Label]; exists {
				return nil, nil, 0, fmt.Errorf("%s:%d: label %q already defined", tok.File, tok.Line, tok.Label)
			}
			labels[tok.Label] = offset
		case TokenOrigin:
			v, perr := parseNumber(tok.OriginValue)
			if perr != nil {
				return nil, nil, 0, fmt.Errorf("%s:%d: %w", tok.File, tok.Line, perr)
			}
			offset = uint32(v) * 2
		case TokenEqu:
			if _, exists := equ[tok.EquName]; exists {
				return nil, nil, 0, fmt.Errorf("%s:%d: placeholder $%s already defined", tok.File, tok.Line, tok.EquName)
			}
			v, perr := parseNumber(tok.EquValue)
			if perr != nil {
				return nil, nil, 0, fmt.Errorf("%s:%d: %w", tok.File, tok.Line, perr)
			}
			equ[tok.EquName] = v
		case TokenData, TokenInstruction:
			offset += 4
		}
		if offset > size {
			size = offset
		}
	}
	return labels, equ, size, nil
}

// putSlot writes a 32-bit word into program's 4-byte slot at offset as two
// little-endian 16-bit halves (high half first), matching what
// mem.Segment.LoadImage expects to byte-swap back into the bus's
// big-endian internal form.
func putSlot(program []byte, offset uint32, word uint32) {
	hi := bits.WordToBytesLE(uint16(word >> 16))
	lo := bits.WordToBytesLE(uint16(word))
	program[offset], program[offset+1] = hi[0], hi[1]
	program[offset+2], program[offset+3] = lo[0], lo[1]
}

// emitData resolves and writes one .DB/.DW/.DQ directive's value into its
// 4-byte slot. A plain number or placeholder is packed as a flat
// width-masked integer (high half zero unless width is 4). A @symbol
// naming a full 4-byte slot with no suffix is packed as an address-register
// pair via regs.ToSegmented, since that is what LDEA/LOAD's auto-index
// forms expect to read out of it; the .u/.l suffixes pick one already-
// segmented half for a 2-byte slot.
func emitData(def *object.Definition, tok Token, offset uint32, labels map[string]uint32, equ map[string]int64) error {
	op, err := parseOperand(tok.DataValue)
	if err != nil {
		return fmt.Errorf("%s:%d: %w", tok.File, tok.Line, err)
	}

	var hi, lo uint16
	switch op.kind {
	case opImmediate:
		hi, lo = packFlat(uint32(op.imm), tok.DataWidth)
	case opPlaceholder:
		v, ok := equ[op.placeholder]
		if !ok {
			return fmt.Errorf("%s:%d: unresolved placeholder $%s", tok.File, tok.Line, op.placeholder)
		}
		hi, lo = packFlat(uint32(v), tok.DataWidth)
	case opSymbol:
		if addr, ok := labels[op.symbol]; ok {
			hi, lo = packSymbol(addr, op.refSuffix, tok.DataWidth)
		} else {
			refType, loc := refForSymbol(op.refSuffix, tok.DataWidth, offset)
			def.SymbolRefs = append(def.SymbolRefs, object.SymbolRef{Name: op.symbol, Type: refType, Location: loc})
		}
	default:
		return fmt.Errorf("%s:%d: %s requires a number, placeholder or symbol reference, got %q", tok.File, tok.Line, dataDirectiveName(tok.DataWidth), tok.DataValue)
	}

	putSlot(def.Program, offset, uint32(hi)<<16|uint32(lo))
	return def.Debug.Record(offset, dbg.Location{File: tok.File, Line: tok.Line, Column: 1})
}

// packFlat masks v to width bytes and splits it into the slot's (hi, lo)
// 16-bit halves; a narrower-than-4-byte value lives entirely in lo.
func packFlat(v uint32, width int) (hi, lo uint16) {
	switch width {
	case 1:
		return 0, uint16(v & 0xFF)
	case 2:
		return 0, uint16(v & 0xFFFF)
	default:
		return uint16(v >> 16), uint16(v)
	}
}

// packSymbol packs a resolved label address into the slot according to
// width and the @symbol.u/.l suffix: a bare 4-byte slot gets the full
// address-register pair, a suffixed slot gets just one already-segmented
// half, and an unsuffixed slot narrower than 4 bytes gets the low 16 bits of
// the address as a plain number.
func packSymbol(addr uint32, suffix refSuffix, width int) (hi, lo uint16) {
	segHi, segLo := regs.ToSegmented(addr)
	switch {
	case width == 4 && suffix == refWhole:
		return segHi, segLo
	case suffix == refUpper:
		return 0, segHi
	case suffix == refLower:
		return 0, segLo
	default:
		return 0, uint16(addr)
	}
}

// refForSymbol mirrors packSymbol's shape selection for a symbol that
// isn't defined in this unit, returning the RefType the linker should
// patch with and the byte location of the 16-bit field that holds it.
func refForSymbol(suffix refSuffix, width int, offset uint32) (object.RefType, uint32) {
	switch {
	case width == 4 && suffix == refWhole:
		return object.FullAddress, offset
	case suffix == refUpper:
		return object.UpperWord, offset + 2
	case suffix == refLower:
		return object.LowerWord, offset + 2
	default:
		return object.Offset, offset + 2
	}
}

func dataDirectiveName(width int) string {
	switch width {
	case 1:
		return ".DB"
	case 2:
		return ".DW"
	default:
		return ".DQ"
	}
}
