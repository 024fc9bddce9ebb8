// Package object defines the assembler's output format: a relocatable
// program image plus the symbol table and unresolved references the linker
// needs to patch it into a runnable memory image. It mirrors the teacher's
// bytecode.go notion of "addresses aren't known until link time" but
// generalizes it from single-binary label offsets to SIRC's
// ref-type-tagged patch kinds (spec.md §4.J).
package object

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"sirc/dbg"
)

// RefType selects how the linker patches a SymbolRef's resolved address
// into the program bytes.
type RefType int

const (
	// Offset patches a signed 16-bit displacement, target - (ref site + 4);
	// a Packed ref gets it halved into a word offset inside the instruction.
	Offset RefType = iota
	// SmallOffset patches the same displacement as Offset into 8 bits,
	// rejecting one outside -128..127.
	SmallOffset
	// LowerWord patches the low half of regs.ToSegmented's (high, low) pair
	// for a resolved 24-bit address: the address's low byte, in the top 8 bits.
	LowerWord
	// UpperWord patches the high half of that pair: address bits 23-8.
	UpperWord
	// FullAddress patches both halves of an address-register pair in one
	// go, used by directives that reserve two consecutive words.
	FullAddress
	// Implied means the reference doesn't patch any bytes itself - it only
	// exists so the symbol table records the link still depends on this
	// name. The assembler does not emit Implied refs.
	Implied
)

func (r RefType) String() string {
	switch r {
	case Offset:
		return "Offset"
	case SmallOffset:
		return "SmallOffset"
	case LowerWord:
		return "LowerWord"
	case UpperWord:
		return "UpperWord"
	case FullAddress:
		return "FullAddress"
	case Implied:
		return "Implied"
	default:
		return "?reftype?"
	}
}

// SymbolRef is one unresolved reference to a label, recorded at the byte
// offset into Program where the linker must patch in the label's resolved
// value.
type SymbolRef struct {
	Name     string
	Type     RefType
	Location uint32

	// Packed marks a ref whose Location is the start of a 4-byte bit-packed
	// instruction word (a branch target) rather than a flat, byte-aligned
	// data slot field. The linker decodes the instruction, substitutes the
	// resolved displacement into its Value field and re-encodes it, instead
	// of overwriting raw bytes in place (spec.md §4.J).
	Packed bool
}

// Definition is one assembled translation unit: its symbol table (labels
// defined in this unit, value = byte offset from the unit's own origin),
// the unresolved references the linker must patch, the raw program bytes,
// and an optional debug-info sidecar.
type Definition struct {
	Symbols    map[string]uint32
	SymbolRefs []SymbolRef
	Program    []byte
	Debug      *dbg.Info
}

// New returns an empty Definition ready for an assembler pass to fill in.
func New() *Definition {
	return &Definition{Symbols: make(map[string]uint32)}
}

// Encode serializes d with encoding/gob, SIRC's chosen binary envelope for
// object files and their debug-info sidecars (see DESIGN.md for why gob
// rather than a third-party binary codec).
func (d *Definition) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(d); err != nil {
		return nil, fmt.Errorf("object: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode deserializes an object file previously produced by Encode.
func Decode(data []byte) (*Definition, error) {
	var d Definition
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&d); err != nil {
		return nil, fmt.Errorf("object: decode: %w", err)
	}
	return &d, nil
}
