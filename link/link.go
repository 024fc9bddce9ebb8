// Package link implements the SIRC linker: it concatenates one or more
// assembled object.Definition units into a single program image, resolving
// every SymbolRef by patching the referenced bytes with the label's final
// address, according to the ref's RefType. This generalizes the teacher's
// single-pass "resolve label -> offset" step (vm/compile.go) to multiple
// translation units and SIRC's five patch kinds (spec.md §4.J).
package link

import (
	"fmt"
	"sort"

	"sirc/bits"
	"sirc/dbg"
	"sirc/instr"
	"sirc/object"
	"sirc/regs"
)

// Unit names one translation unit contributed to a link, purely for error
// messages - object.Definition itself doesn't carry a name.
type Unit struct {
	Name string
	Def  *object.Definition
}

// Result is a finished link: the byte image ready to write to disk
// (little-endian, the format mem.Segment.LoadImage expects), the combined
// symbol table (values are absolute addresses, origin-relative), and the
// merged debug-info sidecar.
type Result struct {
	Image   []byte
	Symbols map[string]uint32
	Debug   *dbg.Info
}

// Link lays out units back-to-back starting at origin and resolves every
// unit's SymbolRefs against the combined symbol table. Every referenced
// symbol must be defined by exactly one unit in the link, or Link reports
// an error naming the first unresolved or duplicate symbol it finds.
func Link(origin uint32, units []Unit) (*Result, error) {
	symbols := make(map[string]uint32)
	offsets := make([]uint32, len(units))

	cursor := origin
	for i, u := range units {
		offsets[i] = cursor
		for name, local := range u.Def.Symbols {
			abs := cursor + local
			if existing, dup := symbols[name]; dup {
				return nil, fmt.Errorf("link: symbol %q defined twice (at %#x and %#x, unit %q)", name, existing, abs, u.Name)
			}
			symbols[name] = abs
		}
		cursor += uint32(len(u.Def.Program))
	}

	image := make([]byte, 0, cursor-origin)
	debug := dbg.NewInfo()
	for i, u := range units {
		unitImage := make([]byte, len(u.Def.Program))
		copy(unitImage, u.Def.Program)

		for _, ref := range u.Def.SymbolRefs {
			addr, ok := symbols[ref.Name]
			if !ok {
				return nil, fmt.Errorf("link: unit %q references undefined symbol %q", u.Name, ref.Name)
			}
			if err := patch(unitImage, ref, addr, offsets[i]); err != nil {
				return nil, fmt.Errorf("link: unit %q: %w", u.Name, err)
			}
		}

		if err := debug.Merge(u.Def.Debug, offsets[i]); err != nil {
			return nil, fmt.Errorf("link: unit %q: merging debug info: %w", u.Name, err)
		}

		image = append(image, unitImage...)
	}

	return &Result{Image: image, Symbols: symbols, Debug: debug}, nil
}

// patch writes addr into image at ref.Location, a byte offset local to this
// unit's own copy of the program. unitBase is that unit's position in the
// final linked image, needed by Offset/SmallOffset refs: the relative
// displacement they encode is measured from the field's position in the
// final image, not its position within the unit.
func patch(image []byte, ref object.SymbolRef, addr, unitBase uint32) error {
	loc := ref.Location
	switch ref.Type {
	case object.Offset:
		return patchRelative(image, ref, addr, unitBase, 16)
	case object.SmallOffset:
		return patchRelative(image, ref, addr, unitBase, 8)
	case object.LowerWord:
		_, low := regs.ToSegmented(addr)
		return putLE16(image, loc, low)
	case object.UpperWord:
		high, _ := regs.ToSegmented(addr)
		return putLE16(image, loc, high)
	case object.FullAddress:
		high, low := regs.ToSegmented(addr)
		if err := putLE16(image, loc, high); err != nil {
			return err
		}
		return putLE16(image, loc+2, low)
	case object.Implied:
		// nothing to patch
	default:
		return fmt.Errorf("unknown ref type %v", ref.Type)
	}
	return nil
}

// patchRelative computes the PC-relative displacement spec.md §4.J mandates
// for Offset/SmallOffset refs - signed(target - (ref_site + 4)), truncated
// to bitWidth and range-checked - and writes it either into a flat,
// byte-aligned data slot or, for a ref inside a bit-packed instruction word,
// by decoding the instruction, substituting the displacement and
// re-encoding it so every other field survives untouched.
func patchRelative(image []byte, ref object.SymbolRef, addr, unitBase uint32, bitWidth int) error {
	refSite := int64(unitBase) + int64(ref.Location)
	delta := int64(addr) - (refSite + 4)

	if ref.Packed {
		if delta%2 != 0 {
			return fmt.Errorf("patch location %#x: branch target is not word-aligned", ref.Location)
		}
		wordOffset := delta / 2
		if lo, hi := signedRange(bitWidth); wordOffset < lo || wordOffset > hi {
			return fmt.Errorf("patch location %#x: relative offset %d out of range", ref.Location, wordOffset)
		}
		return patchPackedWord(image, ref.Location, wordOffset, bitWidth)
	}

	if lo, hi := signedRange(bitWidth); delta < lo || delta > hi {
		return fmt.Errorf("patch location %#x: relative offset %d out of range", ref.Location, delta)
	}

	if bitWidth == 8 {
		if ref.Location >= uint32(len(image)) {
			return fmt.Errorf("patch location %#x out of range", ref.Location)
		}
		image[ref.Location] = byte(int8(delta))
		return nil
	}
	return putLE16(image, ref.Location, uint16(int16(delta)))
}

func signedRange(bitWidth int) (lo, hi int64) {
	if bitWidth == 8 {
		return -1 << 7, 1<<7 - 1
	}
	return -1 << 15, 1<<15 - 1
}

// patchPackedWord decodes the 4-byte instruction word at loc, substitutes
// wordOffset into its displacement field, and re-encodes it. Branches are
// the only user today (a 16-bit Immediate-format Value field); a packed
// SmallOffset would land in the 8-bit ShortValue field of a ShortImmediate
// instruction instead.
func patchPackedWord(image []byte, loc uint32, wordOffset int64, bitWidth int) error {
	if loc+4 > uint32(len(image)) {
		return fmt.Errorf("patch location %#x out of range", loc)
	}
	d := instr.Decode(readSlot(image, loc))
	if bitWidth == 8 {
		d.ShortValue = uint8(int8(wordOffset))
	} else {
		d.Value = uint16(int16(wordOffset))
	}
	encoded, err := instr.Encode(d)
	if err != nil {
		return fmt.Errorf("patch location %#x: re-encoding: %w", loc, err)
	}
	writeSlot(image, loc, encoded)
	return nil
}

// readSlot/writeSlot reassemble the 4-byte instruction slot's two
// little-endian 16-bit halves into the big-endian word instr.Decode/Encode
// operate on, the inverse of asm.putSlot.
func readSlot(image []byte, offset uint32) uint32 {
	hi := bits.BytesToWordLE(image[offset], image[offset+1])
	lo := bits.BytesToWordLE(image[offset+2], image[offset+3])
	return uint32(hi)<<16 | uint32(lo)
}

func writeSlot(image []byte, offset uint32, word uint32) {
	hi := bits.WordToBytesLE(uint16(word >> 16))
	lo := bits.WordToBytesLE(uint16(word))
	image[offset], image[offset+1] = hi[0], hi[1]
	image[offset+2], image[offset+3] = lo[0], lo[1]
}

func putLE16(image []byte, offset uint32, value uint16) error {
	if offset+1 >= uint32(len(image)) {
		return fmt.Errorf("patch location %#x out of range (image size %d)", offset, len(image))
	}
	le := bits.WordToBytesLE(value)
	image[offset] = le[0]
	image[offset+1] = le[1]
	return nil
}

// SortedSymbols returns Result.Symbols as a deterministically ordered slice
// of (name, address) pairs, for the linker CLI's "list symbols" map output.
func (r *Result) SortedSymbols() []struct {
	Name    string
	Address uint32
} {
	names := make([]string, 0, len(r.Symbols))
	for name := range r.Symbols {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]struct {
		Name    string
		Address uint32
	}, len(names))
	for i, name := range names {
		out[i] = struct {
			Name    string
			Address uint32
		}{name, r.Symbols[name]}
	}
	return out
}
