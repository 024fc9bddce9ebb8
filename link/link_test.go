package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sirc/bits"
	"sirc/instr"
	"sirc/object"
)

func TestLinkResolvesOffsetRef(t *testing.T) {
	def := object.New()
	def.Symbols["target"] = 10
	def.SymbolRefs = []object.SymbolRef{{Name: "target", Type: object.Offset, Location: 0}}
	def.Program = []byte{0x00, 0x00, 0xAA, 0xBB}

	res, err := Link(0, []Unit{{Name: "a", Def: def}})
	require.NoError(t, err)

	// signed(target - (ref_site + 4)) = 10 - (0 + 4) = 6, not the raw
	// truncated address.
	assert.Equal(t, uint32(10), res.Symbols["target"])
	assert.Equal(t, byte(0x06), res.Image[0])
	assert.Equal(t, byte(0x00), res.Image[1])
}

func TestLinkOffsetRefIsRelativeNotAbsolute(t *testing.T) {
	def := object.New()
	def.Symbols["target"] = 0
	def.SymbolRefs = []object.SymbolRef{{Name: "target", Type: object.Offset, Location: 0}}
	def.Program = []byte{0x00, 0x00}

	res, err := Link(0, []Unit{{Name: "a", Def: def}})
	require.NoError(t, err)

	// signed(0 - (0 + 4)) = -4.
	assert.Equal(t, byte(0xFC), res.Image[0])
	assert.Equal(t, byte(0xFF), res.Image[1])
}

func TestLinkSmallOffsetRejectsOutOfRange(t *testing.T) {
	def := object.New()
	def.Symbols["target"] = 1000
	def.SymbolRefs = []object.SymbolRef{{Name: "target", Type: object.SmallOffset, Location: 0}}
	def.Program = []byte{0x00}

	_, err := Link(0, []Unit{{Name: "a", Def: def}})
	assert.Error(t, err)
}

func TestLinkPatchesPackedBranchOffset(t *testing.T) {
	// BRAN immediate with condition/additional zero; the 4-byte slot's
	// displacement field starts out zeroed, as buildBranch leaves it for an
	// unresolved local label.
	word, err := instr.Encode(instr.Data{Format: instr.Immediate, OpCode: instr.BranchImmediate})
	require.NoError(t, err)
	hiLE := bits.WordToBytesLE(uint16(word >> 16))
	loLE := bits.WordToBytesLE(uint16(word))

	def := object.New()
	def.Symbols["target"] = 12
	def.SymbolRefs = []object.SymbolRef{{Name: "target", Type: object.Offset, Location: 0, Packed: true}}
	def.Program = []byte{hiLE[0], hiLE[1], loLE[0], loLE[1]}

	res, err := Link(0, []Unit{{Name: "a", Def: def}})
	require.NoError(t, err)

	hi := bits.BytesToWordLE(res.Image[0], res.Image[1])
	lo := bits.BytesToWordLE(res.Image[2], res.Image[3])
	decoded := instr.Decode(uint32(hi)<<16 | uint32(lo))

	// signed(12 - (0 + 4)) / 2 = 4 words.
	assert.Equal(t, uint16(4), decoded.Value)
}

func TestLinkAcrossUnitsOffsetsSymbols(t *testing.T) {
	a := object.New()
	a.Symbols["start"] = 0
	a.Program = make([]byte, 8)

	b := object.New()
	b.Symbols["helper"] = 0
	b.SymbolRefs = []object.SymbolRef{{Name: "start", Type: object.Offset, Location: 0}}
	b.Program = []byte{0x00, 0x00}

	res, err := Link(0x1000, []Unit{{Name: "a", Def: a}, {Name: "b", Def: b}})
	require.NoError(t, err)

	assert.Equal(t, uint32(0x1000), res.Symbols["start"])
	assert.Equal(t, uint32(0x1008), res.Symbols["helper"])

	// b's ref sits at Location 0 within b, but b itself starts at global
	// byte 0x1008: signed(0x1000 - (0x1008 + 4)) = -12.
	assert.Equal(t, byte(0xF4), res.Image[8])
	assert.Equal(t, byte(0xFF), res.Image[9])
}

func TestLinkRejectsUndefinedSymbol(t *testing.T) {
	def := object.New()
	def.SymbolRefs = []object.SymbolRef{{Name: "missing", Type: object.Offset, Location: 0}}
	def.Program = []byte{0x00, 0x00}

	_, err := Link(0, []Unit{{Name: "a", Def: def}})
	assert.Error(t, err)
}

func TestLinkRejectsDuplicateSymbol(t *testing.T) {
	a := object.New()
	a.Symbols["dup"] = 0
	a.Program = []byte{0x00, 0x00}

	b := object.New()
	b.Symbols["dup"] = 0
	b.Program = []byte{0x00, 0x00}

	_, err := Link(0, []Unit{{Name: "a", Def: a}, {Name: "b", Def: b}})
	assert.Error(t, err)
}

func TestPatchFullAddressWritesBothHalves(t *testing.T) {
	def := object.New()
	def.Symbols["target"] = 0x0056 // address 0x0056
	def.SymbolRefs = []object.SymbolRef{{Name: "target", Type: object.FullAddress, Location: 0}}
	def.Program = make([]byte, 4)

	res, err := Link(0, []Unit{{Name: "a", Def: def}})
	require.NoError(t, err)
	assert.Len(t, res.Image, 4)
	// regs.ToSegmented(0x56) = (0x0000, 0x5600), each half little-endian.
	assert.Equal(t, uint16(0x0000), bits.BytesToWordLE(res.Image[0], res.Image[1]))
	assert.Equal(t, uint16(0x5600), bits.BytesToWordLE(res.Image[2], res.Image[3]))
}
