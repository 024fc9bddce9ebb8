package bits

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignExtendSmallOffset(t *testing.T) {
	for b := 0; b < 256; b++ {
		got := SignExtendSmallOffset(uint8(b))
		want := uint16(int16(int8(uint8(b))))
		assert.Equalf(t, want, got, "byte 0x%02x", b)
	}
	assert.Equal(t, uint16(0xFFFF), SignExtendSmallOffset(0xFF))
	assert.Equal(t, uint16(0x007F), SignExtendSmallOffset(0x7F))
}

func TestSignExtend(t *testing.T) {
	assert.Equal(t, uint32(0xFFFFFFFF), SignExtend(0xFF, 8))
	assert.Equal(t, uint32(0x0000007F), SignExtend(0x7F, 8))
	assert.Equal(t, uint32(0xFFFFFFFF), SignExtend(0xFFFF, 16))
	assert.Equal(t, uint32(0x00007FFF), SignExtend(0x7FFF, 16))
}

func TestWordByteRoundTrip(t *testing.T) {
	for _, w := range []uint16{0x0000, 0x00FF, 0xFF00, 0x1234, 0xFFFF} {
		be := WordToBytesBE(w)
		assert.Equal(t, w, BytesToWordBE(be[0], be[1]))

		le := WordToBytesLE(w)
		assert.Equal(t, w, BytesToWordLE(le[0], le[1]))
	}
}

func TestHighestSetBit(t *testing.T) {
	assert.Equal(t, -1, HighestSetBit(0))
	assert.Equal(t, 0, HighestSetBit(0b0000_0001))
	assert.Equal(t, 4, HighestSetBit(0b0001_0000))
	assert.Equal(t, 7, HighestSetBit(0b1000_0001))
}
