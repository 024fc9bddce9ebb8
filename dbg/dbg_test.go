package dbg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndLookupBothDirections(t *testing.T) {
	info := NewInfo()
	require.NoError(t, info.Record(0x100, Location{File: "a.sirc", Line: 3, Column: 1}))

	loc, ok := info.LocationFor(0x100)
	require.True(t, ok)
	assert.Equal(t, "a.sirc", loc.File)

	pc, ok := info.PCFor(loc)
	require.True(t, ok)
	assert.Equal(t, uint32(0x100), pc)
}

func TestRecordRejectsDuplicatePC(t *testing.T) {
	info := NewInfo()
	require.NoError(t, info.Record(0x100, Location{File: "a.sirc", Line: 1}))
	err := info.Record(0x100, Location{File: "a.sirc", Line: 2})
	assert.Error(t, err)
}

func TestMergeOffsetsProgramCounters(t *testing.T) {
	a := NewInfo()
	require.NoError(t, a.Record(0, Location{File: "a.sirc", Line: 1}))

	b := NewInfo()
	require.NoError(t, b.Merge(a, 0x1000))

	loc, ok := b.LocationFor(0x1000)
	require.True(t, ok)
	assert.Equal(t, "a.sirc", loc.File)
}

func TestGobRoundTrip(t *testing.T) {
	info := NewInfo()
	require.NoError(t, info.Record(4, Location{File: "x.sirc", Line: 10, Column: 2}))

	encoded, err := gobEncode(wireInfo{Entries: info.pcToLoc})
	require.NoError(t, err)

	decoded := NewInfo()
	require.NoError(t, decoded.GobDecode(encoded))

	loc, ok := decoded.LocationFor(4)
	require.True(t, ok)
	assert.Equal(t, 10, loc.Line)
}
