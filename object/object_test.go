package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sirc/dbg"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	d := New()
	d.Symbols["main"] = 0
	d.SymbolRefs = append(d.SymbolRefs, SymbolRef{Name: "data", Type: LowerWord, Location: 4})
	d.Program = []byte{0xDE, 0xAD, 0xBE, 0xEF}
	d.Debug = dbg.NewInfo()
	require.NoError(t, d.Debug.Record(0, dbg.Location{File: "main.sirc", Line: 1}))

	encoded, err := d.Encode()
	require.NoError(t, err)

	got, err := Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, d.Symbols, got.Symbols)
	assert.Equal(t, d.SymbolRefs, got.SymbolRefs)
	assert.Equal(t, d.Program, got.Program)

	loc, ok := got.Debug.LocationFor(0)
	require.True(t, ok)
	assert.Equal(t, "main.sirc", loc.File)
}

func TestRefTypeStringer(t *testing.T) {
	assert.Equal(t, "LowerWord", LowerWord.String())
	assert.Equal(t, "FullAddress", FullAddress.String())
}
