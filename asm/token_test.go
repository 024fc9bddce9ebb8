package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeLabelAndTrailingInstruction(t *testing.T) {
	toks, err := Tokenize("t.sirc", ":loop SUBI r1, #1 ; decrement\nBRAN|!= @loop\n")
	require.NoError(t, err)
	require.Len(t, toks, 3)

	assert.Equal(t, TokenLabel, toks[0].Kind)
	assert.Equal(t, "loop", toks[0].Label)

	assert.Equal(t, TokenInstruction, toks[1].Kind)
	assert.Equal(t, "SUBI", toks[1].Mnemonic)
	assert.Equal(t, []string{"r1", "#1"}, toks[1].Operands)

	assert.Equal(t, TokenInstruction, toks[2].Kind)
	assert.Equal(t, "BRAN", toks[2].Mnemonic)
	assert.Equal(t, "!=", toks[2].Condition)
	assert.Equal(t, []string{"@loop"}, toks[2].Operands)
}

func TestTokenizeDirectives(t *testing.T) {
	toks, err := Tokenize("t.sirc", ".ORG #0x10\n.EQU $SIZE #4\n.DW @table.l\n")
	require.NoError(t, err)
	require.Len(t, toks, 3)

	assert.Equal(t, TokenOrigin, toks[0].Kind)
	assert.Equal(t, "#0x10", toks[0].OriginValue)

	assert.Equal(t, TokenEqu, toks[1].Kind)
	assert.Equal(t, "SIZE", toks[1].EquName)
	assert.Equal(t, "#4", toks[1].EquValue)

	assert.Equal(t, TokenData, toks[2].Kind)
	assert.Equal(t, 2, toks[2].DataWidth)
	assert.Equal(t, "@table.l", toks[2].DataValue)
}

func TestSplitOperandsRespectsParens(t *testing.T) {
	out := splitOperands("(#0, a), r1")
	assert.Equal(t, []string{"(#0, a)", "r1"}, out)
}

func TestTokenizeRejectsEmptyLabel(t *testing.T) {
	_, err := Tokenize("t.sirc", ":\n")
	assert.Error(t, err)
}
