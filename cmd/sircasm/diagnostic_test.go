package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDiagnosticAddsCaretAtReportedLine(t *testing.T) {
	src := "ADDI r1, #1\nBRAN @nowhere\nHALT\n"
	err := errors.New("t.sirc:2: undefined label \"nowhere\"")

	got := formatDiagnostic(src, err)
	require := got.Error()
	assert.Contains(t, require, "BRAN @nowhere")
	assert.Contains(t, require, "^")
	assert.Contains(t, require, "undefined label")
}

func TestFormatDiagnosticPassesThroughUnrecognizedErrors(t *testing.T) {
	err := errors.New("no such file or directory")
	got := formatDiagnostic("", err)
	assert.Equal(t, err, got)
}
