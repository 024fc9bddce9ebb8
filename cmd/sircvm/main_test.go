package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sirc/asm"
)

// TestRunExitsViaDebugPortPowerRegister assembles a tiny program that points
// the address register at the debug port via LDEA (a power-on address
// register of zero plus a #28 displacement lands exactly on it, given the
// rom/ram/timer layout run builds below) and writes a non-zero value to its
// power register, which should make the driver's StepResult report
// ExitRequested before the frame's full cycle budget is spent, so run
// returns promptly instead of spinning forever. Setting the address
// register directly via LOAD ah/al would instead trip the write-back
// privilege check, since the CPU powers on with ProtectedMode clear.
func TestRunExitsViaDebugPortPowerRegister(t *testing.T) {
	src := "" +
		"LOAD r1, #1\n" +
		"LDEA (#28, a)\n" + // rom=16B, ram=8B, timer=4B -> debug port base 28
		"STOR (#0, a), r1\n" +
		"HALT\n"

	def, err := asm.Assemble("t.sirc", src)
	require.NoError(t, err)
	require.Len(t, def.Program, 16)

	programPath := filepath.Join(t.TempDir(), "prog.bin")
	require.NoError(t, os.WriteFile(programPath, def.Program, 0o644))

	err = run(options{
		programFile:   programPath,
		masterClockHz: 100,
		vsyncHz:       1,
		vsyncLevel:    1,
		ramWords:      4,
	})
	require.NoError(t, err)
}
