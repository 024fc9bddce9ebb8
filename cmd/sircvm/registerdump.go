package main

import (
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"

	"sirc/cpu"
	"sirc/regs"
)

// registerDump is the minimal snapshot cmd/sircvm's --register-dump-file
// writes on exit. A dedicated diagnostic subsystem is explicitly out of
// scope (spec.md §1's Non-goals name "the register-dump diagnostic
// writer"); this is just enough of one to satisfy the CLI surface §6 names,
// rendered with go-spew instead of hand-rolled %#v formatting.
type registerDump struct {
	General         [7]uint16
	Link            [2]uint16
	Address         [2]uint16
	Stack           [2]uint16
	PC              [2]uint16
	StatusRegister  uint16
	InterruptMask   uint8
	SystemRAMOffset uint32
}

func dumpRegisters(f *regs.File) registerDump {
	var d registerDump
	for i := 0; i < 7; i++ {
		d.General[i] = f.Get(regs.Index(i))
	}
	d.Link[0], d.Link[1] = f.Link()
	d.Address[0], d.Address[1] = f.Address()
	d.Stack[0], d.Stack[1] = f.Stack()
	d.PC[0], d.PC[1] = f.PC()
	d.StatusRegister = f.SR()
	d.InterruptMask = f.InterruptMask()
	d.SystemRAMOffset = f.SystemRAMOffset()
	return d
}

func writeRegisterDump(path string, c *cpu.CPU) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating register dump file: %w", err)
	}
	defer out.Close()

	cfg := spew.ConfigState{Indent: "  ", DisableMethods: true, DisablePointerAddresses: true}
	cfg.Fdump(out, dumpRegisters(c.Regs))
	return nil
}
