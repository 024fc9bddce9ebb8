// Command sircvm loads a linked SIRC program image and runs it at a
// vsync-paced cadence, per spec.md §4.K.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sirc/bus"
	"sirc/cpu"
	"sirc/device"
	"sirc/driver"
	"sirc/internal/logx"
	"sirc/mem"
)

func main() {
	var programFile, registerDumpFile string
	var masterClockHz, vsyncHz uint64
	var vsyncLevel uint8
	var ramWords uint32
	var verbose bool

	root := &cobra.Command{
		Use:   "sircvm",
		Short: "Run a linked SIRC program image",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(options{
				programFile:      programFile,
				registerDumpFile: registerDumpFile,
				masterClockHz:    masterClockHz,
				vsyncHz:          vsyncHz,
				vsyncLevel:       vsyncLevel,
				ramWords:         ramWords,
				verbose:          verbose,
			})
		},
	}
	root.Flags().StringVar(&programFile, "program-file", "", "linked program image to load")
	root.Flags().StringVar(&registerDumpFile, "register-dump-file", "", "write a register dump here on exit")
	root.Flags().Uint64Var(&masterClockHz, "master-clock-hz", 25_000_000, "notional CPU clock rate")
	root.Flags().Uint64Var(&vsyncHz, "vsync-hz", 50, "wall-clock frame rate the driver paces against")
	root.Flags().Uint8Var(&vsyncLevel, "vsync-interrupt-level", 1, "hardware interrupt level (1-5) signalling vsync")
	root.Flags().Uint32Var(&ramWords, "ram-words", 0x8000, "writable RAM segment size, in 16-bit words")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level driver logging")
	_ = root.MarkFlagRequired("program-file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	programFile      string
	registerDumpFile string
	masterClockHz    uint64
	vsyncHz          uint64
	vsyncLevel       uint8
	ramWords         uint32
	verbose          bool
}

func run(o options) error {
	log := logx.Default()
	if o.verbose {
		log.SetLevel(logx.LevelDebug)
	}

	image, err := os.ReadFile(o.programFile)
	if err != nil {
		return fmt.Errorf("reading program file: %w", err)
	}

	rom := mem.NewSegment("rom", 0, uint32(len(image)), false)
	if err := rom.LoadImage(image); err != nil {
		return fmt.Errorf("loading program image: %w", err)
	}

	ramBase := rom.Address + rom.Size
	ram := mem.NewSegment("ram", ramBase, o.ramWords*2, true)

	timerBase := ram.Address + ram.Size
	timer := device.NewTimer(timerBase, o.vsyncLevel)
	debugPort := device.NewDebugPort(timerBase + 4)

	b := bus.New()
	b.Attach("rom", rom.Address, rom.Size, rom)
	b.Attach("ram", ram.Address, ram.Size, ram)
	b.Attach("timer", timer.Base, 4, timer)
	b.Attach("debug", debugPort.Base, 4, debugPort)

	c := cpu.New(b)
	c.Regs.SetSystemRAMOffset(ram.Address)

	vsyncBit := uint8(1) << (o.vsyncLevel - 1)
	f := driver.New(driver.Options{
		MasterClockHz: o.masterClockHz,
		VsyncHz:       o.vsyncHz,
		ReportEvery:   5 * time.Second,
	}, log)

	f.Run(func() driver.StepResult {
		_, out := c.Step()
		return driver.StepResult{
			VsyncAsserted: out.InterruptAssertion&vsyncBit != 0,
			ExitRequested: out.ExitSimulation,
		}
	})

	log.Infof("retired %d instructions", c.InstructionsRetired)
	if len(debugPort.Console()) > 0 {
		os.Stdout.Write(debugPort.Console())
	}

	if o.registerDumpFile != "" {
		if err := writeRegisterDump(o.registerDumpFile, c); err != nil {
			return err
		}
	}
	return nil
}
