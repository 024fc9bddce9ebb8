// Package driver implements the frame-paced vsync loop that drives a
// cycle-stepped CPU at a wall-clock cadence: a frame is N cycles, where N is
// the master clock frequency divided by the vsync frequency, and the loop
// sleeps between frames to track real time. Generalized from
// original_source/sirc-vm/peripheral-clock's ClockPeripheral.start_loop and
// sirc-vm/sirc-vm/src/utils/frame_reporter.rs's start_loop, both of which
// lean on the Rust-only spin_sleep_util crate; Go's stdlib time.Ticker
// stands in for it here.
package driver

import (
	"time"

	"sirc/internal/logx"
)

// Options configures one Frame driver.
type Options struct {
	// MasterClockHz is the CPU's notional clock rate.
	MasterClockHz uint64
	// VsyncHz is the wall-clock frame rate to pace against.
	VsyncHz uint64
	// ReportEvery controls how often the rate reporter logs an FPS/run-rate
	// line; zero disables periodic reporting.
	ReportEvery time.Duration
}

// CyclesPerFrame returns MasterClockHz/VsyncHz, truncated - the same integer
// division the original ClockPeripheral uses (25MHz/50Hz = 500000 cycles a
// frame with no remainder handling).
func (o Options) CyclesPerFrame() uint64 {
	if o.VsyncHz == 0 {
		return 0
	}
	return o.MasterClockHz / o.VsyncHz
}

// StepResult is one cycle's outcome, as far as the frame driver cares: does
// this cycle end the current frame early (a vsync interrupt fired) or the
// whole run (exit_simulation was asserted).
type StepResult struct {
	VsyncAsserted bool
	ExitRequested bool
}

// Frame runs a step function at a vsync-paced cadence, logging FPS and
// run-rate through a shared logx.Logger instead of printing directly the
// way the original's bare log::debug! calls do.
type Frame struct {
	opts   Options
	log    *logx.Logger
	report *rateReporter
}

// New returns a Frame driver. log must not be nil; callers that don't care
// about driver diagnostics should pass logx.New(io.Discard, ...).
func New(opts Options, log *logx.Logger) *Frame {
	return &Frame{opts: opts, log: log, report: newRateReporter(opts.ReportEvery)}
}

// Run repeatedly calls step once per cycle, up to CyclesPerFrame times per
// frame, stopping a frame early the moment step reports VsyncAsserted (the
// teacher-equivalent original loop doesn't do this - it always spins the
// full cycle count - but spec.md §4.K calls for stepping "until it sees a
// vsync interrupt assertion or exit_simulation", so an early vsync within a
// frame ends that frame's cycle budget rather than being ignored).
// Run blocks until step reports ExitRequested or ctx-less caller stops it
// by having step always return ExitRequested=true.
func (f *Frame) Run(step func() StepResult) {
	cyclesPerFrame := f.opts.CyclesPerFrame()
	interval := time.Duration(0)
	if f.opts.VsyncHz > 0 {
		interval = time.Second / time.Duration(f.opts.VsyncHz)
	}

	var ticker *time.Ticker
	if interval > 0 {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	start := time.Now()
	var frame uint64

	for {
		frame++
		for i := uint64(0); i < cyclesPerFrame; i++ {
			res := step()
			if res.ExitRequested {
				f.logExit(frame, start, interval)
				return
			}
			if res.VsyncAsserted {
				break
			}
		}

		if fps, ok := f.report.incrementAndReport(); ok {
			f.log.Debugf("frame [%d] fps [%.2f]", frame, fps)
		}

		if ticker != nil {
			<-ticker.C
		}
	}
}

func (f *Frame) logExit(frame uint64, start time.Time, interval time.Duration) {
	elapsed := time.Since(start).Seconds()
	if interval <= 0 {
		f.log.Infof("exiting main loop after %d frames, %.3fs elapsed", frame, elapsed)
		return
	}
	secondsPerFrame := interval.Seconds()
	expectedFrame := elapsed / secondsPerFrame
	runRate := float64(frame) / expectedFrame
	f.log.Infof("exiting main loop: elapsed=%.3fs expected-frame=%.2f actual-frame=%d seconds-per-frame=%.6f run-rate=%.3f",
		elapsed, expectedFrame, frame, secondsPerFrame, runRate)
}
