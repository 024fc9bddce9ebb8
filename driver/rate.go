package driver

import "time"

// rateReporter tallies frames and periodically reports an FPS figure,
// generalized from spin_sleep_util::RateReporter (a fixed-window counter
// that resets every window and emits the observed rate). A zero window
// disables reporting entirely, incrementAndReport always returning false.
type rateReporter struct {
	window    time.Duration
	windowStart time.Time
	count     uint64
}

func newRateReporter(window time.Duration) *rateReporter {
	return &rateReporter{window: window}
}

// incrementAndReport counts one more frame and, once window has elapsed
// since the last report, returns the observed frames-per-second and resets
// the window.
func (r *rateReporter) incrementAndReport() (float64, bool) {
	if r.window <= 0 {
		return 0, false
	}
	now := time.Now()
	if r.windowStart.IsZero() {
		r.windowStart = now
	}
	r.count++

	elapsed := now.Sub(r.windowStart)
	if elapsed < r.window {
		return 0, false
	}

	fps := float64(r.count) / elapsed.Seconds()
	r.count = 0
	r.windowStart = now
	return fps, true
}
