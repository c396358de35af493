// File: wait/spin.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-parking wait strategies. BusySpin burns a full core for the lowest
// possible latency; Yielding spins a bounded number of times before handing
// the processor back to the scheduler; Sleeping backs off through spin,
// yield, then short sleeps.

package wait

import (
	"runtime"
	"time"

	"github.com/momentics/hioload-disruptor/api"
)

// Ensure compile-time interface compliance.
var (
	_ api.WaitStrategy = (*BusySpin)(nil)
	_ api.WaitStrategy = (*Yielding)(nil)
	_ api.WaitStrategy = (*Sleeping)(nil)
)

// BusySpin re-checks the cursor in a tight loop. Lowest latency, consumes a
// full core. Reserve it for consumers pinned to dedicated CPUs.
type BusySpin struct{}

// NewBusySpin returns a busy-spin wait strategy.
func NewBusySpin() *BusySpin { return &BusySpin{} }

// WaitFor spins until dependent reaches target or the barrier is alerted.
func (w *BusySpin) WaitFor(target int64, _ api.Cursor, dependent api.Cursor, barrier api.Barrier) (int64, error) {
	for {
		if err := barrier.CheckAlert(); err != nil {
			return 0, err
		}
		if avail := dependent.Get(); avail >= target {
			return avail, nil
		}
	}
}

// SignalAllWhenBlocking is a no-op; spinners never park.
func (w *BusySpin) SignalAllWhenBlocking() {}

const yieldSpinTries = 100

// Yielding spins a bounded number of times, then calls runtime.Gosched
// between checks. Low latency without monopolizing a core.
type Yielding struct{}

// NewYielding returns a yielding wait strategy.
func NewYielding() *Yielding { return &Yielding{} }

// WaitFor spins then yields until dependent reaches target.
func (w *Yielding) WaitFor(target int64, _ api.Cursor, dependent api.Cursor, barrier api.Barrier) (int64, error) {
	spins := yieldSpinTries
	for {
		if err := barrier.CheckAlert(); err != nil {
			return 0, err
		}
		if avail := dependent.Get(); avail >= target {
			return avail, nil
		}
		if spins > 0 {
			spins--
		} else {
			runtime.Gosched()
		}
	}
}

// SignalAllWhenBlocking is a no-op; yielders never park.
func (w *Yielding) SignalAllWhenBlocking() {}

// DefaultSleepInterval is the per-iteration sleep once the sleeping strategy
// has exhausted its spin and yield phases.
const DefaultSleepInterval = 100 * time.Microsecond

// Sleeping backs off in three phases: spin, yield, then short sleeps. Lower
// CPU cost than Yielding at the price of wake-up latency.
type Sleeping struct {
	interval time.Duration
}

// NewSleeping returns a sleeping wait strategy with DefaultSleepInterval.
func NewSleeping() *Sleeping {
	return &Sleeping{interval: DefaultSleepInterval}
}

// NewSleepingWithInterval returns a sleeping strategy with a custom tick.
func NewSleepingWithInterval(interval time.Duration) *Sleeping {
	if interval <= 0 {
		interval = DefaultSleepInterval
	}
	return &Sleeping{interval: interval}
}

// WaitFor spins, yields, then sleeps until dependent reaches target.
func (w *Sleeping) WaitFor(target int64, _ api.Cursor, dependent api.Cursor, barrier api.Barrier) (int64, error) {
	spins := 2 * yieldSpinTries
	for {
		if err := barrier.CheckAlert(); err != nil {
			return 0, err
		}
		if avail := dependent.Get(); avail >= target {
			return avail, nil
		}
		switch {
		case spins > yieldSpinTries:
			spins--
		case spins > 0:
			spins--
			runtime.Gosched()
		default:
			time.Sleep(w.interval)
		}
	}
}

// SignalAllWhenBlocking is a no-op; sleepers never park on a condition.
func (w *Sleeping) SignalAllWhenBlocking() {}
