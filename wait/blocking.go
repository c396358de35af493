// File: wait/blocking.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Parking wait strategies. Blocking parks on a condition variable signalled
// by producers after publish; TimeoutBlocking adds a deadline per wait call.
// These are the lowest-CPU, highest-latency options and the only strategies
// that take a lock anywhere near the hot path.

package wait

import (
	"runtime"
	"sync"
	"time"

	"github.com/momentics/hioload-disruptor/api"
)

// Ensure compile-time interface compliance.
var (
	_ api.WaitStrategy = (*Blocking)(nil)
	_ api.WaitStrategy = (*TimeoutBlocking)(nil)
)

// Blocking parks waiting consumers on a condition variable until a producer
// publishes or the barrier is alerted.
type Blocking struct {
	mu   sync.Mutex
	cond *sync.Cond
}

// NewBlocking returns a blocking wait strategy.
func NewBlocking() *Blocking {
	w := &Blocking{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// WaitFor parks until the producer cursor reaches target, then spins on the
// dependent gate. The two-phase structure mirrors the cursor/dependent split:
// only producer progress is signalled; upstream-consumer progress is cheap to
// poll because those consumers are already running.
func (w *Blocking) WaitFor(target int64, cursor api.Cursor, dependent api.Cursor, barrier api.Barrier) (int64, error) {
	if cursor.Get() < target {
		w.mu.Lock()
		for cursor.Get() < target {
			if err := barrier.CheckAlert(); err != nil {
				w.mu.Unlock()
				return 0, err
			}
			w.cond.Wait()
		}
		w.mu.Unlock()
	}
	return spinOnDependent(target, dependent, barrier)
}

// SignalAllWhenBlocking wakes all parked consumers.
func (w *Blocking) SignalAllWhenBlocking() {
	w.mu.Lock()
	w.cond.Broadcast()
	w.mu.Unlock()
}

// DefaultWaitTimeout bounds a single TimeoutBlocking wait call.
const DefaultWaitTimeout = 100 * time.Millisecond

// TimeoutBlocking parks like Blocking but gives up after a fixed duration,
// returning ErrTimeout. Wake-ups are delivered over a broadcast channel that
// is replaced on every signal, so a timed select can race publish signals
// against the deadline without a timed condition variable.
type TimeoutBlocking struct {
	timeout time.Duration

	mu     sync.Mutex
	signal chan struct{}
}

// NewTimeoutBlocking returns a timeout-blocking strategy with the given
// per-call deadline. Non-positive timeouts fall back to DefaultWaitTimeout.
func NewTimeoutBlocking(timeout time.Duration) *TimeoutBlocking {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	return &TimeoutBlocking{
		timeout: timeout,
		signal:  make(chan struct{}),
	}
}

// WaitFor parks until the cursor reaches target, the barrier is alerted, or
// the deadline expires with ErrTimeout.
func (w *TimeoutBlocking) WaitFor(target int64, cursor api.Cursor, dependent api.Cursor, barrier api.Barrier) (int64, error) {
	if cursor.Get() < target {
		timer := time.NewTimer(w.timeout)
		defer timer.Stop()
		for cursor.Get() < target {
			if err := barrier.CheckAlert(); err != nil {
				return 0, err
			}
			w.mu.Lock()
			ch := w.signal
			w.mu.Unlock()
			// Re-check after snapshotting the channel: a publish between the
			// cursor read and the snapshot replaced the channel already.
			if cursor.Get() >= target {
				break
			}
			select {
			case <-ch:
			case <-timer.C:
				return 0, api.ErrTimeout
			}
		}
	}
	return spinOnDependent(target, dependent, barrier)
}

// SignalAllWhenBlocking wakes all parked consumers by retiring the current
// broadcast channel.
func (w *TimeoutBlocking) SignalAllWhenBlocking() {
	w.mu.Lock()
	close(w.signal)
	w.signal = make(chan struct{})
	w.mu.Unlock()
}

// spinOnDependent polls the dependent gate once the producer cursor is known
// to have passed target. Upstream consumers advance without signalling, so a
// yield loop is the right tool here for every parking strategy.
func spinOnDependent(target int64, dependent api.Cursor, barrier api.Barrier) (int64, error) {
	avail := dependent.Get()
	for avail < target {
		if err := barrier.CheckAlert(); err != nil {
			return 0, err
		}
		runtime.Gosched()
		avail = dependent.Get()
	}
	return avail, nil
}
