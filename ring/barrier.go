// File: ring/barrier.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Barrier is what a consumer waits on: the minimum of the producer cursor
// and every upstream consumer it depends on, filtered through the
// sequencer's published window. It also carries the alert flag that makes
// halt() observable at every wait boundary.

package ring

import (
	"sync/atomic"

	"github.com/momentics/hioload-disruptor/api"
	"github.com/momentics/hioload-disruptor/sequence"
)

// Ensure compile-time interface compliance.
var _ api.Barrier = (*Barrier)(nil)

// Barrier gates a consumer group behind the producer cursor and a fixed set
// of upstream sequences. Dependency sets are fixed at construction, which is
// what allows WaitFor to stay lock-free.
type Barrier struct {
	seq       sequencer
	ws        api.WaitStrategy
	cur       *sequence.Sequence
	dependent api.Cursor
	alerted   atomic.Bool
}

func newBarrier(seq sequencer, ws api.WaitStrategy, dependents []*sequence.Sequence) *Barrier {
	b := &Barrier{
		seq: seq,
		ws:  ws,
		cur: seq.cursor(),
	}
	if len(dependents) == 0 {
		b.dependent = b.cur
	} else {
		b.dependent = sequence.NewGroup(dependents...)
	}
	return b
}

// WaitFor blocks per the wait strategy until at least target is available,
// returning the highest sequence that may be processed. The returned value
// may exceed target (batching) and is always gap-free: every sequence up to
// it has been published and passed by all dependencies.
func (b *Barrier) WaitFor(target int64) (int64, error) {
	if err := b.CheckAlert(); err != nil {
		return 0, err
	}
	avail, err := b.ws.WaitFor(target, b.cur, b.dependent, b)
	if err != nil {
		return 0, err
	}
	if avail < target {
		return avail, nil
	}
	return b.seq.highestPublished(target, avail), nil
}

// Cursor returns the current published cursor value.
func (b *Barrier) Cursor() int64 {
	return b.cur.Get()
}

// CheckAlert returns ErrAlerted once Alert has been called.
func (b *Barrier) CheckAlert() error {
	if b.alerted.Load() {
		return api.ErrAlerted
	}
	return nil
}

// Alert moves the barrier into the alerted state and wakes any parked
// waiters. Idempotent.
func (b *Barrier) Alert() {
	if b.alerted.CompareAndSwap(false, true) {
		b.ws.SignalAllWhenBlocking()
	}
}

// ClearAlert re-arms the barrier so a processor can be restarted.
func (b *Barrier) ClearAlert() {
	b.alerted.Store(false)
}

// IsAlerted reports whether the barrier is in the alerted state.
func (b *Barrier) IsAlerted() bool {
	return b.alerted.Load()
}
