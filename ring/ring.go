// File: ring/ring.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RingBuffer composes the pre-allocated slot store with a claim sequencer.
// Producers claim, fill, and publish; consumers read through barriers.
// Publish is the single visibility boundary of the whole design: every write
// into a slot is ordered before the sequence update that exposes it.

package ring

import (
	"fmt"

	"github.com/momentics/hioload-disruptor/api"
	"github.com/momentics/hioload-disruptor/sequence"
)

// ProducerMode selects the claim sequencer cardinality at construction.
type ProducerMode int

const (
	// SingleProducer: exactly one goroutine claims and publishes.
	SingleProducer ProducerMode = iota
	// MultiProducer: any number of goroutines claim concurrently via CAS.
	MultiProducer
)

// RingBuffer is a fixed-capacity circular buffer of pre-allocated event
// slots. Capacity is fixed at construction; slots are reused in place and
// never allocated per event.
type RingBuffer[T any] struct {
	slots []T
	mask  int64
	seq   sequencer
	ws    api.WaitStrategy
}

// New constructs a ring of the given capacity. Capacity must be a positive
// power of two; anything else fails with ErrInvalidCapacity.
func New[T any](capacity int64, mode ProducerMode, ws api.WaitStrategy) (*RingBuffer[T], error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("%w: got %d", api.ErrInvalidCapacity, capacity)
	}
	var seq sequencer
	switch mode {
	case MultiProducer:
		seq = newMultiSequencer(capacity, ws)
	default:
		seq = newSingleSequencer(capacity, ws)
	}
	return &RingBuffer[T]{
		slots: make([]T, capacity),
		mask:  capacity - 1,
		seq:   seq,
		ws:    ws,
	}, nil
}

// Get returns the slot for a sequence. The mask always yields a valid index;
// correctness depends on the claim/publish protocol, not bounds checks.
// Producers may write through the pointer only while holding the claim;
// consumers treat it as read-only and must not retain it past their batch.
func (r *RingBuffer[T]) Get(seq int64) *T {
	return &r.slots[seq&r.mask]
}

// Next claims the next sequence for writing, blocking while the buffer is
// full until the slowest gating consumer frees the slot.
func (r *RingBuffer[T]) Next() int64 {
	return r.seq.next(1)
}

// NextN claims n consecutive sequences, returning the highest. The claimed
// range is [returned-n+1, returned].
func (r *RingBuffer[T]) NextN(n int64) int64 {
	if n < 1 {
		panic("ring: NextN requires n >= 1")
	}
	return r.seq.next(n)
}

// TryNext claims the next sequence without blocking, returning
// ErrInsufficientCapacity when the buffer is full.
func (r *RingBuffer[T]) TryNext() (int64, error) {
	return r.seq.tryNext(1)
}

// TryNextN claims n consecutive sequences without blocking.
func (r *RingBuffer[T]) TryNextN(n int64) (int64, error) {
	if n < 1 {
		panic("ring: TryNextN requires n >= 1")
	}
	return r.seq.tryNext(n)
}

// Publish makes a claimed, now-filled slot visible to consumers. Callers
// must not touch the slot after publishing.
func (r *RingBuffer[T]) Publish(seq int64) {
	r.seq.publish(seq, seq)
}

// PublishRange publishes the claimed range [lo, hi].
func (r *RingBuffer[T]) PublishRange(lo, hi int64) {
	r.seq.publish(lo, hi)
}

// PublishEvent claims one slot, lets fn fill it, and publishes. The slot
// pointer is only valid inside fn.
func (r *RingBuffer[T]) PublishEvent(fn func(event *T, seq int64)) int64 {
	seq := r.seq.next(1)
	fn(r.Get(seq), seq)
	r.seq.publish(seq, seq)
	return seq
}

// IsAvailable reports whether seq has been published and not yet wrapped.
func (r *RingBuffer[T]) IsAvailable(seq int64) bool {
	return r.seq.isAvailable(seq)
}

// Cursor returns the published cursor sequence.
func (r *RingBuffer[T]) Cursor() *sequence.Sequence {
	return r.seq.cursor()
}

// Capacity returns the fixed slot count.
func (r *RingBuffer[T]) Capacity() int64 {
	return r.mask + 1
}

// RemainingCapacity returns the number of free slots at this instant.
func (r *RingBuffer[T]) RemainingCapacity() int64 {
	return r.seq.remaining()
}

// AddGatingSequences registers consumer sequences the producer side must not
// overtake. Topology setup only; never call concurrently with steady-state
// claims.
func (r *RingBuffer[T]) AddGatingSequences(gs ...*sequence.Sequence) {
	r.seq.addGating(gs...)
}

// NewBarrier builds a consumer barrier gated on the producer cursor and the
// given upstream sequences. An empty dependency set gates on the cursor
// alone.
func (r *RingBuffer[T]) NewBarrier(dependents ...*sequence.Sequence) *Barrier {
	return newBarrier(r.seq, r.ws, dependents)
}
