// File: sequence/sequence.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cache-line padded atomic sequence counter. The pads before and after the
// value keep two adjacent Sequence allocations from sharing a line.

package sequence

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/momentics/hioload-disruptor/api"
)

// InitialValue is the sentinel position before the first slot.
const InitialValue int64 = -1

// Ensure compile-time interface compliance.
var _ api.Cursor = (*Sequence)(nil)

// Sequence is a monotonically increasing 64-bit counter with atomic
// read/modify operations. It represents either the highest published slot
// (producer cursor) or the highest slot a consumer has fully processed.
type Sequence struct {
	_     cpu.CacheLinePad
	value atomic.Int64
	_     cpu.CacheLinePad
}

// New creates a Sequence starting at InitialValue.
func New() *Sequence {
	return NewAt(InitialValue)
}

// NewAt creates a Sequence starting at the given value.
func NewAt(initial int64) *Sequence {
	s := &Sequence{}
	s.value.Store(initial)
	return s
}

// Get returns the current value with acquire semantics.
func (s *Sequence) Get() int64 {
	return s.value.Load()
}

// Set stores a new value with release semantics. Every write to a slot made
// before Set is visible to any thread that subsequently observes the new
// value via Get.
func (s *Sequence) Set(v int64) {
	s.value.Store(v)
}

// CompareAndSet atomically replaces expected with next, reporting success.
func (s *Sequence) CompareAndSet(expected, next int64) bool {
	return s.value.CompareAndSwap(expected, next)
}

// IncrementAndGet atomically increments the value and returns the result.
func (s *Sequence) IncrementAndGet() int64 {
	return s.value.Add(1)
}

// AddAndGet atomically adds delta and returns the result.
func (s *Sequence) AddAndGet(delta int64) int64 {
	return s.value.Add(delta)
}
