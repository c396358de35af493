// File: ring/sequencer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Claim sequencers coordinate slot acquisition on the producer side. The
// single-producer variant is a plain increment with a cached gate; the
// multi-producer variant reserves ranges with a CAS loop and tracks
// publication per slot with lap counters so the published window never
// exposes a gap, regardless of producer completion order.

package ring

import (
	"runtime"
	"sync/atomic"

	"github.com/momentics/hioload-disruptor/api"
	"github.com/momentics/hioload-disruptor/sequence"
)

// sequencer is the producer-side coordination contract shared by both
// cardinalities.
type sequencer interface {
	// next claims n consecutive sequences, blocking under backpressure, and
	// returns the highest claimed sequence.
	next(n int64) int64
	// tryNext claims without blocking, returning ErrInsufficientCapacity
	// when fewer than n slots are free.
	tryNext(n int64) (int64, error)
	// publish makes the claimed range [lo, hi] visible to consumers.
	publish(lo, hi int64)
	// isAvailable reports whether seq has been published.
	isAvailable(seq int64) bool
	// highestPublished returns the highest sequence in [lo, hi] such that
	// every sequence up to and including it has been published.
	highestPublished(lo, hi int64) int64
	// cursor returns the published/claimed cursor sequence.
	cursor() *sequence.Sequence
	// addGating registers consumer sequences the producer must not overtake.
	// Topology setup only, never during steady-state operation.
	addGating(gs ...*sequence.Sequence)
	// remaining returns the number of free slots at this instant.
	remaining() int64
}

// claimWindow computes the head sequence of an n-slot claim from current,
// refusing claims that would wrap past gate. Pure so the claim arithmetic is
// testable in isolation from any threading.
func claimWindow(current, n, bufferSize, gate int64) (int64, bool) {
	next := current + n
	if next-bufferSize > gate {
		return 0, false
	}
	return next, true
}

// gatingHolder carries the gating set behind an atomic copy-on-write value,
// so steady-state reads stay lock-free while setup-time registration remains
// safe.
type gatingHolder struct {
	group atomic.Value // *sequence.Group
}

func (h *gatingHolder) init() {
	h.group.Store(sequence.NewGroup())
}

func (h *gatingHolder) add(gs ...*sequence.Sequence) {
	old := h.group.Load().(*sequence.Group)
	members := make([]*sequence.Sequence, 0, old.Size()+len(gs))
	members = append(members, old.Members()...)
	members = append(members, gs...)
	h.group.Store(sequence.NewGroup(members...))
}

func (h *gatingHolder) minimum(fallback int64) int64 {
	return h.group.Load().(*sequence.Group).Minimum(fallback)
}

// singleSequencer serves exactly one producer goroutine. nextValue and
// cachedGate are owned by that goroutine; only the cursor is shared.
type singleSequencer struct {
	bufferSize int64
	ws         api.WaitStrategy
	cur        *sequence.Sequence
	gating     gatingHolder

	nextValue  int64
	cachedGate int64
}

var _ sequencer = (*singleSequencer)(nil)

func newSingleSequencer(bufferSize int64, ws api.WaitStrategy) *singleSequencer {
	s := &singleSequencer{
		bufferSize: bufferSize,
		ws:         ws,
		cur:        sequence.New(),
		nextValue:  sequence.InitialValue,
		cachedGate: sequence.InitialValue,
	}
	s.gating.init()
	return s
}

func (s *singleSequencer) next(n int64) int64 {
	next := s.nextValue + n
	wrapPoint := next - s.bufferSize
	if wrapPoint > s.cachedGate {
		for {
			min := s.gating.minimum(s.nextValue)
			if wrapPoint <= min {
				s.cachedGate = min
				break
			}
			// Buffer full: the slowest consumer still owns the slot this
			// claim would reuse. Backpressure, not loss.
			runtime.Gosched()
		}
	}
	s.nextValue = next
	return next
}

func (s *singleSequencer) tryNext(n int64) (int64, error) {
	wrapPoint := s.nextValue + n - s.bufferSize
	if wrapPoint > s.cachedGate {
		min := s.gating.minimum(s.nextValue)
		if wrapPoint > min {
			return 0, api.ErrInsufficientCapacity
		}
		s.cachedGate = min
	}
	s.nextValue += n
	return s.nextValue, nil
}

func (s *singleSequencer) publish(_, hi int64) {
	s.cur.Set(hi)
	s.ws.SignalAllWhenBlocking()
}

func (s *singleSequencer) isAvailable(seq int64) bool {
	return seq <= s.cur.Get()
}

func (s *singleSequencer) highestPublished(_, hi int64) int64 {
	// Single producer publishes in order; the cursor itself is gap-free.
	return hi
}

func (s *singleSequencer) cursor() *sequence.Sequence { return s.cur }

func (s *singleSequencer) addGating(gs ...*sequence.Sequence) {
	s.gating.add(gs...)
}

func (s *singleSequencer) remaining() int64 {
	produced := s.nextValue
	consumed := s.gating.minimum(produced)
	return s.bufferSize - (produced - consumed)
}

// multiSequencer serves any number of producer goroutines. The cursor is the
// shared claim counter advanced by CAS; publication is tracked per slot in
// availableBuffer as a lap counter (sequence >> indexShift), so a slow
// producer never blocks a fast one from marking its own slots and consumers
// can scan for the highest contiguous published sequence.
type multiSequencer struct {
	bufferSize int64
	indexMask  int64
	indexShift uint
	ws         api.WaitStrategy
	cur        *sequence.Sequence
	gateCache  *sequence.Sequence
	gating     gatingHolder

	availableBuffer []int32
}

var _ sequencer = (*multiSequencer)(nil)

func newMultiSequencer(bufferSize int64, ws api.WaitStrategy) *multiSequencer {
	s := &multiSequencer{
		bufferSize:      bufferSize,
		indexMask:       bufferSize - 1,
		indexShift:      log2(bufferSize),
		ws:              ws,
		cur:             sequence.New(),
		gateCache:       sequence.New(),
		availableBuffer: make([]int32, bufferSize),
	}
	s.gating.init()
	for i := range s.availableBuffer {
		s.availableBuffer[i] = -1
	}
	return s
}

func (s *multiSequencer) next(n int64) int64 {
	for {
		current := s.cur.Get()
		cached := s.gateCache.Get()
		next, ok := claimWindow(current, n, s.bufferSize, cached)
		if !ok || cached > current {
			gate := s.gating.minimum(current)
			if _, ok := claimWindow(current, n, s.bufferSize, gate); !ok {
				runtime.Gosched()
				continue
			}
			s.gateCache.Set(gate)
			continue
		}
		if s.cur.CompareAndSet(current, next) {
			return next
		}
		// CAS lost to another producer; invisible to the caller.
	}
}

func (s *multiSequencer) tryNext(n int64) (int64, error) {
	for {
		current := s.cur.Get()
		next, ok := claimWindow(current, n, s.bufferSize, s.gating.minimum(current))
		if !ok {
			return 0, api.ErrInsufficientCapacity
		}
		if s.cur.CompareAndSet(current, next) {
			return next, nil
		}
	}
}

func (s *multiSequencer) publish(lo, hi int64) {
	for seq := lo; seq <= hi; seq++ {
		s.setAvailable(seq)
	}
	s.ws.SignalAllWhenBlocking()
}

func (s *multiSequencer) setAvailable(seq int64) {
	atomic.StoreInt32(&s.availableBuffer[seq&s.indexMask], int32(seq>>s.indexShift))
}

func (s *multiSequencer) isAvailable(seq int64) bool {
	return atomic.LoadInt32(&s.availableBuffer[seq&s.indexMask]) == int32(seq>>s.indexShift)
}

func (s *multiSequencer) highestPublished(lo, hi int64) int64 {
	for seq := lo; seq <= hi; seq++ {
		if !s.isAvailable(seq) {
			return seq - 1
		}
	}
	return hi
}

func (s *multiSequencer) cursor() *sequence.Sequence { return s.cur }

func (s *multiSequencer) addGating(gs ...*sequence.Sequence) {
	s.gating.add(gs...)
}

func (s *multiSequencer) remaining() int64 {
	produced := s.cur.Get()
	consumed := s.gating.minimum(produced)
	return s.bufferSize - (produced - consumed)
}

// log2 of a power of two.
func log2(v int64) uint {
	var r uint
	for v > 1 {
		v >>= 1
		r++
	}
	return r
}
