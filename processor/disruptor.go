// File: processor/disruptor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Disruptor is the topology builder and lifecycle owner. HandleWith starts a
// consumer group gated on the producer cursor; each Then chains a group
// gated on the previous one, which expresses pipelines, diamonds, and
// multicast fan-out. Start registers every chain-end group — each group no
// Then was built on — as the ring's gating set and launches one goroutine
// per processor.

package processor

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-disruptor/api"
	"github.com/momentics/hioload-disruptor/control"
	"github.com/momentics/hioload-disruptor/ring"
	"github.com/momentics/hioload-disruptor/sequence"
)

// consumerGroup is one HandleWith/Then stage. chainEnd marks groups no
// downstream stage depends on; producers gate on exactly those, since a
// chain-end sequence is always the furthest-behind point of its chain.
type consumerGroup struct {
	seqs     []*sequence.Sequence
	chainEnd bool
}

// Disruptor composes a ring with a consumer dependency graph.
type Disruptor[T any] struct {
	rb      *ring.RingBuffer[T]
	metrics *control.MetricsRegistry

	processors []*Processor[T]
	groups     []*consumerGroup
	last       *consumerGroup
	started    atomic.Bool

	wg      sync.WaitGroup
	faultMu sync.Mutex
	faults  []error
}

// NewDisruptor constructs a disruptor over a fresh ring. Capacity must be a
// positive power of two.
func NewDisruptor[T any](capacity int64, mode ring.ProducerMode, ws api.WaitStrategy) (*Disruptor[T], error) {
	rb, err := ring.New[T](capacity, mode, ws)
	if err != nil {
		return nil, err
	}
	return &Disruptor[T]{rb: rb}, nil
}

// WithMetrics attaches a registry that all subsequently added processors
// report into.
func (d *Disruptor[T]) WithMetrics(mr *control.MetricsRegistry) *Disruptor[T] {
	d.metrics = mr
	return d
}

// Ring returns the underlying ring buffer for producers.
func (d *Disruptor[T]) Ring() *ring.RingBuffer[T] {
	return d.rb
}

// HandleWith adds a consumer group gated on the producer cursor alone. Each
// handler gets its own processor and observes every event (multicast).
// Repeated HandleWith calls create independent chains; every chain's end
// gates producers.
func (d *Disruptor[T]) HandleWith(handlers ...api.EventHandler[T]) *Disruptor[T] {
	return d.addGroup(nil, handlers)
}

// Then adds a consumer group gated on the previously added group, so a
// downstream stage only proceeds past sequences its upstream dependencies
// have fully processed. Calling Then after a two-handler HandleWith with a
// single handler closes a diamond.
func (d *Disruptor[T]) Then(handlers ...api.EventHandler[T]) *Disruptor[T] {
	return d.addGroup(d.last, handlers)
}

func (d *Disruptor[T]) addGroup(upstream *consumerGroup, handlers []api.EventHandler[T]) *Disruptor[T] {
	if d.started.Load() {
		panic("disruptor: topology is fixed once started")
	}
	var dependents []*sequence.Sequence
	if upstream != nil {
		dependents = upstream.seqs
		// The upstream group is now covered by this one for gating purposes.
		upstream.chainEnd = false
	}
	group := &consumerGroup{chainEnd: true}
	for _, h := range handlers {
		p := New(d.rb, d.rb.NewBarrier(dependents...), h,
			WithName(fmt.Sprintf("processor-%d", len(d.processors))),
			WithMetrics(d.metrics))
		d.processors = append(d.processors, p)
		group.seqs = append(group.seqs, p.Sequence())
	}
	d.groups = append(d.groups, group)
	d.last = group
	return d
}

// gatingSequences returns the sequences of every chain-end group. Producers
// must never overtake any of them, or an unconsumed slot would be reused.
func (d *Disruptor[T]) gatingSequences() []*sequence.Sequence {
	var out []*sequence.Sequence
	for _, g := range d.groups {
		if g.chainEnd {
			out = append(out, g.seqs...)
		}
	}
	return out
}

// Start registers every chain-end consumer group as the producer gating set
// and launches each processor on its own goroutine. Must be called exactly
// once after the topology is complete.
func (d *Disruptor[T]) Start() error {
	if len(d.processors) == 0 {
		return api.NewError(api.ErrCodeInternal, "disruptor has no consumers").
			WithContext("component", "disruptor")
	}
	if !d.started.CompareAndSwap(false, true) {
		return api.ErrProcessorRunning
	}
	d.rb.AddGatingSequences(d.gatingSequences()...)
	for _, p := range d.processors {
		d.wg.Add(1)
		go func(p *Processor[T]) {
			defer d.wg.Done()
			if err := p.Run(); err != nil {
				d.faultMu.Lock()
				d.faults = append(d.faults, err)
				d.faultMu.Unlock()
				if d.metrics != nil {
					d.metrics.Add("faults."+api.CodeOf(err).String(), 1)
				}
			}
		}(p)
	}
	return nil
}

// Halt alerts every processor and waits for their goroutines to exit.
// Idempotent; events not yet consumed stay unconsumed.
func (d *Disruptor[T]) Halt() {
	for _, p := range d.processors {
		p.Halt()
	}
	d.wg.Wait()
}

// DrainAndHalt waits until every chain-end consumer has processed everything
// published, then halts. Producers must have stopped publishing first.
func (d *Disruptor[T]) DrainAndHalt() {
	cursor := d.rb.Cursor()
	gate := sequence.NewGroup(d.gatingSequences()...)
	for {
		cur := cursor.Get()
		if gate.Minimum(cur) >= cur {
			break
		}
		// A faulted processor never catches up; don't wait on it.
		d.faultMu.Lock()
		faulted := len(d.faults) > 0
		d.faultMu.Unlock()
		if faulted {
			break
		}
		runtime.Gosched()
	}
	d.Halt()
}

// Faults returns handler errors collected from halted processors.
func (d *Disruptor[T]) Faults() []error {
	d.faultMu.Lock()
	defer d.faultMu.Unlock()
	out := make([]error, len(d.faults))
	copy(out, d.faults)
	return out
}
