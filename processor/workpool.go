// File: processor/workpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WorkPool distributes events across competing workers: each published
// sequence is handled by exactly one pool member. Workers race on a shared
// work sequence with CAS to claim the next unit; each worker's own sequence
// trails its claims so the pool as a whole gates producers correctly.

package processor

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-disruptor/api"
	"github.com/momentics/hioload-disruptor/ring"
	"github.com/momentics/hioload-disruptor/sequence"
)

// WorkPool runs one goroutine per handler, each claiming work units from a
// shared sequence.
type WorkPool[T any] struct {
	rb      *ring.RingBuffer[T]
	barrier *ring.Barrier
	workSeq *sequence.Sequence
	workers []*worker[T]
	started atomic.Bool

	wg      sync.WaitGroup
	faultMu sync.Mutex
	faults  []error
}

// NewWorkPool builds a pool of one worker per handler, gated on the producer
// cursor. Worker sequences are registered as the ring's gating set on Start.
func NewWorkPool[T any](rb *ring.RingBuffer[T], handlers ...api.EventHandler[T]) *WorkPool[T] {
	p := &WorkPool[T]{
		rb:      rb,
		barrier: rb.NewBarrier(),
		workSeq: sequence.New(),
	}
	for _, h := range handlers {
		p.workers = append(p.workers, &worker[T]{
			pool:    p,
			handler: h,
			seq:     sequence.New(),
		})
	}
	return p
}

// WorkerSequences returns each worker's progress sequence. The pool's
// effective progress is their minimum.
func (p *WorkPool[T]) WorkerSequences() []*sequence.Sequence {
	out := make([]*sequence.Sequence, len(p.workers))
	for i, w := range p.workers {
		out[i] = w.seq
	}
	return out
}

// Start registers worker sequences as the gating set and launches the
// workers. Must be called once.
func (p *WorkPool[T]) Start() error {
	if len(p.workers) == 0 {
		return api.NewError(api.ErrCodeInternal, "work pool has no workers").
			WithContext("component", "workpool")
	}
	if !p.started.CompareAndSwap(false, true) {
		return api.ErrProcessorRunning
	}
	p.rb.AddGatingSequences(p.WorkerSequences()...)
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *worker[T]) {
			defer p.wg.Done()
			w.run()
		}(w)
	}
	return nil
}

// Halt alerts all workers and waits for them to exit. Idempotent.
func (p *WorkPool[T]) Halt() {
	p.barrier.Alert()
	p.wg.Wait()
}

// Faults returns handler errors collected from stopped workers.
func (p *WorkPool[T]) Faults() []error {
	p.faultMu.Lock()
	defer p.faultMu.Unlock()
	out := make([]error, len(p.faults))
	copy(out, p.faults)
	return out
}

type worker[T any] struct {
	pool    *WorkPool[T]
	handler api.EventHandler[T]
	seq     *sequence.Sequence
}

func (w *worker[T]) run() {
	if lc, ok := w.handler.(api.LifecycleAware); ok {
		lc.OnStart()
		defer lc.OnShutdown()
	}

	available := sequence.InitialValue
	var next int64
	claimed := false
	for {
		if !claimed {
			// Race other workers for the next unit. The worker's own
			// sequence is parked just below its claim so producers never
			// overwrite a unit still being handled.
			for {
				next = w.pool.workSeq.Get() + 1
				w.seq.Set(next - 1)
				if w.pool.workSeq.CompareAndSet(next-1, next) {
					break
				}
			}
			claimed = true
		}

		if available >= next {
			event := w.pool.rb.Get(next)
			err := w.handler.OnEvent(event, next, true)
			if err != nil {
				w.pool.faultMu.Lock()
				w.pool.faults = append(w.pool.faults, &api.HandlerError{Sequence: next, Err: err})
				w.pool.faultMu.Unlock()
				return
			}
			claimed = false
			continue
		}

		avail, err := w.pool.barrier.WaitFor(next)
		switch {
		case err == nil:
			available = avail
		case errors.Is(err, api.ErrTimeout):
			continue
		default:
			return
		}
	}
}
