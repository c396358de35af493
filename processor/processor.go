// File: processor/processor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Processor is the consumer loop: wait for newly published sequences via the
// barrier, invoke the handler once per event in order, advance the owned
// sequence after each batch. Handler errors halt this processor only and
// leave its sequence at the last successfully handled event, so a restart
// resumes exactly after it.

package processor

import (
	"errors"
	"log"
	"runtime"
	"sync/atomic"

	"github.com/momentics/hioload-disruptor/affinity"
	"github.com/momentics/hioload-disruptor/api"
	"github.com/momentics/hioload-disruptor/control"
	"github.com/momentics/hioload-disruptor/ring"
	"github.com/momentics/hioload-disruptor/sequence"
)

const (
	stateIdle int32 = iota
	stateHalted
	stateRunning
)

// Processor owns one consumer goroutine over a ring.
type Processor[T any] struct {
	rb      *ring.RingBuffer[T]
	barrier *ring.Barrier
	handler api.EventHandler[T]
	seq     *sequence.Sequence
	state   atomic.Int32

	name    string
	cpuID   int
	metrics *control.MetricsRegistry
}

// New creates a processor reading from rb through barrier. The barrier
// encodes the processor's upstream dependencies; a barrier with no
// dependents gates on the producer cursor alone.
func New[T any](rb *ring.RingBuffer[T], barrier *ring.Barrier, handler api.EventHandler[T], opts ...Option) *Processor[T] {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return &Processor[T]{
		rb:      rb,
		barrier: barrier,
		handler: handler,
		seq:     sequence.New(),
		name:    s.name,
		cpuID:   s.cpuID,
		metrics: s.metrics,
	}
}

// Sequence returns the processor's progress sequence, used for gating and
// downstream barriers.
func (p *Processor[T]) Sequence() *sequence.Sequence {
	return p.seq
}

// Name returns the processor name.
func (p *Processor[T]) Name() string {
	return p.name
}

// IsRunning reports whether Run is currently active.
func (p *Processor[T]) IsRunning() bool {
	return p.state.Load() == stateRunning
}

// Halt requests cooperative shutdown. The processor observes the alert at
// its next wait boundary; the event being handled always completes first.
// The state is moved to halted before the alert is raised so a Halt racing
// Run's startup is never lost: Run re-checks the state after re-arming the
// barrier. Idempotent: repeated calls have the effect of one.
func (p *Processor[T]) Halt() {
	p.state.Store(stateHalted)
	p.barrier.Alert()
}

// Run executes the consumer loop until halted or the handler fails. It
// returns nil on cooperative shutdown and a *api.HandlerError when the
// handler raised; the processor may be restarted afterwards and resumes
// after the last successfully handled sequence.
func (p *Processor[T]) Run() error {
	if !p.state.CompareAndSwap(stateIdle, stateRunning) {
		if p.state.Load() == stateRunning {
			return api.ErrProcessorRunning
		}
		// A halt arrived before this run began; honor it and leave the
		// processor restartable.
		p.state.Store(stateIdle)
		p.count("halts", 1)
		return nil
	}
	defer p.state.Store(stateIdle)

	if p.cpuID >= 0 {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := affinity.Pin(p.cpuID); err != nil {
			log.Printf("processor %s: %v", p.name, err)
		}
	}

	p.barrier.ClearAlert()
	if lc, ok := p.handler.(api.LifecycleAware); ok {
		lc.OnStart()
		defer lc.OnShutdown()
	}

	// A halt issued between the state CAS and ClearAlert above would have
	// had its alert erased; the state re-check closes that window.
	if p.state.Load() != stateRunning {
		p.count("halts", 1)
		return nil
	}

	next := p.seq.Get() + 1
	for {
		avail, err := p.barrier.WaitFor(next)
		switch {
		case err == nil:
		case errors.Is(err, api.ErrAlerted):
			p.count("halts", 1)
			return nil
		case errors.Is(err, api.ErrTimeout):
			continue
		default:
			p.count("halts", 1)
			return err
		}
		if avail < next {
			continue
		}

		batchStart := next
		for ; next <= avail; next++ {
			event := p.rb.Get(next)
			if herr := p.handler.OnEvent(event, next, next == avail); herr != nil {
				// Keep the sequence at the last successful event so slots up
				// to it are released and a restart resumes after it.
				p.seq.Set(next - 1)
				p.count("processed", next-batchStart)
				p.count("halts", 1)
				return &api.HandlerError{Sequence: next, Err: herr}
			}
		}
		p.seq.Set(avail)
		p.count("processed", avail-batchStart+1)
		p.count("batches", 1)
	}
}

func (p *Processor[T]) count(key string, delta int64) {
	if p.metrics != nil {
		p.metrics.Add(p.name+"."+key, delta)
	}
}
