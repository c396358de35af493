// File: processor/processor_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package processor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-disruptor/api"
	"github.com/momentics/hioload-disruptor/control"
	"github.com/momentics/hioload-disruptor/ring"
	"github.com/momentics/hioload-disruptor/wait"
)

type tradeEvent struct {
	Counter int64
	Payload int64
}

// countingHandler tallies events and records its highest seen sequence.
type countingHandler struct {
	count   atomic.Int64
	highest atomic.Int64
	sum     atomic.Int64
}

func newCountingHandler() *countingHandler {
	h := &countingHandler{}
	h.highest.Store(-1)
	return h
}

func (h *countingHandler) OnEvent(ev *tradeEvent, seq int64, _ bool) error {
	h.count.Add(1)
	h.sum.Add(ev.Counter)
	h.highest.Store(seq)
	return nil
}

func publishAll(rb *ring.RingBuffer[tradeEvent], total int64) {
	for i := int64(0); i < total; i++ {
		seq := rb.Next()
		rb.Get(seq).Counter = seq
		rb.Publish(seq)
	}
}

// Single producer, three independent consumers: each must observe all N
// events, not N/3.
func TestMulticastEveryConsumerSeesEverything(t *testing.T) {
	const total = 5000
	d, err := NewDisruptor[tradeEvent](256, ring.SingleProducer, wait.NewYielding())
	require.NoError(t, err)

	handlers := []*countingHandler{newCountingHandler(), newCountingHandler(), newCountingHandler()}
	d.HandleWith(handlers[0], handlers[1], handlers[2])
	require.NoError(t, d.Start())

	publishAll(d.Ring(), total)
	d.DrainAndHalt()

	var wantSum int64
	for i := int64(0); i < total; i++ {
		wantSum += i
	}
	for i, h := range handlers {
		assert.Equal(t, int64(total), h.count.Load(), "consumer %d", i)
		assert.Equal(t, wantSum, h.sum.Load(), "consumer %d", i)
	}
	assert.Empty(t, d.Faults())
}

// Diamond topology: the aggregator must never observe a sequence before both
// parallel parents have processed it.
func TestDiamondTopology(t *testing.T) {
	const total = 5000
	d, err := NewDisruptor[tradeEvent](128, ring.SingleProducer, wait.NewYielding())
	require.NoError(t, err)

	left := newCountingHandler()
	right := newCountingHandler()
	var violations atomic.Int64
	var aggCount atomic.Int64
	agg := api.EventHandlerFunc[tradeEvent](func(ev *tradeEvent, seq int64, _ bool) error {
		if left.highest.Load() < seq || right.highest.Load() < seq {
			violations.Add(1)
		}
		aggCount.Add(1)
		return nil
	})

	d.HandleWith(left, right).Then(agg)
	require.NoError(t, d.Start())

	publishAll(d.Ring(), total)
	d.DrainAndHalt()

	assert.Equal(t, int64(0), violations.Load())
	assert.Equal(t, int64(total), aggCount.Load())
	assert.Equal(t, int64(total), left.count.Load())
	assert.Equal(t, int64(total), right.count.Load())
}

// Three-stage pipeline: each stage sees events in order after its upstream.
func TestPipelineOrdering(t *testing.T) {
	const total = 2000
	d, err := NewDisruptor[tradeEvent](64, ring.SingleProducer, wait.NewSleeping())
	require.NoError(t, err)

	stage1 := api.EventHandlerFunc[tradeEvent](func(ev *tradeEvent, seq int64, _ bool) error {
		ev.Payload = ev.Counter * 2
		return nil
	})
	var badOrder atomic.Int64
	var last atomic.Int64
	last.Store(-1)
	stage2 := api.EventHandlerFunc[tradeEvent](func(ev *tradeEvent, seq int64, _ bool) error {
		if seq != last.Load()+1 || ev.Payload != ev.Counter*2 {
			badOrder.Add(1)
		}
		last.Store(seq)
		return nil
	})

	d.HandleWith(stage1).Then(stage2)
	require.NoError(t, d.Start())

	publishAll(d.Ring(), total)
	d.DrainAndHalt()

	assert.Equal(t, int64(0), badOrder.Load())
	assert.Equal(t, int64(total-1), last.Load())
}

// Halt is idempotent and cooperative: repeated calls behave like one.
func TestHaltIdempotent(t *testing.T) {
	d, err := NewDisruptor[tradeEvent](64, ring.SingleProducer, wait.NewBlocking())
	require.NoError(t, err)
	d.HandleWith(newCountingHandler())
	require.NoError(t, d.Start())

	publishAll(d.Ring(), 10)
	d.Halt()
	d.Halt()
	d.Halt()
	assert.Empty(t, d.Faults())
}

// A handler error halts only its own processor; the sibling consumer still
// processes everything, and the faulted processor's sequence stops at the
// last successful event. The total stays under the faulted gate (4 + 64) so
// the producer is never backpressured by the dead consumer.
func TestHandlerErrorIsolation(t *testing.T) {
	const total = 60
	boom := errors.New("boom")

	d, err := NewDisruptor[tradeEvent](64, ring.SingleProducer, wait.NewYielding())
	require.NoError(t, err)

	failing := api.EventHandlerFunc[tradeEvent](func(ev *tradeEvent, seq int64, _ bool) error {
		if seq == 5 {
			return boom
		}
		return nil
	})
	healthy := newCountingHandler()
	mr := control.NewMetricsRegistry()
	d.WithMetrics(mr).HandleWith(failing, healthy)
	require.NoError(t, d.Start())

	publishAll(d.Ring(), total)

	// The healthy consumer finishes all events despite the sibling fault.
	deadline := time.After(10 * time.Second)
	for healthy.count.Load() < total {
		select {
		case <-deadline:
			t.Fatalf("healthy consumer stalled at %d", healthy.count.Load())
		default:
			time.Sleep(time.Millisecond)
		}
	}
	d.Halt()

	faults := d.Faults()
	require.Len(t, faults, 1)
	var herr *api.HandlerError
	require.True(t, errors.As(faults[0], &herr))
	assert.Equal(t, int64(5), herr.Sequence)
	assert.True(t, errors.Is(faults[0], boom))

	// Faulted processor halted after the last successful event.
	assert.Equal(t, int64(4), d.processors[0].Sequence().Get())
	assert.Equal(t, int64(total), healthy.count.Load())
	assert.Equal(t, int64(1), mr.Get("faults.handler"))
}

// Every independent consumer chain gates producers: with one chain parked at
// its first event, a capacity-8 ring admits exactly 8 claims even though the
// other chain keeps up.
func TestAllChainsGateProducers(t *testing.T) {
	d, err := NewDisruptor[tradeEvent](8, ring.SingleProducer, wait.NewYielding())
	require.NoError(t, err)

	release := make(chan struct{})
	parked := api.EventHandlerFunc[tradeEvent](func(ev *tradeEvent, seq int64, _ bool) error {
		<-release
		return nil
	})
	fast := newCountingHandler()
	d.HandleWith(parked)
	d.HandleWith(fast)
	require.NoError(t, d.Start())

	rb := d.Ring()
	claims := 0
	for {
		seq, err := rb.TryNext()
		if err != nil {
			require.True(t, errors.Is(err, api.ErrInsufficientCapacity))
			break
		}
		rb.Get(seq).Counter = seq
		rb.Publish(seq)
		claims++
	}
	// The parked chain's sequence is still at -1, so the ninth claim would
	// overwrite its unconsumed slot.
	assert.Equal(t, 8, claims)

	close(release)
	d.DrainAndHalt()
	assert.Equal(t, int64(8), fast.count.Load())
	assert.Empty(t, d.Faults())
}

// The wait must gate the faulted processor's ring slots: with the failed
// consumer parked at sequence 4, a capacity-64 ring admits only 68 claims.
func TestFaultedProcessorStillGates(t *testing.T) {
	boom := errors.New("boom")
	d, err := NewDisruptor[tradeEvent](64, ring.SingleProducer, wait.NewYielding())
	require.NoError(t, err)

	failing := api.EventHandlerFunc[tradeEvent](func(ev *tradeEvent, seq int64, _ bool) error {
		if seq == 4 {
			return boom
		}
		return nil
	})
	d.HandleWith(failing)
	require.NoError(t, d.Start())

	publishAll(d.Ring(), 10)
	for len(d.Faults()) == 0 {
		time.Sleep(time.Millisecond)
	}

	rb := d.Ring()
	extraClaims := 0
	for {
		if _, err := rb.TryNext(); err != nil {
			assert.True(t, errors.Is(err, api.ErrInsufficientCapacity))
			break
		}
		extraClaims++
	}
	// 10 claims already made; claims admitted up to 3+64, so 58 more.
	assert.Equal(t, 58, extraClaims)
	assert.Equal(t, int64(0), rb.RemainingCapacity())
	d.Halt()
}

// End-of-batch flag: the last event of each delivered batch is marked, and
// every batch has exactly one marked event.
func TestEndOfBatchFlag(t *testing.T) {
	const total = 500
	d, err := NewDisruptor[tradeEvent](64, ring.SingleProducer, wait.NewBlocking())
	require.NoError(t, err)

	var events, batchEnds atomic.Int64
	h := api.EventHandlerFunc[tradeEvent](func(ev *tradeEvent, seq int64, endOfBatch bool) error {
		events.Add(1)
		if endOfBatch {
			batchEnds.Add(1)
		}
		return nil
	})
	mr := control.NewMetricsRegistry()
	d.WithMetrics(mr).HandleWith(h)
	require.NoError(t, d.Start())

	publishAll(d.Ring(), total)
	d.DrainAndHalt()

	assert.Equal(t, int64(total), events.Load())
	assert.Equal(t, mr.Get("processor-0.batches"), batchEnds.Load())
	assert.Equal(t, int64(total), mr.Get("processor-0.processed"))
	assert.GreaterOrEqual(t, mr.Get("processor-0.halts"), int64(1))
}

// lifecycleHandler records start/shutdown notifications.
type lifecycleHandler struct {
	countingHandler
	started  atomic.Int64
	shutdown atomic.Int64
}

func (h *lifecycleHandler) OnStart()    { h.started.Add(1) }
func (h *lifecycleHandler) OnShutdown() { h.shutdown.Add(1) }

func TestLifecycleNotifications(t *testing.T) {
	d, err := NewDisruptor[tradeEvent](64, ring.SingleProducer, wait.NewSleeping())
	require.NoError(t, err)

	h := &lifecycleHandler{}
	h.highest.Store(-1)
	d.HandleWith(h)
	require.NoError(t, d.Start())
	publishAll(d.Ring(), 10)
	d.DrainAndHalt()

	assert.Equal(t, int64(1), h.started.Load())
	assert.Equal(t, int64(1), h.shutdown.Load())
}

// Run on an already running processor must refuse.
func TestDoubleRunRefused(t *testing.T) {
	rb, err := ring.New[tradeEvent](64, ring.SingleProducer, wait.NewBlocking())
	require.NoError(t, err)

	p := New(rb, rb.NewBarrier(), newCountingHandler())
	rb.AddGatingSequences(p.Sequence())

	go p.Run()
	for !p.IsRunning() {
		time.Sleep(time.Millisecond)
	}
	assert.True(t, errors.Is(p.Run(), api.ErrProcessorRunning))
	p.Halt()
}

// A halt issued before Run begins must not be lost: Run observes it and
// returns promptly instead of re-arming the barrier and parking forever.
func TestHaltBeforeRunNotLost(t *testing.T) {
	rb, err := ring.New[tradeEvent](64, ring.SingleProducer, wait.NewBlocking())
	require.NoError(t, err)
	p := New(rb, rb.NewBarrier(), newCountingHandler())
	rb.AddGatingSequences(p.Sequence())

	p.Halt()
	done := make(chan error, 1)
	go func() { done <- p.Run() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not observe the earlier halt")
	}

	// The processor stays restartable after a pre-run halt.
	go func() { done <- p.Run() }()
	for !p.IsRunning() {
		time.Sleep(time.Millisecond)
	}
	p.Halt()
	require.NoError(t, <-done)
}

// Start immediately followed by Halt must terminate every time, however the
// halt interleaves with processor startup.
func TestStartHaltRace(t *testing.T) {
	for i := 0; i < 50; i++ {
		d, err := NewDisruptor[tradeEvent](8, ring.SingleProducer, wait.NewBlocking())
		require.NoError(t, err)
		d.HandleWith(newCountingHandler())
		require.NoError(t, d.Start())

		done := make(chan struct{})
		go func() {
			d.Halt()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("iteration %d: halt never completed", i)
		}
	}
}

// A faulted processor restarted with Run resumes after the last successful
// sequence.
func TestRestartAfterFaultResumes(t *testing.T) {
	boom := errors.New("boom")
	rb, err := ring.New[tradeEvent](64, ring.SingleProducer, wait.NewYielding())
	require.NoError(t, err)

	var failOnce atomic.Bool
	failOnce.Store(true)
	var seen []int64
	var mu sync.Mutex
	h := api.EventHandlerFunc[tradeEvent](func(ev *tradeEvent, seq int64, _ bool) error {
		if seq == 3 && failOnce.CompareAndSwap(true, false) {
			return boom
		}
		mu.Lock()
		seen = append(seen, seq)
		mu.Unlock()
		return nil
	})

	p := New(rb, rb.NewBarrier(), h)
	rb.AddGatingSequences(p.Sequence())
	publishAll(rb, 6)

	var herr *api.HandlerError
	require.True(t, errors.As(p.Run(), &herr))
	require.Equal(t, int64(3), herr.Sequence)
	require.Equal(t, int64(2), p.Sequence().Get())

	done := make(chan error, 1)
	go func() { done <- p.Run() }()
	deadline := time.After(10 * time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == 6 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("restarted processor did not catch up")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	p.Halt()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5}, seen)
}

// Work pool: each event handled by exactly one worker; totals preserved.
func TestWorkPoolExactlyOnce(t *testing.T) {
	const total = 20000
	rb, err := ring.New[tradeEvent](1024, ring.SingleProducer, wait.NewYielding())
	require.NoError(t, err)

	hits := make([]int32, total)
	var handled atomic.Int64
	workers := make([]api.EventHandler[tradeEvent], 4)
	for i := range workers {
		workers[i] = api.EventHandlerFunc[tradeEvent](func(ev *tradeEvent, seq int64, _ bool) error {
			atomic.AddInt32(&hits[seq], 1)
			handled.Add(1)
			return nil
		})
	}

	pool := NewWorkPool(rb, workers...)
	require.NoError(t, pool.Start())

	publishAll(rb, total)
	deadline := time.After(30 * time.Second)
	for handled.Load() < total {
		select {
		case <-deadline:
			t.Fatalf("pool stalled at %d/%d", handled.Load(), total)
		default:
			time.Sleep(time.Millisecond)
		}
	}
	pool.Halt()
	pool.Halt()

	for seq, n := range hits {
		if n != 1 {
			t.Fatalf("sequence %d handled %d times", seq, n)
		}
	}
	assert.Empty(t, pool.Faults())
}

// Multi-producer feeding a work pool: totals must still be exact.
func TestWorkPoolMultiProducer(t *testing.T) {
	const producers = 3
	const perProducer = 5000
	const total = producers * perProducer

	rb, err := ring.New[tradeEvent](512, ring.MultiProducer, wait.NewYielding())
	require.NoError(t, err)

	var handled atomic.Int64
	workers := make([]api.EventHandler[tradeEvent], 3)
	for i := range workers {
		workers[i] = api.EventHandlerFunc[tradeEvent](func(ev *tradeEvent, seq int64, _ bool) error {
			handled.Add(1)
			return nil
		})
	}
	pool := NewWorkPool(rb, workers...)
	require.NoError(t, pool.Start())

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				seq := rb.Next()
				rb.Get(seq).Counter = seq
				rb.Publish(seq)
			}
		}()
	}
	wg.Wait()

	deadline := time.After(30 * time.Second)
	for handled.Load() < total {
		select {
		case <-deadline:
			t.Fatalf("pool stalled at %d/%d", handled.Load(), total)
		default:
			time.Sleep(time.Millisecond)
		}
	}
	pool.Halt()
	assert.Equal(t, int64(total), handled.Load())
}

func TestDisruptorStartValidation(t *testing.T) {
	d, err := NewDisruptor[tradeEvent](64, ring.SingleProducer, wait.NewBlocking())
	require.NoError(t, err)
	require.Error(t, d.Start()) // no consumers

	d.HandleWith(newCountingHandler())
	require.NoError(t, d.Start())
	assert.True(t, errors.Is(d.Start(), api.ErrProcessorRunning))
	d.Halt()
}

func TestProcessorNames(t *testing.T) {
	d, err := NewDisruptor[tradeEvent](64, ring.SingleProducer, wait.NewBlocking())
	require.NoError(t, err)
	d.HandleWith(newCountingHandler(), newCountingHandler())
	for i, p := range d.processors {
		assert.Equal(t, fmt.Sprintf("processor-%d", i), p.Name())
	}
}
