// File: api/interfaces.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Core contracts between producers, consumers, and the ring. The wait
// strategy and barrier interfaces are deliberately minimal so that every
// implementation stays lock-free on the hot path.

package api

// Cursor is a readable sequence position. Both a single padded sequence and
// a min-of-set sequence group satisfy it.
type Cursor interface {
	// Get returns the current value with acquire semantics.
	Get() int64
}

// Barrier exposes the cooperative-cancellation state to wait strategies.
// A waiting thread consults CheckAlert between availability probes and
// returns ErrAlerted once a halt has been requested.
type Barrier interface {
	// CheckAlert returns ErrAlerted if the barrier has been alerted.
	CheckAlert() error
}

// WaitStrategy is the pluggable policy governing how a consumer blocks while
// awaiting new published data. Implementations trade CPU usage for latency.
type WaitStrategy interface {
	// WaitFor blocks until dependent reaches at least target, the barrier is
	// alerted (ErrAlerted), or the strategy-specific deadline expires
	// (ErrTimeout). cursor is the producer's published cursor; dependent is
	// the effective gate (min of cursor and upstream consumers) and is what
	// the returned value is read from. The returned sequence may exceed
	// target and may be below it only alongside a non-nil error.
	WaitFor(target int64, cursor Cursor, dependent Cursor, barrier Barrier) (int64, error)

	// SignalAllWhenBlocking wakes threads parked in WaitFor. Producers call
	// it after publishing; barriers call it when alerted. Non-blocking
	// strategies implement it as a no-op.
	SignalAllWhenBlocking()
}

// EventHandler consumes events as they become available. OnEvent is invoked
// once per event, in sequence order, from the single goroutine owning the
// processor. endOfBatch marks the last event of the current batch so handlers
// can defer flushing of accumulated side effects.
type EventHandler[T any] interface {
	OnEvent(event *T, sequence int64, endOfBatch bool) error
}

// EventHandlerFunc adapts a plain function to EventHandler.
type EventHandlerFunc[T any] func(event *T, sequence int64, endOfBatch bool) error

// OnEvent implements EventHandler.
func (f EventHandlerFunc[T]) OnEvent(event *T, sequence int64, endOfBatch bool) error {
	return f(event, sequence, endOfBatch)
}

// LifecycleAware is optionally implemented by handlers that want to be
// notified when their owning processor starts and shuts down. Both calls are
// made on the processor goroutine, outside the hot loop.
type LifecycleAware interface {
	OnStart()
	OnShutdown()
}
