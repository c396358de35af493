// File: processor/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package processor runs consumer loops over a ring. A Processor owns one
// goroutine that waits on its barrier, handles every newly available event
// in sequence order as a batch, and advances its own sequence to free slots
// for producers. The Disruptor builder wires processors into pipeline,
// diamond, and multicast topologies; WorkPool distributes each event to
// exactly one of several competing workers.
package processor
