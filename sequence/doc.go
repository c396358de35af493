// File: sequence/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package sequence provides the monotonic 64-bit position counters that
// coordinate every producer and consumer in the disruptor. Each Sequence is
// isolated on its own cache line so independently-advancing counters never
// invalidate one another's lines, and a Group computes the minimum over a
// fixed set of sequences for gating and dependency barriers.
package sequence
