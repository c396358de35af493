// File: ring/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package ring implements the fixed-capacity circular event buffer at the
// center of the disruptor: a power-of-two slot store indexed by bitmask,
// claim sequencers for single- and multi-producer cardinalities, and the
// dependency barrier consumers wait on. Slots are allocated once at
// construction and reused in place; the hot path performs no allocation and
// takes no locks.
package ring
