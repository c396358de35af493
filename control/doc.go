// File: control/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package control provides runtime introspection for disruptor pipelines.
// Processors publish counters (events processed, batches, halts) into a
// MetricsRegistry; integrators snapshot it for monitoring. Nothing here sits
// on the hot path: counters are flushed per batch, not per event.
package control
