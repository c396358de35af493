// File: processor/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Functional options for processor construction.

package processor

import "github.com/momentics/hioload-disruptor/control"

// Option configures a Processor at construction time.
type Option func(*settings)

type settings struct {
	name    string
	cpuID   int
	metrics *control.MetricsRegistry
}

func defaultSettings() settings {
	return settings{
		name:  "processor",
		cpuID: -1,
	}
}

// WithName sets the processor name used as the metrics key prefix.
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// WithPinnedCPU pins the processor's OS thread to a logical CPU for the
// lifetime of Run. Pair with the busy-spin strategy on dedicated cores.
func WithPinnedCPU(cpuID int) Option {
	return func(s *settings) { s.cpuID = cpuID }
}

// WithMetrics registers a metrics registry the processor flushes per-batch
// counters into.
func WithMetrics(mr *control.MetricsRegistry) Option {
	return func(s *settings) { s.metrics = mr }
}
