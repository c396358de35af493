// File: wait/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package wait implements the pluggable consumer wait strategies, ordered
// from lowest latency to lowest CPU cost: busy-spin, yielding, sleeping,
// blocking, and timeout-blocking. A strategy is selected per consumer group
// at construction time and never swapped at runtime.
package wait
