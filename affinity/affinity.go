// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral API for CPU affinity. Platform-specific implementations
// live in separate files (affinity_linux.go, affinity_stub.go) guarded by
// build tags. Busy-spin consumers pinned to dedicated cores avoid scheduler
// migration jitter on the hot loop.

package affinity

// Pin binds the calling OS thread to a given logical CPU on supported
// platforms. Callers must have locked the goroutine to its thread first
// (runtime.LockOSThread). On unsupported platforms returns an error.
func Pin(cpuID int) error {
	return pinPlatform(cpuID)
}
