//go:build !linux
// +build !linux

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub implementation for platforms without supported affinity control.
// Returns an error to indicate unavailability.

package affinity

import "errors"

// pinPlatform is a stub for platforms where CPU affinity is not supported.
func pinPlatform(cpuID int) error {
	return errors.New("affinity: not supported on this platform")
}
