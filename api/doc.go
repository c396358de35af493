// File: api/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package api defines the public contracts of the hioload-disruptor library:
// sequence cursors, wait strategies, event handlers, and the shared error
// taxonomy. All concrete implementations live in sibling packages and assert
// compliance with these interfaces at compile time.
package api
