// File: api/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Common error types and error handling utilities for hioload-disruptor.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	// ErrInvalidCapacity is returned at construction time when the requested
	// ring capacity is not a positive power of two.
	ErrInvalidCapacity = fmt.Errorf("capacity must be a positive power of two")

	// ErrAlerted is returned from a wait operation that observed a halt
	// request. It signals cooperative shutdown, not a fault.
	ErrAlerted = fmt.Errorf("barrier alerted")

	// ErrTimeout is returned only by the timeout-blocking wait strategy when
	// the target sequence did not become available within the deadline.
	ErrTimeout = fmt.Errorf("wait timeout")

	// ErrInsufficientCapacity is returned by non-blocking claim attempts when
	// the ring has fewer free slots than requested.
	ErrInsufficientCapacity = fmt.Errorf("insufficient ring capacity")

	// ErrProcessorRunning indicates Run was called on a processor that is
	// already running.
	ErrProcessorRunning = fmt.Errorf("processor already running")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidCapacity
	ErrCodeAlerted
	ErrCodeTimeout
	ErrCodeInsufficientCapacity
	ErrCodeHandler
	ErrCodeInternal
)

// String returns the stable name of the code, used as a metrics key suffix.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidCapacity:
		return "invalid_capacity"
	case ErrCodeAlerted:
		return "alerted"
	case ErrCodeTimeout:
		return "timeout"
	case ErrCodeInsufficientCapacity:
		return "insufficient_capacity"
	case ErrCodeHandler:
		return "handler"
	default:
		return "internal"
	}
}

// CodeOf classifies any library error, unwrapping as needed.
func CodeOf(err error) ErrorCode {
	var structured *Error
	var handler *HandlerError
	switch {
	case err == nil:
		return ErrCodeOK
	case errors.As(err, &handler):
		return ErrCodeHandler
	case errors.Is(err, ErrInvalidCapacity):
		return ErrCodeInvalidCapacity
	case errors.Is(err, ErrAlerted):
		return ErrCodeAlerted
	case errors.Is(err, ErrTimeout):
		return ErrCodeTimeout
	case errors.Is(err, ErrInsufficientCapacity):
		return ErrCodeInsufficientCapacity
	case errors.As(err, &structured):
		return structured.Code
	default:
		return ErrCodeInternal
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// HandlerError wraps an error raised from user handler code during event
// processing. It halts the owning processor only; other processors and
// producers are unaffected.
type HandlerError struct {
	Sequence int64
	Err      error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler failed at sequence %d: %v", e.Sequence, e.Err)
}

// Unwrap exposes the underlying handler error for errors.Is/As.
func (e *HandlerError) Unwrap() error {
	return e.Err
}
