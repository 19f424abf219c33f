// Package errors provides structured error types for mongopool.
//
// This package provides:
//   - Sentinel errors for the conditions the pool can report
//   - Error codes for categorizing failures in logs and monitor events
//   - Error wrapping with context preservation
//
// Dial failures reach monitor events as *Error values coded
// CodeTimeout, CodeUnavailable or CodeConnection.
package errors

import (
	"errors"
	"fmt"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// Error codes for categorizing errors.
const (
	CodeInternal    = 1000 // Internal error
	CodeValidation  = 1001 // Configuration or argument validation failed
	CodeConnection  = 1002 // Dial or transport failure
	CodeTimeout     = 1003 // Operation timed out
	CodeClosed      = 1004 // Resource already closed
	CodeUnavailable = 1006 // Endpoint refused the connection
)

// Sentinel errors for common error conditions.
// Use errors.Is() to check for these conditions.
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrUnavailable indicates the remote endpoint refused the connection.
	ErrUnavailable = errors.New("endpoint unavailable")

	// ErrClosed indicates a resource is closed.
	ErrClosed = errors.New("closed")

	// ErrConnection indicates a connection error.
	ErrConnection = errors.New("connection error")

	// ErrConfiguration indicates a configuration error.
	ErrConfiguration = errors.New("configuration error")
)

// Pool errors
var (
	// ErrInvalidConfig indicates the pool configuration failed validation.
	ErrInvalidConfig = fmt.Errorf("pool: invalid %w", ErrConfiguration)

	// ErrPoolStopped indicates the pool has been stopped.
	ErrPoolStopped = fmt.Errorf("pool: %w", ErrClosed)

	// ErrHandleClosed indicates a write on a connection handle whose transport is gone.
	ErrHandleClosed = fmt.Errorf("handle: %w", ErrClosed)
)

// Dialer errors
var (
	// ErrUnsupportedNetwork indicates a dial network the pool cannot use.
	ErrUnsupportedNetwork = fmt.Errorf("dialer: unsupported network: %w", ErrInvalidInput)

	// ErrInvalidDestination indicates an I2P destination could not be parsed.
	ErrInvalidDestination = fmt.Errorf("dialer: invalid i2p destination: %w", ErrInvalidInput)
)

// Error is a structured error with a code and message.
type Error struct {
	// Code is the error code for categorization
	Code int `json:"code"`
	// Message is a short, human readable error message
	Message string `json:"message"`
	// Err is the underlying error
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap wraps an existing error with a code and message.
func Wrap(code int, message string, err error) *Error {
	if err != nil {
		log.WithField("code", code).WithError(err).Debug("wrapping error")
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validation wraps a validation failure so that it matches ErrInvalidConfig.
func Validation(format string, args ...any) *Error {
	return &Error{
		Code:    CodeValidation,
		Message: fmt.Sprintf(format, args...),
		Err:     ErrInvalidConfig,
	}
}

// CodeOf maps an error to its code. Structured errors keep their own code.
func CodeOf(err error) int {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}

	switch {
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrInvalidInput):
		return CodeValidation
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrClosed):
		return CodeClosed
	case errors.Is(err, ErrUnavailable):
		return CodeUnavailable
	case errors.Is(err, ErrConnection):
		return CodeConnection
	default:
		return CodeInternal
	}
}

// IsInvalidConfig returns true if the error indicates a configuration validation failure.
func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

// IsClosed returns true if the error indicates a resource is closed.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target,
// and if so, sets target to that error value and returns true.
func As(err error, target any) bool {
	return errors.As(err, target)
}
