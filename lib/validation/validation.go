// Package validation provides the field validators used to check pool
// configuration. Every validator returns nil on success or a *Result
// naming the field, which wraps one of the sentinel errors below.
package validation

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"
)

// Common validation errors. These are sentinel errors that can be checked with errors.Is().
var (
	// ErrRequired indicates a required field is missing or empty.
	ErrRequired = errors.New("field is required")

	// ErrInvalidFormat indicates a value doesn't match the expected format.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrOutOfRange indicates a numeric value is outside the allowed range.
	ErrOutOfRange = errors.New("value out of range")
)

// MaxHostLength is the longest DNS name accepted as a host.
const MaxHostLength = 253

// hostLabelPattern matches one RFC 1123 DNS label.
var hostLabelPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// Result represents a validation result with field context.
type Result struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (r *Result) Error() string {
	if r.Field != "" {
		return fmt.Sprintf("%s %s", r.Field, r.Message)
	}
	return r.Message
}

// Unwrap returns the underlying error for errors.Is() support.
func (r *Result) Unwrap() error {
	return r.Err
}

// NewResult creates a validation result.
func NewResult(field, message string, err error) *Result {
	return &Result{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// Required validates that a string is non-empty.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewResult(field, "is required", ErrRequired)
	}
	return nil
}

// IntRange validates that an integer is within the given range (inclusive).
func IntRange(field string, value, min, max int) error {
	if value < min || value > max {
		return NewResult(field, fmt.Sprintf("must be between %d and %d, got %d", min, max, value), ErrOutOfRange)
	}
	return nil
}

// Positive validates that an integer is positive (> 0).
func Positive(field string, value int) error {
	if value <= 0 {
		return NewResult(field, fmt.Sprintf("must be at least 1, got %d", value), ErrOutOfRange)
	}
	return nil
}

// NonNegative validates that an integer is non-negative (>= 0).
func NonNegative(field string, value int) error {
	if value < 0 {
		return NewResult(field, fmt.Sprintf("must not be negative, got %d", value), ErrOutOfRange)
	}
	return nil
}

// Port validates a TCP port number.
func Port(field string, value int) error {
	return IntRange(field, value, 1, 65535)
}

// Host validates an IP address or an RFC 1123 host name.
func Host(field, value string) error {
	if err := Required(field, value); err != nil {
		return err
	}
	if net.ParseIP(value) != nil {
		return nil
	}
	if len(value) > MaxHostLength {
		return NewResult(field, fmt.Sprintf("exceeds maximum length of %d characters", MaxHostLength), ErrInvalidFormat)
	}

	for _, label := range strings.Split(strings.TrimSuffix(value, "."), ".") {
		if !hostLabelPattern.MatchString(label) {
			return NewResult(field, fmt.Sprintf("%q is not a valid host name", value), ErrInvalidFormat)
		}
	}
	return nil
}

// HostPort validates a host:port address. An empty host is allowed, as in
// ":9100".
func HostPort(field, value string) error {
	if err := Required(field, value); err != nil {
		return err
	}

	host, port, err := net.SplitHostPort(value)
	if err != nil {
		return NewResult(field, "must be in host:port format", ErrInvalidFormat)
	}
	if host != "" {
		if err := Host(field, host); err != nil {
			return err
		}
	}
	if port == "" {
		return NewResult(field, "is missing a port", ErrInvalidFormat)
	}
	return nil
}

// NonNegativeDuration validates that a duration is not negative.
func NonNegativeDuration(field string, value time.Duration) error {
	if value < 0 {
		return NewResult(field, fmt.Sprintf("must not be negative, got %s", value), ErrOutOfRange)
	}
	return nil
}

// FloatRange validates that a float is within the given range (inclusive).
func FloatRange(field string, value, min, max float64) error {
	if value < min || value > max {
		return NewResult(field, fmt.Sprintf("must be between %g and %g, got %g", min, max, value), ErrOutOfRange)
	}
	return nil
}

// MinFloat validates that a float is at least min.
func MinFloat(field string, value, min float64) error {
	if value < min {
		return NewResult(field, fmt.Sprintf("must be at least %g, got %g", min, value), ErrOutOfRange)
	}
	return nil
}

// First returns the first non-nil error.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
