package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors(t *testing.T) {
	sentinels := []struct {
		name string
		err  error
	}{
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrTimeout", ErrTimeout},
		{"ErrUnavailable", ErrUnavailable},
		{"ErrClosed", ErrClosed},
		{"ErrConnection", ErrConnection},
		{"ErrConfiguration", ErrConfiguration},
	}

	for _, tc := range sentinels {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, tc.err)
			assert.NotEmpty(t, tc.err.Error())
		})
	}
}

func TestWrappedSentinels(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wraps   error
		message string
	}{
		{"ErrInvalidConfig", ErrInvalidConfig, ErrConfiguration, "pool: invalid configuration error"},
		{"ErrPoolStopped", ErrPoolStopped, ErrClosed, "pool: closed"},
		{"ErrHandleClosed", ErrHandleClosed, ErrClosed, "handle: closed"},
		{"ErrUnsupportedNetwork", ErrUnsupportedNetwork, ErrInvalidInput, "dialer: unsupported network: invalid input"},
		{"ErrInvalidDestination", ErrInvalidDestination, ErrInvalidInput, "dialer: invalid i2p destination: invalid input"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.message, tc.err.Error())
			assert.True(t, errors.Is(tc.err, tc.wraps))
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	plain := Wrap(CodeClosed, "pool gone", nil)
	assert.Equal(t, "pool gone", plain.Error())
	assert.Nil(t, plain.Unwrap())

	cause := fmt.Errorf("dial tcp: refused")
	wrapped := Wrap(CodeConnection, "connect failed", cause)
	assert.Equal(t, "connect failed: dial tcp: refused", wrapped.Error())
	assert.Same(t, cause, errors.Unwrap(wrapped))
}

func TestValidation(t *testing.T) {
	err := Validation("size must be at least 1, got %d", 0)

	assert.Equal(t, CodeValidation, err.Code)
	assert.True(t, IsInvalidConfig(err))
	assert.Contains(t, err.Error(), "size must be at least 1, got 0")

	wrapped := fmt.Errorf("creating pool: %w", err)
	assert.True(t, IsInvalidConfig(wrapped))
	assert.Equal(t, CodeValidation, CodeOf(wrapped))
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{ErrInvalidConfig, CodeValidation},
		{ErrInvalidInput, CodeValidation},
		{ErrTimeout, CodeTimeout},
		{ErrPoolStopped, CodeClosed},
		{ErrHandleClosed, CodeClosed},
		{ErrUnavailable, CodeUnavailable},
		{fmt.Errorf("dial: %w", ErrConnection), CodeConnection},
		{errors.New("something else"), CodeInternal},
		{Wrap(CodeTimeout, "slow", ErrConnection), CodeTimeout},
	}

	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.code, CodeOf(tc.err))
		})
	}
}

func TestIsAndAs(t *testing.T) {
	err := fmt.Errorf("write: %w", Wrap(CodeConnection, "dial db", ErrConnection))
	assert.True(t, Is(err, ErrConnection))
	assert.False(t, IsClosed(err))

	var coded *Error
	require.True(t, As(err, &coded))
	assert.Equal(t, CodeConnection, coded.Code)
	assert.False(t, As(ErrClosed, &coded))
}
