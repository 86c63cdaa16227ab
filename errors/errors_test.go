package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			assert.Equal(t, test.expected, test.class.String())
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"connection timeout", ErrConnectionTimeout, ErrorTransient},
		{"connection lost wrapped", fmt.Errorf("dial: %w", ErrConnectionLost), ErrorTransient},
		{"deadline", context.DeadlineExceeded, ErrorTransient},
		{"version mismatch", ErrVersionMismatch, ErrorFatal},
		{"auth rejected wrapped", fmt.Errorf("connect: %w", ErrAuthRejected), ErrorTransient},
		{"retries exhausted", ErrMaxRetriesExceeded, ErrorFatal},
		{"type mismatch", ErrTypeMismatch, ErrorInvalid},
		{"malformed payload", ErrMalformedPayload, ErrorInvalid},
		{"unknown defaults to transient", errors.New("something odd"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, Classify(test.err))
		})
	}
}

func TestWrapPreservesClass(t *testing.T) {
	base := errors.New("socket closed")

	transient := WrapTransient(base, "Manager", "connect", "open transport")
	assert.True(t, IsTransient(transient))
	assert.False(t, IsFatal(transient))
	assert.ErrorIs(t, transient, base)
	assert.Equal(t, "Manager.connect: open transport failed: socket closed", transient.Error())

	// Classification survives an outer fmt.Errorf wrap.
	outer := fmt.Errorf("startup: %w", WrapFatal(base, "Manager", "join", "join federation"))
	assert.True(t, IsFatal(outer))

	var ce *ClassifiedError
	assert.True(t, errors.As(outer, &ce))
	assert.Equal(t, "Manager", ce.Component)
	assert.Equal(t, "join", ce.Operation)

	invalid := WrapInvalid(ErrFieldMissing, "Engine", "Translate", "resolve field")
	assert.True(t, IsInvalid(invalid))
	assert.Equal(t, ErrorInvalid, Classify(invalid))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "a", "b", "c"))
	assert.NoError(t, WrapTransient(nil, "a", "b", "c"))
	assert.NoError(t, WrapFatal(nil, "a", "b", "c"))
	assert.NoError(t, WrapInvalid(nil, "a", "b", "c"))
	assert.False(t, IsTransient(nil))
	assert.False(t, IsFatal(nil))
	assert.False(t, IsInvalid(nil))
}

func TestClassifiedOverridesSentinel(t *testing.T) {
	// A version mismatch explicitly marked transient is treated as transient.
	err := WrapTransient(ErrVersionMismatch, "Gateway", "connect", "handshake")
	assert.True(t, IsTransient(err))
	assert.Equal(t, ErrorTransient, Classify(err))
}
