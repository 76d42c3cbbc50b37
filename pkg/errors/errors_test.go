package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageFormat(t *testing.T) {
	err := NewValidation("priority out of range")
	assert.Equal(t, "VALIDATION: priority out of range", err.Error())

	wrapped := NewTimeout("job timed out", errors.New("context deadline exceeded"))
	assert.Equal(t, "TIMEOUT: job timed out: context deadline exceeded", wrapped.Error())
}

func TestTypePredicates(t *testing.T) {
	tests := []struct {
		err       error
		predicate func(error) bool
	}{
		{NewValidation("x"), IsValidation},
		{NewNotFound("x"), IsNotFound},
		{NewCapacity("x"), IsCapacity},
		{NewTimeout("x", nil), IsTimeout},
		{NewTransient("x", nil), IsTransient},
		{NewConflict("x"), IsConflict},
		{NewInternal("x", nil), IsInternal},
	}

	for _, tt := range tests {
		assert.True(t, tt.predicate(tt.err))
		assert.False(t, IsNotFound(errors.New("plain")))
	}
}

func TestWrapPreservesType(t *testing.T) {
	conflict := NewConflict("window already finalized")
	wrapped := Wrap(conflict, "aggregation failed")

	assert.True(t, IsConflict(wrapped), "wrapping must not change the error type")
	assert.Contains(t, wrapped.Error(), "aggregation failed")
	assert.Contains(t, wrapped.Error(), "window already finalized")
}

func TestWrapPlainError(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := Wrap(cause, "failed to query sessions")

	assert.True(t, IsInternal(wrapped))
	assert.ErrorIs(t, wrapped, cause)
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))
}

func TestUnwrapThroughFmtErrorf(t *testing.T) {
	inner := NewTransient("throttled", nil)
	outer := fmt.Errorf("outer layer: %w", inner)

	require.True(t, IsTransient(outer), "predicates must see through wrapping")

	var appErr *AppError
	require.True(t, errors.As(outer, &appErr))
	assert.Equal(t, ErrorTypeTransient, appErr.Type)
}
