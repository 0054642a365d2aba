package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsType(t *testing.T) {
	wrapped := fmt.Errorf("page: %w", NewCursorExpiredError("abc"))

	assert.True(t, IsType(wrapped, ErrorTypeCursorExpired))
	assert.False(t, IsType(wrapped, ErrorTypeUnavailable))
	assert.False(t, IsType(stderrors.New("plain"), ErrorTypeInternal))
}

func TestIsRetryable(t *testing.T) {
	cause := stderrors.New("connection refused")

	assert.True(t, IsRetryable(NewUnavailableError("search failed", cause)))
	assert.False(t, IsRetryable(NewValidationError("bad window")))
	assert.False(t, IsRetryable(NewCursorExpiredError("abc")))
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := NewInternalError("query failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "INTERNAL: query failed: boom", err.Error())
}
