package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	err := NewDomainError(CodeInvalidState, "payment is pending")
	wrapped := fmt.Errorf("allocate: %w", err)

	assert.True(t, HasCode(wrapped, CodeInvalidState))
	assert.True(t, IsInvalidState(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.False(t, HasCode(errors.New("plain"), CodeInvalidState))
	assert.False(t, HasCode(nil, CodeNotFound))
}

func TestCodeHelpers(t *testing.T) {
	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsValidationFailed(ErrValidationFailed))
	assert.True(t, IsConflict(ErrConflict))
	assert.Equal(t, "Resource not found", ErrNotFound.Error())
}
