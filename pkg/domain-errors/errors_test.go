package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	t.Run("domain error", func(t *testing.T) {
		assert.Equal(t, CodeNotFound, CodeOf(New(CodeNotFound, "missing")))
	})

	t.Run("wrapped domain error", func(t *testing.T) {
		err := fmt.Errorf("fetch product: %w", New(CodeInvalidInput, "bad id"))
		assert.Equal(t, CodeInvalidInput, CodeOf(err))
	})

	t.Run("plain error is internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(New(CodeUnavailable, "down")))
	assert.False(t, IsTransient(New(CodeNotFound, "missing")))
	assert.False(t, IsTransient(New(CodeInvalidInput, "bad")))
	assert.False(t, IsTransient(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "product service unreachable")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "product service unreachable", MessageOf(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMessageOfPlainError(t *testing.T) {
	assert.Equal(t, "internal error", MessageOf(errors.New("db failed")))
}
