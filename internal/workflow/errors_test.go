package workflow

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCode(t *testing.T) {
	err := NewInvalidPoll("one option")
	assert.True(t, IsCode(err, ErrCodeInvalidPoll))
	assert.False(t, IsCode(err, ErrCodeNotFound))

	// Wrapped errors still match.
	wrapped := fmt.Errorf("start poll: %w", err)
	assert.True(t, IsCode(wrapped, ErrCodeInvalidPoll))

	assert.False(t, IsCode(errors.New("plain"), ErrCodeInvalidPoll))
	assert.False(t, IsCode(nil, ErrCodeInvalidPoll))
}

func TestError_Message(t *testing.T) {
	err := NewNotFound("abc123")
	assert.Contains(t, err.Error(), "NOT_FOUND")
	assert.Contains(t, err.Error(), "abc123")

	err = NewInvalidPoll("too few options")
	assert.Equal(t, "INVALID_POLL: too few options", err.Error())
}
