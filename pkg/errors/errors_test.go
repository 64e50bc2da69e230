package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessage(t *testing.T) {
	cause := stderrors.New("duplicate key")

	err := NewConflict("password expiry already tracked", cause)
	assert.Equal(t, "password expiry already tracked: duplicate key", err.Error())
	assert.True(t, stderrors.Is(err, cause))

	assert.Equal(t, "csp report not found", NewNotFound("csp report", nil).Error())
}

func TestCodeOfWrapped(t *testing.T) {
	wrapped := fmt.Errorf("ingest: %w", NewBadRequest("invalid report", nil))

	assert.Equal(t, ErrBadRequest, CodeOf(wrapped))
	assert.True(t, Is(wrapped, ErrBadRequest))
	assert.False(t, Is(wrapped, ErrConflict))
	assert.Equal(t, ErrorCode(0), CodeOf(stderrors.New("plain")))
}
