package vmerrors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorParts(t *testing.T) {
	assert.Equal(t, "D1", GetErrorCode(ErrUnknownInstruction))
	assert.Equal(t, "UnknownInstruction", GetErrorName(ErrUnknownInstruction))
	assert.Equal(t, "C2_RecursiveCompilation", GetErrorCodeWithName(ErrRecursiveCompilation))

	wrapped := fmt.Errorf("at 0x10: %w", ErrUnknownInstruction)
	assert.ErrorIs(t, wrapped, ErrUnknownInstruction)
	assert.Equal(t, ErrUnknownInstruction, Sentinel(wrapped))
	assert.Equal(t, "D1", GetErrorCode(wrapped))
	assert.Equal(t, "D1_UnknownInstruction", GetErrorCodeWithName(wrapped))

	twice := fmt.Errorf("%w: %w", ErrCompilationFailed, fmt.Errorf("t1x: boom"))
	assert.Equal(t, "C1", GetErrorCode(twice))

	plain := fmt.Errorf("plain")
	assert.Nil(t, Sentinel(plain))
	assert.Equal(t, "", GetErrorCode(plain))
	assert.Equal(t, "", GetErrorCodeWithName(plain))
	assert.Equal(t, "plain", GetErrorName(plain))
	assert.Equal(t, "No Error", GetErrorName(nil))
}
