package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrGroupDataMissing, "writeIndexUpdate", "group %s", "g1")
	wrapped := fmt.Errorf("applying batch: %w", err)

	assert.True(t, errors.Is(wrapped, ErrGroupDataMissing))
	assert.Equal(t, "writeIndexUpdate", Op(wrapped))
	assert.Equal(t, "writeIndexUpdate: group data not available: group g1", err.Error())
	assert.Equal(t, "get: not found", New(ErrNotFound, "get", "").Error())
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(fmt.Errorf("commit: %w", ErrStoreUnavailable)))
	assert.True(t, Retryable(New(ErrConflict, "commit", "serialization failure")))
	assert.False(t, Retryable(ErrDecryption))
	assert.False(t, Retryable(nil))
	assert.Equal(t, "", Op(ErrNotFound))
}
