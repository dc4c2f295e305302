package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	apperrors "github.com/koopa0/system-design/item-cache/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestAppError_Is(t *testing.T) {
	wrapped := fmt.Errorf("get item 1: %w", apperrors.ErrItemNotFound)

	assert.True(t, stderrors.Is(wrapped, apperrors.ErrItemNotFound))
	assert.True(t, apperrors.IsNotFound(wrapped))
	assert.False(t, apperrors.IsUnavailable(wrapped))
	assert.False(t, stderrors.Is(wrapped, apperrors.ErrInvalidInput))
}

func TestStoreFailure(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := apperrors.StoreFailure(cause, "list items")

	assert.True(t, apperrors.IsUnavailable(err))
	assert.True(t, stderrors.Is(err, apperrors.ErrStoreUnavailable))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "list items", err.Details)
	assert.Contains(t, err.Error(), "connection refused")
}

// TestWithDetails_DoesNotMutateShared 預定義錯誤不能被修改
func TestWithDetails_DoesNotMutateShared(t *testing.T) {
	detailed := apperrors.ErrInvalidInput.WithDetails("name is required")

	assert.Equal(t, "name is required", detailed.Details)
	assert.Empty(t, apperrors.ErrInvalidInput.Details)
	assert.True(t, apperrors.IsInvalidInput(detailed))
}

func TestCacheFailure(t *testing.T) {
	cause := stderrors.New("i/o timeout")
	err := apperrors.CacheFailure(cause, "get item:1")

	assert.True(t, stderrors.Is(err, apperrors.ErrCacheUnavailable))
	assert.Equal(t, "cache unavailable", err.Message)
	assert.Equal(t, "get item:1", err.Details)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, apperrors.ErrCacheUnavailable.Err, "shared error must stay unwrapped")
}

func TestInvalidInput(t *testing.T) {
	err := apperrors.InvalidInput("invalid item id")

	assert.True(t, apperrors.IsInvalidInput(err))
	assert.Equal(t, "invalid item id", err.Details)
	assert.False(t, stderrors.Is(err, apperrors.ErrInternal))
	assert.Equal(t, "INTERNAL_ERROR", apperrors.ErrInternal.Code)
}

func TestError_Format(t *testing.T) {
	assert.Equal(t, "[NOT_FOUND] Item not found", apperrors.ErrItemNotFound.Error())
	assert.False(t, apperrors.IsNotFound(nil))
	assert.False(t, apperrors.IsNotFound(stderrors.New("plain")))
}
