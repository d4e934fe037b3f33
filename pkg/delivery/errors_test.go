package delivery_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tournevent/fezdelivery/pkg/delivery"
)

func TestError_Is(t *testing.T) {
	err := delivery.NewError("fez", delivery.KindAuthFailed, "invalid credentials")

	assert.True(t, errors.Is(err, delivery.ErrAuthFailed))
	assert.False(t, errors.Is(err, delivery.ErrProvider))

	wrapped := fmt.Errorf("quote: %w", err)
	assert.True(t, errors.Is(wrapped, delivery.ErrAuthFailed))
}

func TestError_Error(t *testing.T) {
	cause := errors.New("connection refused")
	err := delivery.NewError("fez", delivery.KindProvider, "request failed").
		WithOp("cost").
		WithCause(cause).
		WithStatusCode(502).
		WithRetryable(true)

	assert.Equal(t, "fez cost (provider_error): request failed: connection refused", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.True(t, delivery.IsRetryable(err))
	assert.Equal(t, 502, err.StatusCode)

	same := delivery.NewError("", delivery.KindProvider, "boom").WithCause(errors.New("boom"))
	assert.Equal(t, "delivery (provider_error): boom", same.Error())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, delivery.ErrorKind(""), delivery.KindOf(nil))
	assert.Equal(t, delivery.KindNotFound, delivery.KindOf(delivery.NewError("fez", delivery.KindNotFound, "no lockers")))
	assert.Equal(t, delivery.KindProvider, delivery.KindOf(errors.New("plain")))
}

func TestMessageOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", delivery.NewError("fez", delivery.KindProvider, "Invalid state"))
	assert.Equal(t, "Invalid state", delivery.MessageOf(err))
	assert.Equal(t, "plain", delivery.MessageOf(errors.New("plain")))
	assert.Empty(t, delivery.MessageOf(nil))
}
