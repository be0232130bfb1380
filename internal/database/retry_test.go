package database

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestWithRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 5, zerolog.Nop(), "test", func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("refused")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestWithRetryReturnsLastError(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 0, zerolog.Nop(), "test", func(context.Context) error {
		calls++
		return errors.New("refused")
	})
	assert.EqualError(t, err, "refused")
	assert.Equal(t, 1, calls, "non-positive attempts still tries once")
}

func TestWithRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, 10, zerolog.Nop(), "test", func(context.Context) error {
		calls++
		cancel()
		return errors.New("refused")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
