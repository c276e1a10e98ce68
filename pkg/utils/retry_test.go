package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errPermanent = errors.New("permanent")

func TestCallWithRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	v, err := CallWithRetry(context.Background(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, assert.AnError
		}
		return 42, nil
	}, 5, time.Millisecond, nil)

	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestCallWithRetry_ReturnsLastError(t *testing.T) {
	calls := 0
	_, err := CallWithRetry(context.Background(), func() (string, error) {
		calls++
		return "", assert.AnError
	}, 3, time.Millisecond, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 3, calls)
}

func TestCallWithRetry_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	_, err := CallWithRetry(context.Background(), func() (int, error) {
		calls++
		return 0, errPermanent
	}, 5, time.Millisecond, func(err error) bool {
		return !errors.Is(err, errPermanent)
	})

	assert.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, calls)
}

func TestCallWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CallWithRetry(ctx, func() (int, error) {
		return 0, assert.AnError
	}, 5, time.Hour, nil)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", ParseLevel("debug").String())
	assert.Equal(t, "WARN", ParseLevel("warn").String())
	assert.Equal(t, "ERROR", ParseLevel("error").String())
	assert.Equal(t, "INFO", ParseLevel("bogus").String())
}
