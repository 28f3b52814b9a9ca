package attrs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	log := discardLogger()

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := retryable(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("flaky")
			}
			return nil
		}, 3, time.Millisecond, log)
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := retryable(context.Background(), func() error {
			calls++
			return boom
		}, 2, time.Millisecond, log)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 3, calls)
	})

	t.Run("no retries", func(t *testing.T) {
		calls := 0
		_ = retryable(context.Background(), func() error {
			calls++
			return errors.New("once")
		}, 0, time.Hour, log)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		boom := errors.New("boom")
		calls := 0
		err := retryable(ctx, func() error {
			calls++
			cancel()
			return boom
		}, 5, time.Hour, log)
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, sortedKeys(map[string]int{"c": 1, "a": 2, "b": 3}))
	assert.Empty(t, sortedKeys(map[string]bool{}))
}
