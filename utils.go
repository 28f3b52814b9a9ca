package attrs

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"
)

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// retryable runs call up to max+1 times, doubling the delay between
// attempts. It stops early when ctx is done.
func retryable(ctx context.Context, call func() error, max int, backoff time.Duration, log *slog.Logger) error {
	delay := backoff
	var err error
	for attempt := 0; attempt <= max; attempt++ {
		if err = call(); err == nil {
			if attempt > 0 {
				log.Debug("model call succeeded after retry", "attempt", attempt+1)
			}
			return nil
		}
		if attempt == max {
			break
		}
		log.Debug("model call failed, retrying", "attempt", attempt+1, "error", err, "delay", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
		delay *= 2
	}
	return err
}
