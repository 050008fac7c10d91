package service

import (
	"context"
	"time"

	"courtbook/internal/metrics"
	"courtbook/internal/models"
)

// withRetry runs fn until it succeeds, fails with a non-storage error, or the
// retry budget is spent. The wait grows linearly with each attempt.
func withRetry[T any](ctx context.Context, e *Engine, op string, fn func() (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for attempt := 0; ; attempt++ {
		out, err = fn()
		if err == nil || !models.IsRetryable(err) || attempt >= e.retries {
			return out, err
		}

		metrics.IncStorageRetry(op)
		e.logger.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Msg("storage error, retrying")

		select {
		case <-ctx.Done():
			return out, err
		case <-time.After(e.backoff * time.Duration(attempt+1)):
		}
	}
}
