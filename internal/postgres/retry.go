package postgres

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/logger"
)

const (
	retryInitialInterval = 10 * time.Millisecond
	retryMaxInterval     = 250 * time.Millisecond
)

// RunWithRetry runs op and replays it while it fails with a retryable
// conflict, at most maxRetries extra times. Exhaustion is reported as
// ierr.ErrTransient with the last conflict as cause.
func RunWithRetry(ctx context.Context, log *logger.Logger, maxRetries int, op func() error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = retryInitialInterval
	expBackoff.MaxInterval = retryMaxInterval
	expBackoff.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(maxRetries)), ctx)

	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := op()
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, next time.Duration) {
		log.Warnw("retrying conflicting transaction",
			"attempt", attempts,
			"max_retries", maxRetries,
			"backoff_ms", next.Milliseconds(),
			"error", err,
		)
	})

	if err != nil && IsRetryable(err) {
		return ierr.WithError(err).
			WithHint("The operation kept conflicting with concurrent updates, please try again").
			WithReportableDetails(map[string]any{
				"attempts": attempts,
			}).
			Mark(ierr.ErrTransient)
	}
	return err
}
