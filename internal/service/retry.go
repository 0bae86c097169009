package service

import (
	"context"
	"time"

	"staffing-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

const retryBackoff = 25 * time.Millisecond

// withRetry runs fn once plus up to retries more times while it fails with a
// concurrency conflict. Each attempt starts from scratch.
func withRetry(ctx context.Context, retries int, log zerolog.Logger, op string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !apperror.Is(err, apperror.CodeConcurrencyConflict) || attempt >= retries {
			return err
		}

		log.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Msg("ledger contention, retrying")

		timer := time.NewTimer(retryBackoff * time.Duration(attempt+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
