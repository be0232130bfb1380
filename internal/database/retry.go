package database

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// connectRetryDelay is the pause before the first retry. It doubles after
// each failed attempt.
const connectRetryDelay = 500 * time.Millisecond

// withRetry calls connect until it succeeds, attempts are exhausted, or ctx
// ends. Databases started alongside the server may refuse connections for
// the first few seconds.
func withRetry(ctx context.Context, attempts int, log zerolog.Logger, name string, connect func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	delay := connectRetryDelay

	var err error
	for i := 1; i <= attempts; i++ {
		if err = connect(ctx); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		log.Warn().Err(err).Str("backend", name).Int("attempt", i).Dur("retry_in", delay).Msg("Connection failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
