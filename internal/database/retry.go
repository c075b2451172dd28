package database

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// PingWithRetry calls ping with exponential backoff until it succeeds,
// ctx is cancelled, or maxElapsed passes. A zero maxElapsed tries once.
func PingWithRetry(ctx context.Context, backend string, maxElapsed time.Duration, ping func(ctx context.Context) error) error {
	if maxElapsed <= 0 {
		return ping(ctx)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = maxElapsed

	attempt := 0
	operation := func() error {
		attempt++
		err := ping(ctx)
		if err != nil {
			log.Warn().Err(err).Str("backend", backend).Int("attempt", attempt).Msg("credential backend not reachable yet")
		}
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}
