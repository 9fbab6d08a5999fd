package mirror

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// RetryPolicy bounds the retries of a single destination send.
type RetryPolicy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	Attempts:     3,
	InitialDelay: time.Second,
	MaxDelay:     30 * time.Second,
}

func (p RetryPolicy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

// withRetry runs send until it succeeds, fails permanently or runs out of attempts.
// Flood-wait hints from the transport replace the computed delay.
func withRetry[T any](ctx context.Context, log zerolog.Logger, policy RetryPolicy, op string, send func() (T, error)) (T, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		res, err := send()
		if err == nil {
			return res, nil
		}
		if IsPermanent(err) || errors.Is(err, context.Canceled) {
			return res, backoff.Permanent(err)
		}
		var te *TransportError
		if errors.As(err, &te) && te.RetryAfter > 0 && attempt < attempts {
			log.Warn().Err(err).
				Str("op", op).
				Int("attempt", attempt).
				Dur("retry_after", te.RetryAfter).
				Msg("Destination asked to slow down")
			return res, backoff.RetryAfter(int((te.RetryAfter + time.Second - 1) / time.Second))
		}
		return res, err
	},
		backoff.WithBackOff(policy.newBackOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, delay time.Duration) {
			log.Warn().Err(err).
				Str("op", op).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Send failed, retrying")
		}),
	)
}
