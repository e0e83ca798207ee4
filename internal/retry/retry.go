// Package retry implements the bounded startup retry policy shared by the
// Kafka publisher and the ingestion loop.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ErrExhausted is returned once every attempt has failed. The last attempt
// error is wrapped alongside it.
var ErrExhausted = errors.New("retry attempts exhausted")

type Policy struct {
	Attempts int
	Delay    time.Duration
	// Jitter, when non-zero, adds a random [0, Jitter) slice to each delay.
	Jitter time.Duration

	// OnAttempt, when set, observes the outcome of each failed attempt
	// before the next delay. attempt is 1-based.
	OnAttempt func(attempt int, err error)
}

// Do runs fn up to p.Attempts times, sleeping p.Delay between attempts.
// It returns nil on the first success, ctx.Err() if the context is
// cancelled while waiting, or ErrExhausted wrapping the last failure.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if p.OnAttempt != nil {
			p.OnAttempt(attempt, lastErr)
		}

		if attempt == p.Attempts {
			break
		}

		delay := p.Delay
		if p.Jitter > 0 {
			delay += time.Duration(rand.Int63n(int64(p.Jitter)))
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, p.Attempts, lastErr)
}
