package transport

import (
	"context"
	"math/rand"
	"time"

	"github.com/FairHead/eventourismo-discover/pkg/errors"
	"github.com/FairHead/eventourismo-discover/pkg/logging"
)

// Retry policy defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxJitter   = 250 * time.Millisecond
	DefaultMaxDelay    = 30 * time.Second
)

// RetryPolicy wraps a single network operation with bounded exponential
// backoff plus jitter. Failures classified as fatal (non-429 4xx,
// malformed payloads) propagate immediately; retryable failures (429,
// 5xx, timeouts, transport errors) are retried up to MaxAttempts, after
// which the last error propagates. Callers treat an exhausted retry as a
// skip signal for the current cell or page, never as a run abort.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
	MaxDelay    time.Duration // cap on any single sleep, Retry-After included
}

// DefaultRetryPolicy returns the policy used by all provider adapters.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxJitter:   DefaultMaxJitter,
		MaxDelay:    DefaultMaxDelay,
	}
}

// Do runs fn, retrying on transient failures. The op label appears in
// retry logs only.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !errors.Retryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		delay := p.backoff(attempt, err)
		logging.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("transient failure, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

// backoff computes base * 2^attempt plus jitter, lifted to any provider
// Retry-After hint and capped at MaxDelay.
func (p RetryPolicy) backoff(attempt int, err error) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	delay := base << uint(attempt)
	if p.MaxJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(p.MaxJitter)))
	}
	if hint, ok := errors.RetryAfter(err); ok && hint > delay {
		delay = hint
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
