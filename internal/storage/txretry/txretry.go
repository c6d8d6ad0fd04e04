// Package txretry retries backend transactions that fail on transient
// write conflicts, with capped exponential backoff and jitter.
//
// Only errors classified as transient by the caller are retried. Once the
// attempt budget is spent the last conflict is surfaced as
// domain.ErrStoreUnavailable.
package txretry

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/yndnr/tally-go/internal/core/domain"
)

// Default policy values.
const (
	DefaultMaxAttempts = 8
	DefaultBaseDelay   = 5 * time.Millisecond
	DefaultMaxDelay    = 250 * time.Millisecond
	jitterPercent      = 20
)

// Policy bounds the retries of one operation.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// OnRetry, if set, is called before each retry.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns the default policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

func (p Policy) backoff() retry.Backoff {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay < base {
		maxDelay = base
	}

	b := retry.NewExponential(base)
	b = retry.WithJitterPercent(jitterPercent, b)
	b = retry.WithCappedDuration(maxDelay, b)
	return retry.WithMaxRetries(uint64(attempts-1), b)
}

// Do runs fn until it succeeds, fails with an error transient does not
// accept, or the budget is spent.
func (p Policy) Do(ctx context.Context, transient func(error) bool, fn func(context.Context) error) error {
	attempt := 0
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil || !transient(err) {
			return err
		}
		if p.OnRetry != nil && attempt < p.attempts() {
			p.OnRetry(attempt, err)
		}
		return retry.RetryableError(err)
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.ErrStoreUnavailable.WithDetails("retry interrupted").WithCause(err)
	case transient(err):
		return domain.ErrStoreUnavailable.WithCause(err)
	default:
		return err
	}
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}
