// Package retry runs remote calls under a bounded exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how a single remote call is retried.
type Policy struct {
	// MaxAttempts is the total number of calls made before giving up, including the first.
	MaxAttempts int
	// BaseDelay is the wait after the first failure, every later wait is multiplied by Multiplier.
	BaseDelay  time.Duration
	Multiplier float64
	// MaxDelay caps a single wait, zero means uncapped.
	MaxDelay time.Duration
	// CallTimeout bounds each attempt, zero means the attempt only inherits the parent context.
	CallTimeout time.Duration
}

// DefaultPolicy is 3 attempts with a doubling delay starting at 2 seconds.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Multiplier:  2,
		CallTimeout: 30 * time.Second,
	}
}

// Permanent marks an error that must not be retried.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Notify is called after every failed attempt that will be retried.
type Notify func(err error, attempt int, wait time.Duration)

func (p Policy) backoff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	exp.Multiplier = p.Multiplier
	if exp.Multiplier < 1 {
		exp.Multiplier = 1
	}
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	if p.MaxDelay > 0 {
		exp.MaxInterval = p.MaxDelay
	} else {
		exp.MaxInterval = time.Duration(1<<62 - 1)
	}

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
}

// Do calls op until it succeeds, returns a permanent error, the attempts run
// out or ctx is done. The error of the last attempt is returned.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, notify Notify) error {
	attempt := 0
	operation := func() error {
		attempt++
		callCtx := ctx
		if p.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.CallTimeout)
			defer cancel()
		}
		return op(callCtx)
	}

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, wait time.Duration) {
			notify(err, attempt, wait)
		}
	}

	err := backoff.RetryNotify(operation, p.backoff(ctx), onRetry)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}
