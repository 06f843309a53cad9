package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Timer is the wait primitive used between attempts.
// Tests inject a timer that fires immediately and records the requested waits.
type Timer = backoff.Timer

// Policy configures a bounded exponential retry loop.
// After attempt n fails the loop waits BaseDelay * 2^n before attempt n+1.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// Timer overrides the real timer (optional)
	Timer Timer

	// OnRetry is called before every wait (optional)
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultPolicy returns 3 attempts with 2s and 4s waits.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
	}
}

// Result describes how a call went.
type Result struct {
	Attempts int
	Waited   time.Duration
}

// Op is a single attempt of an external call.
type Op func(ctx context.Context) error

// Do runs op until it succeeds, returns a terminal error, the attempts are
// exhausted or ctx is cancelled. Terminal errors are returned after one attempt.
// Exhaustion returns *ExhaustedError wrapping the last failure.
func (p Policy) Do(ctx context.Context, op Op) (Result, error) {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}

	var res Result

	operation := func() error {
		res.Attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if IsTerminal(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		res.Waited += wait
		if p.OnRetry != nil {
			p.OnRetry(res.Attempts, err, wait)
		}
	}

	err := backoff.RetryNotifyWithTimer(operation, p.backOff(ctx), notify, p.Timer)
	switch {
	case err == nil:
		return res, nil
	case IsTerminal(err):
		return res, err
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return res, fmt.Errorf("retry interrupted after %d attempts: %w", res.Attempts, err)
	default:
		return res, &ExhaustedError{Attempts: res.Attempts, Err: err}
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 2 * p.BaseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = p.BaseDelay << uint(p.MaxAttempts+1)
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)
}

// Do runs op with the default policy.
func Do(ctx context.Context, op Op) (Result, error) {
	return DefaultPolicy().Do(ctx, op)
}
