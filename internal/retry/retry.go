// Package retry runs an operation a bounded number of times. Every attempt
// after the first is told to bypass cached results, so a cached bad answer
// is not replayed.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrExhausted wraps the last failure once every attempt has failed.
var ErrExhausted = errors.New("retry budget exhausted")

// Attempt describes one try of an operation.
type Attempt struct {
	// N is the zero-based attempt number.
	N int
	// Overwrite is set on every attempt after the first.
	Overwrite bool
}

// Options tune Do.
type Options struct {
	// Attempts is the maximum number of tries; values below 1 mean 1.
	Attempts int
	// Delay waits between attempts with exponential growth; zero retries immediately.
	Delay time.Duration
	// OnRetry observes every failed attempt that will be retried.
	OnRetry func(a Attempt, err error)
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error { return backoff.Permanent(err) }

// Do calls fn until it succeeds, returns a Permanent error, the context ends,
// or the attempt budget runs out.
func Do[T any](ctx context.Context, opts Options, fn func(ctx context.Context, a Attempt) (T, error)) (T, error) {
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var policy backoff.BackOff = &backoff.ZeroBackOff{}
	if opts.Delay > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = opts.Delay
		exp.MaxElapsedTime = 0
		policy = exp
	}
	if attempts == 1 {
		// WithMaxRetries treats zero as unlimited.
		policy = &backoff.StopBackOff{}
	} else {
		policy = backoff.WithMaxRetries(policy, uint64(attempts-1))
	}
	policy = backoff.WithContext(policy, ctx)

	n := 0
	var last error
	op := func() (T, error) {
		a := Attempt{N: n, Overwrite: n > 0}
		n++
		v, err := fn(ctx, a)
		if err != nil {
			last = err
		}
		return v, err
	}
	var notify backoff.Notify
	if opts.OnRetry != nil {
		notify = func(err error, _ time.Duration) { opts.OnRetry(Attempt{N: n - 1, Overwrite: n > 1}, err) }
	}
	v, err := backoff.RetryNotifyWithData(op, policy, notify)
	if err == nil {
		return v, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return v, err
	}
	var perm *backoff.PermanentError
	if errors.As(last, &perm) {
		return v, err
	}
	return v, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, n, err)
}

// Until calls fn until ok reports an acceptable value. It returns the last
// value and ErrExhausted when no attempt was accepted; fn errors are retried
// like rejected values.
func Until[T any](ctx context.Context, opts Options, fn func(ctx context.Context, a Attempt) (T, error), ok func(T) bool) (T, error) {
	var last T
	v, err := Do(ctx, opts, func(ctx context.Context, a Attempt) (T, error) {
		v, err := fn(ctx, a)
		if err != nil {
			return v, err
		}
		last = v
		if !ok(v) {
			return v, errRejected
		}
		return v, nil
	})
	if err != nil {
		return last, err
	}
	return v, nil
}

var errRejected = errors.New("result rejected")

// IsRejected reports whether err only records that results were rejected.
func IsRejected(err error) bool { return errors.Is(err, errRejected) }
