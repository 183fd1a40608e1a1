package analysis

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds the attempts made for one chunk.
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: 500 * time.Millisecond, MaxInterval: 5 * time.Second}
}

// Retry runs op until it succeeds, fails permanently, exhausts the policy or
// ctx is done. NotConfiguredError and SchemaValidationError stop immediately.
func Retry[T any](ctx context.Context, p RetryPolicy, op func(context.Context) (T, error), notify func(error, time.Duration)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(attempts),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(notify))
	}
	return backoff.Retry(ctx, func() (T, error) {
		v, err := op(ctx)
		if err != nil && IsPermanent(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, opts...)
}
