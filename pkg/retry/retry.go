// Package retry runs an operation until it succeeds or a bounded number of
// attempts is used up, waiting with exponential backoff between attempts.
// Every error is treated as retryable.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"

	"github.com/andrej220/sshop/pkg/lg"
)

const (
	DefaultInitialWait = 500 * time.Millisecond
	DefaultMaxWait     = 2000 * time.Millisecond
	DefaultMaxAttempts = 3

	multiplier = 2.0
)

var ErrExhausted = errors.New("retry limit exhausted")

// Policy bounds a retry loop.
type Policy struct {
	InitialWait time.Duration `validate:"gte=0,ltefield=MaxWait"`
	MaxWait     time.Duration `validate:"gte=0"`
	MaxAttempts int           `validate:"gte=1"`
}

func DefaultPolicy() Policy {
	return Policy{
		InitialWait: DefaultInitialWait,
		MaxWait:     DefaultMaxWait,
		MaxAttempts: DefaultMaxAttempts,
	}
}

var validate = validator.New()

func (p Policy) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid retry policy: %w", err)
	}
	return nil
}

// backOff returns the wait schedule for p. Randomization is off so every
// wait stays within [InitialWait, MaxWait].
func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialWait,
		MaxInterval:         p.MaxWait,
		Multiplier:          multiplier,
		RandomizationFactor: 0,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// ExhaustedError is returned once all attempts failed. It wraps the error of
// the last attempt.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error { return []error{ErrExhausted, e.Last} }

// Do calls op until it succeeds, up to p.MaxAttempts times. A warning is
// logged before every wait with the attempt count, the limit and the wait;
// a nil logger means the one attached to ctx.
// If ctx is cancelled while waiting, ctx.Err() is returned as is.
func Do[T any](ctx context.Context, p Policy, logger lg.Logger, op func() (T, error)) (T, error) {
	var zero T
	if err := p.Validate(); err != nil {
		return zero, err
	}
	if logger == nil {
		logger = lg.FromContext(ctx)
	}

	attempts := 0
	operation := func() (T, error) {
		attempts++
		return op()
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("attempt failed, retrying",
			lg.Int("attempt", attempts),
			lg.Int("limit", p.MaxAttempts),
			lg.Duration("wait", wait),
			lg.Err(err))
	}

	b := backoff.WithContext(backoff.WithMaxRetries(p.backOff(), uint64(p.MaxAttempts-1)), ctx)
	res, err := backoff.RetryNotifyWithData(operation, b, notify)
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return zero, err
	}
	return zero, &ExhaustedError{Attempts: attempts, Last: err}
}
