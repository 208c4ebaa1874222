package helper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/plainapi/plainapi/model"
)

// Transient marks an error as retryable: network failures, 5xx
// responses and rate-limit responses. Errors not wrapped in Transient
// are treated as permanent and end the retry loop immediately.
type Transient struct {
	Err error
}

func (t *Transient) Error() string { return t.Err.Error() }
func (t *Transient) Unwrap() error { return t.Err }

// Retry runs op with bounded exponential backoff. Transient failures
// are retried up to maxRetries additional attempts; exhaustion is
// surfaced as ErrServiceUnavailable. Permanent failures and context
// cancellation end the attempt immediately.
func Retry(ctx context.Context, maxRetries uint64, initialInterval time.Duration, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	if initialInterval > 0 {
		policy.InitialInterval = initialInterval
	}

	err := backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		var transient *Transient
		if errors.As(err, &transient) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx))

	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var transient *Transient
	if errors.As(err, &transient) {
		return fmt.Errorf("%w: %v", model.ErrServiceUnavailable, transient.Err)
	}
	return err
}
