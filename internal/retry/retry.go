// Package retry runs an operation with a bounded number of linearly spaced retries.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy is the retry schedule: after the first failure wait Step, after
// the second 2*Step and so on, for at most MaxRetries retries.
type Policy struct {
	MaxRetries int
	Step       time.Duration
}

// Default is the schedule used for loading orders and subscribing: 1s, 2s, 3s.
var Default = Policy{MaxRetries: 3, Step: time.Second}

// Linear is a backoff.BackOff whose n-th interval is n*Step.
type Linear struct {
	Step time.Duration
	n    int
}

func (l *Linear) NextBackOff() time.Duration {
	l.n++
	return time.Duration(l.n) * l.Step
}

func (l *Linear) Reset() { l.n = 0 }

// Notify is called before each retry with the 1-based retry number, the
// error that caused it and the wait before the next attempt.
type Notify func(retry int, err error, wait time.Duration)

// Do runs op until it succeeds, returns a permanent error, ctx is done or
// the policy is exhausted. The last error is returned on exhaustion.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, notify Notify) error {
	retries := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, op(ctx)
	},
		backoff.WithBackOff(&Linear{Step: p.Step}),
		backoff.WithMaxTries(uint(p.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			retries++
			if notify != nil {
				notify(retries, err, wait)
			}
		}),
	)
	return err
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
