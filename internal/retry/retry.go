package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes an exponential backoff schedule. It replaces the
// fixed sleep/attempt-count loops that used to sit inline at every
// connection site, so the schedule is configurable and testable on its own.
type Policy struct {
	Initial    time.Duration
	Max        time.Duration
	MaxElapsed time.Duration
}

// New builds a fresh backoff from the policy. Each call returns an
// independent schedule; backoffs are stateful and must not be shared.
func (p Policy) New() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.Initial > 0 {
		b.InitialInterval = p.Initial
	}
	if p.Max > 0 {
		b.MaxInterval = p.Max
	}
	b.MaxElapsedTime = p.MaxElapsed
	return b
}

// Do runs op under the policy until it succeeds, the schedule is
// exhausted, or ctx is cancelled.
func (p Policy) Do(ctx context.Context, op func() error) error {
	return backoff.Retry(op, backoff.WithContext(p.New(), ctx))
}
