package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	ierr "github.com/flexprice/clockwork/internal/errors"
)

// retryPolicy is a capped exponential backoff with a hard attempt bound.
// Jitter is off so sleeps follow initial, initial*multiplier, ... up to max.
type retryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Multiplier  float64
	Max         time.Duration
}

func (p retryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Initial
	b.RandomizationFactor = 0
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.Max
	b.MaxElapsedTime = 0
	// the constructor primed the first interval with the library default
	b.Reset()

	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// run calls op until it succeeds, returns a backoff.Permanent error, the
// attempt bound is reached or ctx is done. It reports how many calls were made.
func (p retryPolicy) run(ctx context.Context, op func() error, notify func(error, time.Duration)) (int, error) {
	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		return op()
	}, p.backOff(ctx), notify)
	return attempts, err
}

// permanentUnlessRetryable stops the retry loop for everything except
// throttling and transient failures
func permanentUnlessRetryable(err error) error {
	if err == nil || ierr.IsRetryable(err) {
		return err
	}
	return backoff.Permanent(err)
}

// remote runs a single platform call under the advance retry policy
func (s ServiceParams) remote(ctx context.Context, op func() error) error {
	_, err := s.advancePolicy().run(ctx, func() error {
		return permanentUnlessRetryable(op())
	}, nil)
	return err
}

func (s ServiceParams) advancePolicy() retryPolicy {
	return retryPolicy{
		MaxAttempts: s.Config.Advancer.MaxAttempts,
		Initial:     s.Config.Advancer.InitialBackoff,
		Multiplier:  s.Config.Advancer.BackoffMultiplier,
		Max:         s.Config.Advancer.MaxBackoff,
	}
}

func (s ServiceParams) cancelPolicy() retryPolicy {
	return retryPolicy{
		MaxAttempts: s.Config.Scenario.CancelMaxAttempts,
		Initial:     s.Config.Scenario.CancelInitialBackoff,
		Multiplier:  s.Config.Advancer.BackoffMultiplier,
		Max:         s.Config.Scenario.CancelMaxBackoff,
	}
}
