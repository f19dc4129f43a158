package service

import (
	"context"
	"time"

	"github.com/flexprice/clockwork/internal/domain/clock"
	ierr "github.com/flexprice/clockwork/internal/errors"
	"github.com/flexprice/clockwork/internal/types"
)

// ClockAdvancer moves a simulated clock forward and blocks until the platform
// has finished processing up to the new time.
type ClockAdvancer interface {
	// Advance never moves a clock backward: a target at or before the
	// current frozen time is raised to frozen time plus one second.
	Advance(ctx context.Context, clockID string, target int64) (*clock.SimulatedClock, error)
	// Current reads the clock, retrying rate limits and transient errors
	Current(ctx context.Context, clockID string) (*clock.SimulatedClock, error)
}

type clockAdvancer struct {
	ServiceParams
}

func NewClockAdvancer(params ServiceParams) ClockAdvancer {
	return &clockAdvancer{
		ServiceParams: params,
	}
}

func (s *clockAdvancer) Advance(ctx context.Context, clockID string, target int64) (*clock.SimulatedClock, error) {
	start := time.Now()

	current, err := s.Current(ctx, clockID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.Metrics.AdvanceCompleted("failed", time.Since(start).Seconds())
		return nil, &ierr.AdvanceFailedError{ClockID: clockID, TargetTime: target, Err: err}
	}

	effective := target
	if target <= current.FrozenTime {
		effective = current.FrozenTime + 1
		s.Metrics.MonotonicBump()
		s.Logger.Warnw("advance target not after frozen time, bumping",
			"clock_id", clockID,
			"requested", types.FormatUnix(target),
			"frozen_time", types.FormatUnix(current.FrozenTime),
			"effective", types.FormatUnix(effective),
		)
	}

	if err := s.requestAdvance(ctx, clockID, effective); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.Metrics.AdvanceCompleted("failed", time.Since(start).Seconds())
		return nil, err
	}

	settled, err := s.waitUntilReady(ctx, clockID, effective)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		outcome := "failed"
		if ierr.IsAdvanceTimeout(err) {
			outcome = "timeout"
		}
		s.Metrics.AdvanceCompleted(outcome, time.Since(start).Seconds())
		return nil, err
	}

	s.Metrics.AdvanceCompleted("settled", time.Since(start).Seconds())
	s.Sentry.AddBreadcrumb("clock", "advanced", map[string]interface{}{
		"clock_id":    clockID,
		"target":      effective,
		"frozen_time": settled.FrozenTime,
	})
	s.Logger.Debugw("clock advanced",
		"clock_id", clockID,
		"frozen_time", types.FormatUnix(settled.FrozenTime),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return settled, nil
}

func (s *clockAdvancer) Current(ctx context.Context, clockID string) (*clock.SimulatedClock, error) {
	var c *clock.SimulatedClock
	_, err := s.advancePolicy().run(ctx, func() error {
		var err error
		c, err = s.Platform.Clocks().Retrieve(ctx, clockID)
		return permanentUnlessRetryable(err)
	}, s.onRetry(clockID))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// requestAdvance submits the advance, retrying only throttling and
// transient failures. Anything else fails on the first attempt.
func (s *clockAdvancer) requestAdvance(ctx context.Context, clockID string, target int64) error {
	attempts, err := s.advancePolicy().run(ctx, func() error {
		return permanentUnlessRetryable(s.Platform.Clocks().RequestAdvance(ctx, clockID, target))
	}, s.onRetry(clockID))
	if err == nil {
		return nil
	}

	s.Logger.Errorw("clock advance request failed",
		"clock_id", clockID,
		"target", types.FormatUnix(target),
		"attempts", attempts,
		"error", err,
	)
	return &ierr.AdvanceFailedError{ClockID: clockID, TargetTime: target, Attempts: attempts, Err: err}
}

// waitUntilReady polls until the clock is ready at or past target. Throttled
// or transient reads are tolerated until the poll budget runs out.
func (s *clockAdvancer) waitUntilReady(ctx context.Context, clockID string, target int64) (*clock.SimulatedClock, error) {
	deadline := time.Now().Add(s.Config.Advancer.PollTimeout)
	ticker := time.NewTicker(s.Config.Advancer.PollInterval)
	defer ticker.Stop()

	var last *clock.SimulatedClock
	for {
		c, err := s.Platform.Clocks().Retrieve(ctx, clockID)
		switch {
		case err == nil:
			last = c
			if c.IsSettledAt(target) {
				return c, nil
			}
			if c.Status == types.ClockStatusInternalFailure {
				return nil, &ierr.AdvanceFailedError{
					ClockID:    clockID,
					TargetTime: target,
					Attempts:   1,
					Err: ierr.NewErrorf("clock %s reported %s", clockID, c.Status).
						WithHint("The platform failed to process the advance; recreate the clock").
						Mark(ierr.ErrSystem),
				}
			}
		case ierr.IsRetryable(err):
			s.Logger.Debugw("clock poll failed, will retry", "clock_id", clockID, "error", err)
		default:
			return nil, timeoutError(clockID, target, last, err)
		}

		if !time.Now().Before(deadline) {
			return nil, timeoutError(clockID, target, last, nil)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *clockAdvancer) onRetry(clockID string) func(error, time.Duration) {
	return func(err error, wait time.Duration) {
		kind := "transient"
		if ierr.IsRateLimited(err) {
			kind = "rate_limited"
		}
		s.Metrics.AdvanceRetried(kind)
		s.Logger.Warnw("clock call failed, backing off",
			"clock_id", clockID,
			"kind", kind,
			"wait", wait.String(),
			"error", err,
		)
	}
}

func timeoutError(clockID string, target int64, last *clock.SimulatedClock, cause error) error {
	e := &ierr.AdvanceTimeoutError{ClockID: clockID, TargetTime: target, Err: cause}
	if last != nil {
		e.LastStatus = last.Status.String()
		e.LastFrozenTime = last.FrozenTime
	}
	return e
}
