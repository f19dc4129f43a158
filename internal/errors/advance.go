package errors

import (
	"fmt"
)

// AdvanceFailedError is returned when every attempt to request a clock
// advance was rejected. It aborts the current entity's trajectory.
type AdvanceFailedError struct {
	ClockID    string
	TargetTime int64
	Attempts   int
	Err        error
}

func (e *AdvanceFailedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("advance of clock %s to %d failed after %d attempts", e.ClockID, e.TargetTime, e.Attempts)
	}
	return fmt.Sprintf("advance of clock %s to %d failed after %d attempts: %v", e.ClockID, e.TargetTime, e.Attempts, e.Err)
}

func (e *AdvanceFailedError) Unwrap() error {
	return e.Err
}

func (e *AdvanceFailedError) Is(target error) bool {
	return target == ErrAdvanceFailed
}

// AdvanceTimeoutError is returned when the clock did not report ready at or
// past the target within the polling budget.
type AdvanceTimeoutError struct {
	ClockID        string
	TargetTime     int64
	LastStatus     string
	LastFrozenTime int64
	Err            error
}

func (e *AdvanceTimeoutError) Error() string {
	msg := fmt.Sprintf("clock %s not ready at %d (last_status=%s, last_frozen_time=%d)",
		e.ClockID, e.TargetTime, e.LastStatus, e.LastFrozenTime)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AdvanceTimeoutError) Unwrap() error {
	return e.Err
}

func (e *AdvanceTimeoutError) Is(target error) bool {
	return target == ErrAdvanceTimeout
}

// IsTrajectoryAbort reports whether err should end the current entity's
// trajectory while letting the batch continue.
func IsTrajectoryAbort(err error) bool {
	return IsAdvanceFailed(err) || IsAdvanceTimeout(err)
}
