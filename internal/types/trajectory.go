package types

import (
	ierr "github.com/flexprice/clockwork/internal/errors"
	"github.com/samber/lo"
)

// Trajectory is the scripted lifecycle a simulated customer is driven through
type Trajectory string

const (
	TrajectorySteadyActive Trajectory = "steady_active"
	TrajectoryCancelAfter  Trajectory = "cancel_after"
	TrajectoryFailRecover  Trajectory = "fail_recover"
	TrajectoryFailLinger   Trajectory = "fail_linger"
	TrajectoryUpgrade      Trajectory = "upgrade"
)

func (t Trajectory) String() string {
	return string(t)
}

func (t Trajectory) Validate() error {
	allowed := []Trajectory{
		TrajectorySteadyActive,
		TrajectoryCancelAfter,
		TrajectoryFailRecover,
		TrajectoryFailLinger,
		TrajectoryUpgrade,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid trajectory").
			WithHint("Please provide a valid trajectory").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsFailing reports whether the trajectory switches to a declining card
func (t Trajectory) IsFailing() bool {
	return t == TrajectoryFailRecover || t == TrajectoryFailLinger
}

// TrajectoryState is a node of the per-entity state machine
type TrajectoryState string

const (
	TrajectoryStateNew             TrajectoryState = "NEW"
	TrajectoryStatePaidMonths      TrajectoryState = "PAID_MONTHS"
	TrajectoryStateActiveSteady    TrajectoryState = "ACTIVE_STEADY"
	TrajectoryStateSwitchToFailing TrajectoryState = "SWITCH_TO_FAILING"
	TrajectoryStatePastDue         TrajectoryState = "PAST_DUE"
	TrajectoryStateRecovered       TrajectoryState = "RECOVERED"
	TrajectoryStateLingering       TrajectoryState = "LINGERING"
	TrajectoryStateCanceled        TrajectoryState = "CANCELED"
	TrajectoryStateUpgraded        TrajectoryState = "UPGRADED"
	TrajectoryStateDone            TrajectoryState = "DONE"
	TrajectoryStateAborted         TrajectoryState = "ABORTED"
)

func (s TrajectoryState) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible
func (s TrajectoryState) IsTerminal() bool {
	return s == TrajectoryStateDone || s == TrajectoryStateAborted
}

// DunningOutcome is how a bounded dunning walk ended
type DunningOutcome string

const (
	DunningOutcomeNoInvoice DunningOutcome = "no_invoice"
	DunningOutcomeRecovered DunningOutcome = "recovered"
	DunningOutcomeLingering DunningOutcome = "lingering"
)

func (o DunningOutcome) String() string {
	return string(o)
}
