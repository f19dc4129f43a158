package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/flexprice/clockwork/internal/testutil"
	"github.com/flexprice/clockwork/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type ScenarioServiceSuite struct {
	testutil.BaseServiceTestSuite
	scenario ScenarioService
}

func TestScenarioService(t *testing.T) {
	suite.Run(t, new(ScenarioServiceSuite))
}

func (s *ScenarioServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.scenario = s.newScenario()
}

func (s *ScenarioServiceSuite) newScenario() ScenarioService {
	params := testParams(&s.BaseServiceTestSuite)
	advancer := NewClockAdvancer(params)
	return NewScenarioService(
		params,
		advancer,
		NewDunningAdvancer(params, advancer),
		NewInvoiceReconciler(params),
	)
}

func (s *ScenarioServiceSuite) plan(index int, trajectory types.Trajectory, months int) *EntityPlan {
	return &EntityPlan{
		Index:      index,
		Email:      fmt.Sprintf("scenario%d@actual.com", index),
		Name:       "Scenario Entity",
		Trajectory: trajectory,
		PriceRef:   testutil.MonthlyPriceID,
		Months:     months,
	}
}

func (s *ScenarioServiceSuite) TestFailRecover() {
	plan := s.plan(1, types.TrajectoryFailRecover, 6)
	plan.PaidMonths = 2
	plan.PastDueMonths = 1

	res, err := s.scenario.RunEntity(s.GetContext(), plan)
	s.Require().NoError(err)
	s.Equal(6, res.InvoicesPaid)
	s.Equal(0, res.InvoicesUnpaid)
	s.Equal(6, res.MonthsSimulated)
	s.True(res.PastDueObserved)
	s.Equal(types.SubscriptionStatusActive, res.SubscriptionStatus)
	s.Contains(res.States, types.TrajectoryStatePastDue)
	s.Contains(res.States, types.TrajectoryStateRecovered)
	s.Equal(types.TrajectoryStateDone, res.State)
	s.NotEmpty(res.ClockID)
	s.NotEmpty(res.EntityID)
}

func (s *ScenarioServiceSuite) TestFailLinger() {
	plan := s.plan(1, types.TrajectoryFailLinger, 6)
	plan.PaidMonths = 2

	res, err := s.scenario.RunEntity(s.GetContext(), plan)
	s.Require().NoError(err)
	s.Equal(2, res.InvoicesPaid)
	s.Equal(4, res.InvoicesUnpaid)
	s.Equal(6, res.MonthsSimulated)
	s.Equal(types.SubscriptionStatusPastDue, res.SubscriptionStatus)
	s.Equal(types.DunningOutcomeLingering, res.DunningOutcome)
	s.Contains(res.States, types.TrajectoryStateLingering)
	s.NotContains(res.States, types.TrajectoryStateRecovered)
}

func (s *ScenarioServiceSuite) TestFailingEntitiesStartOnAFutureAnchor() {
	plan := s.plan(1, types.TrajectoryFailLinger, 1)

	res, err := s.scenario.RunEntity(s.GetContext(), plan)
	s.Require().NoError(err)

	sub, err := s.GetPlatform().Subscriptions().Retrieve(s.GetContext(), res.SubscriptionID)
	s.Require().NoError(err)
	expected := s.GetConfig().Scenario.StartTime + types.DurationSeconds(s.GetConfig().Scenario.AnchorOffset)
	s.Equal(expected, sub.BillingAnchor)
}

func (s *ScenarioServiceSuite) TestSteadyActive() {
	res, err := s.scenario.RunEntity(s.GetContext(), s.plan(1, types.TrajectorySteadyActive, 3))
	s.Require().NoError(err)
	// the creation invoice bills the first month
	s.Equal(3, res.InvoicesPaid)
	s.Equal(0, res.InvoicesUnpaid)
	s.Equal(3, res.MonthsSimulated)
	s.Equal(types.SubscriptionStatusActive, res.SubscriptionStatus)
	s.Equal([]types.TrajectoryState{
		types.TrajectoryStateNew,
		types.TrajectoryStatePaidMonths,
		types.TrajectoryStateActiveSteady,
		types.TrajectoryStateDone,
	}, res.States)
}

func (s *ScenarioServiceSuite) TestCalendarStaysInsideTheHorizon() {
	start := s.GetConfig().Scenario.StartTime
	res, err := s.scenario.RunEntity(s.GetContext(), s.plan(1, types.TrajectorySteadyActive, 6))
	s.Require().NoError(err)
	s.Equal(6, res.InvoicesPaid)
	s.Equal(6, res.MonthsSimulated)

	c, err := s.GetPlatform().Clocks().Retrieve(s.GetContext(), res.ClockID)
	s.Require().NoError(err)
	s.Greater(c.FrozenTime, start+5*types.MonthSeconds)
	s.Less(c.FrozenTime, start+6*types.MonthSeconds)
}

func (s *ScenarioServiceSuite) TestCreationMonthOffsetsTheClock() {
	plan := s.plan(1, types.TrajectorySteadyActive, 1)
	plan.CreationMonth = 2

	res, err := s.scenario.RunEntity(s.GetContext(), plan)
	s.Require().NoError(err)

	sub, err := s.GetPlatform().Subscriptions().Retrieve(s.GetContext(), res.SubscriptionID)
	s.Require().NoError(err)
	s.Equal(s.GetConfig().Scenario.StartTime+2*types.MonthSeconds, sub.BillingAnchor)
}

func (s *ScenarioServiceSuite) TestCancelAfter() {
	plan := s.plan(1, types.TrajectoryCancelAfter, 3)
	plan.CancelAfter = 2

	res, err := s.scenario.RunEntity(s.GetContext(), plan)
	s.Require().NoError(err)
	s.True(res.Canceled)
	s.Equal(2, res.InvoicesPaid)
	s.Equal(2, res.MonthsSimulated)
	s.Equal(types.TrajectoryStateCanceled, res.State)
	s.Equal(types.SubscriptionStatusCanceled, res.SubscriptionStatus)
}

func (s *ScenarioServiceSuite) TestCancelBacksOffWhenThrottled() {
	s.GetPlatform().Inject(testutil.OpCancel, testutil.RateLimitedError(), testutil.RateLimitedError())
	plan := s.plan(1, types.TrajectoryCancelAfter, 2)
	plan.CancelAfter = 1

	res, err := s.scenario.RunEntity(s.GetContext(), plan)
	s.Require().NoError(err)
	s.True(res.Canceled)
	s.Equal(3, s.GetPlatform().Calls(testutil.OpCancel))
	s.Equal(0, s.GetPlatform().Calls(testutil.OpCancelAtPeriodEnd))
}

func (s *ScenarioServiceSuite) TestCancelFallsBackToPeriodEnd() {
	s.GetPlatform().Inject(testutil.OpCancel, testutil.ValidationError("subscription is locked"))
	plan := s.plan(1, types.TrajectoryCancelAfter, 2)
	plan.CancelAfter = 1

	res, err := s.scenario.RunEntity(s.GetContext(), plan)
	s.Require().NoError(err)
	s.True(res.Canceled)
	s.Equal(1, s.GetPlatform().Calls(testutil.OpCancel))
	s.Equal(1, s.GetPlatform().Calls(testutil.OpCancelAtPeriodEnd))
}

func (s *ScenarioServiceSuite) TestCancelRetriesOnlyRetryableFailures() {
	testCases := []struct {
		name           string
		cancelErrs     []error
		periodEndErrs  []error
		canceled       bool
		cancelCalls    int
		periodEndCalls int
	}{
		{
			name:           "transient delete is retried",
			cancelErrs:     []error{testutil.TransientError()},
			canceled:       true,
			cancelCalls:    2,
			periodEndCalls: 0,
		},
		{
			name:           "throttled fallback is retried without repeating the delete",
			cancelErrs:     []error{testutil.ValidationError("subscription is locked")},
			periodEndErrs:  []error{testutil.RateLimitedError()},
			canceled:       true,
			cancelCalls:    1,
			periodEndCalls: 2,
		},
		{
			name: "both paths rejected gives up at once",
			cancelErrs: []error{
				testutil.ValidationError("subscription is locked"),
				testutil.ValidationError("subscription is locked"),
			},
			periodEndErrs: []error{
				testutil.ValidationError("subscription is locked"),
				testutil.ValidationError("subscription is locked"),
			},
			canceled:       false,
			cancelCalls:    1,
			periodEndCalls: 1,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.ResetPlatform()
			s.scenario = s.newScenario()
			p := s.GetPlatform()
			p.Inject(testutil.OpCancel, tc.cancelErrs...)
			p.Inject(testutil.OpCancelAtPeriodEnd, tc.periodEndErrs...)

			plan := s.plan(1, types.TrajectoryCancelAfter, 2)
			plan.CancelAfter = 1

			res, err := s.scenario.RunEntity(s.GetContext(), plan)
			s.Require().NoError(err)
			s.Equal(tc.canceled, res.Canceled)
			s.Equal(tc.cancelCalls, p.Calls(testutil.OpCancel))
			s.Equal(tc.periodEndCalls, p.Calls(testutil.OpCancelAtPeriodEnd))
		})
	}
}

func (s *ScenarioServiceSuite) upgradePlan(months, after int) *EntityPlan {
	plan := s.plan(1, types.TrajectoryUpgrade, months)
	plan.UpgradePriceRef = testutil.UpgradePriceID
	plan.UpgradeAfter = after
	return plan
}

func (s *ScenarioServiceSuite) TestUpgrade() {
	res, err := s.scenario.RunEntity(s.GetContext(), s.upgradePlan(4, 2))
	s.Require().NoError(err)
	s.True(res.Upgraded)
	s.Equal(4, res.InvoicesPaid)
	s.Equal(4, res.MonthsSimulated)
	s.Contains(res.States, types.TrajectoryStateUpgraded)
	s.Equal(0, s.GetPlatform().Calls(testutil.OpReplaceItem))

	sub, err := s.GetPlatform().Subscriptions().Retrieve(s.GetContext(), res.SubscriptionID)
	s.Require().NoError(err)
	s.Equal(testutil.UpgradePriceID, sub.PriceRef)

	invoices, err := s.GetPlatform().Invoices().List(s.GetContext(), res.EntityID)
	s.Require().NoError(err)
	s.Require().NotEmpty(invoices)
	// newest first, billed on the upgrade price with no proration credit
	s.Equal(testutil.UpgradeAmount, invoices[0].AmountDue)
}

func (s *ScenarioServiceSuite) TestUpgradeFallsBackToItemReplacement() {
	s.GetPlatform().Inject(testutil.OpChangePrice, testutil.ValidationError("price change rejected"))

	res, err := s.scenario.RunEntity(s.GetContext(), s.upgradePlan(3, 2))
	s.Require().NoError(err)
	s.True(res.Upgraded)
	s.Equal(1, s.GetPlatform().Calls(testutil.OpReplaceItem))
	s.Equal(0, s.GetPlatform().Calls(testutil.OpCancel))
}

func (s *ScenarioServiceSuite) TestUpgradeFallsBackToNewSubscription() {
	s.GetPlatform().Inject(testutil.OpChangePrice, testutil.ValidationError("price change rejected"))
	s.GetPlatform().Inject(testutil.OpReplaceItem, testutil.ValidationError("item replacement rejected"))

	res, err := s.scenario.RunEntity(s.GetContext(), s.upgradePlan(3, 2))
	s.Require().NoError(err)
	s.True(res.Upgraded)
	s.Equal(1, s.GetPlatform().Calls(testutil.OpCancel))

	subs, err := s.GetPlatform().Subscriptions().List(s.GetContext(), res.EntityID)
	s.Require().NoError(err)
	s.Require().Len(subs, 2)
	s.NotEqual(subs[0].ID, res.SubscriptionID)
	s.Equal(types.SubscriptionStatusCanceled, subs[0].Status)
	s.Equal(testutil.UpgradePriceID, subs[1].PriceRef)
}

func (s *ScenarioServiceSuite) TestFailedUpgradeIsNotFatal() {
	p := s.GetPlatform()
	p.Inject(testutil.OpChangePrice, testutil.ValidationError("price change rejected"))
	p.Inject(testutil.OpReplaceItem, testutil.ValidationError("item replacement rejected"))
	p.Inject(testutil.OpCreateSubscription, nil, testutil.ValidationError("subscription rejected"))

	res, err := s.scenario.RunEntity(s.GetContext(), s.upgradePlan(3, 2))
	s.Require().NoError(err)
	s.False(res.Upgraded)
	s.NotContains(res.States, types.TrajectoryStateUpgraded)
	s.Equal(types.TrajectoryStateDone, res.State)
}

func (s *ScenarioServiceSuite) TestAbortedEntityDoesNotStopTheBatch() {
	s.GetPlatform().Inject(testutil.OpRequestAdvance, testutil.ValidationError("clock is locked"))
	plans := []*EntityPlan{
		s.plan(1, types.TrajectorySteadyActive, 2),
		s.plan(2, types.TrajectorySteadyActive, 2),
	}

	summary, err := s.scenario.Run(s.GetContext(), plans)
	s.Require().NoError(err)
	s.Equal(s.scenario.RunID(), summary.RunID)
	s.Len(summary.Entities, 2)
	s.Equal(1, summary.Aborted)
	s.Equal([]string{plans[0].Email}, summary.AbortedEntities)
	s.Equal(2, summary.CreatedEntities)
	s.Equal(2, summary.Subscriptions)

	aborted := summary.Entities[0]
	s.Equal(types.TrajectoryStateAborted, aborted.State)
	s.NotEmpty(aborted.Error)

	finished := summary.Entities[1]
	s.Equal(types.TrajectoryStateDone, finished.State)
	s.Equal(2, finished.InvoicesPaid)
	s.Equal(finished.InvoicesPaid+aborted.InvoicesPaid, summary.InvoicesPaid)
}

func (s *ScenarioServiceSuite) TestInvalidPlanIsAborted() {
	testCases := []struct {
		name   string
		mutate func(*EntityPlan)
	}{
		{
			name:   "unknown trajectory",
			mutate: func(p *EntityPlan) { p.Trajectory = types.Trajectory("sideways") },
		},
		{
			name:   "bad email",
			mutate: func(p *EntityPlan) { p.Email = "not-an-email" },
		},
		{
			name: "upgrade without target price",
			mutate: func(p *EntityPlan) {
				p.Trajectory = types.TrajectoryUpgrade
				p.UpgradeAfter = 1
			},
		},
		{
			name:   "no months",
			mutate: func(p *EntityPlan) { p.Months = 0 },
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			plan := s.plan(1, types.TrajectorySteadyActive, 2)
			tc.mutate(plan)

			res, err := s.scenario.RunEntity(s.GetContext(), plan)
			s.Require().Error(err)
			s.Equal(types.TrajectoryStateAborted, res.State)
			s.Empty(res.EntityID)
		})
	}
	s.Equal(0, s.GetPlatform().Calls(testutil.OpCreateCustomer))
}

func (s *ScenarioServiceSuite) TestRunStopsOnCancelledContext() {
	ctx, cancel := context.WithCancel(s.GetContext())
	cancel()

	summary, err := s.scenario.Run(ctx, []*EntityPlan{s.plan(1, types.TrajectorySteadyActive, 2)})
	s.Require().ErrorIs(err, context.Canceled)
	s.Empty(summary.Entities)
}

func (s *ScenarioServiceSuite) TestEachServiceHasItsOwnRunID() {
	s.NotEqual(s.scenario.RunID(), s.newScenario().RunID())
	s.True(strings.HasPrefix(s.scenario.RunID(), types.RunIDPrefix+"_"))
}

func TestEntityRunCatchUp(t *testing.T) {
	anchor := types.BaselineStart
	month := types.MonthSeconds

	testCases := []struct {
		name     string
		cycle    int64
		target   int64
		expected int64
		skipped  int64
	}{
		{name: "requested boundary", cycle: 2, target: NextCycleAfter(anchor, 2, anchor, month), expected: 2},
		{name: "clock already past", cycle: 1, target: NextCycleAfter(anchor, 1, anchor+3*month+types.DaySeconds, month), expected: 4, skipped: 3},
		{name: "mid-cycle target", cycle: 3, target: anchor + 2*month + 15*types.DaySeconds, expected: 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := &entityRun{anchor: anchor, cycle: tc.cycle}
			assert.Equal(t, tc.skipped, r.catchUp(tc.target))
			assert.Equal(t, tc.expected, r.cycle)
		})
	}
}
